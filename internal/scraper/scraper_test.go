package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shortPage = `<html><head><title>Acme</title><style>body{color:red}</style>
<script>console.log("tracking")</script></head>
<body>
<header>Top banner</header>
<nav><a href="/">Home</a><a href="/menu">Menu</a></nav>
<h1>Acme Industrial Widgets</h1>
<p>We   machine precision parts
for aerospace.</p>
<form><input name="q">Subscribe now</form>
<footer>Copyright Acme</footer>
</body></html>`

func articlePage() string {
	para := "Acme Manufacturing operates forty CNC machining centers across two plants in Ohio and supplies precision aluminium components to aerospace customers. "
	var b strings.Builder
	b.WriteString(`<html><head><title>About Acme</title></head><body><nav>Home | Products | Contact</nav><article>`)
	for i := 0; i < 6; i++ {
		b.WriteString("<p>")
		b.WriteString(strings.Repeat(para, 2))
		b.WriteString("</p>")
	}
	b.WriteString(`</article></body></html>`)
	return b.String()
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_FallsBackToTagStripping(t *testing.T) {
	var gotUA string
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(shortPage))
	})

	out := New(nil, Config{}, nil).Fetch(context.Background(), srv.URL)

	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Contains(t, out, "Acme Industrial Widgets")
	assert.Contains(t, out, "We machine precision parts")
	for _, noise := range []string{"console.log", "Top banner", "Menu", "Subscribe", "Copyright", "color:red"} {
		assert.NotContains(t, out, noise)
	}
	assert.False(t, strings.HasPrefix(out, "Error:"))
}

func TestFetch_UsesReadableArticle(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articlePage()))
	})

	out := New(nil, Config{MaxChars: 100000}, nil).Fetch(context.Background(), srv.URL)

	assert.Contains(t, out, "forty CNC machining centers")
	assert.NotContains(t, out, TruncationMarker)
}

func TestFetch_Truncates(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("x", 5000)))
	})

	out := New(nil, Config{}, nil).Fetch(context.Background(), srv.URL)

	require.True(t, strings.HasSuffix(out, TruncationMarker))
	assert.Equal(t, DefaultMaxChars, len(strings.TrimSuffix(out, TruncationMarker)))
}

func TestFetch_HTTPError(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	out := New(nil, Config{}, nil).Fetch(context.Background(), srv.URL+"/missing")

	assert.Equal(t, "Error: HTTP 404 for "+srv.URL+"/missing", out)
}

func TestFetch_Timeout(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	out := New(nil, Config{Timeout: 50 * time.Millisecond}, nil).Fetch(context.Background(), srv.URL)

	assert.Equal(t, "Error: Request timed out after 50ms for "+srv.URL, out)
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	out := New(nil, Config{}, nil).Fetch(context.Background(), addr)

	assert.Equal(t, "Error: Could not connect to "+addr, out)
}

func TestFetch_RejectsNonHTTPURL(t *testing.T) {
	f := New(nil, Config{}, nil)
	for _, u := range []string{"", "ftp://example.com", "example.com", "file:///etc/passwd"} {
		out := f.Fetch(context.Background(), u)
		assert.True(t, strings.HasPrefix(out, "Error: URL must start with http:// or https://"), u)
	}
}

func TestFetch_UnsupportedContentType(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	out := New(nil, Config{}, nil).Fetch(context.Background(), srv.URL)

	assert.Equal(t, "Error: Unsupported content type application/pdf for "+srv.URL, out)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab"+TruncationMarker, Truncate("abc", 2))
	assert.Equal(t, "héé"+TruncationMarker, Truncate("héééé", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestStripHTML_NestedNoise(t *testing.T) {
	out, err := StripHTML(strings.NewReader(`<div>keep<aside><nav>drop</nav>drop too</aside>after</div>`))
	require.NoError(t, err)
	assert.Equal(t, "keep\nafter", out)
}
