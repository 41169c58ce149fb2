// Package scraper fetches a web page and reduces it to readable text for the
// research agent. Failures are reported as "Error: ..." text, never as Go
// errors.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/cloo-solutions/outreachai/internal/logging"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxChars  = 4000
	DefaultUserAgent = "Mozilla/5.0 (compatible; 3ViewResearchBot/1.0; +https://e3view.com)"

	// TruncationMarker is appended when text is cut to the character limit.
	TruncationMarker = "\n\n[...truncated]"

	maxBodyBytes = 5 << 20
	// minArticleChars is the shortest readability output preferred over the
	// plain tag-stripping extraction.
	minArticleChars = 200
)

// noiseTags never contain page content.
var noiseTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true, "header": true,
	"aside": true, "form": true, "noscript": true, "iframe": true,
}

// Config configures a Fetcher.
type Config struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

// Fetcher downloads pages and extracts their text.
type Fetcher struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a Fetcher. client may be nil.
func New(client *http.Client, cfg Config, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Fetcher{client: client, cfg: cfg, logger: logging.OrNop(logger)}
}

// Fetch returns the page text at rawURL, or an "Error: ..." string.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Sprintf("Error: URL must start with http:// or https:// (got %q)", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Sprintf("Error: Failed to fetch %s: %v", rawURL, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("fetch failed", zap.String("url", rawURL), zap.Error(err))
		if isTimeout(ctx, err) {
			return fmt.Sprintf("Error: Request timed out after %s for %s", f.cfg.Timeout, rawURL)
		}
		return fmt.Sprintf("Error: Could not connect to %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Sprintf("Error: HTTP %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Sprintf("Error: Request timed out after %s for %s", f.cfg.Timeout, rawURL)
		}
		return fmt.Sprintf("Error: Failed to fetch %s: %v", rawURL, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	var text string
	switch {
	case mediaType == "" || strings.Contains(mediaType, "html"):
		text = f.extract(body, resp.Request.URL)
	case strings.HasPrefix(mediaType, "text/"):
		text = collapseLines(string(body))
	default:
		return fmt.Sprintf("Error: Unsupported content type %s for %s", mediaType, rawURL)
	}

	if text == "" {
		return fmt.Sprintf("Error: No readable text found at %s", rawURL)
	}
	return Truncate(text, f.cfg.MaxChars)
}

// extract prefers the readability article when it is substantial and falls
// back to stripping noise tags from the whole document.
func (f *Fetcher) extract(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		text := collapseLines(article.TextContent)
		if utf8.RuneCountInString(text) >= minArticleChars {
			if title := strings.TrimSpace(article.Title); title != "" && !strings.HasPrefix(text, title) {
				text = title + "\n" + text
			}
			return text
		}
	}
	text, err := StripHTML(bytes.NewReader(body))
	if err != nil {
		f.logger.Debug("html tokenizer failed", zap.Error(err))
	}
	return text
}

// StripHTML returns the visible text of an HTML document, one text node per
// line, skipping noise elements.
func StripHTML(r io.Reader) (string, error) {
	var lines []string
	skip := 0
	tokenizer := html.NewTokenizer(r)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			err := tokenizer.Err()
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return collapseLines(strings.Join(lines, "\n")), err
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if noiseTags[string(name)] {
				skip++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if noiseTags[string(name)] && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				if t := strings.TrimSpace(string(tokenizer.Text())); t != "" {
					lines = append(lines, t)
				}
			}
		}
	}
}

// collapseLines trims every line, collapses inner whitespace and drops blank lines.
func collapseLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Truncate cuts s to limit runes and appends TruncationMarker when it does.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + TruncationMarker
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
