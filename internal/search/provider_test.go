package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBrave_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "forging plant", r.URL.Query().Get("q"))
		assert.Equal(t, "4", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"Acme","url":"https://acme.example","description":"Forging since 1950"}]}}`))
	}))
	defer srv.Close()

	b := &Brave{APIKey: "secret", Client: srv.Client(), BaseURL: srv.URL}
	results, err := b.Search(context.Background(), "forging plant", 4)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, Result{Title: "Acme", URL: "https://acme.example", Snippet: "Forging since 1950"}, results[0])
}

func TestSerper_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "stamping", body["q"])
		_, _ = w.Write([]byte(`{"organic":[{"title":"Beta","link":"https://beta.example","snippet":"Presses"}]}`))
	}))
	defer srv.Close()

	s := &Serper{APIKey: "secret", Client: srv.Client(), BaseURL: srv.URL}
	results, err := s.Search(context.Background(), "stamping", 3)

	require.NoError(t, err)
	assert.Equal(t, []Result{{Title: "Beta", URL: "https://beta.example", Snippet: "Presses"}}, results)
}

func TestProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := &Brave{APIKey: "k", Client: srv.Client(), BaseURL: srv.URL}
	_, err := b.Search(context.Background(), "q", 1)
	assert.ErrorContains(t, err, "brave: HTTP 429")
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(SerperProvider, "k", nil)
	require.NoError(t, err)
	assert.IsType(t, &Serper{}, p)

	p, err = NewProvider("", "k", nil)
	require.NoError(t, err)
	assert.IsType(t, &Brave{}, p)

	_, err = NewProvider("duckduckgo", "k", nil)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = NewProvider(BraveProvider, "", nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Search(ctx context.Context, query string, count int) ([]Result, error) {
	args := m.Called(ctx, query, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Result), args.Error(1)
}

func TestService_Search(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Search", mock.Anything, "forging germany manufacturer company", 4).Return([]Result{
		{Title: "Top 10 forging companies", URL: "https://list.example"},
		{Title: "Acme", URL: "https://acme.example/"},
		{Title: "Acme contact", URL: "https://www.acme.example/contact"},
		{Title: "Beta", URL: "https://beta.example/"},
		{Title: "Gamma", URL: "https://gamma.example/"},
	}, nil)

	svc := NewService(provider, zap.NewNop())
	results, err := svc.Search(context.Background(), "forging germany", 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Acme", results[0].Title)
	assert.Equal(t, "Beta", results[1].Title)
	provider.AssertExpectations(t)
}

func TestService_SearchError(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: timeout"))

	_, err := NewService(provider, nil).Search(context.Background(), "acme inc", 0)
	assert.ErrorContains(t, err, "web search failed")
	provider.AssertCalled(t, "Search", mock.Anything, "acme inc", DefaultMaxResults*2)
}
