// Package search finds candidate company pages through a web search API and
// filters out directories, social networks and duplicate domains.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain,omitempty"`
}

// Provider queries a web search API.
type Provider interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
}

// ProviderName selects a search backend.
type ProviderName string

const (
	BraveProvider  ProviderName = "brave"
	SerperProvider ProviderName = "serper"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported search provider")
	ErrNoAPIKey            = errors.New("search API key not set")
)

// NewProvider builds the named provider. client may be nil.
func NewProvider(name ProviderName, apiKey string, client *http.Client) (Provider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if client == nil {
		client = http.DefaultClient
	}
	switch name {
	case BraveProvider, "":
		return &Brave{APIKey: apiKey, Client: client}, nil
	case SerperProvider:
		return &Serper{APIKey: apiKey, Client: client}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
}

// Brave queries the Brave web search API.
type Brave struct {
	APIKey  string
	Client  *http.Client
	BaseURL string
}

// Search implements Provider.
func (b *Brave) Search(ctx context.Context, query string, count int) ([]Result, error) {
	base := b.BaseURL
	if base == "" {
		base = "https://api.search.brave.com/res/v1/web/search"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := doJSON(b.Client, req, "brave", &raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(raw.Web.Results))
	for _, r := range raw.Web.Results {
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}

// Serper queries the serper.dev Google search API.
type Serper struct {
	APIKey  string
	Client  *http.Client
	BaseURL string
}

// Search implements Provider.
func (s *Serper) Search(ctx context.Context, query string, count int) ([]Result, error) {
	base := s.BaseURL
	if base == "" {
		base = "https://google.serper.dev/search"
	}
	body, err := json.Marshal(map[string]any{"q": query, "num": count})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := doJSON(s.Client, req, "serper", &raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(raw.Organic))
	for _, r := range raw.Organic {
		out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

func doJSON(client *http.Client, req *http.Request, name string, v any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%s: HTTP %d: %s", name, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode response: %w", name, err)
	}
	return nil
}
