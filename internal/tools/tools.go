// Package tools defines the research tools offered to the model and the
// registry that dispatches model tool calls to them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/search"
)

const (
	SearchWebName          = "search_web"
	QueryKnowledgeBaseName = "query_knowledge_base"
	ScrapeWebsiteName      = "scrape_company_website"

	DefaultSearchResults = 5
	DefaultKnowledgeTopK = 3
)

// Tool is one capability the model may invoke.
type Tool interface {
	Definition() domain.ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Cacheable is implemented by tools whose successful results may be reused
// for identical arguments.
type Cacheable interface {
	Cacheable() bool
}

// WebSearcher finds web pages for a query.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
}

// KnowledgeQuerier ranks knowledge chunks by similarity to a query.
type KnowledgeQuerier interface {
	Query(ctx context.Context, text string, topK int) ([]domain.ScoredChunk, error)
}

// PageFetcher returns readable page text or an "Error: ..." string.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) string
}

type queryArgs struct {
	Query string `json:"query"`
}

type urlArgs struct {
	URL string `json:"url"`
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrInvalidArguments.Message, err)
	}
	return nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrInvalidArguments.Message,
			fmt.Errorf("%s is required", name))
	}
	return nil
}

// SearchWeb searches the public web.
type SearchWeb struct {
	searcher WebSearcher
	limit    int
}

func NewSearchWeb(searcher WebSearcher, limit int) *SearchWeb {
	if limit <= 0 {
		limit = DefaultSearchResults
	}
	return &SearchWeb{searcher: searcher, limit: limit}
}

func (t *SearchWeb) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name: SearchWebName,
		Description: "Search the web for information about the target company, its industry, " +
			"recent news and competitors. Returns a list of results with titles, URLs and snippets.",
		Parameters: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string",` +
			`"description":"The search query. Be specific: include the company name, industry or topic."}},` +
			`"required":["query"]}`),
	}
}

func (t *SearchWeb) Cacheable() bool { return true }

func (t *SearchWeb) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in queryArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if err := requireField("query", in.Query); err != nil {
		return "", err
	}
	if t.searcher == nil {
		return "", errors.New("web search is not configured")
	}

	results, err := t.searcher.Search(ctx, in.Query, t.limit)
	if err != nil {
		return "", err
	}
	return FormatSearchResults(results), nil
}

// FormatSearchResults renders results as an indented bullet list.
func FormatSearchResults(results []search.Result) string {
	if len(results) == 0 {
		return "No search results found."
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("- %s\n  URL: %s\n  %s", r.Title, r.URL, r.Snippet))
	}
	return strings.Join(parts, "\n")
}

// QueryKnowledgeBase searches product knowledge and outreach history.
type QueryKnowledgeBase struct {
	store KnowledgeQuerier
	topK  int
}

func NewQueryKnowledgeBase(store KnowledgeQuerier, topK int) *QueryKnowledgeBase {
	if topK <= 0 {
		topK = DefaultKnowledgeTopK
	}
	return &QueryKnowledgeBase{store: store, topK: topK}
}

func (t *QueryKnowledgeBase) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name: QueryKnowledgeBaseName,
		Description: "Search 3View's internal knowledge base. It holds product information " +
			"(MV900, Machine365.Ai), case studies, ideal customer profiles, ROI data and records of " +
			"past outreach to other companies. Use it to find relevant features, similar past deals " +
			"and case studies.",
		Parameters: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string",` +
			`"description":"Semantic search query, for example 'energy monitoring for forging companies' ` +
			`or 'past outreach automotive stamping'."}},"required":["query"]}`),
	}
}

func (t *QueryKnowledgeBase) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in queryArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if err := requireField("query", in.Query); err != nil {
		return "", err
	}
	if t.store == nil {
		return "", domain.ErrStoreUnavailable
	}

	hits, err := t.store.Query(ctx, in.Query, t.topK)
	if err != nil {
		return "", err
	}
	return FormatKnowledgeResults(hits), nil
}

// FormatKnowledgeResults renders ranked chunks with their source and category.
func FormatKnowledgeResults(hits []domain.ScoredChunk) string {
	if len(hits) == 0 {
		return "No relevant results found."
	}
	parts := make([]string, 0, len(hits))
	for i, h := range hits {
		source := h.Chunk.Metadata[domain.MetaSource]
		if source == "" {
			source = string(h.Chunk.Source)
		}
		parts = append(parts, fmt.Sprintf("[Result %d] (source: %s, category: %s)\n%s",
			i+1, source, h.Chunk.Category(), h.Chunk.Text))
	}
	return strings.Join(parts, "\n\n")
}

// ScrapeWebsite reads the text of a single web page.
type ScrapeWebsite struct {
	fetcher PageFetcher
}

func NewScrapeWebsite(fetcher PageFetcher) *ScrapeWebsite {
	return &ScrapeWebsite{fetcher: fetcher}
}

func (t *ScrapeWebsite) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name: ScrapeWebsiteName,
		Description: "Fetch and read the text content of a web page. Use it to read a company's " +
			"website and learn about its products, operations and scale. Returns clean text with " +
			"HTML stripped, truncated to about 4000 characters.",
		Parameters: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string",` +
			`"description":"The full URL to read (must start with http:// or https://)."}},` +
			`"required":["url"]}`),
	}
}

func (t *ScrapeWebsite) Cacheable() bool { return true }

func (t *ScrapeWebsite) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in urlArgs
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if err := requireField("url", in.URL); err != nil {
		return "", err
	}
	if t.fetcher == nil {
		return "", errors.New("website fetching is not configured")
	}
	return t.fetcher.Fetch(ctx, in.URL), nil
}

// Standard returns the research tool set in its canonical order.
func Standard(searcher WebSearcher, store KnowledgeQuerier, fetcher PageFetcher) []Tool {
	return []Tool{
		NewSearchWeb(searcher, DefaultSearchResults),
		NewQueryKnowledgeBase(store, DefaultKnowledgeTopK),
		NewScrapeWebsite(fetcher),
	}
}
