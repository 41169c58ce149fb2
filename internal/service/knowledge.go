// Package service composes the knowledge store and the researcher into the
// operations exposed by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
	"github.com/cloo-solutions/outreachai/internal/logging"
	"github.com/cloo-solutions/outreachai/internal/telemetry"
)

const (
	DefaultSearchTopK = knowledge.DefaultTopK
	MaxSearchTopK     = 50
	DefaultVariants   = 3
)

// SearchInput is a knowledge base query.
type SearchInput struct {
	Query string
	TopK  int
	// MinScore drops weaker matches. When fewer than TopK results remain and
	// Expand is set, query variants are tried and merged.
	MinScore float64
	Expand   bool
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Category string            `json:"category"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StatusOutput describes the knowledge store.
type StatusOutput struct {
	Ready      bool           `json:"ready"`
	Reason     string         `json:"reason,omitempty"`
	Total      int            `json:"total"`
	BySource   map[string]int `json:"by_source"`
	EmbedderID string         `json:"embedder,omitempty"`
}

// KnowledgeService exposes the knowledge store, which may be unavailable.
type KnowledgeService struct {
	status      knowledge.StoreStatus
	maxVariants int
	logger      *zap.Logger
}

func NewKnowledgeService(status knowledge.StoreStatus, logger *zap.Logger) *KnowledgeService {
	return &KnowledgeService{status: status, maxVariants: DefaultVariants, logger: logging.OrNop(logger)}
}

// Store returns the ready store or nil.
func (s *KnowledgeService) Store() *knowledge.Store {
	return knowledge.StoreOf(s.status)
}

// Search ranks knowledge chunks for input.Query.
func (s *KnowledgeService) Search(ctx context.Context, input SearchInput) ([]*SearchResult, error) {
	store := s.Store()
	if store == nil {
		return nil, s.unavailable()
	}
	input.Query = strings.TrimSpace(input.Query)
	if input.Query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if input.TopK <= 0 {
		input.TopK = DefaultSearchTopK
	}
	if input.TopK > MaxSearchTopK {
		input.TopK = MaxSearchTopK
	}

	ctx, span := telemetry.StartSpan(ctx, "knowledge.search", telemetry.SpanAttributes{Operation: "knowledge.search"})
	defer span.End()

	results, err := s.searchOnce(ctx, store, input.Query, input)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if !input.Expand || len(results) >= input.TopK {
		return results, nil
	}

	merged := make(map[string]*SearchResult, input.TopK)
	mergeResults(merged, results)
	for _, variant := range queryVariants(input.Query, s.maxVariants) {
		more, err := s.searchOnce(ctx, store, variant, input)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		mergeResults(merged, more)
		if len(merged) >= input.TopK {
			break
		}
	}

	out := sortResultsByScore(merged)
	if len(out) > input.TopK {
		out = out[:input.TopK]
	}
	return out, nil
}

func (s *KnowledgeService) searchOnce(ctx context.Context, store *knowledge.Store, query string, input SearchInput) ([]*SearchResult, error) {
	hits, err := store.Query(ctx, query, input.TopK)
	if err != nil {
		return nil, err
	}
	out := make([]*SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score < input.MinScore {
			continue
		}
		out = append(out, &SearchResult{
			ID:       h.Chunk.ID,
			Source:   string(h.Chunk.Source),
			Category: h.Chunk.Category(),
			Text:     h.Chunk.Text,
			Score:    h.Score,
			Metadata: h.Chunk.Metadata,
		})
	}
	return out, nil
}

// IndexOutreach adds a completed outreach record and returns its chunk id.
func (s *KnowledgeService) IndexOutreach(ctx context.Context, record *domain.OutreachRecord) (string, error) {
	store := s.Store()
	if store == nil {
		return "", s.unavailable()
	}
	ctx, span := telemetry.StartSpan(ctx, "knowledge.index_outreach", telemetry.SpanAttributes{Operation: "knowledge.index"})
	defer span.End()

	id, err := store.IndexOutreachRecord(ctx, record)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	s.logger.Info("indexed outreach record", zap.String("chunk_id", id), zap.String("company", record.Company))
	return id, nil
}

// Status reports store readiness and chunk counts.
func (s *KnowledgeService) Status() StatusOutput {
	out := StatusOutput{BySource: map[string]int{}}
	switch st := s.status.(type) {
	case knowledge.Ready:
		out.Ready = true
		out.Total = st.Store.Count()
		for source, n := range st.Store.CountBySource() {
			out.BySource[string(source)] = n
		}
		out.EmbedderID = st.Store.EmbedderID()
	case knowledge.Unavailable:
		if st.Reason != nil {
			out.Reason = st.Reason.Error()
		}
	default:
		out.Reason = domain.ErrStoreUnavailable.Message
	}
	return out
}

func (s *KnowledgeService) unavailable() error {
	if u, ok := s.status.(knowledge.Unavailable); ok && u.Reason != nil {
		if errors.Is(u.Reason, domain.ErrStoreUnavailable) {
			return u.Reason
		}
		return domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, domain.ErrStoreUnavailable.Message, u.Reason)
	}
	return domain.ErrStoreUnavailable
}
