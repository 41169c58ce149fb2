package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/logging"
)

// DefaultMaxResults is the number of company hits returned per search.
const DefaultMaxResults = 5

// Service runs company searches: query enhancement, over-fetching from the
// provider, then filtering and domain deduplication.
type Service struct {
	provider Provider
	logger   *zap.Logger
}

// NewService creates a search service over provider.
func NewService(provider Provider, logger *zap.Logger) *Service {
	return &Service{provider: provider, logger: logging.OrNop(logger)}
}

// Search returns up to limit deduplicated company results for query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	enhanced := EnhanceQuery(query)
	raw, err := s.provider.Search(ctx, enhanced, limit*2)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}
	results := Filter(raw, limit)
	s.logger.Debug("web search",
		zap.String("query", enhanced),
		zap.Int("raw", len(raw)),
		zap.Int("kept", len(results)))
	return results, nil
}
