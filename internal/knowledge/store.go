// Package knowledge implements the semantic knowledge store that backs the
// query_knowledge_base tool. It holds curated product chunks and an
// append-only history of outreach records.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/logging"
	"github.com/cloo-solutions/outreachai/internal/telemetry"
)

// DefaultTopK is the result count used when a query does not ask for one.
const DefaultTopK = 3

// InitStatus reports the outcome of Initialize.
type InitStatus struct {
	Total      int    `json:"total"`
	Product    int    `json:"product"`
	Outreach   int    `json:"outreach"`
	Added      int    `json:"added"`
	Rebuilt    bool   `json:"rebuilt"`
	EmbedderID string `json:"embedder_id"`
}

func (s InitStatus) String() string {
	return fmt.Sprintf("knowledge store initialized: %d total chunks (%d product, %d outreach, %d newly added)",
		s.Total, s.Product, s.Outreach, s.Added)
}

// Store is a brute-force cosine similarity index over knowledge chunks.
// Queries share a read lock; indexing and rebuilds hold the write lock.
type Store struct {
	mu       sync.RWMutex
	repo     Repository
	embedder Embedder
	catalog  *Catalog
	logger   *zap.Logger

	ready  bool
	chunks []domain.KnowledgeChunk
	ids    map[string]struct{}

	now   func() time.Time
	newID func() string
}

// NewStore creates a store over repo using embedder for every vector.
func NewStore(repo Repository, embedder Embedder, logger *zap.Logger) *Store {
	return &Store{
		repo:     repo,
		embedder: embedder,
		logger:   logging.OrNop(logger),
		ids:      make(map[string]struct{}),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return "outreach_" + uuid.NewString() },
	}
}

// WithCatalog overrides the embedded product catalog.
func (s *Store) WithCatalog(c *Catalog) *Store {
	s.catalog = c
	return s
}

// Initialize loads the persisted index, or builds it from the product
// catalog when storage is empty, forceRebuild is set, or the stored
// embeddings came from a different embedder. A rebuild re-embeds previously
// stored outreach chunks; they are never dropped.
func (s *Store) Initialize(ctx context.Context, forceRebuild bool) (*InitStatus, error) {
	ctx, span := telemetry.StartSpan(ctx, "knowledge.initialize", telemetry.SpanAttributes{Operation: "initialize"})
	defer span.End()

	if s.repo == nil || s.embedder == nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, domain.ErrStoreUnavailable.Message,
			fmt.Errorf("repository and embedder are required"))
	}

	catalog := s.catalog
	if catalog == nil {
		c, err := LoadCatalog()
		if err != nil {
			return nil, unavailable(err)
		}
		catalog = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, stored, err := s.repo.Load(ctx)
	if err != nil {
		span.SetError(err)
		return nil, unavailable(fmt.Errorf("load index: %w", err))
	}

	products := catalog.ProductChunks(s.now())
	embedderID := s.embedder.ID()
	rebuild := forceRebuild || !manifest.Compatible(embedderID)

	var status *InitStatus
	if rebuild {
		status, err = s.rebuild(ctx, manifest, products, stored)
	} else {
		status, err = s.load(ctx, products, stored)
	}
	if err != nil {
		span.SetError(err)
		return nil, unavailable(err)
	}

	status.EmbedderID = embedderID
	s.ready = true
	s.publishCounts()
	s.logger.Info("knowledge store initialized",
		zap.Int("total", status.Total),
		zap.Int("product", status.Product),
		zap.Int("outreach", status.Outreach),
		zap.Int("added", status.Added),
		zap.Bool("rebuilt", status.Rebuilt),
		zap.String("embedder", embedderID))
	return status, nil
}

// rebuild re-embeds product chunks followed by every previously stored
// outreach chunk in their original order and swaps them in with one Replace.
// On failure the persisted index and the in-memory set are left untouched.
func (s *Store) rebuild(ctx context.Context, old *Manifest, products, stored []domain.KnowledgeChunk) (*InitStatus, error) {
	if old != nil && old.EmbedderID != s.embedder.ID() {
		s.logger.Warn("embedder changed, rebuilding knowledge index",
			zap.String("previous", old.EmbedderID),
			zap.String("current", s.embedder.ID()))
	}

	all := make([]domain.KnowledgeChunk, 0, len(products)+len(stored))
	all = append(all, products...)
	for _, c := range stored {
		if c.Source == domain.ChunkSourceOutreach {
			all = append(all, c)
		}
	}
	if err := s.embedAll(ctx, all); err != nil {
		return nil, err
	}

	manifest := Manifest{
		SchemaVersion: SchemaVersion,
		EmbedderID:    s.embedder.ID(),
		Dimensions:    dimensionsOf(all),
		BuiltAt:       s.now(),
	}
	if err := s.repo.Replace(ctx, manifest, all); err != nil {
		return nil, fmt.Errorf("replace index: %w", err)
	}

	s.replace(all)
	return &InitStatus{
		Total:    len(all),
		Product:  len(products),
		Outreach: len(all) - len(products),
		Added:    len(all),
		Rebuilt:  true,
	}, nil
}

// load adopts the stored chunks and adds catalog entries that are missing.
func (s *Store) load(ctx context.Context, products, stored []domain.KnowledgeChunk) (*InitStatus, error) {
	existing := make(map[string]struct{}, len(stored))
	for _, c := range stored {
		existing[c.ID] = struct{}{}
	}
	var missing []domain.KnowledgeChunk
	for _, p := range products {
		if _, ok := existing[p.ID]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		if err := s.embedAll(ctx, missing); err != nil {
			return nil, err
		}
		if err := s.repo.Append(ctx, missing...); err != nil {
			return nil, fmt.Errorf("write index: %w", err)
		}
	}

	all := append(stored, missing...)
	s.replace(all)
	counts := countBySource(all)
	return &InitStatus{
		Total:    len(all),
		Product:  counts[domain.ChunkSourceProduct],
		Outreach: counts[domain.ChunkSourceOutreach],
		Added:    len(missing),
	}, nil
}

func (s *Store) embedAll(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	for i := range chunks {
		vec, err := s.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", chunks[i].ID, err)
		}
		chunks[i].Embedding = vec
	}
	return nil
}

func (s *Store) replace(chunks []domain.KnowledgeChunk) {
	s.chunks = chunks
	s.ids = make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		s.ids[c.ID] = struct{}{}
	}
}

// Query returns up to topK chunks ordered by descending cosine similarity.
// Equal scores keep insertion order. An empty store yields no results.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]domain.ScoredChunk, error) {
	if text == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	s.mu.RLock()
	ready, n := s.ready, len(s.chunks)
	s.mu.RUnlock()
	if !ready {
		return nil, domain.ErrStoreUnavailable
	}
	if n == 0 {
		return []domain.ScoredChunk{}, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	scored := make([]domain.ScoredChunk, len(s.chunks))
	for i, c := range s.chunks {
		scored[i] = domain.ScoredChunk{Chunk: c, Score: cosine(vec, c.Embedding)}
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

// IndexOutreachRecord embeds a completed research run and appends it as a
// new outreach chunk. Every call adds exactly one chunk.
func (s *Store) IndexOutreachRecord(ctx context.Context, record *domain.OutreachRecord) (string, error) {
	if err := domain.ValidateOutreachRecord(record); err != nil {
		return "", err
	}
	ctx, span := telemetry.StartSpan(ctx, "knowledge.index_outreach", telemetry.SpanAttributes{Operation: "index_outreach"})
	defer span.End()

	chunk := domain.NewKnowledgeChunk(s.newID(), record.Text(), domain.ChunkSourceOutreach, record.Metadata(), s.now())
	vec, err := s.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("embed outreach record: %w", err)
	}
	chunk.Embedding = vec

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return "", domain.ErrStoreUnavailable
	}
	if _, dup := s.ids[chunk.ID]; dup {
		return "", fmt.Errorf("chunk id %s already indexed", chunk.ID)
	}
	if err := s.repo.Append(ctx, *chunk); err != nil {
		span.SetError(err)
		return "", fmt.Errorf("persist outreach record: %w", err)
	}
	s.chunks = append(s.chunks, *chunk)
	s.ids[chunk.ID] = struct{}{}
	s.publishCounts()

	s.logger.Info("indexed outreach record",
		zap.String("chunk_id", chunk.ID),
		zap.String("company", record.Company))
	return chunk.ID, nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// CountBySource returns chunk counts per source.
func (s *Store) CountBySource() map[domain.ChunkSource]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countBySource(s.chunks)
}

// HasMetadata reports whether any chunk carries metadata key=value.
func (s *Store) HasMetadata(key, value string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chunks {
		if c.Metadata[key] == value {
			return true
		}
	}
	return false
}

// EmbedderID returns the fingerprint of the store's embedder.
func (s *Store) EmbedderID() string {
	return s.embedder.ID()
}

func (s *Store) publishCounts() {
	counts := countBySource(s.chunks)
	telemetry.SetKnowledgeChunks(string(domain.ChunkSourceProduct), counts[domain.ChunkSourceProduct])
	telemetry.SetKnowledgeChunks(string(domain.ChunkSourceOutreach), counts[domain.ChunkSourceOutreach])
}

func countBySource(chunks []domain.KnowledgeChunk) map[domain.ChunkSource]int {
	counts := make(map[domain.ChunkSource]int, 2)
	for _, c := range chunks {
		counts[c.Source]++
	}
	return counts
}

func dimensionsOf(chunks []domain.KnowledgeChunk) int {
	if len(chunks) == 0 {
		return 0
	}
	return len(chunks[0].Embedding)
}

func unavailable(err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, domain.ErrStoreUnavailable.Message, err)
}
