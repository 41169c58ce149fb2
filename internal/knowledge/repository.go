package knowledge

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/outreachai/internal/domain"
)

// SchemaVersion is bumped when the persisted chunk layout changes.
const SchemaVersion = 1

// Manifest describes a persisted index.
type Manifest struct {
	SchemaVersion int       `json:"schema_version"`
	EmbedderID    string    `json:"embedder_id"`
	Dimensions    int       `json:"dimensions"`
	BuiltAt       time.Time `json:"built_at"`
}

// Compatible reports whether chunks written under m can be queried with an
// embedder fingerprinted as embedderID.
func (m *Manifest) Compatible(embedderID string) bool {
	return m != nil && m.SchemaVersion == SchemaVersion && m.EmbedderID == embedderID
}

// Repository persists chunks and their embeddings. Load returns a nil
// manifest when nothing has been persisted yet. Chunks are returned in
// insertion order. Replace swaps the manifest and the whole chunk set in one
// step: when it fails, Load still returns the previous index.
type Repository interface {
	Load(ctx context.Context) (*Manifest, []domain.KnowledgeChunk, error)
	Replace(ctx context.Context, manifest Manifest, chunks []domain.KnowledgeChunk) error
	Append(ctx context.Context, chunks ...domain.KnowledgeChunk) error
}

// MemoryRepository keeps the index in process memory.
type MemoryRepository struct {
	mu       sync.Mutex
	manifest *Manifest
	chunks   []domain.KnowledgeChunk
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Load implements Repository.
func (r *MemoryRepository) Load(_ context.Context) (*Manifest, []domain.KnowledgeChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.manifest == nil {
		return nil, nil, nil
	}
	m := *r.manifest
	return &m, append([]domain.KnowledgeChunk(nil), r.chunks...), nil
}

// Replace implements Repository.
func (r *MemoryRepository) Replace(_ context.Context, manifest Manifest, chunks []domain.KnowledgeChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifest = &manifest
	r.chunks = append([]domain.KnowledgeChunk(nil), chunks...)
	return nil
}

// Append implements Repository.
func (r *MemoryRepository) Append(_ context.Context, chunks ...domain.KnowledgeChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, chunks...)
	return nil
}
