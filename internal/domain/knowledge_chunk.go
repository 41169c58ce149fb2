package domain

import (
	"fmt"
	"time"
)

// ChunkSource identifies where a knowledge chunk came from
type ChunkSource string

const (
	ChunkSourceProduct  ChunkSource = "product"
	ChunkSourceOutreach ChunkSource = "outreach"
)

// Valid reports whether s is a known chunk source
func (s ChunkSource) Valid() bool {
	return s == ChunkSourceProduct || s == ChunkSourceOutreach
}

// Well-known metadata keys
const (
	MetaSource       = "source"
	MetaCategory     = "category"
	MetaCompany      = "company"
	MetaIndustry     = "industry"
	MetaDealCategory = "deal_category"
	MetaTimestamp    = "timestamp"
	MetaSourceFile   = "source_file"
)

// KnowledgeChunk is a unit of indexed text plus its embedding.
type KnowledgeChunk struct {
	ID        string
	Text      string
	Source    ChunkSource
	Metadata  map[string]string
	Embedding []float32
	CreatedAt time.Time
}

// NewKnowledgeChunk creates a chunk with a copy of metadata. The source is
// mirrored into the metadata so it is visible to callers that only see metadata.
func NewKnowledgeChunk(id, text string, source ChunkSource, metadata map[string]string, createdAt time.Time) *KnowledgeChunk {
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[MetaSource] = string(source)
	return &KnowledgeChunk{
		ID:        id,
		Text:      text,
		Source:    source,
		Metadata:  meta,
		CreatedAt: createdAt,
	}
}

// Category returns the chunk category, falling back to the source.
func (c *KnowledgeChunk) Category() string {
	if cat := c.Metadata[MetaCategory]; cat != "" {
		return cat
	}
	return string(c.Source)
}

// ValidateKnowledgeChunk validates a KnowledgeChunk instance
func ValidateKnowledgeChunk(c *KnowledgeChunk) error {
	if c == nil {
		return fmt.Errorf("knowledge chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("knowledge chunk ID is required")
	}
	if c.Text == "" {
		return fmt.Errorf("knowledge chunk text is required")
	}
	if !c.Source.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChunkSource, c.Source)
	}
	return nil
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk KnowledgeChunk
	Score float64
}
