// Package storage persists the knowledge index to a local directory or an
// S3-compatible bucket.
package storage

import (
	"time"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
)

// chunkRecord is the persisted form of a knowledge chunk.
type chunkRecord struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding"`
	CreatedAt time.Time         `json:"created_at"`
}

// snapshot is a whole index in one document.
type snapshot struct {
	Manifest knowledge.Manifest `json:"manifest"`
	Chunks   []chunkRecord      `json:"chunks"`
}

func toRecord(c domain.KnowledgeChunk) chunkRecord {
	return chunkRecord{
		ID:        c.ID,
		Text:      c.Text,
		Source:    string(c.Source),
		Metadata:  c.Metadata,
		Embedding: c.Embedding,
		CreatedAt: c.CreatedAt,
	}
}

func (r chunkRecord) toChunk() domain.KnowledgeChunk {
	return domain.KnowledgeChunk{
		ID:        r.ID,
		Text:      r.Text,
		Source:    domain.ChunkSource(r.Source),
		Metadata:  r.Metadata,
		Embedding: r.Embedding,
		CreatedAt: r.CreatedAt,
	}
}
