package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChunkRepository persists the knowledge index in Postgres with pgvector.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// Load implements knowledge.Repository. Chunks come back in insertion order.
func (r *ChunkRepository) Load(ctx context.Context) (*knowledge.Manifest, []domain.KnowledgeChunk, error) {
	var m knowledge.Manifest
	err := r.pool.QueryRow(ctx,
		`SELECT schema_version, embedder_id, dimensions, built_at FROM knowledge_index WHERE id = 1`,
	).Scan(&m.SchemaVersion, &m.EmbedderID, &m.Dimensions, &m.BuiltAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load manifest: %w", err)
	}

	chunks, err := loadChunks(ctx, r.pool)
	if err != nil {
		return nil, nil, err
	}
	return &m, chunks, nil
}

func loadChunks(ctx context.Context, db dbtx) ([]domain.KnowledgeChunk, error) {
	rows, err := db.Query(ctx,
		`SELECT id, source, text, metadata, embedding::text, created_at
		   FROM knowledge_chunks
		  ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.KnowledgeChunk
	for rows.Next() {
		var (
			c        domain.KnowledgeChunk
			source   string
			metadata []byte
			vec      pgvector.Vector
		)
		if err := rows.Scan(&c.ID, &source, &c.Text, &metadata, &vec, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Source = domain.ChunkSource(source)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", c.ID, err)
			}
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Replace implements knowledge.Repository. Truncate, manifest and inserts
// share one transaction.
func (r *ChunkRepository) Replace(ctx context.Context, m knowledge.Manifest, chunks []domain.KnowledgeChunk) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE knowledge_chunks`); err != nil {
			return fmt.Errorf("truncate chunks: %w", err)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO knowledge_index (id, schema_version, embedder_id, dimensions, built_at)
			 VALUES (1, $1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			    SET schema_version = EXCLUDED.schema_version,
			        embedder_id    = EXCLUDED.embedder_id,
			        dimensions     = EXCLUDED.dimensions,
			        built_at       = EXCLUDED.built_at`,
			m.SchemaVersion, m.EmbedderID, m.Dimensions, m.BuiltAt)
		if err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		for _, c := range chunks {
			if err := insertChunk(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// Append implements knowledge.Repository.
func (r *ChunkRepository) Append(ctx context.Context, chunks ...domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		for _, c := range chunks {
			if err := insertChunk(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertChunk(ctx context.Context, db dbtx, c domain.KnowledgeChunk) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", c.ID, err)
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = db.Exec(ctx,
		`INSERT INTO knowledge_chunks (id, source, text, metadata, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID,
		string(c.Source),
		c.Text,
		metadata,
		pgvector.NewVector(c.Embedding),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert chunk %s: %w", c.ID, err)
	}
	return nil
}

func (r *ChunkRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
