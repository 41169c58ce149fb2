package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
)

const (
	manifestFile = "manifest.json"
	chunksFile   = "chunks.jsonl"

	maxLineBytes = 16 << 20
)

// FileRepository stores the index as a manifest plus an append-only JSON
// lines file of chunks.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a repository rooted at dir, creating it if needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

// Load implements knowledge.Repository.
func (r *FileRepository) Load(_ context.Context) (*knowledge.Manifest, []domain.KnowledgeChunk, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest knowledge.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, nil, fmt.Errorf("decode manifest: %w", err)
	}

	f, err := os.Open(filepath.Join(r.dir, chunksFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &manifest, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open chunks: %w", err)
	}
	defer f.Close()

	var chunks []domain.KnowledgeChunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec chunkRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, nil, fmt.Errorf("decode chunk at line %d: %w", line, err)
		}
		chunks = append(chunks, rec.toChunk())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read chunks: %w", err)
	}
	return &manifest, chunks, nil
}

// Replace implements knowledge.Repository. The new chunk file is written
// beside the old one and renamed into place before the manifest. A crash
// between the two renames leaves the old manifest beside a complete chunk
// set; when the fingerprint no longer matches, the next Initialize rebuilds.
func (r *FileRepository) Replace(_ context.Context, manifest knowledge.Manifest, chunks []domain.KnowledgeChunk) error {
	chunksTmp := filepath.Join(r.dir, chunksFile+".tmp")
	f, err := os.OpenFile(chunksTmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create chunks: %w", err)
	}
	if err := writeChunks(f, chunks); err != nil {
		f.Close()
		os.Remove(chunksTmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(chunksTmp)
		return fmt.Errorf("close chunks: %w", err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		os.Remove(chunksTmp)
		return fmt.Errorf("encode manifest: %w", err)
	}
	manifestTmp := filepath.Join(r.dir, manifestFile+".tmp")
	if err := os.WriteFile(manifestTmp, data, 0o644); err != nil {
		os.Remove(chunksTmp)
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := os.Rename(chunksTmp, filepath.Join(r.dir, chunksFile)); err != nil {
		os.Remove(chunksTmp)
		os.Remove(manifestTmp)
		return fmt.Errorf("replace chunks: %w", err)
	}
	if err := os.Rename(manifestTmp, filepath.Join(r.dir, manifestFile)); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// Append implements knowledge.Repository.
func (r *FileRepository) Append(_ context.Context, chunks ...domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(r.dir, chunksFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open chunks: %w", err)
	}
	defer f.Close()
	return writeChunks(f, chunks)
}

// writeChunks encodes chunks as JSON lines and syncs f.
func writeChunks(f *os.File, chunks []domain.KnowledgeChunk) error {
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, c := range chunks {
		if err := enc.Encode(toRecord(c)); err != nil {
			return fmt.Errorf("encode chunk %s: %w", c.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return f.Sync()
}
