package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel backs the openai embedder.
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the native width of DefaultEmbeddingModel.
	DefaultEmbeddingDimensions = 1536
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has unexpected dimensions")
	ErrNoEmbedding     = errors.New("no embedding data returned")
)

// EmbeddingsAPI is the subset of the go-openai client used for embeddings.
type EmbeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// EmbedderConfig selects the embedding model and output width.
type EmbedderConfig struct {
	Model      openai.EmbeddingModel
	Dimensions int
}

// Embedder turns chunk text into vectors and satisfies knowledge.Embedder.
type Embedder struct {
	api EmbeddingsAPI
	cfg EmbedderConfig
}

// NewAPIClient builds a go-openai client. A non-empty baseURL points it at
// an OpenAI-compatible gateway.
func NewAPIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func NewEmbedder(api EmbeddingsAPI, cfg EmbedderConfig) *Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultEmbeddingDimensions
	}
	return &Embedder{api: api, cfg: cfg}
}

// ID fingerprints the embedding space. A change forces a store rebuild.
func (e *Embedder) ID() string {
	return fmt.Sprintf("openai:%s:%d", e.cfg.Model, e.cfg.Dimensions)
}

// Embed returns the vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.cfg.Model,
	}
	// ada-002 rejects the dimensions parameter
	if e.cfg.Model != openai.AdaEmbeddingV2 {
		req.Dimensions = e.cfg.Dimensions
	}

	resp, err := e.api.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoEmbedding
	}

	vec := resp.Data[0].Embedding
	if len(vec) != e.cfg.Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongDimensions, len(vec), e.cfg.Dimensions)
	}
	return vec, nil
}
