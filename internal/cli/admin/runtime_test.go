package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/config"
	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
)

func TestNewEmbedder(t *testing.T) {
	e, err := newEmbedder(&config.Config{Embedder: config.EmbedderHash})
	require.NoError(t, err)
	assert.Equal(t, knowledge.NewHashEmbedder(knowledge.DefaultHashDimensions).ID(), e.ID())

	_, err = newEmbedder(&config.Config{Embedder: config.EmbedderOpenAI})
	assert.Error(t, err)

	e, err = newEmbedder(&config.Config{Embedder: config.EmbedderOpenAI, OpenAIAPIKey: "sk-test", EmbeddingModel: "text-embedding-3-small", EmbeddingDimensions: 256})
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small:256", e.ID())
}

func TestOpenStore_FileBackend(t *testing.T) {
	rt := &runtime{
		cfg: &config.Config{
			StoreBackend: config.StoreBackendFile,
			DataDir:      t.TempDir(),
			Embedder:     config.EmbedderHash,
		},
		logger: zap.NewNop(),
	}
	defer rt.Close()

	status := rt.openStore(context.Background(), runtimeOptions{})
	ready, ok := status.(knowledge.Ready)
	require.True(t, ok, "expected Ready, got %T", status)
	assert.Equal(t, 16, ready.Status.Product)
}

func TestOpenStore_MissingKeyIsUnavailable(t *testing.T) {
	rt := &runtime{
		cfg: &config.Config{
			StoreBackend: config.StoreBackendFile,
			DataDir:      t.TempDir(),
			Embedder:     config.EmbedderOpenAI,
		},
		logger: zap.NewNop(),
	}

	status := rt.openStore(context.Background(), runtimeOptions{})
	unavailable, ok := status.(knowledge.Unavailable)
	require.True(t, ok)
	assert.True(t, domain.IsCode(unavailable.Reason, domain.ErrCodeStoreUnavailable))
}

func TestNewRuntime_DegradesToLegacy(t *testing.T) {
	cfg := &config.Config{
		StoreBackend: config.StoreBackendFile,
		DataDir:      t.TempDir(),
		Embedder:     config.EmbedderOpenAI,
		MaxTurns:     5,
	}
	rt, err := newRuntime(context.Background(), cfg, zap.NewNop(), runtimeOptions{})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "legacy", string(rt.researcher.Mode()))
	assert.False(t, rt.knowledge.Status().Ready)
}
