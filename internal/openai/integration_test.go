//go:build integration

package openai

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/outreachai/internal/domain"
)

func liveClient(t *testing.T) (string, string) {
	t.Helper()
	key := os.Getenv("OUTREACH_OPENAI_API_KEY")
	if key == "" {
		t.Skip("OUTREACH_OPENAI_API_KEY not set")
	}
	return key, os.Getenv("OUTREACH_OPENAI_BASE_URL")
}

func TestIntegration_Embed(t *testing.T) {
	key, base := liveClient(t)
	e := NewEmbedder(NewAPIClient(key, base), EmbedderConfig{Dimensions: 256})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vec, err := e.Embed(ctx, "Closed-die forging supplier for agricultural equipment.")
	require.NoError(t, err)
	assert.Len(t, vec, 256)
}

func TestIntegration_ChatComplete(t *testing.T) {
	key, base := liveClient(t)
	model := NewChatModel(NewAPIClient(key, base), ChatConfig{MaxTokens: 32, MaxRetries: 1}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := model.Complete(ctx, domain.ModelRequest{
		Messages: []domain.Message{
			domain.SystemMessage("Reply with the single word: ready"),
			domain.UserMessage("Status?"),
		},
	})
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(resp.Message.Content), "ready")
	assert.Positive(t, resp.Usage.Total())
}
