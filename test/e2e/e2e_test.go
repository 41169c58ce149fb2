//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/outreachai/internal/knowledge"
	"github.com/cloo-solutions/outreachai/internal/service"
)

func TestE2E_StatusAndSearch(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Get("/v1/knowledge/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status service.StatusOutput
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.Ready)
	assert.Equal(t, 16, status.BySource["product"])

	resp, err = env.Post("/v1/knowledge/search", map[string]interface{}{"query": "MV900 camera", "top_k": 3})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var search struct {
		Results []service.SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &search))
	assert.Len(t, search.Results, 3)
}

func TestE2E_AgenticResearchIndexesAndPersists(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Post("/v1/research", map[string]interface{}{
		"target":   "Acme Plastics, Dayton OH, " + env.Site.URL,
		"index":    true,
		"industry": "Plastics",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Error)

	var out struct {
		Brief struct {
			Text      string `json:"text"`
			Mode      string `json:"mode"`
			Turns     int    `json:"turns"`
			ToolCalls int    `json:"tool_calls"`
		} `json:"brief"`
		IndexedChunkID string `json:"indexed_chunk_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, "agentic", out.Brief.Mode)
	assert.Equal(t, 2, out.Brief.Turns)
	assert.Equal(t, 2, out.Brief.ToolCalls)
	assert.Contains(t, out.Brief.Text, "[Result 1]")
	assert.Contains(t, out.Brief.Text, "40 injection molding presses")
	require.NotEmpty(t, out.IndexedChunkID)

	reopened := env.OpenStore(false)
	ready, ok := reopened.(knowledge.Ready)
	require.True(t, ok)
	assert.Equal(t, 1, ready.Status.Outreach)
	assert.Equal(t, 17, ready.Status.Total)

	hits, err := ready.Store.Query(env.Ctx, "past outreach Acme Plastics", 3)
	require.NoError(t, err)
	found := false
	for _, h := range hits {
		found = found || strings.HasPrefix(h.Chunk.Text, "Past outreach to Acme Plastics.")
	}
	assert.True(t, found)
}

func TestE2E_ForceRebuildKeepsOutreach(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.Post("/v1/knowledge/outreach", map[string]interface{}{
		"company":    "Bolt Metals",
		"industry":   "Metal stamping",
		"brief":      "Stamping presses, no monitoring.",
		"email_sent": true,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	rebuilt, ok := env.OpenStore(true).(knowledge.Ready)
	require.True(t, ok)
	assert.True(t, rebuilt.Status.Rebuilt)
	assert.Equal(t, 1, rebuilt.Status.Outreach)
}

func TestE2E_Unauthorized(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	req, err := http.NewRequest(http.MethodGet, env.Server.URL+"/v1/knowledge/status", nil)
	require.NoError(t, err)
	resp, err := env.HTTPClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
