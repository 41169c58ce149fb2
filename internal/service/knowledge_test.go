package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
)

func readyService(t *testing.T) *KnowledgeService {
	t.Helper()
	store := knowledge.NewStore(knowledge.NewMemoryRepository(), knowledge.NewHashEmbedder(256), zap.NewNop())
	status := knowledge.Open(context.Background(), store, false, zap.NewNop())
	require.IsType(t, knowledge.Ready{}, status)
	return NewKnowledgeService(status, zap.NewNop())
}

func TestKnowledgeService_Search(t *testing.T) {
	svc := readyService(t)

	results, err := svc.Search(context.Background(), SearchInput{Query: "energy monitoring for stamping", TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, "product", r.Source)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
}

func TestKnowledgeService_SearchValidation(t *testing.T) {
	svc := readyService(t)

	_, err := svc.Search(context.Background(), SearchInput{Query: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)

	results, err := svc.Search(context.Background(), SearchInput{Query: "mv900", TopK: 1000})
	require.NoError(t, err)
	assert.Len(t, results, 16)
}

func TestKnowledgeService_MinScoreAndExpand(t *testing.T) {
	svc := readyService(t)

	strict, err := svc.Search(context.Background(), SearchInput{Query: "MV900 and Machine365", TopK: 5, MinScore: 2})
	require.NoError(t, err)
	assert.Empty(t, strict)

	expanded, err := svc.Search(context.Background(), SearchInput{Query: "MV900 and Machine365", TopK: 5, MinScore: 2, Expand: true})
	require.NoError(t, err)
	assert.Empty(t, expanded)

	loose, err := svc.Search(context.Background(), SearchInput{Query: "MV900 and Machine365", TopK: 5, MinScore: -1, Expand: true})
	require.NoError(t, err)
	assert.Len(t, loose, 5)
}

func TestKnowledgeService_IndexOutreachAndStatus(t *testing.T) {
	svc := readyService(t)

	id, err := svc.IndexOutreach(context.Background(),
		domain.NewOutreachRecord("Acme Forge", "Forging", "Pilot", "Runs 12 hammers.", time.Now()))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	st := svc.Status()
	assert.True(t, st.Ready)
	assert.Equal(t, 17, st.Total)
	assert.Equal(t, map[string]int{"product": 16, "outreach": 1}, st.BySource)
	assert.Equal(t, "hash:v1:256", st.EmbedderID)

	_, err = svc.IndexOutreach(context.Background(), &domain.OutreachRecord{})
	assert.Error(t, err)
}

func TestKnowledgeService_Unavailable(t *testing.T) {
	svc := NewKnowledgeService(knowledge.Unavailable{Reason: errors.New("disk full")}, nil)

	_, err := svc.Search(context.Background(), SearchInput{Query: "mv900"})
	assert.True(t, domain.IsCode(err, domain.ErrCodeStoreUnavailable))
	assert.ErrorContains(t, err, "disk full")

	_, err = svc.IndexOutreach(context.Background(), domain.NewOutreachRecord("Acme", "", "", "", time.Now()))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	st := svc.Status()
	assert.False(t, st.Ready)
	assert.Equal(t, "disk full", st.Reason)
	assert.Nil(t, svc.Store())
}
