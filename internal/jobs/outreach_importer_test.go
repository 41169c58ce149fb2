package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/domain"
	"github.com/cloo-solutions/outreachai/internal/knowledge"
)

const sampleOutreach = `{
  "query": "forging companies in Ohio",
  "timestamp": "20250301_143000",
  "prospects": [
    {
      "company": "Acme Forge",
      "research_brief": "Acme runs 12 hammers.",
      "sent": true,
      "deal_estimate": {"industry": "Forging", "deal_category": "Pilot"}
    },
    {
      "company": "Beta Press",
      "research_brief": "Beta runs stamping lines.",
      "deal_estimate": {"industry": "Stamping", "deal_category": "Enterprise"}
    }
  ]
}`

type MockOutreachIndexer struct {
	mock.Mock
}

func (m *MockOutreachIndexer) IndexOutreachRecord(ctx context.Context, record *domain.OutreachRecord) (string, error) {
	args := m.Called(ctx, record)
	return args.String(0), args.Error(1)
}

func (m *MockOutreachIndexer) HasMetadata(key, value string) bool {
	return m.Called(key, value).Bool(0)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestOutreachImporter_ImportsOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "outreach_20250301_143000.json", sampleOutreach)
	writeFile(t, dir, "proposal_acme.md", "# not an outreach file")

	store := knowledge.NewStore(knowledge.NewMemoryRepository(), knowledge.NewHashEmbedder(128), zap.NewNop())
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	importer := NewOutreachImporter(dir, store, zap.NewNop())

	res, err := importer.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Files: 1, Indexed: 2}, res)
	assert.Equal(t, 2, store.CountBySource()[domain.ChunkSourceOutreach])
	assert.True(t, store.HasMetadata(domain.MetaSourceFile, "outreach_20250301_143000.json#1"))

	res, err = importer.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Files: 1, Existing: 2}, res)
	assert.Equal(t, 18, store.Count())

	hits, err := store.Query(context.Background(), "past outreach Acme Forge forging", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.True(t, strings.HasPrefix(hits[0].Chunk.Text, "Past outreach to Acme Forge."))
	assert.Contains(t, hits[0].Chunk.Text, "Email sent: Yes")
	assert.Contains(t, hits[0].Chunk.Text, "Search query: forging companies in Ohio")
	want, err := time.ParseInLocation("20060102_150405", "20250301_143000", time.Local)
	require.NoError(t, err)
	assert.Equal(t, want.UTC().Format(time.RFC3339), hits[0].Chunk.Metadata[domain.MetaTimestamp])
}

func TestOutreachImporter_SkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "outreach_bad.json", "{not json")
	writeFile(t, dir, "outreach_good.json", sampleOutreach)

	indexer := new(MockOutreachIndexer)
	indexer.On("HasMetadata", domain.MetaSourceFile, mock.Anything).Return(false)
	indexer.On("IndexOutreachRecord", mock.Anything, mock.Anything).Return("outreach_x", nil)

	res, err := NewOutreachImporter(dir, indexer, nil).Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Files: 2, Indexed: 2, Skipped: 1}, res)

	first := indexer.Calls[1].Arguments.Get(1).(*domain.OutreachRecord)
	assert.Equal(t, "Acme Forge", first.Company)
	assert.Equal(t, "outreach_good.json#0", first.Origin)
	assert.True(t, first.EmailSent)
}

func TestOutreachImporter_IndexErrorAborts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "outreach_1.json", sampleOutreach)

	indexer := new(MockOutreachIndexer)
	indexer.On("HasMetadata", mock.Anything, mock.Anything).Return(false)
	indexer.On("IndexOutreachRecord", mock.Anything, mock.Anything).Return("", errors.New("disk full")).Once()

	importer := NewOutreachImporter(dir, indexer, nil)
	err := importer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outreach_1.json#0")
	indexer.AssertNumberOfCalls(t, "IndexOutreachRecord", 1)
}

func TestOutreachImporter_EmptyDirectory(t *testing.T) {
	res, err := NewOutreachImporter(t.TempDir(), new(MockOutreachIndexer), nil).Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ImportResult{}, res)
}

func TestParseFileTimestamp(t *testing.T) {
	fallback := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fallback, parseFileTimestamp("unknown", fallback))
	assert.Equal(t, 2025, parseFileTimestamp("20250301_143000", fallback).Year())
	assert.Equal(t, time.March, parseFileTimestamp("2025-03-01T10:00:00Z", fallback).Month())
}
