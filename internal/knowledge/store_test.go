package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/outreachai/internal/domain"
)

// constEmbedder maps every text to the same vector so all scores tie.
type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0, 0}, nil }
func (constEmbedder) ID() string                                        { return "const:v1" }

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) ID() string {
	return m.Called().String(0)
}

type failingRepo struct {
	loadErr error
	panics  bool
}

func (r *failingRepo) Load(context.Context) (*Manifest, []domain.KnowledgeChunk, error) {
	if r.panics {
		panic("corrupt index")
	}
	return nil, nil, r.loadErr
}
func (r *failingRepo) Replace(context.Context, Manifest, []domain.KnowledgeChunk) error { return nil }
func (r *failingRepo) Append(context.Context, ...domain.KnowledgeChunk) error          { return nil }

// flakyReplaceRepo fails the next Replace after storing nothing.
type flakyReplaceRepo struct {
	*MemoryRepository
	replaceErr error
}

func (r *flakyReplaceRepo) Replace(ctx context.Context, m Manifest, chunks []domain.KnowledgeChunk) error {
	if r.replaceErr != nil {
		err := r.replaceErr
		r.replaceErr = nil
		return err
	}
	return r.MemoryRepository.Replace(ctx, m, chunks)
}

func newTestStore(t *testing.T, repo Repository, embedder Embedder) *Store {
	t.Helper()
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if embedder == nil {
		embedder = NewHashEmbedder(256)
	}
	return NewStore(repo, embedder, zap.NewNop())
}

func record(company string) *domain.OutreachRecord {
	return domain.NewOutreachRecord(company, "Metal stamping", "Pilot", "Operates 30 presses.", time.Now())
}

func TestStore_InitializeFresh(t *testing.T) {
	store := newTestStore(t, nil, nil)

	status, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 16, status.Total)
	assert.Equal(t, 16, status.Product)
	assert.Equal(t, 0, status.Outreach)
	assert.Equal(t, 16, status.Added)
	assert.True(t, status.Rebuilt)
	assert.Equal(t, "hash:v1:256", status.EmbedderID)
	assert.Contains(t, status.String(), "16 total chunks")
}

func TestStore_QueryProductScenario(t *testing.T) {
	store := newTestStore(t, nil, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	results, err := store.Query(context.Background(), "energy monitoring for stamping", 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, domain.ChunkSourceProduct, r.Chunk.Source)
		assert.Equal(t, "product", r.Chunk.Metadata[domain.MetaSource])
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
}

func TestStore_QueryReturnsAtMostChunkCount(t *testing.T) {
	store := newTestStore(t, nil, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	results, err := store.Query(context.Background(), "forging", 100)
	require.NoError(t, err)
	assert.Len(t, results, 16)

	results, err = store.Query(context.Background(), "forging", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestStore_QueryTiesKeepInsertionOrder(t *testing.T) {
	store := newTestStore(t, nil, constEmbedder{})
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	results, err := store.Query(context.Background(), "anything", 4)
	require.NoError(t, err)

	require.Len(t, results, 4)
	assert.Equal(t, "company_profile", results[0].Chunk.ID)
	assert.Equal(t, "mv900_overview", results[1].Chunk.ID)
	assert.Equal(t, "mv900_features", results[2].Chunk.ID)
	assert.Equal(t, "mv900_functions", results[3].Chunk.ID)

	again, err := store.Query(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Equal(t, results, again)
}

func TestStore_QueryEmptyStore(t *testing.T) {
	store := newTestStore(t, nil, nil)
	store.ready = true

	results, err := store.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestStore_QueryBeforeInitialize(t *testing.T) {
	store := newTestStore(t, nil, nil)

	_, err := store.Query(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestStore_QueryEmptyText(t *testing.T) {
	store := newTestStore(t, nil, nil)
	_, err := store.Query(context.Background(), "", 3)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestStore_IndexOutreachRecordAddsExactlyN(t *testing.T) {
	store := newTestStore(t, nil, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	before := store.Count()
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		id, err := store.IndexOutreachRecord(context.Background(), record("Acme"))
		require.NoError(t, err)
		assert.Regexp(t, `^outreach_`, id)
		assert.False(t, seen[id])
		seen[id] = true
		assert.Equal(t, before+i+1, store.Count())
	}

	counts := store.CountBySource()
	assert.Equal(t, 16, counts[domain.ChunkSourceProduct])
	assert.Equal(t, 5, counts[domain.ChunkSourceOutreach])
}

func TestStore_IndexedRecordIsQueryable(t *testing.T) {
	store := newTestStore(t, nil, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	r := domain.NewOutreachRecord("Hanse Schmiede GmbH", "Closed die forging", "Enterprise", "Hanse Schmiede runs hammer forging lines.", time.Now())
	id, err := store.IndexOutreachRecord(context.Background(), r)
	require.NoError(t, err)

	results, err := store.Query(context.Background(), "past outreach Hanse Schmiede forging", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].Chunk.ID)
	assert.Equal(t, domain.CategoryPastOutreach, results[0].Chunk.Category())
}

func TestStore_IndexRejectsInvalidRecord(t *testing.T) {
	store := newTestStore(t, nil, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	_, err = store.IndexOutreachRecord(context.Background(), &domain.OutreachRecord{})
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
	assert.Equal(t, 16, store.Count())
}

func TestStore_IndexBeforeInitialize(t *testing.T) {
	store := newTestStore(t, nil, nil)
	_, err := store.IndexOutreachRecord(context.Background(), record("Acme"))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestStore_ReopenLoadsPersistedChunks(t *testing.T) {
	repo := NewMemoryRepository()
	first := newTestStore(t, repo, nil)
	_, err := first.Initialize(context.Background(), false)
	require.NoError(t, err)
	_, err = first.IndexOutreachRecord(context.Background(), record("Acme"))
	require.NoError(t, err)

	second := newTestStore(t, repo, nil)
	status, err := second.Initialize(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, status.Rebuilt)
	assert.Equal(t, 0, status.Added)
	assert.Equal(t, 17, status.Total)
	assert.Equal(t, 1, status.Outreach)
}

func TestStore_EmbedderChangeRebuildsAndKeepsOutreach(t *testing.T) {
	repo := NewMemoryRepository()
	first := newTestStore(t, repo, NewHashEmbedder(256))
	_, err := first.Initialize(context.Background(), false)
	require.NoError(t, err)
	_, err = first.IndexOutreachRecord(context.Background(), record("Acme"))
	require.NoError(t, err)

	second := newTestStore(t, repo, NewHashEmbedder(64))
	status, err := second.Initialize(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, status.Rebuilt)
	assert.Equal(t, 17, status.Total)
	assert.Equal(t, 1, status.Outreach)

	manifest, chunks, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hash:v1:64", manifest.EmbedderID)
	for _, c := range chunks {
		assert.Len(t, c.Embedding, 64, c.ID)
	}
}

func TestStore_ForceRebuildKeepsOutreach(t *testing.T) {
	store := newTestStore(t, nil, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)
	id, err := store.IndexOutreachRecord(context.Background(), record("Acme"))
	require.NoError(t, err)

	status, err := store.Initialize(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, status.Rebuilt)
	assert.Equal(t, 17, status.Total)
	assert.True(t, store.HasMetadata(domain.MetaCompany, "Acme"))

	results, err := store.Query(context.Background(), "anything", 100)
	require.NoError(t, err)
	var found bool
	for _, r := range results {
		found = found || r.Chunk.ID == id
	}
	assert.True(t, found)
}

func TestStore_FailedRebuildKeepsOutreachHistory(t *testing.T) {
	repo := &flakyReplaceRepo{MemoryRepository: NewMemoryRepository()}
	store := newTestStore(t, repo, nil)
	ctx := context.Background()
	_, err := store.Initialize(ctx, false)
	require.NoError(t, err)
	for _, company := range []string{"Acme", "Globex", "Initech"} {
		_, err := store.IndexOutreachRecord(ctx, record(company))
		require.NoError(t, err)
	}

	repo.replaceErr = errors.New("disk full")
	_, err = store.Initialize(ctx, true)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeStoreUnavailable))
	assert.Equal(t, 3, store.CountBySource()[domain.ChunkSourceOutreach])

	restarted := newTestStore(t, repo, nil)
	status, err := restarted.Initialize(ctx, false)
	require.NoError(t, err)
	assert.False(t, status.Rebuilt)
	assert.Equal(t, 3, status.Outreach)
	assert.True(t, restarted.HasMetadata(domain.MetaCompany, "Initech"))
}

func TestStore_EmbedFailureIsStoreUnavailable(t *testing.T) {
	embedder := new(MockEmbedder)
	embedder.On("ID").Return("mock:v1")
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("model not loaded"))

	store := newTestStore(t, nil, embedder)
	_, err := store.Initialize(context.Background(), false)

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeStoreUnavailable))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestStore_ConcurrentQueriesAndWrites(t *testing.T) {
	store := newTestStore(t, nil, nil)
	_, err := store.Initialize(context.Background(), false)
	require.NoError(t, err)

	const writers, readers = 8, 8
	var wg sync.WaitGroup
	errs := make(chan error, writers+readers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.IndexOutreachRecord(context.Background(), record(fmt.Sprintf("Company %d", i)))
			errs <- err
		}(i)
	}
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Query(context.Background(), "stamping energy", 3)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 16+writers, store.Count())
}

func TestOpen_Ready(t *testing.T) {
	status := Open(context.Background(), newTestStore(t, nil, nil), false, zap.NewNop())

	ready, ok := status.(Ready)
	require.True(t, ok)
	assert.Equal(t, 16, ready.Status.Total)
	assert.NotNil(t, StoreOf(status))
}

func TestOpen_Unavailable(t *testing.T) {
	tests := []struct {
		name  string
		store *Store
	}{
		{name: "nil store", store: nil},
		{name: "load error", store: newTestStore(t, &failingRepo{loadErr: errors.New("disk gone")}, nil)},
		{name: "panicking repository", store: newTestStore(t, &failingRepo{panics: true}, nil)},
		{name: "missing embedder", store: NewStore(NewMemoryRepository(), nil, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Open(context.Background(), tt.store, false, zap.NewNop())

			u, ok := status.(Unavailable)
			require.True(t, ok)
			assert.True(t, domain.IsCode(u.Reason, domain.ErrCodeStoreUnavailable))
			assert.Nil(t, StoreOf(status))
		})
	}
}
