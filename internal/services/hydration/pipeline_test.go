package hydration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/areainsights"
	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/models"
)

// fakeDetailClient serves PlaceDetails from a script: ids mapped to an error
// return that error, ids in the gone set return (nil, nil), everything else
// returns a minimal record.
type fakeDetailClient struct {
	mu      sync.Mutex
	fetched []string
	errs    map[string]error
	gone    map[string]bool
}

func (f *fakeDetailClient) Count(context.Context, areainsights.AreaFilter) (int, error) {
	panic("not used by hydration")
}

func (f *fakeDetailClient) ListPlaceIDs(context.Context, areainsights.AreaFilter) ([]string, error) {
	panic("not used by hydration")
}

func (f *fakeDetailClient) PlaceDetails(_ context.Context, id string) (*models.PlaceRecord, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()

	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	if f.gone[id] {
		return nil, nil
	}
	return &models.PlaceRecord{ID: id, Name: "Place " + id}, nil
}

func (f *fakeDetailClient) fetchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.fetched))
	copy(out, f.fetched)
	return out
}

// memoryAreaStorage is an in-memory AreaStorage sufficient for pipeline tests.
type memoryAreaStorage struct {
	state      *models.HydrationState
	records    map[string]*models.PlaceRecord
	stateSaves int
	placeSaves int
}

func newMemoryStorage(state *models.HydrationState) *memoryAreaStorage {
	return &memoryAreaStorage{
		state:   state,
		records: make(map[string]*models.PlaceRecord),
	}
}

func (m *memoryAreaStorage) SaveIDList(context.Context, *models.AreaIDList) error { return nil }

func (m *memoryAreaStorage) GetIDList(context.Context, string) (*models.AreaIDList, error) {
	return nil, interfaces.ErrAreaNotFound
}

func (m *memoryAreaStorage) SaveHydrationState(_ context.Context, state *models.HydrationState) error {
	copied := *state
	m.state = &copied
	m.stateSaves++
	return nil
}

func (m *memoryAreaStorage) GetHydrationState(_ context.Context, _ string) (*models.HydrationState, error) {
	if m.state == nil {
		return nil, interfaces.ErrAreaNotFound
	}
	copied := *m.state
	return &copied, nil
}

func (m *memoryAreaStorage) SavePlaces(_ context.Context, _ string, records []*models.PlaceRecord) error {
	m.placeSaves++
	for _, r := range records {
		if _, exists := m.records[r.ID]; !exists {
			m.records[r.ID] = r
		}
	}
	return nil
}

func (m *memoryAreaStorage) GetPlaces(_ context.Context, _ string) ([]*models.PlaceRecord, error) {
	out := make([]*models.PlaceRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryAreaStorage) HydratedIDs(_ context.Context, _ string) (map[string]struct{}, error) {
	done := make(map[string]struct{}, len(m.records))
	for id := range m.records {
		done[id] = struct{}{}
	}
	return done, nil
}

func (m *memoryAreaStorage) CountPlaces(_ context.Context, _ string) (int, error) {
	return len(m.records), nil
}

func (m *memoryAreaStorage) ListAreas(context.Context) ([]*models.AreaSummary, error) {
	return nil, nil
}

func (m *memoryAreaStorage) DeleteArea(context.Context, string) error { return nil }

func idRange(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("places/p%03d", i)
	}
	return ids
}

func newTestPipeline(client *fakeDetailClient, storage *memoryAreaStorage) *Pipeline {
	return NewPipeline(client, storage, arbor.NewLogger(), WithBatchDelay(0))
}

func TestHydrateBatchUnknownArea(t *testing.T) {
	pipeline := newTestPipeline(&fakeDetailClient{}, newMemoryStorage(nil))

	_, err := pipeline.HydrateBatch(context.Background(), "nowhere", interfaces.HydrateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrAreaNotFound)
}

func TestHydrateBatchFullRun(t *testing.T) {
	ids := idRange(20)
	client := &fakeDetailClient{}
	storage := newMemoryStorage(&models.HydrationState{Area: "testville", IDs: ids})
	pipeline := newTestPipeline(client, storage)

	result, err := pipeline.HydrateBatch(context.Background(), "testville", interfaces.HydrateOptions{Concurrency: 8})
	require.NoError(t, err)

	assert.Equal(t, 20, result.Processed)
	assert.Equal(t, 20, result.Successful)
	assert.Equal(t, 20, result.TotalRecords)
	assert.False(t, result.HasMore)
	assert.False(t, result.RateLimitHit)
	assert.Equal(t, 20, storage.state.Offset)
}

func TestHydrateBatchSkipsAlreadyHydrated(t *testing.T) {
	ids := idRange(100)
	client := &fakeDetailClient{}
	storage := newMemoryStorage(&models.HydrationState{Area: "testville", IDs: ids, Offset: 40})
	for _, id := range ids[:40] {
		storage.records[id] = &models.PlaceRecord{ID: id}
	}
	pipeline := newTestPipeline(client, storage)

	result, err := pipeline.HydrateBatch(context.Background(), "testville", interfaces.HydrateOptions{
		Concurrency: 8,
		MaxCount:    8,
	})
	require.NoError(t, err)

	fetched := client.fetchedIDs()
	sort.Strings(fetched)
	assert.Equal(t, ids[40:48], fetched, "only the first unprocessed window is attempted")
	assert.Equal(t, 8, result.Processed)
	assert.True(t, result.HasMore)
	assert.Equal(t, 8, result.NextStart)
}

func TestHydrateBatchRateLimitHaltsAfterBatchSettles(t *testing.T) {
	ids := idRange(24)
	client := &fakeDetailClient{
		errs: map[string]error{
			// Second batch with concurrency 8.
			ids[10]: &areainsights.RateLimitError{RetryAfter: time.Second, Endpoint: "places"},
		},
	}
	storage := newMemoryStorage(&models.HydrationState{Area: "testville", IDs: ids})
	pipeline := newTestPipeline(client, storage)

	result, err := pipeline.HydrateBatch(context.Background(), "testville", interfaces.HydrateOptions{Concurrency: 8})
	require.NoError(t, err)

	assert.Equal(t, 16, result.Processed, "the rate limited batch settles, then the run halts")
	assert.Equal(t, 15, result.Successful)
	assert.True(t, result.RateLimitHit)
	assert.True(t, result.HasMore)
	assert.Equal(t, 16, result.NextStart)
	assert.True(t, storage.state.RateLimited)
	assert.Equal(t, 16, storage.state.Offset)
	assert.Len(t, client.fetchedIDs(), 16, "no batch is launched after the rate limit")
}

func TestHydrateBatchSkipsGonePlaces(t *testing.T) {
	ids := idRange(5)
	client := &fakeDetailClient{gone: map[string]bool{ids[2]: true}}
	storage := newMemoryStorage(&models.HydrationState{Area: "testville", IDs: ids})
	pipeline := newTestPipeline(client, storage)

	result, err := pipeline.HydrateBatch(context.Background(), "testville", interfaces.HydrateOptions{Concurrency: 8})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 4, result.Successful)
	assert.Equal(t, 4, result.TotalRecords)
	assert.NotContains(t, storage.records, ids[2])
}

func TestHydrateBatchCheckpointsEveryBatch(t *testing.T) {
	ids := idRange(250)
	client := &fakeDetailClient{}
	storage := newMemoryStorage(&models.HydrationState{Area: "testville", IDs: ids})
	pipeline := newTestPipeline(client, storage)

	result, err := pipeline.HydrateBatch(context.Background(), "testville", interfaces.HydrateOptions{Concurrency: 8})
	require.NoError(t, err)

	assert.Equal(t, 250, result.Processed)
	assert.Equal(t, 32, storage.stateSaves, "one checkpoint per settled batch")
}

func TestHydrateBatchIdempotentAfterCompletion(t *testing.T) {
	ids := idRange(10)
	client := &fakeDetailClient{}
	storage := newMemoryStorage(&models.HydrationState{Area: "testville", IDs: ids})
	pipeline := newTestPipeline(client, storage)

	_, err := pipeline.HydrateBatch(context.Background(), "testville", interfaces.HydrateOptions{})
	require.NoError(t, err)
	firstFetches := len(client.fetchedIDs())

	result, err := pipeline.HydrateBatch(context.Background(), "testville", interfaces.HydrateOptions{})
	require.NoError(t, err)

	assert.Equal(t, firstFetches, len(client.fetchedIDs()), "hydrated IDs are never refetched")
	assert.Zero(t, result.Processed)
	assert.Equal(t, 10, result.TotalRecords)
	assert.False(t, result.HasMore)
}

func TestHydrateBatchRejectsConcurrentRun(t *testing.T) {
	ids := idRange(4)
	storage := newMemoryStorage(&models.HydrationState{Area: "testville", IDs: ids})
	pipeline := newTestPipeline(&fakeDetailClient{}, storage)

	require.True(t, pipeline.acquire("testville"))
	defer pipeline.release("testville")

	_, err := pipeline.HydrateBatch(context.Background(), "testville", interfaces.HydrateOptions{})
	assert.ErrorIs(t, err, ErrHydrationActive)
}
