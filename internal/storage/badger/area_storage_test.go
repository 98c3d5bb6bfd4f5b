package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/models"
)

func newTestAreaStorage(t *testing.T) interfaces.AreaStorage {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	db := &BadgerDB{store: store}
	return NewAreaStorage(db, arbor.NewLogger())
}

func TestIDListRoundTrip(t *testing.T) {
	storage := newTestAreaStorage(t)
	ctx := context.Background()

	_, err := storage.GetIDList(ctx, "san_diego")
	assert.ErrorIs(t, err, interfaces.ErrAreaNotFound)

	list := &models.AreaIDList{
		Area:        "san_diego",
		IDs:         []string{"places/a", "places/b"},
		GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, storage.SaveIDList(ctx, list))

	got, err := storage.GetIDList(ctx, "san_diego")
	require.NoError(t, err)
	assert.Equal(t, list.IDs, got.IDs)

	// A re-discovery run replaces the list.
	list.IDs = []string{"places/a", "places/b", "places/c"}
	require.NoError(t, storage.SaveIDList(ctx, list))

	got, err = storage.GetIDList(ctx, "san_diego")
	require.NoError(t, err)
	assert.Len(t, got.IDs, 3)
}

func TestHydrationStateRoundTrip(t *testing.T) {
	storage := newTestAreaStorage(t)
	ctx := context.Background()

	_, err := storage.GetHydrationState(ctx, "san_diego")
	assert.ErrorIs(t, err, interfaces.ErrAreaNotFound)

	state := &models.HydrationState{
		Area:      "san_diego",
		IDs:       []string{"places/a", "places/b", "places/c"},
		Offset:    2,
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, storage.SaveHydrationState(ctx, state))

	got, err := storage.GetHydrationState(ctx, "san_diego")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Offset)
	assert.Equal(t, 1, got.Remaining())
}

func TestSavePlacesFirstSeenWins(t *testing.T) {
	storage := newTestAreaStorage(t)
	ctx := context.Background()

	original := &models.PlaceRecord{ID: "places/a", Name: "Original"}
	require.NoError(t, storage.SavePlaces(ctx, "san_diego", []*models.PlaceRecord{original}))

	replacement := &models.PlaceRecord{ID: "places/a", Name: "Replacement"}
	require.NoError(t, storage.SavePlaces(ctx, "san_diego", []*models.PlaceRecord{replacement}))

	records, err := storage.GetPlaces(ctx, "san_diego")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Original", records[0].Name)
}

func TestGetPlacesSortedByRating(t *testing.T) {
	storage := newTestAreaStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SavePlaces(ctx, "san_diego", []*models.PlaceRecord{
		{ID: "places/low", Rating: 4.5, UserRatingCount: 900},
		{ID: "places/high", Rating: 4.9, UserRatingCount: 120},
		{ID: "places/tie", Rating: 4.5, UserRatingCount: 2000},
	}))

	records, err := storage.GetPlaces(ctx, "san_diego")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "places/high", records[0].ID)
	assert.Equal(t, "places/tie", records[1].ID)
	assert.Equal(t, "places/low", records[2].ID)
}

func TestHydratedIDsAndCount(t *testing.T) {
	storage := newTestAreaStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SavePlaces(ctx, "san_diego", []*models.PlaceRecord{
		{ID: "places/a"},
		{ID: "places/b"},
	}))
	require.NoError(t, storage.SavePlaces(ctx, "austin", []*models.PlaceRecord{
		{ID: "places/c"},
	}))

	done, err := storage.HydratedIDs(ctx, "san_diego")
	require.NoError(t, err)
	assert.Len(t, done, 2)
	assert.Contains(t, done, "places/a")
	assert.NotContains(t, done, "places/c")

	count, err := storage.CountPlaces(ctx, "san_diego")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestListAreas(t *testing.T) {
	storage := newTestAreaStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveHydrationState(ctx, &models.HydrationState{
		Area:   "san_diego",
		IDs:    []string{"places/a", "places/b"},
		Offset: 1,
	}))
	require.NoError(t, storage.SavePlaces(ctx, "san_diego", []*models.PlaceRecord{{ID: "places/a"}}))

	require.NoError(t, storage.SaveHydrationState(ctx, &models.HydrationState{
		Area:        "austin",
		IDs:         []string{"places/c"},
		RateLimited: true,
	}))

	summaries, err := storage.ListAreas(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "austin", summaries[0].Area)
	assert.True(t, summaries[0].RateLimited)
	assert.Equal(t, "san_diego", summaries[1].Area)
	assert.Equal(t, 2, summaries[1].TotalIDs)
	assert.Equal(t, 1, summaries[1].Hydrated)
}

func TestDeleteArea(t *testing.T) {
	storage := newTestAreaStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveIDList(ctx, &models.AreaIDList{
		Area: "san_diego",
		IDs:  []string{"places/a"},
	}))
	require.NoError(t, storage.SaveHydrationState(ctx, &models.HydrationState{
		Area: "san_diego",
		IDs:  []string{"places/a"},
	}))
	require.NoError(t, storage.SavePlaces(ctx, "san_diego", []*models.PlaceRecord{{ID: "places/a"}}))

	require.NoError(t, storage.DeleteArea(ctx, "san_diego"))

	_, err := storage.GetIDList(ctx, "san_diego")
	assert.ErrorIs(t, err, interfaces.ErrAreaNotFound)
	_, err = storage.GetHydrationState(ctx, "san_diego")
	assert.ErrorIs(t, err, interfaces.ErrAreaNotFound)

	count, err := storage.CountPlaces(ctx, "san_diego")
	require.NoError(t, err)
	assert.Zero(t, count)
}
