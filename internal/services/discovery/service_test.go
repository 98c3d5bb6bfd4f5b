package discovery

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ibrasaif1/topspots/internal/interfaces"
	"github.com/ibrasaif1/topspots/internal/models"
)

// recordingStorage captures what the service persists.
type recordingStorage struct {
	interfaces.AreaStorage

	savedList  *models.AreaIDList
	savedState *models.HydrationState
}

func (r *recordingStorage) SaveIDList(_ context.Context, list *models.AreaIDList) error {
	r.savedList = list
	return nil
}

func (r *recordingStorage) SaveHydrationState(_ context.Context, state *models.HydrationState) error {
	r.savedState = state
	return nil
}

func TestDiscoverAreaPersistsListAndResetsCheckpoint(t *testing.T) {
	client := &fakeAreaClient{places: []fakePlace{
		{id: "places/b", lat: 0.2, lng: 0.2},
		{id: "places/a", lat: 0.8, lng: 0.8},
	}}
	storage := &recordingStorage{}
	service := NewService(newTestEngine(client), storage, arbor.NewLogger())

	area := models.SearchArea{Slug: "testville", Label: "Testville", Polygon: unitBox()}

	list, err := service.DiscoverArea(context.Background(), area)
	require.NoError(t, err)

	assert.Equal(t, []string{"places/a", "places/b"}, list.IDs, "persisted list is sorted")
	assert.False(t, list.GeneratedAt.IsZero())
	assert.True(t, strings.HasPrefix(list.RunID, "run_"), "list carries its run ID")

	require.NotNil(t, storage.savedList)
	assert.Equal(t, "testville", storage.savedList.Area)
	assert.Equal(t, list.RunID, storage.savedList.RunID)

	again, err := service.DiscoverArea(context.Background(), area)
	require.NoError(t, err)
	assert.NotEqual(t, list.RunID, again.RunID, "each run gets its own ID")

	require.NotNil(t, storage.savedState)
	assert.Equal(t, "testville", storage.savedState.Area)
	assert.Equal(t, list.IDs, storage.savedState.IDs)
	assert.Zero(t, storage.savedState.Offset)
	assert.False(t, storage.savedState.RateLimited)
}

func TestDiscoverAreaSurfacesEngineError(t *testing.T) {
	service := NewService(newTestEngine(&fakeAreaClient{}), &recordingStorage{}, arbor.NewLogger())

	list, err := service.DiscoverArea(context.Background(), models.SearchArea{
		Slug:    "bad",
		Polygon: nil,
	})
	require.Error(t, err)
	assert.Nil(t, list)
}
