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
)

func newTestKVStorage(t *testing.T) interfaces.KeyValueStorage {
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
	return NewKVStorage(db, arbor.NewLogger())
}

func TestKVSetGetCaseInsensitive(t *testing.T) {
	storage := newTestKVStorage(t)
	ctx := context.Background()

	_, err := storage.Get(ctx, "google_api_key")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, storage.Set(ctx, "Google_API_Key", "secret", "Places credential"))

	value, err := storage.Get(ctx, "GOOGLE_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "secret", value)

	pair, err := storage.GetPair(ctx, "google_api_key")
	require.NoError(t, err)
	assert.Equal(t, "google_api_key", pair.Key, "keys are stored normalized")
	assert.Equal(t, "Places credential", pair.Description)
}

func TestKVSetPreservesCreatedAt(t *testing.T) {
	storage := newTestKVStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "api_key", "first", ""))
	original, err := storage.GetPair(ctx, "api_key")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, storage.Set(ctx, "api_key", "second", ""))

	updated, err := storage.GetPair(ctx, "api_key")
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Value)
	assert.Equal(t, original.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(original.UpdatedAt))
}

func TestKVDeleteAndList(t *testing.T) {
	storage := newTestKVStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "first", "1", ""))
	require.NoError(t, storage.Set(ctx, "second", "2", ""))

	pairs, err := storage.List(ctx)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)

	require.NoError(t, storage.Delete(ctx, "first"))
	assert.ErrorIs(t, storage.Delete(ctx, "first"), interfaces.ErrKeyNotFound)

	all, err := storage.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"second": "2"}, all)
}
