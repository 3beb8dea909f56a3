package snapshot

import (
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	require.NoError(t, err)

	store, err := New(db, Options{CacheSize: 8})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := setupStore(t)

	t.Run("SmallContent", func(t *testing.T) {
		hash, err := store.Save("short draft")
		require.NoError(t, err)
		require.Len(t, hash, 64)

		got, err := store.Get(hash)
		require.NoError(t, err)
		assert.Equal(t, "short draft", got)
	})

	t.Run("LargeContentCompressed", func(t *testing.T) {
		text := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 200)
		hash, err := store.Save(text)
		require.NoError(t, err)

		got, err := store.Get(hash)
		require.NoError(t, err)
		assert.Equal(t, text, got)
	})

	t.Run("DedupSameContent", func(t *testing.T) {
		h1, err := store.Save("same text")
		require.NoError(t, err)
		h2, err := store.Save("same text")
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := store.Get(strings.Repeat("ab", 32))
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})
}

func TestGetBypassesCacheAfterEviction(t *testing.T) {
	store := setupStore(t)

	hash, err := store.Save("evictable")
	require.NoError(t, err)

	// Push enough distinct entries through to evict the first one.
	for i := 0; i < 16; i++ {
		_, err := store.Save(strings.Repeat("x", i+1))
		require.NoError(t, err)
	}

	got, err := store.Get(hash)
	require.NoError(t, err)
	assert.Equal(t, "evictable", got)
}

func TestJournal(t *testing.T) {
	store := setupStore(t)

	_, err := store.Record("notes.md", "push", "success", "")
	require.NoError(t, err)
	e, err := store.Record("notes.md", "push-recovery", "conflict", "deadbeef")
	require.NoError(t, err)
	_, err = store.Record("other.md", "pull", "success", "")
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.At.IsZero())

	t.Run("FilterByPath", func(t *testing.T) {
		entries, err := store.History("notes.md", 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "push", entries[0].Op)
		assert.Equal(t, "push-recovery", entries[1].Op)
		assert.Equal(t, "deadbeef", entries[1].SnapshotHash)
	})

	t.Run("AllPaths", func(t *testing.T) {
		entries, err := store.History("", 0)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("Limit", func(t *testing.T) {
		entries, err := store.History("notes.md", 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "push-recovery", entries[0].Op)
	})
}
