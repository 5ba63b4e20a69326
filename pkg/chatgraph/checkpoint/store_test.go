package checkpoint_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/randalmurphal/llmtour/pkg/chatgraph/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) checkpoint.Store

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Save_and_Load", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		data := []byte(`{"messages": []}`)
		require.NoError(t, store.Save("abc123", "model", data))

		loaded, err := store.Load("abc123", "model")
		require.NoError(t, err)
		assert.Equal(t, data, loaded)
	})

	t.Run(name+"/Load_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Load("missing-thread", "model")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run(name+"/Save_Overwrite_BumpsSequence", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("abc123", "__start__", []byte("start-1")))
		require.NoError(t, store.Save("abc123", "model", []byte("model-1")))
		require.NoError(t, store.Save("abc123", "__start__", []byte("start-2")))

		loaded, err := store.Load("abc123", "__start__")
		require.NoError(t, err)
		assert.Equal(t, []byte("start-2"), loaded)

		latest, err := checkpoint.Latest(store, "abc123")
		require.NoError(t, err)
		assert.Equal(t, "__start__", latest.NodeID)
		assert.Equal(t, 3, latest.Sequence)
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		infos, err := store.List("missing-thread")
		require.NoError(t, err)
		assert.Empty(t, infos)

		_, err = checkpoint.Latest(store, "missing-thread")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run(name+"/List_Ordered", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("abc123", "node-a", []byte("a")))
		require.NoError(t, store.Save("abc123", "node-b", []byte("bb")))
		require.NoError(t, store.Save("abc123", "node-c", []byte("ccc")))

		infos, err := store.List("abc123")
		require.NoError(t, err)
		require.Len(t, infos, 3)

		for i, want := range []string{"node-a", "node-b", "node-c"} {
			assert.Equal(t, i+1, infos[i].Sequence)
			assert.Equal(t, want, infos[i].NodeID)
			assert.Equal(t, "abc123", infos[i].ThreadID)
			assert.Equal(t, int64(i+1), infos[i].Size)
		}
	})

	t.Run(name+"/Threads", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("abc234", "model", []byte("b")))
		require.NoError(t, store.Save("abc123", "model", []byte("a")))
		require.NoError(t, store.Save("abc123", "__start__", []byte("a")))

		ids, err := store.Threads()
		require.NoError(t, err)
		assert.Equal(t, []string{"abc123", "abc234"}, ids)
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("abc123", "model", []byte("data")))
		require.NoError(t, store.Delete("abc123", "model"))

		_, err := store.Load("abc123", "model")
		assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	})

	t.Run(name+"/Delete_Nonexistent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		assert.NoError(t, store.Delete("missing-thread", "model"))
	})

	t.Run(name+"/DeleteThread", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("abc123", "__start__", []byte("a")))
		require.NoError(t, store.Save("abc123", "model", []byte("b")))
		require.NoError(t, store.Save("abc234", "model", []byte("other")))

		require.NoError(t, store.DeleteThread("abc123"))

		infos, err := store.List("abc123")
		require.NoError(t, err)
		assert.Empty(t, infos)

		infos, err = store.List("abc234")
		require.NoError(t, err)
		assert.Len(t, infos, 1)

		assert.NoError(t, store.DeleteThread("missing-thread"))
	})

	t.Run(name+"/ThreadsAreIsolated", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Save("abc123", "model", []byte("bob")))
		require.NoError(t, store.Save("abc234", "model", []byte("stranger")))

		data, err := store.Load("abc123", "model")
		require.NoError(t, err)
		assert.Equal(t, []byte("bob"), data)

		data, err = store.Load("abc234", "model")
		require.NoError(t, err)
		assert.Equal(t, []byte("stranger"), data)

		infos, _ := store.List("abc234")
		require.Len(t, infos, 1)
		assert.Equal(t, 1, infos[0].Sequence)
	})

	t.Run(name+"/DataCopy", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		original := []byte("original data")
		require.NoError(t, store.Save("abc123", "model", original))
		original[0] = 'X'

		loaded, err := store.Load("abc123", "model")
		require.NoError(t, err)
		assert.Equal(t, []byte("original data"), loaded)
	})

	t.Run(name+"/Close_ThenError", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Save("abc123", "model", []byte("data")), checkpoint.ErrStoreClosed)

		_, err := store.Load("abc123", "model")
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

		_, err = store.List("abc123")
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

		_, err = store.Threads()
		assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(t *testing.T) checkpoint.Store {
		return checkpoint.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, "SQLiteStore", func(t *testing.T) checkpoint.Store {
		store, err := checkpoint.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestMemoryStore_Len(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	assert.Equal(t, 0, store.Len())
	require.NoError(t, store.Save("abc123", "__start__", []byte("a")))
	require.NoError(t, store.Save("abc123", "model", []byte("b")))
	require.NoError(t, store.Save("abc234", "model", []byte("c")))
	assert.Equal(t, 3, store.Len())
}

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "threads.db")

	store1, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Save("abc123", "model", []byte("persistent")))
	require.NoError(t, store1.Close())

	store2, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()

	data, err := store2.Load("abc123", "model")
	require.NoError(t, err)
	assert.Equal(t, []byte("persistent"), data)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := checkpoint.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_Concurrent(t *testing.T) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	const numGoroutines = 20

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thread := "thread-" + string(rune('a'+i))
			assert.NoError(t, store.Save(thread, "model", []byte("x")))
			_, err := store.Load(thread, "model")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	ids, err := store.Threads()
	require.NoError(t, err)
	assert.Len(t, ids, numGoroutines)
}
