package cache

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	badgerStore, err := NewBadgerStore(filepath.Join(t.TempDir(), "badger"), log.New(io.Discard))
	require.NoError(t, err)

	sqlDB, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	sqliteStore, err := NewSQLiteStore(ctx, sqlDB)
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"badger": badgerStore,
		"sqlite": sqliteStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Put(ctx, "k", []byte("first")))
			require.NoError(t, store.Put(ctx, "k", []byte("second")))

			v, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("second"), v)
		})
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	vectors := [][]float32{{1, 0.5, -2}, {0, 0, 0.25}}
	data, err := EncodeMatrix(vectors)
	require.NoError(t, err)
	assert.Len(t, data, 12+2*3*4)

	decoded, err := DecodeMatrix(data)
	require.NoError(t, err)
	assert.Equal(t, vectors, decoded)

	_, err = EncodeMatrix([][]float32{{1, 2}, {3}})
	assert.Error(t, err)

	_, err = DecodeMatrix(data[:len(data)-1])
	assert.Error(t, err)

	_, err = DecodeMatrix([]byte("nope"))
	assert.Error(t, err)
}

func TestEmbeddingCache(t *testing.T) {
	ctx := context.Background()
	c := NewEmbeddingCache(NewMemoryStore())
	key := SummaryKey("test-model")

	_, err := c.Load(ctx, key, 2)
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, c.Save(ctx, key, [][]float32{{1, 0}, {0, 1}}))

	vectors, err := c.Load(ctx, key, 2)
	require.NoError(t, err)
	assert.Len(t, vectors, 2)

	_, err = c.Load(ctx, key, 3)
	assert.True(t, errors.Is(err, ErrMismatch))

	// other models do not share entries
	_, err = c.Load(ctx, SummaryKey("other-model"), 2)
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestEmbeddingCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "k", []byte("garbage")))

	_, err := NewEmbeddingCache(store).Load(ctx, "k", 1)
	assert.True(t, errors.Is(err, ErrMismatch))
}
