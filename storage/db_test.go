package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	mem, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	require.NoError(t, err)
	bolt, err := NewBoltDB(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	dbs := map[string]Database{
		"memory":  NewMemDB(),
		"leveldb": WrapLevelDB(mem),
		"bolt":    bolt,
	}
	t.Cleanup(func() {
		for _, db := range dbs {
			db.Close()
		}
	})
	return dbs
}

func TestDatabaseContract(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Put([]byte("acct/b"), []byte("2")))
			require.NoError(t, db.Put([]byte("acct/a"), []byte("1")))
			require.NoError(t, db.Put([]byte("bal/a"), []byte("9")))

			got, err := db.Get([]byte("acct/a"))
			require.NoError(t, err)
			require.Equal(t, []byte("1"), got)

			ok, err := db.Has([]byte("acct/b"))
			require.NoError(t, err)
			require.True(t, ok)

			var keys []string
			require.NoError(t, db.Iterate([]byte("acct/"), func(k, _ []byte) error {
				keys = append(keys, string(k))
				return nil
			}))
			require.Equal(t, []string{"acct/a", "acct/b"}, keys)

			require.NoError(t, db.Delete([]byte("acct/b")))
			ok, err = db.Has([]byte("acct/b"))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestBatchAppliesTogether(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("gone"), []byte("x")))
			batch := db.NewBatch()
			batch.Put([]byte("k1"), []byte("v1"))
			batch.Put([]byte("k2"), []byte("v2"))
			batch.Delete([]byte("gone"))
			require.Equal(t, 3, batch.Len())

			_, err := db.Get([]byte("k1"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, batch.Write())
			v, err := db.Get([]byte("k2"))
			require.NoError(t, err)
			require.Equal(t, []byte("v2"), v)
			_, err = db.Get([]byte("gone"))
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("rocksdb", t.TempDir())
	require.Error(t, err)
}
