package trie

import (
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"patreonix/storage"
)

func TestStateRootEmpty(t *testing.T) {
	root, err := StateRoot(storage.NewMemDB(), nil)
	require.NoError(t, err)
	require.Equal(t, gethtypes.EmptyRootHash, root)
}

func TestStateRootIndependentOfInsertOrder(t *testing.T) {
	a := storage.NewMemDB()
	b := storage.NewMemDB()
	pairs := [][2]string{{"acct/1", "one"}, {"acct/2", "two"}, {"bal/1", "ten"}}
	for _, p := range pairs {
		require.NoError(t, a.Put([]byte(p[0]), []byte(p[1])))
	}
	for i := len(pairs) - 1; i >= 0; i-- {
		require.NoError(t, b.Put([]byte(pairs[i][0]), []byte(pairs[i][1])))
	}
	rootA, err := StateRoot(a, nil)
	require.NoError(t, err)
	rootB, err := StateRoot(b, nil)
	require.NoError(t, err)
	require.Equal(t, rootA, rootB)

	require.NoError(t, b.Put([]byte("acct/2"), []byte("changed")))
	rootB, err = StateRoot(b, nil)
	require.NoError(t, err)
	require.NotEqual(t, rootA, rootB)
}

func TestStateRootLimitedToPrefixes(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, db.Put([]byte("acct/1"), []byte("one")))
	scoped, err := StateRoot(db, []byte("acct/"), []byte("bal/"))
	require.NoError(t, err)

	require.NoError(t, db.Put([]byte("nonce/x"), []byte("spent")))
	again, err := StateRoot(db, []byte("acct/"), []byte("bal/"))
	require.NoError(t, err)
	require.Equal(t, scoped, again)

	whole, err := StateRoot(db)
	require.NoError(t, err)
	require.NotEqual(t, scoped, whole)
}
