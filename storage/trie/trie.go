package trie

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	gethtrie "github.com/ethereum/go-ethereum/trie"

	"patreonix/storage"
)

type entry struct {
	key   []byte
	value []byte
}

// StateRoot computes the Merkle-Patricia root over every key under the given
// prefixes, or over the whole database when none are given. Keys are keccak256
// hashed before insertion, so the root only depends on the key/value set and
// not on how the backend orders its keys. Prefixes must not overlap.
func StateRoot(db storage.Database, prefixes ...[]byte) (common.Hash, error) {
	if len(prefixes) == 0 {
		prefixes = [][]byte{nil}
	}
	var entries []entry
	for _, prefix := range prefixes {
		err := db.Iterate(prefix, func(key, value []byte) error {
			if len(value) == 0 {
				return nil
			}
			entries = append(entries, entry{key: crypto.Keccak256(key), value: value})
			return nil
		})
		if err != nil {
			return common.Hash{}, err
		}
	}
	if len(entries) == 0 {
		return gethtypes.EmptyRootHash, nil
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})
	st := gethtrie.NewStackTrie(nil)
	for _, e := range entries {
		if err := st.Update(e.key, e.value); err != nil {
			return common.Hash{}, err
		}
	}
	return st.Hash(), nil
}
