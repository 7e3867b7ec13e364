package state

import (
	"errors"
	"fmt"
	"sort"

	"patreonix/storage"
)

// Manager hands out transactions over the backing database.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Database returns the backing store.
func (m *Manager) Database() storage.Database {
	return m.db
}

// Begin opens a write overlay. Nothing reaches the database until Commit.
func (m *Manager) Begin() *Tx {
	return &Tx{db: m.db, writes: make(map[string][]byte)}
}

// Tx buffers writes on top of the database. Reads observe the transaction's
// own writes first. A Tx is not safe for concurrent use; the caller serializes
// access to the records it touches.
type Tx struct {
	db     storage.Database
	writes map[string][]byte
	done   bool
}

var errTxClosed = errors.New("state: transaction already closed")

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if v, ok := tx.writes[string(key)]; ok {
		return v, true, nil
	}
	v, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (tx *Tx) put(key, value []byte) error {
	if tx.done {
		return errTxClosed
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	tx.writes[string(key)] = buf
	return nil
}

// Dirty reports the number of buffered writes.
func (tx *Tx) Dirty() int {
	return len(tx.writes)
}

// Commit writes every buffered change in one atomic batch.
func (tx *Tx) Commit() error {
	if tx.done {
		return errTxClosed
	}
	tx.done = true
	if len(tx.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := tx.db.NewBatch()
	for _, k := range keys {
		batch.Put([]byte(k), tx.writes[k])
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Discard drops all buffered writes.
func (tx *Tx) Discard() {
	tx.done = true
	tx.writes = nil
}

// Meta reads an auxiliary value such as the genesis marker.
func (tx *Tx) Meta(name string) ([]byte, bool, error) {
	return tx.get(metaKey(name))
}

// SetMeta writes an auxiliary value.
func (tx *Tx) SetMeta(name string, value []byte) error {
	return tx.put(metaKey(name), value)
}
