package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"patreonix/crypto"
)

var (
	ErrAccountInUse        = errors.New("state: account already in use")
	ErrAccountNotFound     = errors.New("state: account not found")
	ErrAccountDataTooLarge = errors.New("state: account data exceeds allocated space")
	ErrWrongOwner          = errors.New("state: account owned by another program")
)

// Account is a fixed-capacity record slot. Space is set once at creation and
// Data always has exactly Space bytes.
type Account struct {
	Owner crypto.Address
	Space uint32
	Data  []byte
}

type storedAccount struct {
	Owner []byte
	Space uint32
	Data  []byte
}

func encodeAccount(acc *Account) ([]byte, error) {
	return rlp.EncodeToBytes(storedAccount{Owner: acc.Owner[:], Space: acc.Space, Data: acc.Data})
}

func decodeAccount(raw []byte) (*Account, error) {
	var stored storedAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	owner, err := crypto.NewAddress(stored.Owner)
	if err != nil {
		return nil, fmt.Errorf("state: decode account owner: %w", err)
	}
	return &Account{Owner: owner, Space: stored.Space, Data: stored.Data}, nil
}

// Account loads the slot at addr.
func (tx *Tx) Account(addr crypto.Address) (*Account, bool, error) {
	raw, ok, err := tx.get(accountKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	acc, err := decodeAccount(raw)
	if err != nil {
		return nil, false, err
	}
	return acc, true, nil
}

// CreateAccount allocates a zeroed slot of space bytes owned by owner. It
// fails when the address is already occupied.
func (tx *Tx) CreateAccount(addr, owner crypto.Address, space int) error {
	if space <= 0 {
		return fmt.Errorf("state: invalid account space %d", space)
	}
	_, exists, err := tx.get(accountKey(addr))
	if err != nil {
		return err
	}
	if exists {
		return ErrAccountInUse
	}
	acc := &Account{Owner: owner, Space: uint32(space), Data: make([]byte, space)}
	raw, err := encodeAccount(acc)
	if err != nil {
		return err
	}
	return tx.put(accountKey(addr), raw)
}

// AccountData returns the full slot contents of an account owned by owner.
func (tx *Tx) AccountData(addr, owner crypto.Address) ([]byte, bool, error) {
	acc, ok, err := tx.Account(addr)
	if err != nil || !ok {
		return nil, ok, err
	}
	if acc.Owner != owner {
		return nil, false, ErrWrongOwner
	}
	return acc.Data, true, nil
}

// WriteAccountData replaces the slot contents, zero padding to the allocated
// space. Writes larger than the allocation are rejected.
func (tx *Tx) WriteAccountData(addr, owner crypto.Address, data []byte) error {
	acc, ok, err := tx.Account(addr)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	if acc.Owner != owner {
		return ErrWrongOwner
	}
	if len(data) > int(acc.Space) {
		return fmt.Errorf("%w: %d > %d", ErrAccountDataTooLarge, len(data), acc.Space)
	}
	padded := make([]byte, acc.Space)
	copy(padded, data)
	acc.Data = padded
	raw, err := encodeAccount(acc)
	if err != nil {
		return err
	}
	return tx.put(accountKey(addr), raw)
}

// ForEachAccount visits committed accounts in address order. Buffered writes
// of the transaction are not included.
func (m *Manager) ForEachAccount(fn func(addr crypto.Address, acc *Account) error) error {
	return m.db.Iterate(accountPrefix, func(key, value []byte) error {
		addr, err := crypto.NewAddress(key[len(accountPrefix):])
		if err != nil {
			return err
		}
		acc, err := decodeAccount(value)
		if err != nil {
			return err
		}
		return fn(addr, acc)
	})
}
