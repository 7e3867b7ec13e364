package state

import (
	"errors"

	"github.com/holiman/uint256"

	"patreonix/crypto"
)

var (
	ErrInsufficientFunds = errors.New("state: insufficient funds")
	ErrBalanceOverflow   = errors.New("state: balance overflow")
	ErrUnauthorizedDebit = errors.New("state: transfer not authorized by source")
	ErrZeroAmount        = errors.New("state: amount must be positive")
)

// Balance returns the token balance of addr. Missing balances read as zero.
func (tx *Tx) Balance(addr crypto.Address) (*uint256.Int, error) {
	raw, ok, err := tx.get(balanceKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return uint256.NewInt(0), nil
	}
	return new(uint256.Int).SetBytes(raw), nil
}

func (tx *Tx) setBalance(addr crypto.Address, amount *uint256.Int) error {
	buf := amount.Bytes32()
	return tx.put(balanceKey(addr), buf[:])
}

// Mint credits amount to addr.
func (tx *Tx) Mint(to crypto.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	bal, err := tx.Balance(to)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	return tx.setBalance(to, next)
}

// Transfer moves amount from one identity to another. authorizer must be the
// debited identity. Either both balances change or neither does.
func (tx *Tx) Transfer(from, to, authorizer crypto.Address, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}
	if authorizer != from {
		return ErrUnauthorizedDebit
	}
	value := uint256.NewInt(amount)
	fromBal, err := tx.Balance(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(value) {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	toBal, err := tx.Balance(to)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(toBal, value)
	if overflow {
		return ErrBalanceOverflow
	}
	debited := new(uint256.Int).Sub(fromBal, value)
	if err := tx.setBalance(from, debited); err != nil {
		return err
	}
	return tx.setBalance(to, credited)
}
