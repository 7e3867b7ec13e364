package state

import (
	"encoding/binary"
	"errors"

	"patreonix/crypto"
)

// MaxNonceLength bounds the caller-chosen nonce of a signed request.
const MaxNonceLength = 128

var (
	ErrNonceUsed    = errors.New("state: nonce already used")
	ErrNonceInvalid = errors.New("state: nonce must be 1-128 bytes")
)

func nonceKey(signer crypto.Address, nonce string) []byte {
	key := make([]byte, 0, len(noncePrefix)+len(signer)+1+len(nonce))
	key = append(key, noncePrefix...)
	key = append(key, signer[:]...)
	key = append(key, '/')
	return append(key, nonce...)
}

// ConsumeNonce marks nonce as spent for signer. issuedAt is stored so expired
// entries can be pruned.
func (tx *Tx) ConsumeNonce(signer crypto.Address, nonce string, issuedAt int64) error {
	if nonce == "" || len(nonce) > MaxNonceLength {
		return ErrNonceInvalid
	}
	key := nonceKey(signer, nonce)
	if _, ok, err := tx.get(key); err != nil {
		return err
	} else if ok {
		return ErrNonceUsed
	}
	var value [8]byte
	binary.BigEndian.PutUint64(value[:], uint64(issuedAt))
	return tx.put(key, value[:])
}

// PruneNonces deletes spent nonces issued before cutoff and returns how many
// were removed.
func (m *Manager) PruneNonces(cutoff int64) (int, error) {
	batch := m.db.NewBatch()
	err := m.db.Iterate(noncePrefix, func(key, value []byte) error {
		if len(value) != 8 {
			return nil
		}
		if int64(binary.BigEndian.Uint64(value)) < cutoff {
			batch.Delete(append([]byte(nil), key...))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	removed := batch.Len()
	if removed == 0 {
		return 0, nil
	}
	return removed, batch.Write()
}
