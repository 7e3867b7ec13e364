package crypto

import (
	"errors"

	"filippo.io/edwards25519"
	"lukechampine.com/blake3"
)

const (
	// MaxSeeds bounds the number of seed fragments, bump included.
	MaxSeeds = 16
	// MaxSeedLength bounds every individual seed fragment.
	MaxSeedLength = 32

	derivedAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLengthExceeded = errors.New("crypto: seed length exceeded")
	ErrTooManySeeds          = errors.New("crypto: too many seeds")
	// ErrInvalidSeeds is returned when the seeds hash onto the ed25519 curve,
	// which would make the result an address someone could hold a key for.
	ErrInvalidSeeds = errors.New("crypto: derived address lies on the curve")
	ErrBumpNotFound = errors.New("crypto: unable to find a viable bump")
)

// CreateProgramAddress hashes seeds under programID and returns the address
// only when it falls outside the ed25519 point set.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrTooManySeeds
	}
	h := blake3.New(AddressLength, nil)
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Address{}, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(derivedAddressMarker))

	var addr Address
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr) {
		return Address{}, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress searches bump values from 255 down to 0 and returns the
// first off-curve address together with the bump that produced it.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Address{}, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump
	for b := 255; b >= 0; b-- {
		bump[0] = uint8(b)
		addr, err := CreateProgramAddress(withBump, programID)
		switch {
		case err == nil:
			return addr, uint8(b), nil
		case errors.Is(err, ErrInvalidSeeds):
			continue
		default:
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrBumpNotFound
}

// VerifyProgramAddress re-derives the address from seeds and bump and reports
// whether it equals claimed.
func VerifyProgramAddress(seeds [][]byte, bump uint8, programID Address, claimed Address) bool {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	withBump[len(seeds)] = []byte{bump}
	addr, err := CreateProgramAddress(withBump, programID)
	if err != nil {
		return false
	}
	return addr == claimed
}

// IsOnCurve reports whether addr decodes as a valid compressed ed25519 point.
func IsOnCurve(addr Address) bool {
	_, err := new(edwards25519.Point).SetBytes(addr[:])
	return err == nil
}
