package creator

import (
	"encoding/binary"
	"errors"

	"patreonix/crypto"
)

var (
	stateSeed   = []byte("state")
	creatorSeed = []byte("creator")
	contentSeed = []byte("content")
)

func indexSeed(index uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, index)
	return buf
}

func creatorSeeds(authority crypto.Address) [][]byte {
	return [][]byte{creatorSeed, authority[:]}
}

func contentSeeds(creator crypto.Address, index uint64) [][]byte {
	return [][]byte{contentSeed, creator[:], indexSeed(index)}
}

// StateAddress derives the address of the ProgramState singleton.
func StateAddress(programID crypto.Address) (crypto.Address, uint8, error) {
	return derive([][]byte{stateSeed}, programID)
}

// CreatorAddress derives the creator record address of an identity.
func CreatorAddress(programID, authority crypto.Address) (crypto.Address, uint8, error) {
	return derive(creatorSeeds(authority), programID)
}

// ContentAddress derives the address of the index-th content of a creator
// record.
func ContentAddress(programID, creator crypto.Address, index uint64) (crypto.Address, uint8, error) {
	return derive(contentSeeds(creator, index), programID)
}

func derive(seeds [][]byte, programID crypto.Address) (crypto.Address, uint8, error) {
	addr, bump, err := crypto.FindProgramAddress(seeds, programID)
	if errors.Is(err, crypto.ErrBumpNotFound) {
		return crypto.Address{}, 0, ErrBumpNotFound
	}
	if err != nil {
		return crypto.Address{}, 0, ErrInvalidAddress
	}
	return addr, bump, nil
}
