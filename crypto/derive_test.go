package crypto

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func testProgramID() Address {
	var id Address
	for i := range id {
		id[i] = byte(i + 1)
	}
	return id
}

func TestFindProgramAddressDeterministic(t *testing.T) {
	program := testProgramID()
	seeds := [][]byte{[]byte("state")}

	first, bump, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	second, bump2, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, bump, bump2)
	require.False(t, IsOnCurve(first))
	require.True(t, VerifyProgramAddress(seeds, bump, program, first))
}

func TestFindProgramAddressSeparatesKeys(t *testing.T) {
	program := testProgramID()
	creator, _, err := FindProgramAddress([][]byte{[]byte("creator"), make([]byte, 32)}, program)
	require.NoError(t, err)

	idx := make([]byte, 8)
	seen := map[Address]uint64{}
	for i := uint64(0); i < 32; i++ {
		binary.LittleEndian.PutUint64(idx, i)
		addr, _, err := FindProgramAddress([][]byte{[]byte("content"), creator[:], idx}, program)
		require.NoError(t, err)
		prev, dup := seen[addr]
		require.Falsef(t, dup, "index %d collides with %d", i, prev)
		seen[addr] = i
	}

	var otherProgram Address
	otherProgram[0] = 0xff
	elsewhere, _, err := FindProgramAddress([][]byte{[]byte("creator"), make([]byte, 32)}, otherProgram)
	require.NoError(t, err)
	require.NotEqual(t, creator, elsewhere)
}

func TestVerifyProgramAddressRejectsWrongBump(t *testing.T) {
	program := testProgramID()
	seeds := [][]byte{[]byte("state")}
	addr, bump, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	require.False(t, VerifyProgramAddress(seeds, bump-1, program, addr))
	require.False(t, VerifyProgramAddress([][]byte{[]byte("creator")}, bump, program, addr))
}

func TestCreateProgramAddressLimits(t *testing.T) {
	program := testProgramID()
	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLength+1)}, program)
	require.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	seeds := make([][]byte, MaxSeeds)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	_, _, err = FindProgramAddress(seeds, program)
	require.ErrorIs(t, err, ErrTooManySeeds)
}

func TestIdentityAddressesAreOnCurve(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.True(t, IsOnCurve(key.PubKey().Address()))
}
