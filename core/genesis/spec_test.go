package genesis

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"patreonix/crypto"
)

func testAddress(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address()
}

func TestParseSpec(t *testing.T) {
	program, authority, holder := testAddress(t), testAddress(t), testAddress(t)
	doc := fmt.Sprintf(`
programId: %s
authority: %s
balances:
  - address: %s
    amount: "1000000"
`, program, authority, holder)

	spec, err := ParseSpec([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, program, spec.ProgramIDValue())
	got, ok := spec.AuthorityValue()
	require.True(t, ok)
	require.Equal(t, authority, got)
	allocs := spec.Allocations()
	require.Len(t, allocs, 1)
	require.Equal(t, holder, allocs[0].Address)
	require.EqualValues(t, 1_000_000, allocs[0].Amount.Uint64())
	require.Len(t, spec.Digest(), 32)
}

func TestParseSpecRejectsBadInput(t *testing.T) {
	program, holder := testAddress(t), testAddress(t)
	cases := map[string]string{
		"unknown field":   fmt.Sprintf("programId: %s\nvalidators: []\n", program),
		"bad program":     "programId: nhb1xyz\n",
		"zero amount":     fmt.Sprintf("programId: %s\nbalances:\n  - address: %s\n    amount: \"0\"\n", program, holder),
		"duplicate":       fmt.Sprintf("programId: %s\nbalances:\n  - address: %s\n    amount: \"1\"\n  - address: %s\n    amount: \"2\"\n", program, holder, holder),
		"non-decimal amt": fmt.Sprintf("programId: %s\nbalances:\n  - address: %s\n    amount: \"ten\"\n", program, holder),
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSpec([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadSpecFromFile(t *testing.T) {
	program := testAddress(t)
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("programId: "+program.String()+"\n"), 0o600))
	spec, err := LoadSpec(path)
	require.NoError(t, err)
	_, ok := spec.AuthorityValue()
	require.False(t, ok)

	_, err = LoadSpec("")
	require.Error(t, err)
}
