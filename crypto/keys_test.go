package crypto

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address()

	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, AddressPrefix+"1"))

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr, decoded)
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	var raw Address
	raw[0] = 7
	conv, err := convertForTest(raw[:])
	require.NoError(t, err)
	_, err = DecodeAddress(conv)
	require.ErrorIs(t, err, ErrInvalidAddressPrefix)
}

func TestSignVerify(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	msg := []byte("registry_createContent\n{}")
	sig := key.Sign(msg)

	require.NoError(t, Verify(key.PubKey().Address(), msg, sig))
	require.ErrorIs(t, Verify(key.PubKey().Address(), []byte("tampered"), sig), ErrInvalidSignature)

	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.ErrorIs(t, Verify(other.PubKey().Address(), msg, sig), ErrInvalidSignature)
}

func TestPrivateKeyFromBytes(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address(), restored.PubKey().Address())

	_, err = PrivateKeyFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "creator.json")

	require.NoError(t, saveToKeystore(path, key, "hunter2", keystore.LightScryptN, keystore.LightScryptP))

	loaded, err := LoadFromKeystore(path, "hunter2")
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address(), loaded.PubKey().Address())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}

func convertForTest(b []byte) (string, error) {
	conv, err := bech32.ConvertBits(b, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode("xyz", conv)
}
