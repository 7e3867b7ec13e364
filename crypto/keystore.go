package crypto

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// keyFile is the on-disk layout of an encrypted identity.
type keyFile struct {
	Address string              `json:"address"`
	Crypto  keystore.CryptoJSON `json:"crypto"`
	Version int                 `json:"version"`
}

const keyFileVersion = 1

// SaveToKeystore encrypts the key seed with scrypt/aes-128-ctr and writes it
// to path. The parent directory is created with 0700 permissions.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	return saveToKeystore(path, key, passphrase, keystore.StandardScryptN, keystore.StandardScryptP)
}

func saveToKeystore(path string, key *PrivateKey, passphrase string, scryptN, scryptP int) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	cj, err := keystore.EncryptDataV3(key.Bytes(), []byte(passphrase), scryptN, scryptP)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(keyFile{
		Address: key.PubKey().Address().String(),
		Crypto:  cj,
		Version: keyFileVersion,
	}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFromKeystore decrypts a keystore file using the supplied passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, err
	}
	seed, err := keystore.DecryptDataV3(kf.Crypto, passphrase)
	if err != nil {
		return nil, err
	}
	key, err := PrivateKeyFromBytes(seed)
	if err != nil {
		return nil, err
	}
	if kf.Address != "" && kf.Address != key.PubKey().Address().String() {
		return nil, errors.New("crypto: keystore address does not match decrypted key")
	}
	return key, nil
}
