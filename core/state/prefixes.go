package state

import "patreonix/crypto"

var (
	accountPrefix = []byte("acct/")
	balancePrefix = []byte("bal/")
	metaPrefix    = []byte("meta/")
	// noncePrefix holds replay bookkeeping and is excluded from state roots.
	noncePrefix = []byte("nonce/")
)

func accountKey(addr crypto.Address) []byte {
	return prefixed(accountPrefix, addr[:])
}

func balanceKey(addr crypto.Address) []byte {
	return prefixed(balancePrefix, addr[:])
}

func metaKey(name string) []byte {
	return prefixed(metaPrefix, []byte(name))
}

func prefixed(prefix, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return buf
}

// AccountPrefix exposes the account keyspace for iteration and state roots.
func AccountPrefix() []byte {
	return append([]byte(nil), accountPrefix...)
}

// RootPrefixes lists the keyspaces that make up the registry state root.
func RootPrefixes() [][]byte {
	return [][]byte{
		append([]byte(nil), accountPrefix...),
		append([]byte(nil), balancePrefix...),
		append([]byte(nil), metaPrefix...),
	}
}
