package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"patreonix/crypto"
	"patreonix/rpc"
)

const operatorSecretEnv = "PATREONIX_OPERATOR_SECRET"

var saveKeystore = crypto.SaveToKeystore

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	out := fs.String("out", "", "keystore file to create")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	path, ok := requireFlag(stderr, "out", *out)
	if !ok {
		return 1
	}
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(stderr, "Error: %s already exists; pass --force to overwrite\n", path)
		return 1
	}
	pass, err := keyPassphrase.Get()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := saveKeystore(path, key, pass); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return 0
}

func runOperatorToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("operator-token", stderr)
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	issuer := fs.String("issuer", "patreonix-operator", "token issuer")
	audience := fs.String("audience", "patreonixd", "token audience")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	secret := strings.TrimSpace(os.Getenv(operatorSecretEnv))
	if secret == "" {
		fmt.Fprintf(stderr, "Error: %s is not set\n", operatorSecretEnv)
		return 1
	}
	if *ttl <= 0 {
		fmt.Fprintln(stderr, "Error: --ttl must be positive")
		return 1
	}
	token, err := rpc.NewOperatorToken([]byte(secret), *issuer, *audience, *ttl, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}
