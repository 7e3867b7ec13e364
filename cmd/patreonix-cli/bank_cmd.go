package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/holiman/uint256"
)

func runSubscribe(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("subscribe", stderr)
	keyPath := fs.String("key", "", "keystore of the subscriber")
	creatorAddr := fs.String("creator", "", "creator record address")
	amount := fs.Uint64("amount", 0, "tokens transferred to the creator authority")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "creator", *creatorAddr)
	if !ok {
		return 1
	}
	if *amount == 0 {
		fmt.Fprintln(stderr, "Error: --amount must be positive")
		return 1
	}
	key, ok := signerFrom(stderr, *keyPath)
	if !ok {
		return 1
	}
	return invoke(stdout, stderr, "registry_subscribe", key, map[string]interface{}{"creator": addr, "amount": *amount}, false)
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
	address := fs.String("addr", "", "account address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "addr", *address)
	if !ok {
		return 1
	}
	return invoke(stdout, stderr, "bank_balance", nil, map[string]interface{}{"address": addr}, false)
}

func runMint(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("mint", stderr)
	address := fs.String("addr", "", "account to credit")
	amount := fs.String("amount", "", "amount in base units (decimal or 0x hex)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "addr", *address)
	if !ok {
		return 1
	}
	raw, ok := requireFlag(stderr, "amount", *amount)
	if !ok {
		return 1
	}
	value, err := parseAmount(raw)
	if err != nil || value.IsZero() {
		fmt.Fprintf(stderr, "Error: invalid amount %q\n", raw)
		return 1
	}
	return invoke(stdout, stderr, "bank_mint", nil, map[string]interface{}{"address": addr, "amount": value.Dec()}, true)
}

func parseAmount(raw string) (*uint256.Int, error) {
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		return uint256.FromHex(raw)
	}
	return uint256.FromDecimal(raw)
}

func runDerive(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("derive", stderr)
	kind := fs.String("kind", "", "state, creator or content")
	authority := fs.String("authority", "", "creator authority (kind=creator)")
	creatorAddr := fs.String("creator", "", "creator record address (kind=content)")
	index := fs.Uint64("index", 0, "content index (kind=content)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	k, ok := requireFlag(stderr, "kind", *kind)
	if !ok {
		return 1
	}
	payload := map[string]interface{}{"kind": k}
	switch strings.ToLower(k) {
	case "state":
	case "creator":
		a, ok := requireFlag(stderr, "authority", *authority)
		if !ok {
			return 1
		}
		payload["authority"] = a
	case "content":
		c, ok := requireFlag(stderr, "creator", *creatorAddr)
		if !ok {
			return 1
		}
		payload["creator"] = c
		payload["index"] = *index
	default:
		fmt.Fprintf(stderr, "Error: unknown kind %q\n", k)
		return 1
	}
	return invoke(stdout, stderr, "registry_deriveAddress", nil, payload, false)
}

func runSimpleQuery(method string, stdout, stderr io.Writer) int {
	return invoke(stdout, stderr, method, nil, map[string]interface{}{}, false)
}

func runPause(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("pause", stderr)
	module := fs.String("module", "", "module to pause (registry)")
	resume := fs.Bool("resume", false, "resume the module instead of pausing it")
	list := fs.Bool("list", false, "only list paused modules")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *list {
		return invoke(stdout, stderr, "admin_pauses", nil, map[string]interface{}{}, true)
	}
	name, ok := requireFlag(stderr, "module", *module)
	if !ok {
		return 1
	}
	return invoke(stdout, stderr, "admin_setPaused", nil, map[string]interface{}{"module": name, "paused": !*resume}, true)
}
