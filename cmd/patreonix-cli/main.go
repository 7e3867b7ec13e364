package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"patreonix/cmd/internal/passphrase"
	"patreonix/crypto"
	"patreonix/rpc"
)

const (
	keyPassEnv       = "PATREONIX_KEY_PASSPHRASE"
	operatorTokenEnv = "PATREONIX_OPERATOR_TOKEN"
)

var rpcEndpoint = defaultRPCEndpoint() // overridden via PATREONIX_RPC_URL or --rpc
var operatorToken = os.Getenv(operatorTokenEnv)

// registryRPCCall signs payload with key when one is supplied and invokes
// method. Tests swap it out.
var registryRPCCall = callRegistry

// loadSigner opens the keystore at path. Tests swap it out.
var loadSigner = loadKeystore

var keyPassphrase = passphrase.NewSource(keyPassEnv, "Enter keystore passphrase: ")

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "operator-token":
		return runOperatorToken(args[1:], stdout, stderr)
	case "init":
		return runInit(args[1:], stdout, stderr)
	case "creator":
		return runCreatorCommand(args[1:], stdout, stderr)
	case "content":
		return runContentCommand(args[1:], stdout, stderr)
	case "subscribe":
		return runSubscribe(args[1:], stdout, stderr)
	case "balance":
		return runBalance(args[1:], stdout, stderr)
	case "mint":
		return runMint(args[1:], stdout, stderr)
	case "pause":
		return runPause(args[1:], stdout, stderr)
	case "derive":
		return runDerive(args[1:], stdout, stderr)
	case "state":
		return runSimpleQuery("registry_programState", stdout, stderr)
	case "root":
		return runSimpleQuery("registry_stateRoot", stdout, stderr)
	case "events":
		return runEvents(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("PATREONIX_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func callRegistry(ctx context.Context, method string, key *crypto.PrivateKey, payload interface{}, operator bool) (json.RawMessage, error) {
	client := rpc.NewClient(rpcEndpoint)
	if operator {
		if strings.TrimSpace(operatorToken) == "" {
			return nil, fmt.Errorf("%s must hold an operator token for %s", operatorTokenEnv, method)
		}
		client.Token = strings.TrimSpace(operatorToken)
	}
	var out json.RawMessage
	if key != nil {
		if err := client.CallSigned(ctx, key, method, payload, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if err := client.Call(ctx, method, []interface{}{payload}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func loadKeystore(path string) (*crypto.PrivateKey, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("--key is required")
	}
	if _, err := os.Stat(trimmed); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s not found. run patreonix-cli keygen first", trimmed)
		}
		return nil, err
	}
	pass, err := keyPassphrase.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(trimmed, pass)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt keystore %s: %w", trimmed, err)
	}
	return key, nil
}

// invoke runs one registry call and prints the result or the error. It returns
// the process exit code.
func invoke(stdout, stderr io.Writer, method string, key *crypto.PrivateKey, payload interface{}, operator bool) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result, err := registryRPCCall(ctx, method, key, payload, operator)
	if err != nil {
		return handleCallError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func handleCallError(stderr io.Writer, err error) int {
	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Data != nil {
			fmt.Fprintf(stderr, "Error: %s (%d): %v\n", rpcErr.Message, rpcErr.Code, rpcErr.Data)
		} else {
			fmt.Fprintf(stderr, "Error: %s (%d)\n", rpcErr.Message, rpcErr.Code)
		}
		return 1
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func writeResult(stdout io.Writer, result json.RawMessage) {
	if len(result) == 0 || string(result) == "null" {
		fmt.Fprintln(stdout, "null")
		return
	}
	var pretty interface{}
	if err := json.Unmarshal(result, &pretty); err != nil {
		fmt.Fprintln(stdout, string(result))
		return
	}
	encoded, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Fprintln(stdout, string(result))
		return
	}
	fmt.Fprintln(stdout, string(encoded))
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlags parses args and rejects positional leftovers.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func flagProvided(fs *flag.FlagSet, name string) bool {
	provided := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			provided = true
		}
	})
	return provided
}

func requireFlag(stderr io.Writer, name, value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		fmt.Fprintf(stderr, "Error: --%s is required\n", name)
		return "", false
	}
	return trimmed, true
}

func signerFrom(stderr io.Writer, keyPath string) (*crypto.PrivateKey, bool) {
	key, err := loadSigner(keyPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}
	return key, true
}

func usage() string {
	return strings.TrimSpace(`
Usage: patreonix-cli [--rpc URL] <command> [flags]

Commands:
  keygen          --out FILE                      create an encrypted identity keystore
  operator-token  [--ttl 1h]                      mint an operator token from PATREONIX_OPERATOR_SECRET
  init            --key FILE                      create the registry program state
  creator         register|update|get|deactivate|reactivate|support
  content         create|get|list|comment|search
  subscribe       --key FILE --creator ADDR --amount N
  balance         --addr ADDR
  mint            --addr ADDR --amount N          operator only
  pause           --module NAME [--resume]|--list operator only
  derive          --kind state|creator|content [--authority ADDR] [--creator ADDR] [--index N]
  state                                           show the program state
  root                                            show the state root
  events          [--cursor N] [--type PREFIX]    stream committed events
`)
}
