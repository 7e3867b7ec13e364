package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"patreonix/cmd/internal/passphrase"
	"patreonix/core"
	"patreonix/crypto"
	"patreonix/rpc"
	"patreonix/storage"
)

type recordedCall struct {
	method   string
	signed   bool
	payload  map[string]interface{}
	operator bool
}

func stubRPC(t *testing.T, respond func(method string) (json.RawMessage, error)) *[]recordedCall {
	t.Helper()
	calls := &[]recordedCall{}
	original := registryRPCCall
	registryRPCCall = func(_ context.Context, method string, key *crypto.PrivateKey, payload interface{}, operator bool) (json.RawMessage, error) {
		m, _ := payload.(map[string]interface{})
		*calls = append(*calls, recordedCall{method: method, signed: key != nil, payload: m, operator: operator})
		if respond != nil {
			return respond(method)
		}
		return json.RawMessage(`{"ok":true}`), nil
	}
	t.Cleanup(func() { registryRPCCall = original })
	return calls
}

func stubSigner(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	original := loadSigner
	loadSigner = func(path string) (*crypto.PrivateKey, error) {
		if path == "" {
			t.Fatalf("expected --key to be forwarded")
		}
		return key, nil
	}
	t.Cleanup(func() { loadSigner = original })
	return key
}

func TestArgValidationDoesNotCallRPC(t *testing.T) {
	registryRPCCall = func(_ context.Context, method string, _ *crypto.PrivateKey, _ interface{}, _ bool) (json.RawMessage, error) {
		t.Fatalf("unexpected RPC call for method %s", method)
		return nil, nil
	}
	defer func() { registryRPCCall = callRegistry }()

	cases := []struct {
		args []string
		want string
	}{
		{[]string{"creator", "register", "--key", "k"}, "Error: --name is required\n"},
		{[]string{"creator", "update", "--key", "k", "--creator", "c"}, "Error: at least one of --name, --email, --bio or --avatar is required\n"},
		{[]string{"content", "get"}, "Error: --creator or --address is required\n"},
		{[]string{"content", "create", "--creator", "c", "--title", "t", "--type", "pdf"}, "Error: unknown content type \"pdf\"\n"},
		{[]string{"subscribe", "--key", "k", "--creator", "c"}, "Error: --amount must be positive\n"},
		{[]string{"mint", "--addr", "a", "--amount", "zero"}, "Error: invalid amount \"zero\"\n"},
		{[]string{"derive", "--kind", "vault"}, "Error: unknown kind \"vault\"\n"},
		{[]string{"balance", "extra"}, "Error: unexpected positional arguments\n"},
	}
	for _, tc := range cases {
		t.Run(strings.Join(tc.args, "_"), func(t *testing.T) {
			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}
			if exit := run(tc.args, stdout, stderr); exit != 1 {
				t.Fatalf("unexpected exit code %d", exit)
			}
			if stdout.Len() != 0 {
				t.Fatalf("expected empty stdout, got %q", stdout.String())
			}
			if got := stderr.String(); got != tc.want {
				t.Fatalf("stderr mismatch\n got: %q\nwant: %q", got, tc.want)
			}
		})
	}
}

func TestCreatorUpdateSendsOnlyProvidedFields(t *testing.T) {
	calls := stubRPC(t, nil)
	stubSigner(t)

	stdout := &bytes.Buffer{}
	exit := run([]string{"creator", "update", "--key", "k", "--creator", "ptx1c", "--bio", "", "--name", "New"}, stdout, &bytes.Buffer{})
	require.Equal(t, 0, exit)
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, "registry_updateCreator", call.method)
	require.True(t, call.signed)
	require.Equal(t, map[string]interface{}{"creator": "ptx1c", "name": "New", "bio": ""}, call.payload)
	require.Contains(t, stdout.String(), `"ok": true`)
}

func TestCreatorGetPublicWithoutKey(t *testing.T) {
	calls := stubRPC(t, nil)
	require.Equal(t, 0, run([]string{"creator", "get", "--creator", "ptx1c"}, &bytes.Buffer{}, &bytes.Buffer{}))
	require.Equal(t, "registry_getCreatorPublic", (*calls)[0].method)
	require.False(t, (*calls)[0].signed)
}

func TestContentCreateUsesNextIndex(t *testing.T) {
	calls := stubRPC(t, func(method string) (json.RawMessage, error) {
		if method == "registry_getCreatorPublic" {
			return json.RawMessage(`{"totalContent":3}`), nil
		}
		return json.RawMessage(`{}`), nil
	})
	stubSigner(t)

	bodyPath := filepath.Join(t.TempDir(), "body.md")
	require.NoError(t, os.WriteFile(bodyPath, []byte("# hello"), 0o600))
	exit := run([]string{"content", "create", "--key", "k", "--creator", "ptx1c", "--title", " Ep ", "--type", "VIDEO", "--body-file", bodyPath}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Equal(t, 0, exit)
	require.Len(t, *calls, 2)
	create := (*calls)[1]
	require.Equal(t, "registry_createContent", create.method)
	require.EqualValues(t, 3, create.payload["contentIndex"])
	require.Equal(t, "video", create.payload["contentType"])
	require.Equal(t, "Ep", create.payload["title"])
	require.Equal(t, "# hello", create.payload["content"])
}

func TestPauseCommand(t *testing.T) {
	calls := stubRPC(t, nil)
	require.Equal(t, 1, run([]string{"pause"}, &bytes.Buffer{}, &bytes.Buffer{}))
	require.Equal(t, 0, run([]string{"pause", "--module", "registry", "--resume"}, &bytes.Buffer{}, &bytes.Buffer{}))
	require.Equal(t, 0, run([]string{"pause", "--list"}, &bytes.Buffer{}, &bytes.Buffer{}))
	require.Len(t, *calls, 2)
	require.Equal(t, "admin_setPaused", (*calls)[0].method)
	require.True(t, (*calls)[0].operator)
	require.Equal(t, false, (*calls)[0].payload["paused"])
	require.Equal(t, "admin_pauses", (*calls)[1].method)
}

func TestMintIsOperatorCall(t *testing.T) {
	calls := stubRPC(t, nil)
	require.Equal(t, 0, run([]string{"mint", "--addr", "ptx1a", "--amount", "0x10"}, &bytes.Buffer{}, &bytes.Buffer{}))
	call := (*calls)[0]
	require.Equal(t, "bank_mint", call.method)
	require.True(t, call.operator)
	require.False(t, call.signed)
	require.Equal(t, "16", call.payload["amount"])
}

func TestRPCErrorIsPrinted(t *testing.T) {
	stubRPC(t, func(string) (json.RawMessage, error) {
		return nil, &rpc.RPCError{Code: 6011, Message: "InvalidContentIndex", Data: "content index must equal the creator's total content"}
	})
	stderr := &bytes.Buffer{}
	require.Equal(t, 1, run([]string{"content", "list", "--creator", "ptx1c"}, &bytes.Buffer{}, stderr))
	require.Equal(t, "Error: InvalidContentIndex (6011): content index must equal the creator's total content\n", stderr.String())
}

func TestEventsURL(t *testing.T) {
	got, err := eventsURL("http://localhost:8080", "5", "content.")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/ws/events?cursor=5&type=content.", got)
	got, err = eventsURL("https://node.example/rpc/", "", "")
	require.NoError(t, err)
	require.Equal(t, "wss://node.example/rpc/ws/events", got)
	_, err = eventsURL("ftp://node", "", "")
	require.Error(t, err)
}

func TestOperatorTokenRequiresSecret(t *testing.T) {
	t.Setenv(operatorSecretEnv, "")
	stderr := &bytes.Buffer{}
	require.Equal(t, 1, run([]string{"operator-token"}, &bytes.Buffer{}, stderr))
	require.Contains(t, stderr.String(), operatorSecretEnv)

	t.Setenv(operatorSecretEnv, "s3cret")
	stdout := &bytes.Buffer{}
	require.Equal(t, 0, run([]string{"operator-token", "--ttl", "5m"}, stdout, &bytes.Buffer{}))
	require.Len(t, strings.Split(strings.TrimSpace(stdout.String()), "."), 3)
}

func TestKeygenWritesKeystore(t *testing.T) {
	t.Setenv(keyPassEnv, "correct horse")
	original := keyPassphrase
	keyPassphrase = passphrase.NewSource(keyPassEnv, "")
	defer func() { keyPassphrase = original }()

	var savedPath string
	var savedKey *crypto.PrivateKey
	originalSave := saveKeystore
	saveKeystore = func(path string, key *crypto.PrivateKey, pass string) error {
		require.Equal(t, "correct horse", pass)
		savedPath, savedKey = path, key
		return nil
	}
	defer func() { saveKeystore = originalSave }()

	stdout := &bytes.Buffer{}
	target := filepath.Join(t.TempDir(), "id.json")
	require.Equal(t, 0, run([]string{"keygen", "--out", target}, stdout, &bytes.Buffer{}))
	require.Equal(t, target, savedPath)
	require.Equal(t, savedKey.PubKey().Address().String()+"\n", stdout.String())
}

func TestCallRegistryAgainstNode(t *testing.T) {
	var programID crypto.Address
	copy(programID[:], "patreonix-registry")
	node, err := core.NewNode(storage.NewMemDB(), core.Options{ProgramID: programID})
	require.NoError(t, err)
	defer node.Close()
	server := httptest.NewServer(rpc.NewServer(node, nil, rpc.ServerConfig{}).Handler())
	defer server.Close()

	original := rpcEndpoint
	rpcEndpoint = server.URL
	defer func() { rpcEndpoint = original }()

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	ctx := context.Background()
	_, err = callRegistry(ctx, "registry_initialize", key, map[string]interface{}{}, false)
	require.NoError(t, err)
	raw, err := callRegistry(ctx, "registry_registerCreator", key, map[string]interface{}{"name": "Cli"}, false)
	require.NoError(t, err)
	var info struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(raw, &info))
	require.Equal(t, "Cli", info.Name)

	_, err = callRegistry(ctx, "indexer_searchContent", nil, map[string]interface{}{"query": "x"}, false)
	var rpcErr *rpc.RPCError
	require.ErrorAs(t, err, &rpcErr)

	originalToken := operatorToken
	operatorToken = ""
	defer func() { operatorToken = originalToken }()
	_, err = callRegistry(ctx, "bank_mint", nil, map[string]interface{}{}, true)
	require.ErrorContains(t, err, operatorTokenEnv)
}
