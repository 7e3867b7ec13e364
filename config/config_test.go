package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, "leveldb", cfg.StorageBackend)
	require.Equal(t, DefaultProgramID, cfg.ProgramID)
	require.NoError(t, cfg.Validate())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPC, reloaded.RPC)
	require.Equal(t, cfg.Indexer, reloaded.Indexer)
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = "127.0.0.1:9000"
DataDir = "/var/lib/patreonix"
StorageBackend = "bolt"
ProgramID = "` + DefaultProgramID + `"
PausedModules = ["registry"]

[rpc]
MaxConnections = 32
RequestsPerMinute = 120
Burst = 10
ReplayWindowSeconds = 300
OperatorSecretEnv = "TEST_OPERATOR_SECRET"

[indexer]
Enabled = true
Driver = "postgres"
DSN = "postgres://localhost/patreonix"

[quota]
MaxWritesPerEpoch = 5
EpochSeconds = 60
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.RPCAddress)
	require.Equal(t, "bolt", cfg.StorageBackend)
	require.Equal(t, []string{"registry"}, cfg.PausedModules)
	require.Equal(t, 32, cfg.RPC.MaxConnections)
	require.Equal(t, 120, cfg.RPC.RequestsPerMinute)
	require.EqualValues(t, 300, cfg.RPC.ReplayWindow().Seconds())
	// Unset fields keep their defaults.
	require.Equal(t, "patreonix-operator", cfg.RPC.OperatorIssuer)
	require.True(t, cfg.Indexer.Enabled)
	require.Equal(t, "postgres://localhost/patreonix", cfg.IndexerDSN())
	require.EqualValues(t, 5, cfg.Quota.MaxWritesPerEpoch)

	t.Setenv("TEST_OPERATOR_SECRET", "s3cret")
	require.Equal(t, []byte("s3cret"), cfg.OperatorSecret())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ValidatorKeystorePath = \"x\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ValidatorKeystorePath")
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := Load(path)
	require.NoError(t, err)

	t.Setenv(envRPCAddress, ":9999")
	t.Setenv(envDataDir, "/tmp/override")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.RPCAddress)
	require.Equal(t, "/tmp/override", cfg.DataDir)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.StorageBackend = "rocks" }, "StorageBackend"},
		{"program id", func(c *Config) { c.ProgramID = "nope" }, "ProgramID"},
		{"burst", func(c *Config) { c.RPC.Burst = 0 }, "Burst"},
		{"replay", func(c *Config) { c.RPC.ReplayWindowSecs = 0 }, "ReplayWindowSeconds"},
		{"indexer driver", func(c *Config) { c.Indexer.Enabled = true; c.Indexer.Driver = "mysql" }, "Driver"},
		{"quota epoch", func(c *Config) { c.Quota.MaxWritesPerEpoch = 1; c.Quota.EpochSeconds = 0 }, "EpochSeconds"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "SampleRatio"},
		{"webhook url", func(c *Config) { c.Webhook.Endpoint = "ftp://hooks" }, "Endpoint"},
		{"webhook secret", func(c *Config) { c.Webhook.Endpoint = "https://hooks.example"; c.Webhook.SecretEnv = "" }, "SecretEnv"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestIndexerDSNResolvesAgainstDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"
	require.Equal(t, filepath.Join("/data", "indexer.db"), cfg.IndexerDSN())
	cfg.Indexer.DSN = ":memory:"
	require.Equal(t, ":memory:", cfg.IndexerDSN())
}

func TestWebhookSecretFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("PATREONIX_WEBHOOK_SECRET", "")
	require.Nil(t, cfg.WebhookSecret())
	t.Setenv("PATREONIX_WEBHOOK_SECRET", "  hook-secret ")
	require.Equal(t, []byte("hook-secret"), cfg.WebhookSecret())
}
