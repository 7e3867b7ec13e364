package config

import (
	"os"
	"strings"
)

// DefaultProgramID is the program id of a local development registry
// ("patreonix-registry" zero padded to 32 bytes).
const DefaultProgramID = "ptx1wpshgun9dahxj7pdwfjkw6tnw3e8jqqqqqqqqqqqqqqqqqqqqqqqrtwg02"

const (
	envRPCAddress = "PATREONIX_RPC_ADDRESS"
	envDataDir    = "PATREONIX_DATA_DIR"
	envLogEnv     = "PATREONIX_ENV"
	envIndexerDSN = "PATREONIX_INDEXER_DSN"
)

// applyEnv lets deployments override a handful of fields without editing the
// file.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envRPCAddress)); v != "" {
		cfg.RPCAddress = v
	}
	if v := strings.TrimSpace(os.Getenv(envDataDir)); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(envLogEnv)); v != "" {
		cfg.Log.Env = v
	}
	if v := strings.TrimSpace(os.Getenv(envIndexerDSN)); v != "" {
		cfg.Indexer.DSN = v
	}
}

// OperatorSecret returns the operator token secret from the configured
// environment variable.
func (c *Config) OperatorSecret() []byte {
	name := strings.TrimSpace(c.RPC.OperatorSecretEnv)
	if name == "" {
		return nil
	}
	secret := strings.TrimSpace(os.Getenv(name))
	if secret == "" {
		return nil
	}
	return []byte(secret)
}

// WebhookSecret returns the webhook signing secret from the configured
// environment variable.
func (c *Config) WebhookSecret() []byte {
	name := strings.TrimSpace(c.Webhook.SecretEnv)
	if name == "" {
		return nil
	}
	secret := strings.TrimSpace(os.Getenv(name))
	if secret == "" {
		return nil
	}
	return []byte(secret)
}
