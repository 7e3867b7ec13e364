package config

import (
	"fmt"
	"net/url"
	"strings"

	"patreonix/crypto"
)

var (
	storageBackends = map[string]struct{}{"leveldb": {}, "bolt": {}, "memory": {}}
	indexerDrivers  = map[string]struct{}{"sqlite": {}, "postgres": {}}
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must be set")
	}
	if strings.TrimSpace(c.DataDir) == "" && c.StorageBackend != "memory" {
		return fmt.Errorf("DataDir must be set")
	}
	if _, ok := storageBackends[c.StorageBackend]; !ok {
		return fmt.Errorf("StorageBackend %q: expected leveldb, bolt or memory", c.StorageBackend)
	}
	if _, err := crypto.DecodeAddress(strings.TrimSpace(c.ProgramID)); err != nil {
		return fmt.Errorf("ProgramID: %w", err)
	}
	if c.RPC.MaxConnections < 0 {
		return fmt.Errorf("rpc: MaxConnections must not be negative")
	}
	if c.RPC.RequestsPerMinute < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RequestsPerMinute > 0 && c.RPC.Burst == 0 {
		return fmt.Errorf("rpc: Burst must be positive when RequestsPerMinute is set")
	}
	if c.RPC.ReplayWindowSecs <= 0 {
		return fmt.Errorf("rpc: ReplayWindowSeconds must be positive")
	}
	if c.Indexer.Enabled {
		if _, ok := indexerDrivers[c.Indexer.Driver]; !ok {
			return fmt.Errorf("indexer: Driver %q: expected sqlite or postgres", c.Indexer.Driver)
		}
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: DSN must be set")
		}
	}
	if c.Quota.MaxWritesPerEpoch > 0 && c.Quota.EpochSeconds == 0 {
		return fmt.Errorf("quota: EpochSeconds must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	if c.Webhook.Endpoint != "" {
		u, err := url.Parse(c.Webhook.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook: Endpoint %q must be an absolute http(s) URL", c.Webhook.Endpoint)
		}
		if strings.TrimSpace(c.Webhook.SecretEnv) == "" {
			return fmt.Errorf("webhook: SecretEnv must be set when Endpoint is configured")
		}
	}
	return nil
}
