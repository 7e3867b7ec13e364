package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress     string   `toml:"RPCAddress"`
	DataDir        string   `toml:"DataDir"`
	StorageBackend string   `toml:"StorageBackend"`
	GenesisFile    string   `toml:"GenesisFile"`
	ProgramID      string   `toml:"ProgramID"`
	PausedModules  []string `toml:"PausedModules"`

	RPC       RPC       `toml:"rpc"`
	Log       Log       `toml:"log"`
	Telemetry Telemetry `toml:"telemetry"`
	Indexer   Indexer   `toml:"indexer"`
	Quota     Quota     `toml:"quota"`
	Webhook   Webhook   `toml:"webhook"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	if cfg.Webhook.Events == nil {
		cfg.Webhook.Events = []string{}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:     ":8080",
		DataDir:        "./patreonix-data",
		StorageBackend: "leveldb",
		ProgramID:      DefaultProgramID,
		PausedModules:  []string{},
		RPC: RPC{
			MaxConnections:    256,
			RequestsPerMinute: 600,
			Burst:             60,
			ReadHeaderTimeout: 5,
			ReadTimeout:       15,
			WriteTimeout:      15,
			IdleTimeout:       60,
			TrustedProxies:    []string{},
			ReplayWindowSecs:  900,
			OperatorIssuer:    "patreonix-operator",
			OperatorAudience:  "patreonixd",
			OperatorSecretEnv: "PATREONIX_OPERATOR_SECRET",
		},
		Log: Log{
			Env:        "dev",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Telemetry: Telemetry{Traces: true, Metrics: true},
		Indexer:   Indexer{Driver: "sqlite", DSN: "indexer.db"},
		Quota:     Quota{EpochSeconds: 60},
		Webhook:   Webhook{SecretEnv: "PATREONIX_WEBHOOK_SECRET", Events: []string{}},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// IndexerDSN resolves a relative sqlite DSN against the data directory.
func (c *Config) IndexerDSN() string {
	dsn := strings.TrimSpace(c.Indexer.DSN)
	if c.Indexer.Driver == "sqlite" && dsn != "" && dsn != ":memory:" && !filepath.IsAbs(dsn) && !strings.Contains(dsn, "?") {
		return filepath.Join(c.DataDir, dsn)
	}
	return dsn
}
