package config

import "time"

// RPC controls the JSON-RPC listener.
type RPC struct {
	MaxConnections    int      `toml:"MaxConnections"`
	RequestsPerMinute int      `toml:"RequestsPerMinute"`
	Burst             int      `toml:"Burst"`
	ReadHeaderTimeout int      `toml:"ReadHeaderTimeout"`
	ReadTimeout       int      `toml:"ReadTimeout"`
	WriteTimeout      int      `toml:"WriteTimeout"`
	IdleTimeout       int      `toml:"IdleTimeout"`
	TrustedProxies    []string `toml:"TrustedProxies"`
	ReplayWindowSecs  int      `toml:"ReplayWindowSeconds"`
	OperatorIssuer    string   `toml:"OperatorIssuer"`
	OperatorAudience  string   `toml:"OperatorAudience"`
	// OperatorSecretEnv names the environment variable holding the HS256
	// secret used to verify operator tokens. The secret never lives in the file.
	OperatorSecretEnv string `toml:"OperatorSecretEnv"`
}

// Durations returns the configured HTTP server timeouts.
func (r RPC) Durations() (readHeader, read, write, idle time.Duration) {
	sec := func(v int) time.Duration { return time.Duration(v) * time.Second }
	return sec(r.ReadHeaderTimeout), sec(r.ReadTimeout), sec(r.WriteTimeout), sec(r.IdleTimeout)
}

// ReplayWindow is how long a signed request is remembered.
func (r RPC) ReplayWindow() time.Duration {
	return time.Duration(r.ReplayWindowSecs) * time.Second
}

// Log configures structured logging.
type Log struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters. An empty endpoint disables them.
type Telemetry struct {
	Endpoint    string            `toml:"Endpoint"`
	Insecure    bool              `toml:"Insecure"`
	Headers     map[string]string `toml:"Headers"`
	Traces      bool              `toml:"Traces"`
	Metrics     bool              `toml:"Metrics"`
	Environment string            `toml:"Environment"`
	SampleRatio float64           `toml:"SampleRatio"`
}

// Indexer configures the SQL mirror used for content search.
type Indexer struct {
	Enabled bool   `toml:"Enabled"`
	Driver  string `toml:"Driver"`
	DSN     string `toml:"DSN"`
}

// Quota defines the per-identity limit on mutating registry calls.
type Quota struct {
	MaxWritesPerEpoch uint32 `toml:"MaxWritesPerEpoch"`
	MaxSpendPerEpoch  uint64 `toml:"MaxSpendPerEpoch"`
	EpochSeconds      uint32 `toml:"EpochSeconds"`
}

// Webhook forwards committed registry events to an external endpoint. An
// empty Endpoint disables delivery.
type Webhook struct {
	Endpoint  string   `toml:"Endpoint"`
	SecretEnv string   `toml:"SecretEnv"`
	Events    []string `toml:"Events"`
}
