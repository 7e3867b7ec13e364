package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"patreonix/config"
	"patreonix/core"
	"patreonix/core/genesis"
	"patreonix/crypto"
	"patreonix/integrations/webhooks"
	nativecommon "patreonix/native/common"
	"patreonix/observability/logging"
	telemetry "patreonix/observability/otel"
	"patreonix/rpc"
	"patreonix/services/indexer"
	"patreonix/storage"
)

const (
	genesisPathEnv      = "PATREONIX_GENESIS"
	webhookDrainTimeout = 10 * time.Second
)

func main() {
	args := os.Args[1:]
	var err error
	if len(args) > 0 && args[0] == "export" {
		err = runExport(args[1:], os.Stdout)
	} else {
		err = runDaemon(args)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "patreonixd: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(args []string) error {
	fs := flag.NewFlagSet("patreonixd", flag.ContinueOnError)
	configFile := fs.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := fs.String("genesis", "", "Path to a genesis YAML or JSON file (overrides PATREONIX_GENESIS and config GenesisFile)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    "patreonixd",
		Env:        cfg.Log.Env,
		Level:      logging.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "patreonixd",
		Environment: cfg.Telemetry.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Attributes:  map[string]string{"patreonix.program_id": strings.TrimSpace(cfg.ProgramID)},
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	node, err := openNode(cfg, logger)
	if err != nil {
		return err
	}
	defer node.Close()

	genesisPath := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if genesisPath != "" {
		spec, err := genesis.LoadSpec(genesisPath)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		if _, err := node.ApplyGenesis(ctx, spec); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
	}

	var search rpc.ContentSearcher
	if cfg.Indexer.Enabled {
		ix, err := openIndexer(ctx, cfg, node, logger)
		if err != nil {
			return err
		}
		defer ix.Close()
		node.AddEmitter(ix)
		search = ix
	}

	if endpoint := strings.TrimSpace(cfg.Webhook.Endpoint); endpoint != "" {
		dispatcher, err := webhooks.NewDispatcher(endpoint, cfg.WebhookSecret(),
			webhooks.WithEventFilter(cfg.Webhook.Events...),
			webhooks.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("webhook: %w (set %s)", err, cfg.Webhook.SecretEnv)
		}
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), webhookDrainTimeout)
			defer cancel()
			if err := dispatcher.Shutdown(drainCtx); err != nil {
				logger.Warn("webhook queue not drained", slog.Uint64("dropped", dispatcher.Dropped()), slog.Any("error", err))
			}
		}()
		node.AddEmitter(dispatcher)
		logger.Info("webhook delivery enabled", logging.MaskField("endpoint", endpoint))
	}

	secret := cfg.OperatorSecret()
	if len(secret) == 0 {
		logger.Warn("operator secret not set; operator methods are disabled",
			slog.String("env", cfg.RPC.OperatorSecretEnv))
	}
	readHeader, read, write, idle := cfg.RPC.Durations()
	server := rpc.NewServer(node, search, rpc.ServerConfig{
		TrustedProxies:    append([]string{}, cfg.RPC.TrustedProxies...),
		MaxConnections:    cfg.RPC.MaxConnections,
		RequestsPerMinute: cfg.RPC.RequestsPerMinute,
		Burst:             cfg.RPC.Burst,
		ReplayWindow:      cfg.RPC.ReplayWindow(),
		Operator: rpc.OperatorConfig{
			Secret:   secret,
			Issuer:   cfg.RPC.OperatorIssuer,
			Audience: cfg.RPC.OperatorAudience,
		},
		ReadHeaderTimeout: readHeader,
		ReadTimeout:       read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
		Logger:            logger,
	})

	rpcErrCh := make(chan error, 1)
	go func() {
		err := server.Start(cfg.RPCAddress)
		rpcErrCh <- err
		close(rpcErrCh)
	}()
	if err := waitForRPCStartup(cfg.RPCAddress, rpcErrCh, 5*time.Second); err != nil {
		return fmt.Errorf("rpc startup: %w", err)
	}
	logger.Info("patreonix registry running",
		slog.String("rpc", cfg.RPCAddress),
		slog.String("program", node.ProgramID().String()),
		slog.String("storage", cfg.StorageBackend))

	select {
	case <-ctx.Done():
	case err, ok := <-rpcErrCh:
		if ok && err != nil {
			logger.Error("RPC server terminated", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("RPC shutdown failed", slog.Any("error", err))
	}
	logger.Info("patreonix registry stopped")
	return nil
}

func openNode(cfg *config.Config, logger *slog.Logger) (*core.Node, error) {
	programID, err := crypto.DecodeAddress(strings.TrimSpace(cfg.ProgramID))
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	node, err := core.NewNode(db, core.Options{
		ProgramID: programID,
		Pauses:    nativecommon.NewSwitch(cfg.PausedModules...),
		Quota: nativecommon.Quota{
			MaxRequestsPerEpoch: cfg.Quota.MaxWritesPerEpoch,
			MaxSpendPerEpoch:    cfg.Quota.MaxSpendPerEpoch,
			EpochSeconds:        cfg.Quota.EpochSeconds,
		},
		Logger: logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return node, nil
}

func openIndexer(ctx context.Context, cfg *config.Config, node *core.Node, logger *slog.Logger) (*indexer.Indexer, error) {
	db, err := indexer.Open(cfg.Indexer.Driver, cfg.IndexerDSN())
	if err != nil {
		return nil, fmt.Errorf("open indexer: %w", err)
	}
	ix, err := indexer.New(db, logger)
	if err != nil {
		return nil, err
	}
	snap, err := node.Snapshot(ctx)
	if err != nil {
		_ = ix.Close()
		return nil, fmt.Errorf("indexer snapshot: %w", err)
	}
	if err := ix.Backfill(ctx, snap.Creators, snap.Contents); err != nil {
		_ = ix.Close()
		return nil, err
	}
	logger.Info("indexer ready",
		slog.String("driver", cfg.Indexer.Driver),
		slog.Int("creators", len(snap.Creators)),
		slog.Int("contents", len(snap.Contents)))
	return ix, nil
}

type envLookupFunc func(string) (string, bool)

// resolveGenesisPath picks the genesis file from the flag, the environment or
// the config file, in that order. An empty result starts an empty registry.
func resolveGenesisPath(cliPath, cfgPath string, lookup envLookupFunc) string {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(cfgPath)
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			return startupExit(err, ok)
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			return startupExit(err, ok)
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func startupExit(err error, ok bool) error {
	if !ok {
		return errors.New("RPC server terminated before startup confirmation")
	}
	if err != nil {
		return err
	}
	return errors.New("RPC server exited before startup confirmation")
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
