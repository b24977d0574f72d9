// Command hub runs the snapshot hub: it accepts signed off-chain
// governance messages, records them exactly once and relays them to the
// content store and peer hubs.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/pollsterdev/snapshot-hub/pkg/api"
	"github.com/pollsterdev/snapshot-hub/pkg/config"
	"github.com/pollsterdev/snapshot-hub/pkg/crypto"
	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
	"github.com/pollsterdev/snapshot-hub/pkg/gossip"
	"github.com/pollsterdev/snapshot-hub/pkg/limiter"
	"github.com/pollsterdev/snapshot-hub/pkg/observability"
	"github.com/pollsterdev/snapshot-hub/pkg/pin"
	"github.com/pollsterdev/snapshot-hub/pkg/pipeline"
	"github.com/pollsterdev/snapshot-hub/pkg/schema"
	"github.com/pollsterdev/snapshot-hub/pkg/spaces"
	"github.com/pollsterdev/snapshot-hub/pkg/store"
	"github.com/pollsterdev/snapshot-hub/pkg/writer"
)

// hubStore is everything the hub needs from a store backend.
type hubStore interface {
	writer.Store
	spaces.Store
	api.Store
	Migrate(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		slog.Error("hub exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		provider, err := observability.Init(ctx, observability.Config{
			ServiceName:    "snapshot-hub",
			ServiceVersion: cfg.ProtocolVersion,
			Environment:    cfg.Network,
			Endpoint:       cfg.OTLPEndpoint,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	registry := spaces.NewRegistry(st, log, cfg.SpaceRefreshInterval, cfg.ActiveCountInterval)
	go registry.Run(ctx)

	relayer, err := loadRelayer(cfg, log)
	if err != nil {
		return err
	}

	var pins pin.ContentStore
	if cfg.PinURL != "" {
		pins = pin.NewClient(cfg.PinURL, cfg.PinAPIKey)
	} else {
		log.Warn("no pinning service configured, using in-process content store")
		pins = pin.NewMemory()
	}

	var objects pin.ObjectStore
	if cfg.S3Bucket != "" {
		objects, err = pin.NewS3Store(ctx, pin.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return fmt.Errorf("init settings registry store: %w", err)
		}
	}

	schemas, err := schema.NewValidator()
	if err != nil {
		return err
	}

	writers := writer.NewRegistry()
	writers.Register("propose", writer.NewPropose(st, registry, schemas))
	writers.Register("vote", writer.NewVote(st, schemas))
	writers.Register("update-settings", writer.NewSettings(st, registry, registry, schemas, objects, log))
	writers.Register("delete-proposal", writer.NewDeleteProposal(st, registry))

	validator := envelope.NewValidator(cfg.ProtocolVersion, registry, writers)
	broadcaster := gossip.New(cfg.Peers, log)
	pl := pipeline.New(validator, writers, relayer, pins, broadcaster, log)

	var limits limiter.Store
	if cfg.RedisAddr != "" {
		limits = limiter.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RateRPS, cfg.RateBurst)
	} else {
		limits = limiter.NewLocal(cfg.RateRPS, cfg.RateBurst)
	}

	server := api.NewServer(cfg, log, registry, st, pl, relayer.Address(), limits)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("snapshot hub started", "port", cfg.Port, "network", cfg.Network, "relayer", relayer.Address())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	broadcaster.Flush()
	return nil
}

func openStore(cfg *config.Config) (hubStore, func(), error) {
	switch cfg.DatabaseDriver {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store.NewSQLite(db), func() { _ = db.Close() }, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return store.NewPostgres(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
}

func loadRelayer(cfg *config.Config, log *slog.Logger) (*crypto.Relayer, error) {
	if cfg.RelayerKey != "" {
		return crypto.NewRelayer(cfg.RelayerKey)
	}
	log.Warn("RELAYER_PK not set, generating an ephemeral relayer key")
	return crypto.GenerateRelayer()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
