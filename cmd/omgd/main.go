package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/omgd/omgd/internal/audit"
	"github.com/omgd/omgd/internal/backend"
	"github.com/omgd/omgd/internal/cache"
	"github.com/omgd/omgd/internal/config"
	"github.com/omgd/omgd/internal/daemon"
	"github.com/omgd/omgd/internal/index"
	"github.com/omgd/omgd/internal/metrics"
	"github.com/omgd/omgd/internal/ratelimit"
)

func main() {
	fs := flag.NewFlagSet("omgd", flag.ExitOnError)
	cfg := config.RegisterFlags(fs)
	shutdownSecs := fs.Int("shutdown-secs", 5, "graceful shutdown timeout in seconds")
	_ = fs.Parse(os.Args[1:])

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "omgd").Logger()

	backendImpl := backend.NewFixture(cfg.TestDistro)
	backendTag := "fixture:" + cfg.TestDistro
	if !cfg.TestMode {
		logger.Warn().Msg("omgd: no system package-manager backend is wired in this build; serving the deterministic fixture regardless of -test-mode")
	}

	ctx := context.Background()
	pkgs, err := backendImpl.ListAvailable(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("omgd: failed to build initial index")
	}

	auditLog, err := audit.Open(cfg.AuditLogPath(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("omgd: failed to open audit log")
	}

	deps := daemon.Deps{
		Backend:               backendImpl,
		BackendTag:            backendTag,
		Index:                 index.NewHandle(index.Build(pkgs)),
		Cache:                 cache.NewStore(cache.New(cfg.CacheCapacity)),
		Metrics:               metrics.Global(),
		Audit:                 auditLog,
		AuditPath:             cfg.AuditLogPath(),
		Limiter:               ratelimit.NewDefault(),
		Log:                   logger,
		MaxBatchSize:          cfg.MaxBatchSize,
		MaxLimit:              1000,
		MaxBackendConcurrency: cfg.MaxBackendConcurrency,
	}
	dispatcher := daemon.NewDispatcher(deps)

	supervisor := daemon.NewSupervisor(*cfg, dispatcher, auditLog, daemon.SupervisorOptions{
		Logger: logger,
	})

	if err := supervisor.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("omgd: failed to start")
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals
	logger.Info().Str("signal", sig.String()).Msg("omgd: received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(*shutdownSecs)*time.Second)
	defer cancel()
	if err := supervisor.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("omgd: graceful shutdown error")
	}
	logger.Info().Msg("omgd: stopped")
}
