// Package governanced parses governance daemon flags and launches the service.
package governanced

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	governancecache "github.com/louisbranch/alphasignal/internal/governance/cache"
	"github.com/louisbranch/alphasignal/internal/governance/guard"
	"github.com/louisbranch/alphasignal/internal/governance/observability/audit"
	"github.com/louisbranch/alphasignal/internal/governance/readiness"
	"github.com/louisbranch/alphasignal/internal/governance/registry"
	"github.com/louisbranch/alphasignal/internal/governance/rollback"
	"github.com/louisbranch/alphasignal/internal/governance/runtime"
	"github.com/louisbranch/alphasignal/internal/governance/storage/sqlite"
	"github.com/louisbranch/alphasignal/internal/governance/workflow"
	entrypoint "github.com/louisbranch/alphasignal/internal/platform/cmd"
)

// Config holds governanced command configuration.
type Config struct {
	MetricsPort int    `env:"ALPHASIGNAL_GOVERNANCE_METRICS_PORT" envDefault:"9181"`
	DBPath      string `env:"ALPHASIGNAL_GOVERNANCE_DB_PATH" envDefault:"data/governance.db"`
	// RedisAddr selects the shared calibration map cache. Empty runs the
	// in-process memory cache.
	RedisAddr string `env:"ALPHASIGNAL_GOVERNANCE_REDIS_ADDR" envDefault:""`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "The Prometheus metrics port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to the governance sqlite database")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the calibration map cache (empty = in-memory)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Services bundles the wired governance services for the daemon lifetime.
type Services struct {
	Store      *sqlite.Store
	Registry   *registry.Service
	Rollback   *rollback.Service
	Runtime    *runtime.Runtime
	Promotion  *workflow.Promotion
	Activation *workflow.Activation
	Readiness  *workflow.Readiness
	Emitter    *audit.Emitter
}

// Wire builds the governance service graph over the configured storage.
func Wire(cfg Config, logger *slog.Logger) (*Services, error) {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open governance store: %w", err)
	}

	emitter := audit.NewEmitter(store, logger)

	var mapCache governancecache.MapCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		mapCache = governancecache.NewRedis(client, governancecache.DefaultTTL)
	} else {
		mapCache = governancecache.NewMemory(governancecache.DefaultTTL)
	}

	rt := runtime.New(store, mapCache, emitter)
	reg := registry.New(store, emitter)
	return &Services{
		Store:      store,
		Registry:   reg,
		Rollback:   rollback.New(store, emitter),
		Runtime:    rt,
		Promotion:  workflow.NewPromotion(reg, store, emitter, workflow.DefaultPromotionConfig()),
		Activation: workflow.NewActivation(store, store, store, emitter, rt, guard.DefaultConfig()),
		Readiness:  workflow.NewReadiness(store, readiness.DefaultConfig()),
		Emitter:    emitter,
	}, nil
}

// Run starts the governance daemon: it wires the services, serves Prometheus
// metrics, and blocks until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGovernanced, func(ctx context.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		services, err := Wire(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = services.Store.Close() }()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		logger.Info("governanced started",
			slog.Int("metrics_port", cfg.MetricsPort),
			slog.String("db_path", cfg.DBPath))

		select {
		case err := <-errCh:
			return fmt.Errorf("metrics server: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", slog.String("error", err.Error()))
		}
		logger.Info("governanced stopped")
		return nil
	})
}
