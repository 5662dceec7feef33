package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongo "tourbook/internal/clients/mongo" // mongo client singleton
	"tourbook/internal/config"
	"tourbook/internal/logger"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Create bootstrap logger for early errors
	bootstrapLog := log.New(os.Stderr, "bootstrap: ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		bootstrapLog.Printf("config load failed: %v", err)
		os.Exit(1)
	}

	logg, err := logger.Init(cfg)
	if err != nil {
		bootstrapLog.Printf("logger init failed: %v", err)
		os.Exit(1)
	}

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logg.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		logg.Warn("failed to set GOMAXPROCS", "err", err)
	}

	profiler := startProfiler(cfg, logg)

	_, db, err := mongo.Init(ctx, cfg, logg)
	if err != nil {
		logg.Error("mongo init", "err", err)
		os.Exit(1)
	}
	logg.Info("connected to mongo", "db", db.Name())

	deps, closers, err := buildDeps(ctx, cfg, db, logg)
	if err != nil {
		logg.Error("wiring failed", "err", err)
		os.Exit(1)
	}

	logg.Info("starting Tourbook", "port", cfg.AppPort, "env", cfg.AppEnv)

	// Setup router and start server
	app := setupRouter(cfg, deps)
	portStr := fmt.Sprintf(":%d", cfg.AppPort)

	g.Go(func() error {
		err := app.Listen(portStr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logg.Warn("close failed", "err", err)
			}
		}
		if profiler != nil {
			_ = profiler.Stop()
		}
		return mongo.Shutdown(shutdownCtx)
	})

	// Wait and exit
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error("fatal", "err", err)
		os.Exit(1)
	}
	logg.Info("graceful shutdown complete")
}

// startProfiler pushes profiles to Pyroscope when an address is configured.
func startProfiler(cfg config.Config, logg *slog.Logger) *pyroscope.Profiler {
	if cfg.PyroscopeAddress == "" {
		return nil
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "tourbook",
		ServerAddress:   cfg.PyroscopeAddress,
		Tags:            map[string]string{"env": cfg.AppEnv},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logg.Warn("pyroscope disabled", "err", err)
		return nil
	}
	logg.Info("pyroscope profiling enabled", "addr", cfg.PyroscopeAddress)
	return p
}
