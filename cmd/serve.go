package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/angeloszaimis/exit-failover/config"
	"github.com/angeloszaimis/exit-failover/internal/httpserver"
	"github.com/angeloszaimis/exit-failover/internal/metrics"
)

// newServeCmd runs the engine as a daemon: periodic health-check and
// failover ticks plus the Prometheus metrics endpoint. The engine
// itself stays scheduler-free; this loop is the external caller.
func newServeCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run health-check and failover ticks with a metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			healthInterval, err := time.ParseDuration(cfg.Scheduler.HealthInterval)
			if err != nil {
				return err
			}
			failoverInterval, err := time.ParseDuration(cfg.Scheduler.FailoverInterval)
			if err != nil {
				return err
			}

			e, err := openEngine(cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			metrics.Register()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())

			srv, err := httpserver.New(cfg.Server.Address, mux)
			if err != nil {
				return err
			}

			srvErrCh := make(chan error, 1)
			go func() {
				srvErrCh <- srv.Start()
			}()

			go runTicks(ctx, healthInterval, log, "health check", func(ctx context.Context) error {
				_, err := e.coordinator.RunHealthChecks(ctx)
				return err
			})
			go runTicks(ctx, failoverInterval, log, "failover", func(ctx context.Context) error {
				_, err := e.coordinator.ProcessFailovers(ctx)
				return err
			})

			log.Info("serving",
				slog.String("address", cfg.Server.Address),
				slog.Duration("health_interval", healthInterval),
				slog.Duration("failover_interval", failoverInterval))

			select {
			case <-ctx.Done():
				log.Info("shutting down gracefully...")
				return srv.Shutdown(context.Background())
			case err := <-srvErrCh:
				return err
			}
		},
	}
}

// runTicks invokes cycle on every tick until ctx ends. Cycle errors are
// logged, not fatal; the next tick retries.
func runTicks(ctx context.Context, interval time.Duration, log *slog.Logger, name string, cycle func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cycle(ctx); err != nil {
				log.Error("cycle failed",
					slog.String("cycle", name),
					slog.Any("err", err))
			}
		}
	}
}
