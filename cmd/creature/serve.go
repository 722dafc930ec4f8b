package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/config"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
	"github.com/danielpatrickdp/creature-colony/internal/logging"
	"github.com/danielpatrickdp/creature-colony/internal/metrics"
	"github.com/danielpatrickdp/creature-colony/internal/state"
	"github.com/danielpatrickdp/creature-colony/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// #region serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the colony over gRPC and expose Prometheus metrics",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel == "" && cfg.LogLevel != "" {
		if l, err := logging.NewLogger(cfg.LogLevel); err == nil {
			logger = l
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := state.NewStore(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	collector := metrics.New()
	svc, err := creature.Open(ctx, cfg.Service(), store,
		creature.WithLogger(logger),
		creature.WithEmitter(logging.NewFactLog(store.DB(), logger)),
		creature.WithMetrics(collector),
	)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	srv := transport.NewServer(svc, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, lis)
	})
	if cfg.Metrics != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics, collector)
		})
	}

	logger.Info("[SERVE] colony ready",
		zap.String("db", cfg.DB),
		zap.String("listen", cfg.Listen),
		zap.String("metrics", cfg.Metrics),
	)
	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, collector *metrics.Collector) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}

// #endregion serve
