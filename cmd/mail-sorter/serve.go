package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/metrics"
	"github.com/mikey/llm-mail-sorter/internal/ports"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Ingest mail over SMTP and classify on a schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(func(
				cfg *config.Config,
				logger *zap.Logger,
				svc *core.ClassificationService,
				applier *core.RuleApplier,
				ingestor ports.Ingestor,
				reg *prometheus.Registry,
			) error {
				return serve(cmd.Context(), cfg, logger, svc, applier, ingestor, reg)
			})
		},
	}
}

func serve(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	svc *core.ClassificationService,
	applier *core.RuleApplier,
	ingestor ports.Ingestor,
	reg *prometheus.Registry,
) error {
	if cfg.GetIngest().Enabled {
		if err := ingestor.Start(); err != nil {
			return err
		}
		defer func() {
			if err := ingestor.Stop(); err != nil {
				logger.Error("Failed to stop ingest", zap.Error(err))
			}
		}()
	}

	if m := cfg.GetMetrics(); m.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		srv := &http.Server{Addr: m.ListenAddress, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("Metrics endpoint starting", zap.String("address", m.ListenAddress))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	cl := cfg.GetClassifier()
	interval := cl.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	opts := core.PassOptions{TopN: cl.TopSenders, Learn: cl.Learn}

	runCycle := func() {
		if _, err := svc.RunPass(ctx, opts); err != nil {
			if ctx.Err() == nil {
				logger.Error("Scheduled pass failed", zap.Error(err))
			}
			return
		}
		if _, err := applier.Apply(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Scheduled apply failed", zap.Error(err))
		}
	}

	logger.Info("Scheduler started", zap.Duration("interval", interval))
	runCycle()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down...")
			return nil
		case <-ticker.C:
			runCycle()
		}
	}
}
