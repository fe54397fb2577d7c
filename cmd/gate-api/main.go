package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/internal/api"
	"github.com/carolinuci/spacetime-crawler/internal/config"
	"github.com/carolinuci/spacetime-crawler/internal/crawler"
	"github.com/carolinuci/spacetime-crawler/internal/logging"
	"github.com/carolinuci/spacetime-crawler/internal/metrics"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to gate configuration")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	gate, err := crawler.NewGate(ctx, *cfg, nil, logger, metrics.New(reg))
	if err != nil {
		logger.Fatal("failed to initialise gate", zap.Error(err))
	}
	defer gate.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/", api.NewServer(gate, logger.Named("api")))

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", zap.Error(err))
		}
	}()

	logger.Info("gate api listening", zap.String("addr", *addr), zap.String("ledger", cfg.Ledger.Backend))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
		return
	}
	logger.Info("gate api stopped")
}
