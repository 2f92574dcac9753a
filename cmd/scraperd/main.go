// Package main wires together the scraper service binary.
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
	"go.uber.org/zap"

	"github.com/kittagency/ydun-scraper/internal/api"
	"github.com/kittagency/ydun-scraper/internal/audit"
	"github.com/kittagency/ydun-scraper/internal/audit/sinks"
	"github.com/kittagency/ydun-scraper/internal/batch"
	"github.com/kittagency/ydun-scraper/internal/clock/system"
	"github.com/kittagency/ydun-scraper/internal/config"
	"github.com/kittagency/ydun-scraper/internal/extract"
	"github.com/kittagency/ydun-scraper/internal/fetch"
	"github.com/kittagency/ydun-scraper/internal/logging"
	"github.com/kittagency/ydun-scraper/internal/metrics"
	"github.com/kittagency/ydun-scraper/internal/policy/gatekeeper"
	"github.com/kittagency/ydun-scraper/internal/policy/ratelimit"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditSinks := []audit.Sink{sinks.NewLogSink(logger.Named("audit"))}
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("prometheus sink init failed", zap.Error(err))
	}
	auditSinks = append(auditSinks, promSink)
	hub := audit.NewHub(audit.Config{Logger: logger.Named("audit")}, auditSinks...)

	gate := gatekeeper.New(gatekeeper.Config{
		UserAgent:         cfg.Scraper.UserAgent,
		DefaultCrawlDelay: cfg.DefaultCrawlDelay(),
		ProbeTimeout:      cfg.ProbeTimeout(),
	}, hub, logger.Named("gatekeeper"))

	limiter := ratelimit.New(ratelimit.Config{
		DefaultDelay: cfg.DefaultCrawlDelay(),
	}, hub, logger.Named("ratelimit"))

	fetcher := fetch.New(fetch.Config{
		UserAgent:      cfg.Scraper.UserAgent,
		Timeout:        cfg.FetchTimeout(),
		PoolSize:       cfg.HTTP.PoolSize,
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: cfg.BackoffInitial(),
		BackoffMax:     cfg.BackoffMax(),
	}, hub, logger.Named("fetch"))

	pipeline := extract.NewPipeline(logger.Named("extract"),
		extract.NewReadability(),
		extract.NewHeuristic(),
	)

	orchestrator, err := batch.New(batch.Config{
		Concurrency:   cfg.Scraper.Concurrency,
		PerURLTimeout: cfg.PerURLTimeout(),
	}, gate, limiter, fetcher, pipeline, system.New(), hub, logger.Named("batch"))
	if err != nil {
		logger.Fatal("orchestrator init failed", zap.Error(err))
	}

	apiServer := api.NewServer(orchestrator, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("audit hub close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
