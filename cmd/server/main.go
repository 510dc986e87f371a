package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/bridge"
	"github.com/GriffinCanCode/pagehook/internal/classify"
	"github.com/GriffinCanCode/pagehook/internal/config"
	"github.com/GriffinCanCode/pagehook/internal/download"
	"github.com/GriffinCanCode/pagehook/internal/httpclient"
	"github.com/GriffinCanCode/pagehook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pagehook/internal/interceptor"
	"github.com/GriffinCanCode/pagehook/internal/logging"
	"github.com/GriffinCanCode/pagehook/internal/server"
)

func main() {
	cfg := config.LoadOrDefault()

	port := flag.String("port", cfg.Server.Port, "Server port")
	bind := flag.String("host", cfg.Server.Host, "Bind address")
	rulesFile := flag.String("rules", cfg.RulesFile, "YAML rules file")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *bind
	cfg.RulesFile = *rulesFile
	cfg.Logging.Development = *dev

	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return err
	}
	classifier, err := classify.New(rules.Vocabulary)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	httpOpts := httpclient.DefaultOptions()
	httpOpts.Timeout = cfg.HTTP.Timeout
	httpOpts.Retries = cfg.HTTP.Retries
	httpOpts.RateLimit = cfg.HTTP.RateLimit
	httpOpts.UserAgent = cfg.HTTP.UserAgent

	pages := server.NewManager(interceptor.Deps{
		Client:     httpclient.New(httpOpts, logger.Component("http")),
		Classifier: classifier,
		Endpoints:  rules.Endpoints,
		Metrics:    metrics,
		Logger:     logger.Logger,
		Options: interceptor.Options{
			Download: download.Options{
				LoaderGrace:  cfg.Timing.LoaderGrace,
				RevokeDelay:  cfg.Timing.RevokeDelay,
				FetchEnabled: cfg.HTTP.FetchEnabled,
			},
			SelectionTimeout: cfg.Timing.SelectionTimeout,
		},
	}, bridge.DefaultConfig())

	srv := server.New(pages, server.Options{
		Addr:      cfg.Addr(),
		RateLimit: cfg.RateLimit,
		Metrics:   metrics,
		Gatherer:  reg,
		Logger:    logger.Component("server"),
	})

	logger.Info("pagehook starting",
		zap.String("addr", cfg.Addr()),
		zap.String("rules", cfg.RulesFile),
		zap.Bool("fetch", cfg.HTTP.FetchEnabled))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
