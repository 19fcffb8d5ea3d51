// Command argusd starts the website security scanning daemon.
// Usage: argusd [-config path] [-listen addr]
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/argusscan/argus/internal/config"
	"github.com/argusscan/argus/internal/fetcher"
	"github.com/argusscan/argus/internal/logging"
	"github.com/argusscan/argus/internal/quota"
	"github.com/argusscan/argus/internal/scan"
	"github.com/argusscan/argus/internal/secrets"
	"github.com/argusscan/argus/internal/server"
	"github.com/argusscan/argus/internal/store"
	"github.com/argusscan/argus/internal/subdomains"
	"github.com/argusscan/argus/internal/supabase"
	"github.com/argusscan/argus/internal/webclient"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		listen     = flag.String("listen", "", "listen address, overrides config")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	logger := logging.NewStdoutLogger("argusd")

	wc, err := webclient.NewNetHTTPClient(webclient.Config{
		Timeout:      cfg.Fetch.Timeout.Std(),
		MaxRedirects: cfg.Fetch.MaxRedirects,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		UserAgent:    cfg.Fetch.UserAgent,
	}, logger)
	if err != nil {
		log.Fatalf("creating web client: %v", err)
	}
	defer wc.Close()

	f, err := fetcher.New(fetcher.Config{
		MaxScripts:     cfg.Fetch.MaxScripts,
		MaxConcurrency: cfg.Fetch.MaxConcurrency,
		ScriptTimeout:  cfg.Fetch.ScriptTimeout.Std(),
	}, wc, logger)
	if err != nil {
		log.Fatalf("creating fetcher: %v", err)
	}

	detector := secrets.NewDetector(logger)

	backend := supabase.NewClient(supabase.Config{
		SchemaTimeout:  cfg.Probe.SchemaTimeout.Std(),
		ProbeTimeout:   cfg.Probe.ProbeTimeout.Std(),
		ProbeBatchSize: cfg.Probe.BatchSize,
		BatchPause:     cfg.Probe.BatchPause.Std(),
		RowLimit:       cfg.Probe.RowLimit,
	}, wc, logger)

	subs := subdomains.NewDiscoverer(subdomains.DefaultConfig(), wc, logger)

	var scanStore scan.Store
	if cfg.Storage.Path != "" {
		db, err := store.Open(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("opening database: %v", err)
		}
		defer db.Close()

		scanStore, err = store.NewSQLiteStore(db, logger)
		if err != nil {
			log.Fatalf("creating store: %v", err)
		}
	} else {
		logger.Warn("no storage path configured, scans are held in memory only")
		scanStore = store.NewMemoryStore()
	}

	orchCfg := scan.DefaultConfig()
	if cfg.Scan.StepDelay > 0 {
		orchCfg.StepDelay = cfg.Scan.StepDelay.Std()
	}
	if cfg.Scan.StepTimeout > 0 {
		orchCfg.StepTimeout = cfg.Scan.StepTimeout.Std()
	}
	orch := scan.NewOrchestrator(orchCfg, scanStore, f, detector, backend, subs, logger)

	q := quota.NewMemoryStore(quota.Limits{
		UserLimit: cfg.Quota.UserLimit,
		IPLimit:   cfg.Quota.IPLimit,
		Window:    cfg.Quota.Window.Std(),
	})

	srv := server.NewServer(server.Config{
		Listen:         cfg.Server.Listen,
		TriggerSecret:  cfg.Server.TriggerSecret,
		DeepEnabled:    cfg.Server.DeepEnabled,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}, orch, scanStore, q, server.DenyAnonymous{})

	httpServer := srv.HTTPServer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", logging.Field{Key: "addr", Value: cfg.Server.Listen})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", logging.Field{Key: "error", Value: err.Error()})
	}
}
