package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"coopgames/internal/catalog"
	"coopgames/internal/config"
	"coopgames/internal/fetch"
	"coopgames/internal/scheduler"
	"coopgames/internal/scraper"
	"coopgames/internal/steam"
	"coopgames/internal/storage"
	"coopgames/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	client := fetch.New(http.DefaultClient, cfg.FetchRetries, cfg.FetchBackoffBase, log)

	reconciler, err := catalog.NewReconciler(log)
	if err != nil {
		log.Error("load reconciler tables", "error", err)
		os.Exit(1)
	}
	discoverer := catalog.NewDiscoverer(client, cfg.CatalogURL, log)
	enricher := steam.NewEnricher(client, store, cfg.EnrichDelay, log)
	syncer := steam.NewSyncer(client, store, cfg.CountryCodes, cfg.PriceBatchSize, cfg.PriceDelay, log)

	pipeline := scraper.New(discoverer, reconciler, enricher, syncer, store, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lastRun, err := store.LastFullScrape(ctx)
	if err != nil {
		log.Error("read last scrape time", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(pipeline, cfg.ScrapeInterval, lastRun, log)
	sched.SetTick(cfg.SchedulerTick)
	sched.SetCooldown(cfg.ErrorCooldown)
	go sched.Run(ctx)

	srv := web.New(store, sched, log)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting server", "addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
