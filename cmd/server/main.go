// siteforge server
//
// Edits static-site projects through a virtual file tree that can be
// imported from, and published back to, a GitHub-hosted repository.
//
// Features:
// - GitHub App installation auth with token caching
// - Retrying GitHub API client
// - One-shot repository import into an in-memory virtual tree
// - Debounced workspace snapshot persistence (postgres/local/S3)
// - Direct and branch+pull-request publish pipelines
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/siteforge/siteforge/internal/api"
	"github.com/siteforge/siteforge/internal/assets"
	"github.com/siteforge/siteforge/internal/config"
	"github.com/siteforge/siteforge/internal/github"
	"github.com/siteforge/siteforge/internal/logging"
	"github.com/siteforge/siteforge/internal/metrics"
	"github.com/siteforge/siteforge/internal/store"
	"github.com/siteforge/siteforge/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("siteforge server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("store", cfg.StoreBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshotStore, err := store.New(ctx, store.Config{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		LocalPath:   cfg.LocalStorePath,
		S3Endpoint:  cfg.S3Endpoint,
		S3Bucket:    cfg.S3Bucket,
		S3AccessKey: cfg.S3AccessKey,
		S3SecretKey: cfg.S3SecretKey,
		S3Region:    cfg.S3Region,
	})
	if err != nil {
		logging.Fatal("snapshot store init failed", zap.Error(err))
	}
	defer snapshotStore.Close()

	auth, err := github.NewAuthenticator(github.AuthConfig{
		AppID:          cfg.GitHubAppID,
		PrivateKeyPath: cfg.GitHubPrivateKeyPath,
		BaseURL:        cfg.GitHubAPIBaseURL,
	})
	if err != nil {
		logging.Fatal("github authenticator init failed", zap.Error(err))
	}

	client := github.NewClient(github.ClientConfig{
		BaseURL: cfg.GitHubAPIBaseURL,
		Auth:    auth,
	})
	importer := github.NewImporter(client)
	publisher := github.NewPublisher(client, assets.Policy{
		SizeLimit:    cfg.AssetSizeLimit,
		MaxDimension: cfg.AssetMaxDimension,
		Quality:      cfg.AssetQuality,
	})

	saver := workspace.NewSaver(snapshotStore, cfg.SaveDebounce)

	server := api.NewServer(snapshotStore, saver, importer, publisher)

	// Metrics listener
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		logging.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logging.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown: flush pending snapshots before closing the store.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logging.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown error", zap.Error(err))
	}

	saver.Flush()
	logging.Info("bye")
}
