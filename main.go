package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audioserve/internal/auth"
	"audioserve/internal/collection"
	"audioserve/internal/handlers"
	"audioserve/internal/icons"
	"audioserve/internal/logging"
	"audioserve/internal/metrics"
	"audioserve/internal/middleware"
	"audioserve/internal/startup"
	"audioserve/internal/transcode"
	"audioserve/internal/workers"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	// Collection database
	dbStart := time.Now()
	store, err := collection.NewStore(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer store.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Clean up expired sessions periodically
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		for range ticker.C {
			_ = store.CleanExpiredSessions(ctx)
		}
	}()

	// Worker pool for blocking filesystem work; its queue depth drives
	// admission control.
	poolSize := config.PoolWorkers
	if poolSize <= 0 {
		poolSize = workers.ForIO(64)
	}
	pool := workers.NewPool(poolSize, config.QueueLimit*2)
	logging.Info("Worker pool: %d workers, queue limit %d", poolSize, config.QueueLimit)

	// Transcoder
	startup.LogTranscoderInit(config.MaxTranscodings)
	trans := transcode.New(config.MaxTranscodings, config.Presets)

	// Icon cache
	ic := icons.New(config.IconCacheDir, config.IconSize, config.IconFastScaling, !config.IconCacheDisabled)

	// Authenticator
	authenticator, err := buildAuthenticator(config, store)
	if err != nil {
		logging.Fatal("Authentication setup error: %v", err)
	}
	logging.Info("Authentication mode: %s", authenticator.Mode())

	// Indexer
	startup.LogIndexerInit(config.IndexInterval)
	idx := collection.NewIndexer(store, config.BaseDirs, config.IndexInterval, config.AllowSymlinks)
	idx.Start()
	startup.LogIndexerStarted()

	// Handlers and router
	h := handlers.New(config, store, idx, trans, ic, pool, authenticator)
	router := h.Router()
	startup.LogHTTPRoutes(router)

	// Middleware chain, outermost first: CORS headers apply to every
	// response including rejections, admission sheds load before any
	// other work is done.
	var handler http.Handler = router
	handler = middleware.Auth(authenticator)(handler)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Admission(pool, config.QueueLimit)(handler)
	handler = middleware.CORS(config.Cors)(handler)

	// Metrics server on its own port
	stopWatch := make(chan struct{})
	if config.MetricsEnabled {
		metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
		go metrics.Serve(config.MetricsPort)
		go metrics.WatchPool(pool, 5*time.Second, stopWatch)
	}

	srv := &http.Server{
		Addr:        ":" + config.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays 0: audio streams run for hours and the
		// streaming writer enforces its own per-write timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, idx, pool, stopWatch)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func buildAuthenticator(config *startup.Config, store *collection.Store) (auth.Authenticator, error) {
	switch config.AuthMode {
	case "token":
		return auth.NewTokenAuth(config.AccessToken), nil
	case "shared-secret":
		hash, err := os.ReadFile(config.SharedSecretFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read shared secret file: %w", err)
		}
		hash = bytes.TrimSpace(hash)
		if len(hash) == 0 {
			return nil, fmt.Errorf("shared secret file %s is empty", config.SharedSecretFile)
		}
		return auth.NewSharedSecret(hash, store), nil
	default:
		return auth.NoAuth{}, nil
	}
}

func handleShutdown(srv *http.Server, idx *collection.Indexer, pool *workers.Pool, stopWatch chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping indexer")
	idx.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Draining worker pool")
	close(stopWatch)
	if err := pool.Shutdown(ctx); err != nil {
		logging.Warn("Worker pool shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Worker pool drained")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
