package metrics

import (
	"net/http"
	"time"

	"audioserve/internal/logging"
	"audioserve/internal/workers"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Serve exposes /metrics on its own port so scrapes never compete with
// media requests. It blocks and is meant to run in a goroutine.
func Serve(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logging.Info("Metrics server listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("Metrics server error: %v", err)
	}
}

// WatchPool samples the worker pool queue depth into PoolQueueDepth until
// stop is closed.
func WatchPool(pool *workers.Pool, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			PoolQueueDepth.Set(float64(pool.QueueSize()))
		case <-stop:
			return
		}
	}
}
