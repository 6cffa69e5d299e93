package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// relay bundles the in-memory relay components. Nothing here outlives the process.
type relay struct {
	store    *FrameStore
	registry *ClientRegistry
	engine   *BroadcastEngine
	ingest   *IngestEndpoint
	status   *StatusReporter
}

func newRelay(cfg Config, clock Clock) *relay {
	if clock == nil {
		clock = systemClock{}
	}
	store := NewFrameStore(clock)
	registry := NewClientRegistry()
	engine := NewBroadcastEngine(registry)
	return &relay{
		store:    store,
		registry: registry,
		engine:   engine,
		ingest:   NewIngestEndpoint(store, engine),
		status:   NewStatusReporter(store, registry, clock, cfg.StreamingWindow),
	}
}

// main is the entry point for the camera relay.
// It wires the relay, starts the optional Redis bridge and spool watcher,
// and serves HTTP until interrupted.
func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := newRelay(cfg, nil)
	var wg sync.WaitGroup

	if cfg.RedisAddr != "" {
		rdb := newRedisClient(cfg)
		defer rdb.Close()
		bridge := NewRedisBridge(rdb, r.ingest, cfg.RedisFrameChannel, cfg.RedisTelemetryChannel)
		r.ingest.AddObserver(bridge.Observe)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bridge.Run(ctx); err != nil {
				errorLog("Redis bridge stopped: %v", err)
			}
		}()
	}

	if cfg.WatchDir != "" {
		spool, err := NewSpoolWatcher(cfg.WatchDir, cfg.WatchRemove, r.ingest)
		if err != nil {
			errorLog("Spool watcher disabled: %v", err)
		} else {
			defer spool.Close()
			wg.Add(1)
			go func() {
				defer wg.Done()
				spool.Run(ctx)
			}()
		}
	}

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           NewServer(cfg, r).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errorLog("HTTP shutdown: %v", err)
		}
	}()

	infoLog("Starting camera relay on %s (Debug: %v)", cfg.Port, cfg.Debug)
	infoLog("Stream endpoint: POST /stream, viewer: GET /, health: GET /health")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errorLog("HTTP server error: %v", err)
	}
	stop()
	wg.Wait()
}
