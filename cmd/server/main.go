/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ZapGo rental console server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config file if given
  2. Initialize logging
  3. Open the SQLite snapshot slot
  4. Hydrate the ledger (snapshot or seed)
  5. Configure HTTP router, start the sweep scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config path (optional; defaults apply without it)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep scheduler
  4. Close the database
  5. Exit

EXAMPLES:
  ./server -config=./zapgo.yaml
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: configuration shape and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: snapshot persistence
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zapgo/rental-engine/api"
	"github.com/zapgo/rental-engine/config"
	"github.com/zapgo/rental-engine/ledger"
	"github.com/zapgo/rental-engine/logger"
	"github.com/zapgo/rental-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "YAML config path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	slot, err := sqlite.New(cfg.Database.Path, cfg.Database.Slot)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer slot.Close()

	store := ledger.NewStore(slot)
	svc := ledger.NewService(store, ledger.WithFaults(ledger.NewFaultInjector(
		cfg.Faults.Enabled,
		cfg.Faults.ErrorRate,
		time.Duration(cfg.Faults.MinLatencyMs)*time.Millisecond,
		time.Duration(cfg.Faults.MaxLatencyMs)*time.Millisecond,
	)))

	if err := svc.Load(context.Background()); err != nil {
		logger.Error("failed to hydrate ledger", "error", err)
		os.Exit(1)
	}

	// Snapshot writes never fail an API call; surface them here instead.
	go func() {
		for err := range store.SaveFailures() {
			logger.Error("snapshot save failed", "error", err)
		}
	}()

	handler := api.NewHandler(svc)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	var sweeper *api.Sweeper
	if cfg.Scheduler.Enabled {
		sweeper = api.NewSweeper(svc, cfg.Scheduler.DailySweep)
		if err := sweeper.Start(); err != nil {
			logger.Error("failed to start sweeper", "error", err)
			os.Exit(1)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	if sweeper != nil {
		sweeper.Stop()
	}

	logger.Info("server stopped")
}
