package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ftbeamlab/internal/api"
	"ftbeamlab/internal/session"
	"ftbeamlab/pkg/config"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "ftbeamlab.yaml", "Path to the YAML configuration file")
	listen := flag.String("listen", "", "Listen address (overrides server.listen)")
	workers := flag.Int("workers", 0, "Beam synthesis workers (overrides beam.workers)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		log.Printf("no config file at %s, using defaults (see -write-config)", *configPath)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *workers > 0 {
		cfg.Beam.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := session.NewRegistry()
	var wg sync.WaitGroup

	// Session janitor
	if idle := cfg.Server.SessionIdleTimeout; idle > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(idle / 4)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					sessions.EvictIdle(idle)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.NewServer(cfg, sessions).Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		log.Printf("ftbeamlab listening on %s (beam workers: %d)", cfg.Server.Listen, cfg.Beam.Workers)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("failed to start server: %v", err)
			stop()
		}
	}()

	// Wait for a signal or a listen failure
	<-ctx.Done()
	log.Printf("shutting down HTTP server (%d live sessions)...", len(sessions.IDs()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
