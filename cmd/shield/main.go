// Command shield is the standalone edge reverse-proxy process (C9). It
// runs independently of the API binary so Shield can sit in front of
// several API replicas without coupling its lifecycle to any one of
// them, mirroring the teacher's preference for small single-purpose
// binaries over one monolithic process.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/evoting/core/internal/cache"
	"github.com/evoting/core/internal/config"
	"github.com/evoting/core/internal/shield"
)

func main() {
	log.Println("Starting evoting-core shield (edge risk-scoring proxy)...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cacheStore, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("FATAL: cache: %v", err)
	}
	defer cacheStore.Close()

	s, err := shield.New(cacheStore, cfg.BackendURL, cfg.BlockThreshold)
	if err != nil {
		log.Fatalf("FATAL: shield: %v", err)
	}

	monitor := shield.NewSubnetMonitor(s, func(subnet string, blockCount int) {
		log.Printf("[shield] subnet escalation: %s has %d blocked IPs", subnet, blockCount)
	})
	go monitor.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/", s)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	healthSrv := &http.Server{
		Addr:    ":" + cfg.ShieldHealthPort,
		Handler: healthMux,
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Warning: shield health server: %v", err)
		}
	}()

	go func() {
		log.Printf("shield listening on :%s, forwarding to %s (health on :%s)",
			cfg.Port, cfg.BackendURL, cfg.ShieldHealthPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: shield server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = healthSrv.Shutdown(shutdownCtx)
}
