package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"royal-server/src/api"
	"royal-server/src/app"
	"royal-server/src/config"
	"royal-server/src/db"
	"royal-server/src/scheduler"
	"royal-server/src/telemetry"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx := context.Background()

	// Installed before the dependencies so the syncer picks up the providers.
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "royal-server",
		Environment:  cfg.PlaidEnv,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	deps, err := app.NewDependencies(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer deps.Close()

	if err := db.Migrate(ctx, deps.Pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched, err = scheduler.NewScheduler(scheduler.Config{
			Interval:     cfg.SyncInterval,
			RunOnStartup: cfg.SyncOnStartup,
			Job:          deps.Sweep.Job(),
		})
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		sched.Start()
	} else {
		log.Println("INFO: Scheduler is disabled")
	}

	router := api.NewRouter(api.Deps{
		Store:          deps.Store,
		Cache:          deps.Cache,
		Users:          deps.Users,
		Snapshots:      deps.Snapshots,
		Sweep:          deps.Sweep,
		Webhooks:       deps.Webhooks,
		Metrics:        telemetry.Handler(),
		JWTSecret:      cfg.JWTSecret,
		CronSecret:     cfg.CronSecret,
		CronSecretHash: cfg.CronSecretHash,
		AllowedOrigins: cfg.AllowedOrigins,
		DemoMode:       cfg.DemoMode,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Println("API server running on port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutting down HTTP server: %v", err)
	}

	if sched != nil {
		sched.Stop(30 * time.Second)
	}

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Printf("ERROR: %v", err)
	}

	log.Println("Server stopped")
}
