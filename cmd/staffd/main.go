package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"staffing-backend/config"
	"staffing-backend/internal/api"
	"staffing-backend/internal/db"
	"staffing-backend/internal/directory"
	"staffing-backend/internal/event"
	"staffing-backend/internal/scheduler"
	"staffing-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "staffd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Event sink: web push fan-out when VAPID keys are configured, log-only
	// otherwise. Delivery is best-effort either way.
	var sink event.Sink
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := event.NewPushPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		sink = pool
		logger.Printf("push event sink started with %d workers", cfg.WorkerPool.Size)
	} else {
		sink = event.LogSink{}
		logger.Println("VAPID keys not configured; events will be logged only")
	}

	expander := scheduler.NewExpander(appStore)
	facilities := directory.NewFacilityDirectory(gormDB)
	workers := directory.NewWorkerDirectory(gormDB)

	templateSvc := scheduler.NewService(appStore, facilities, expander, sink, cfg.Expander.DefaultHorizonDays)
	engine := scheduler.NewEngine(appStore, workers, sink)

	// Periodic re-expansion keeps the shift calendar rolling forward.
	runner := scheduler.NewRunner(templateSvc, cfg.Expander)
	go runner.Run(ctx)

	handler := api.NewHandler(appStore, templateSvc, engine, webpushOptions)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
