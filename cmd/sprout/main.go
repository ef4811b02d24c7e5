package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sproutfam/sprout/internal/database"
	"github.com/sproutfam/sprout/internal/logging"
	"github.com/sproutfam/sprout/internal/scheduler"
	"github.com/sproutfam/sprout/internal/server"
)

func main() {
	// .env never overrides real environment variables.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("SPROUT_LOG_LEVEL"), os.Getenv("SPROUT_LOG_FORMAT"))

	port := os.Getenv("SPROUT_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("SPROUT_DB_PATH")
	if dbPath == "" {
		dbPath = "sprout.db"
	}

	secret := os.Getenv("SPROUT_JWT_SECRET")
	if secret == "" {
		log.Fatal("SPROUT_JWT_SECRET must be set")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	srv := server.New(db, server.Config{JWTSecret: []byte(secret)}, logger)

	// Due work normally rides on request traffic; an optional cron schedule
	// covers quiet deployments.
	if spec := os.Getenv("SPROUT_CRON"); spec != "" {
		runner, err := scheduler.NewCronRunner(srv.Registry(), spec, logger.With("component", "cron"))
		if err != nil {
			log.Fatalf("invalid SPROUT_CRON: %v", err)
		}
		runner.Start()
		defer runner.Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("sprout listening", "port", port, "db", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
