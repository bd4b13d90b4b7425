package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oceanwatch/hazard-monitor/internal/api"
	"github.com/oceanwatch/hazard-monitor/internal/app"
	"github.com/oceanwatch/hazard-monitor/internal/config"
	"github.com/oceanwatch/hazard-monitor/internal/hazards"
	"github.com/oceanwatch/hazard-monitor/internal/scheduler"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting hazard monitor")

	// Cancelled on shutdown; bounds scheduled and triggered ingestion runs.
	runCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()

	a, err := app.New(runCtx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	schedulerService := scheduler.NewService(cfg.IngestSchedule, a.Ingest)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	if cfg.IngestOnStart {
		go schedulerService.RunNow()
	}

	server := api.NewServer(api.Deps{
		DB:             a.DB,
		Accounts:       hazards.NewAccountService(a.DB, cfg.JWTSecret, cfg.TokenTTL),
		Profiles:       hazards.NewProfileService(a.DB),
		Reports:        hazards.NewReportService(a.DB),
		Ingest:         a.Ingest,
		Archive:        a.Archive,
		Twitter:        a.Twitter,
		TwitterUsage:   a.Observer(a.Twitter.GetName()),
		Instagram:      a.Instagram,
		InstagramUsage: a.Observer(a.Instagram.GetName()),
		BaseContext:    runCtx,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	stopRuns()
	schedulerService.Stop()
	server.Wait()

	logrus.Info("Server exited")
}
