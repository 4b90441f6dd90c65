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

	"github.com/gitpulse/gitpulse/internal/api"
	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/directory"
	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/notify"
	"github.com/gitpulse/gitpulse/internal/platform"
	"github.com/gitpulse/gitpulse/internal/poller"
	"github.com/gitpulse/gitpulse/internal/scheduler"
	"github.com/gitpulse/gitpulse/internal/settings"
	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	commitSweepJob  = "commit-sweep"
	releaseSweepJob = "release-sweep"
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

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting gitpulse")

	// Open the local store
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath, err = storage.DefaultPath()
		if err != nil {
			logrus.Fatalf("Failed to resolve store path: %v", err)
		}
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		logrus.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	settingsManager, err := settings.NewManager(store)
	if err != nil {
		logrus.Fatalf("Failed to load settings: %v", err)
	}

	platforms := []platform.Platform{
		platform.NewGitHub(cfg.GitHubToken, cfg.GitHubBaseURL, store),
		platform.NewGitLab(cfg.GitLabToken, cfg.GitLabBaseURL, store),
	}

	dispatcher := notify.NewDispatcher(store, buildSinks(cfg))
	repoDirectory := directory.New(platforms, store)
	pollerService := poller.NewService(platforms, repoDirectory, settingsManager, store, dispatcher)
	pollerService.Authenticate(context.Background())

	// Arm the sweeps
	schedulerService := scheduler.NewService()
	armSweeps := func(minutes int) {
		arm := func(name string, kind models.SweepKind) {
			if err := schedulerService.Arm(name, minutes, func() {
				if err := pollerService.RunSweep(context.Background(), kind); err != nil {
					logrus.Errorf("Scheduled %s sweep failed: %v", kind, err)
				}
			}); err != nil {
				logrus.Errorf("Failed to arm %s: %v", name, err)
			}
		}
		arm(commitSweepJob, models.SweepCommits)
		arm(releaseSweepJob, models.SweepReleases)
	}
	armSweeps(settingsManager.Get().CheckIntervalMinutes)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initial sweep to establish baselines without waiting a full tick
	go func() {
		if err := pollerService.RunSweep(context.Background(), models.SweepCommits); err != nil {
			logrus.Errorf("Initial commit sweep failed: %v", err)
		}
		if err := pollerService.RunSweep(context.Background(), models.SweepReleases); err != nil {
			logrus.Errorf("Initial release sweep failed: %v", err)
		}
	}()

	// Set up the HTTP surface for the external UI layer
	router := mux.NewRouter()
	api.NewHandler(pollerService, settingsManager, dispatcher, armSweeps).Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func buildSinks(cfg *config.Config) []notify.Sink {
	sinks := []notify.Sink{notify.NewLogSink()}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.WebhookURL))
	}
	if cfg.NotificationEmail != "" {
		sinks = append(sinks, notify.NewEmailSink(cfg.NotificationEmail, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword))
	}
	return sinks
}
