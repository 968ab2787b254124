package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contestwatch/app/api"
	"contestwatch/app/cfg"
	"contestwatch/app/database"
	"contestwatch/app/extractor"
	"contestwatch/app/fetcher"
	"contestwatch/app/monitor"
	"contestwatch/app/notifier"
	"contestwatch/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Contest Watch", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	workRepo := database.NewWorkRepository(db)
	markerRepo := database.NewMarkerRepository(db)
	stateRepo := database.NewStateRepository(db)

	profile, err := extractor.LoadProfile(appCfg.ProfilePath)
	if err != nil {
		slog.Error("Failed to load source profile", "path", appCfg.ProfilePath, "error", err)
		os.Exit(1)
	}

	engine := extractor.NewEngine(profile, appCfg.SourceURL)
	fetchController := fetcher.NewController(nil, appCfg.UserAgent, profile.Encoding)

	var notify notifier.Notifier
	if appCfg.NotifyWebhook != "" {
		notify = notifier.NewWebhookNotifier(appCfg.NotifyWebhook)
	} else {
		notify = notifier.NewLogNotifier()
	}

	coordinator := monitor.NewCoordinator(workRepo, markerRepo, notify,
		appCfg.NotifyNew, appCfg.NotifyUpdated)

	catalogMonitor := monitor.New(fetchController, engine, workRepo, stateRepo,
		markerRepo, coordinator, notify, monitor.Options{
			SourceURL:       appCfg.SourceURL,
			CheckInterval:   appCfg.CheckInterval,
			IntervalCap:     appCfg.IntervalCap,
			VisitGapMinutes: appCfg.VisitGapMinutes,
			OpenGapMinutes:  appCfg.OpenGapMinutes,
		})

	scheduler := tasks.NewScheduler(catalogMonitor, markerRepo)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(workRepo, markerRepo, stateRepo, catalogMonitor, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "auth", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
