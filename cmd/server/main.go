package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noahxzhu/charge-notify/internal/config"
	"github.com/noahxzhu/charge-notify/internal/events"
	"github.com/noahxzhu/charge-notify/internal/monitor"
	"github.com/noahxzhu/charge-notify/internal/notify"
	"github.com/noahxzhu/charge-notify/internal/platform"
	"github.com/noahxzhu/charge-notify/internal/push"
	"github.com/noahxzhu/charge-notify/internal/settings"
	"github.com/noahxzhu/charge-notify/internal/web"
)

func main() {
	// Setup structured logger (JSON handler)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load Config
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Init Settings Store
	store := settings.NewStore(cfg.Storage.FilePath)
	if err := store.Load(); err != nil {
		slog.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}

	// Platform bindings
	battery := platform.NewSysfsBattery(cfg.Battery.SysfsPath)
	display := platform.NewDrmDisplay(cfg.Battery.DrmPath)

	var locker platform.WakeLocker
	logind, err := platform.NewLogindLocker()
	if err != nil {
		slog.Warn("Sleep inhibitor unavailable, running without wake locks", "error", err)
		locker = platform.NoopLocker{}
	} else {
		locker = logind
		defer logind.Close()
	}

	// Core wiring
	broker := events.NewBroker()
	alarm := monitor.NewAlarmManager(store, battery, broker, cfg.Alarm.PollInterval)
	client := push.NewClient(cfg.Receiver.APIURL, store, locker)
	handlers := monitor.NewHandlers(store, battery, display, alarm, client, notify.Desktop{})
	router := monitor.NewRouter(store, broker, alarm, handlers, battery)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the event loop, then the power watcher feeding it.
	go broker.Run(ctx)

	var source platform.PowerEventSource
	upower, err := platform.NewUPowerSource()
	if err != nil {
		slog.Warn("UPower unavailable, power events will not be delivered", "error", err)
	} else {
		defer upower.Close()
		source = upower
	}
	if source != nil {
		go func() {
			if err := source.Run(ctx, broker.Publish); err != nil {
				slog.Error("Power event source stopped", "error", err)
			}
		}()
	}

	router.Start()

	// Init Web Server
	srv := web.NewServer(store, client, battery)
	httpServer := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: srv,
	}

	// Start HTTP Server
	go func() {
		slog.Info("Starting server", "port", cfg.Server.Port, "url", "http://localhost"+cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down...")
	router.Stop()
	cancel() // Stop the event loop and power watcher

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exited")
}
