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

	"github.com/skyfield/simwx/internal/api"
	"github.com/skyfield/simwx/internal/config"
	"github.com/skyfield/simwx/internal/simulation"
	"github.com/skyfield/simwx/internal/weather"
	"github.com/skyfield/simwx/internal/websocket"
	"github.com/skyfield/simwx/internal/wxstate"
	"github.com/skyfield/simwx/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting simwx server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// WebSocket server for live weather pushes
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Weather state store; every write is pushed to websocket clients
	weatherState := wxstate.NewStore(log)
	weatherState.Subscribe(func(snap wxstate.Snapshot) {
		wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeWeatherUpdate,
			Data: snap,
		})
	})

	// Simulated aircraft providing the query position
	simService := simulation.NewService(simulation.Config{
		InitialLat:            cfg.Sim.InitialLat,
		InitialLon:            cfg.Sim.InitialLon,
		InitialAltitudeFt:     cfg.Sim.InitialAltitudeFt,
		InitialHeadingDeg:     cfg.Sim.InitialHeadingDeg,
		InitialSpeedKts:       cfg.Sim.InitialSpeedKts,
		UpdateIntervalSeconds: cfg.Sim.UpdateIntervalSeconds,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := simService.Start(ctx); err != nil {
		log.Error("Failed to start simulation service", logger.Error(err))
		os.Exit(1)
	}

	// Weather fetch pipeline: scheduler -> fetcher -> decoder -> state
	wxConfig := weather.Config{
		BaseURL:                cfg.Weather.BaseURL,
		RequestTimeoutSeconds:  cfg.Weather.RequestTimeoutSeconds,
		SearchRadiusNM:         cfg.Weather.SearchRadiusNM,
		RefreshIntervalSeconds: cfg.Weather.RefreshIntervalSeconds,
		UserAgent:              cfg.Weather.UserAgent,
	}
	decoder := weather.NewDecoder(weatherState, log)
	fetcher := weather.NewFetcher(wxConfig, decoder, log)
	scheduler := weather.NewScheduler(fetcher, log)
	weatherService := weather.NewService(wxConfig, scheduler, simService, log)

	if err := weatherService.Start(); err != nil {
		log.Error("Failed to start weather service", logger.Error(err))
		os.Exit(1)
	}

	// HTTP API
	handler := api.NewHandler(weatherService, weatherState, simService, wsServer, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	log.Info("Stopping weather service...")
	weatherService.Stop()
	log.Info("Weather service stopped.")

	log.Info("Stopping simulation service...")
	simService.Stop()
	log.Info("Simulation service stopped.")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
