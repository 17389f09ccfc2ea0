package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pantheon-lab/realtime-audio-sdk/internal/config"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/forward"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/metrics"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/server"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/sink"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/stream"
	"github.com/pantheon-lab/realtime-audio-sdk/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "realtime-audio-sdk"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration. A missing file at the default path is not an
	// error: run on the documented defaults. An explicit -config path must
	// exist.
	cfg, err := config.Load(*configPath)
	usingDefaults := false
	if err != nil {
		if *configPath == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
			cfg = config.Default()
			usingDefaults = true
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
		slog.Bool("defaults_used", usingDefaults),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("udp_port", cfg.Server.UDPPort),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("max_concurrent_streams", cfg.Server.MaxConcurrentStreams),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("vad_window_size", cfg.VAD.WindowSize),
		slog.Float64("vad_positive_threshold", float64(cfg.VAD.PositiveThreshold)),
		slog.Float64("vad_negative_threshold", float64(cfg.VAD.NegativeThreshold)),
		slog.Bool("sink_enabled", cfg.Sink.Enabled),
		slog.Bool("forward_enabled", cfg.Forward.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize WAV sink (if enabled)
	var wavSink *sink.WAVSink
	if cfg.Sink.Enabled {
		wavSink, err = sink.NewWAVSink(cfg.Sink.Directory)
		if err != nil {
			logger.Error("Failed to create WAV sink", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("WAV sink initialized", slog.String("directory", cfg.Sink.Directory))
	}

	// Initialize segment forwarder (if enabled)
	var forwarder *forward.Client
	if cfg.Forward.Enabled {
		forwarder, err = forward.NewClient(forward.Config{
			Endpoint:      cfg.Forward.Endpoint,
			APIKey:        cfg.Forward.APIKey,
			Timeout:       cfg.Forward.GetTimeoutDuration(),
			MaxRetries:    cfg.Forward.MaxRetries,
			MaxConcurrent: cfg.Forward.MaxConcurrent,
		})
		if err != nil {
			logger.Error("Failed to create segment forwarder", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Segment forwarder initialized",
			slog.String("endpoint", cfg.Forward.Endpoint),
		)
	}

	// Create stream manager configuration
	windowSize := cfg.VAD.WindowSize
	streamConfig := stream.ManagerConfig{
		DetectorConfig: cfg.VAD.DetectorConfig(cfg.Audio.SampleRate),
		ScorerFactory: func() (vad.Scorer, error) {
			return vad.NewEnergyScorer(windowSize)
		},
		Timeout:     cfg.Audio.GetStreamTimeoutDuration(),
		MaxGap:      uint32(cfg.Audio.MaxGap),
		MaxSessions: cfg.Server.MaxConcurrentStreams,
		WAVSink:     wavSink,
		Forwarder:   forwarder,
	}

	// Initialize stream manager
	streamMgr, err := stream.NewManager(logger, appMetrics, streamConfig)
	if err != nil {
		logger.Error("Failed to create stream manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Stream manager initialized",
		slog.Duration("stream_timeout", cfg.Audio.GetStreamTimeoutDuration()),
		slog.Int("max_sessions", cfg.Server.MaxConcurrentStreams),
	)

	// Initialize UDP server
	udpServer := server.NewUDPServer(&cfg.Server, logger, appMetrics, streamMgr)
	logger.Info("UDP server initialized")

	// Initialize WebSocket ingest and HTTP API servers (if enabled)
	var wsServer *server.WSServer
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		wsServer = server.NewWSServer(logger, appMetrics, streamMgr)
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, streamMgr, udpServer, wsServer, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start UDP server
	if err := udpServer.Start(); err != nil {
		logger.Error("Failed to start UDP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.UDPPort)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop accepting new WebSocket connections
	if wsServer != nil {
		wsServer.Stop()
	}

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop UDP server (stop accepting new packets)
	if err := udpServer.Stop(); err != nil {
		logger.Error("Error stopping UDP server", slog.String("error", err.Error()))
	}

	// Stop stream manager (flush sessions and stop background routines)
	streamMgr.Stop()

	// Get final statistics
	stats := udpServer.GetStatistics()
	logger.Info("Final server statistics",
		slog.Uint64("packets_received", stats.PacketsReceived),
		slog.Uint64("packets_processed", stats.PacketsProcessed),
		slog.Uint64("parse_errors", stats.ParseErrors),
		slog.Uint64("active_sessions", stats.ActiveSessions),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
