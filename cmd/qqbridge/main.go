package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qqbridge/internal/config"
	"qqbridge/internal/constants"
	"qqbridge/internal/database"
	"qqbridge/internal/retry"
	"qqbridge/internal/service"
	"qqbridge/internal/status"
	"qqbridge/internal/tracing"
	"qqbridge/pkg/media"
	"qqbridge/pkg/notify"
	"qqbridge/pkg/onebot"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("qqbridge %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting qqbridge")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := database.New(cfg.Media.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to initialize media index: %w", err)
	}
	defer db.Close()

	apiBase := cfg.OneBot.HTTPAPIURL
	if apiBase == "" && cfg.OneBot.WSURL != "" {
		apiBase = onebot.APIBaseFromWSURL(cfg.OneBot.WSURL)
		logger.WithField("api_base", apiBase).Debug("Derived file API base from WebSocket URL")
	}
	fileResolver := onebot.NewClient(apiBase, cfg.OneBot.AccessToken, logger)

	mediaResolver, err := media.NewHandler(cfg.Media.Dir, cfg.Server.PublicBaseURL, db, fileResolver, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize media handler: %w", err)
	}

	tracker := status.NewTracker()
	notifyClient := notify.NewClient(cfg.Notify.BaseURL, cfg.Notify.AuthToken)

	normalizer := service.NewNormalizer(logger)
	filter := service.NewAccessFilter(cfg.Filter)
	translator := service.NewTranslator(mediaResolver, cfg.TitlePrefix, logger)
	dispatcher := service.NewDispatcher(notifyClient, cfg.Notify, tracker, logger)
	bridge := service.NewBridge(normalizer, filter, translator, dispatcher, tracker, logger)

	if cfg.OneBot.WSEnabled && cfg.Server.VerifySecret != "" {
		logger.Warn("Both WebSocket and webhook ingestion are enabled; events arriving on both transports are dispatched twice")
	}

	if cfg.OneBot.WSEnabled {
		transport := onebot.NewTransport(onebot.TransportConfig{
			URL:         cfg.OneBot.WSURL,
			AccessToken: cfg.OneBot.AccessToken,
			Heartbeat:   time.Duration(cfg.OneBot.HeartbeatSec) * time.Second,
			MaxAttempts: cfg.OneBot.MaxReconnectCount,
			Backoff: retry.BackoffConfig{
				InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
				MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
				Multiplier:   constants.DefaultBackoffMultiplier,
				Jitter:       true,
			},
		}, tracker, func(ctx context.Context, payload []byte) {
			if err := bridge.HandleRaw(ctx, payload); err != nil {
				logger.WithError(err).Error("Failed to process WebSocket event")
			}
		}, logger)

		if err := transport.Start(ctx); err != nil {
			return fmt.Errorf("failed to start WebSocket transport: %w", err)
		}
		defer transport.Stop()
	}

	server := NewServer(cfg, bridge, tracker, mediaResolver, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
