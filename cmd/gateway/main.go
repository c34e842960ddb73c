package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/g3trade/futures-gateway/internal/config"
	"github.com/g3trade/futures-gateway/internal/event"
	"github.com/g3trade/futures-gateway/internal/feed"
	"github.com/g3trade/futures-gateway/internal/journal"
	"github.com/g3trade/futures-gateway/internal/registry"
	"github.com/g3trade/futures-gateway/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/gateway.local.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting gateway",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"accounts", len(cfg.Accounts),
		"feed_enabled", cfg.Feed.Enabled,
		"journal_enabled", cfg.Journal.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	reg := registry.New(registry.Config{
		EventBufferSize: cfg.Registry.EventBufferSize,
		ShutdownTimeout: cfg.Registry.ShutdownTimeout,
	}, venueDialer, logger)

	// Optional event feed.
	var feedSrv *feed.Server
	if cfg.Feed.Enabled {
		feedSrv = feed.NewServer(feed.Config{
			Port:         cfg.Feed.Port,
			ClientBuffer: cfg.Feed.ClientBuffer,
		}, reg, logger)
		if err := feedSrv.Start(ctx); err != nil {
			logger.Error("failed to start feed server", "error", err)
			os.Exit(1)
		}
	}

	// Optional event journal.
	var journalWriter *journal.Writer
	if cfg.Journal.Enabled {
		logger.Info("connecting to journal database",
			"host", cfg.Journal.DB.Host,
			"port", cfg.Journal.DB.Port,
			"database", cfg.Journal.DB.Name,
		)
		pool, err := journal.Connect(ctx, cfg.Journal.DB)
		if err != nil {
			logger.Error("failed to connect to journal database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		journalWriter = journal.NewWriter(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			BufferSize:    cfg.Journal.BufferSize,
		}, pool, logger)
		if err := journalWriter.Start(ctx); err != nil {
			logger.Error("failed to start journal writer", "error", err)
			os.Exit(1)
		}
	}

	// Fan registry events out to the enabled sinks. Draining must keep up:
	// sessions block when the registry buffer fills.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range reg.Events() {
			logEvent(logger, ev)
			if feedSrv != nil {
				feedSrv.Publish(ev)
			}
			if journalWriter != nil {
				journalWriter.Enqueue(ev)
			}
		}
	}()

	reg.Reconcile(cfg.ToDescriptors())
	logger.Info("gateway running",
		"instance_id", cfg.Instance.ID,
		"sessions", reg.SessionCount(),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := reg.Stop(stopCtx); err != nil {
		// Event channel stays open when sessions straggle; skip the
		// drain wait rather than hang shutdown on it.
		logger.Warn("registry stop", "error", err)
	} else {
		<-drained
	}

	if journalWriter != nil {
		if err := journalWriter.Stop(stopCtx); err != nil {
			logger.Warn("journal stop", "error", err)
		}
	}
	if feedSrv != nil {
		if err := feedSrv.Stop(stopCtx); err != nil {
			logger.Warn("feed stop", "error", err)
		}
	}

	logger.Info("gateway stopped")
}

// logEvent gives session lifecycle events operator-visible log lines; the
// high-rate order and trade events stay at debug.
func logEvent(logger *slog.Logger, ev event.DomainEvent) {
	switch ev.Kind {
	case event.SessionReady, event.SessionDown, event.SessionFatal:
		logger.Info("session event",
			"kind", ev.Kind,
			"broker", ev.BrokerID,
			"account", ev.AccountID,
			"detail", ev.Detail,
		)
	default:
		logger.Debug("domain event",
			"kind", ev.Kind,
			"broker", ev.BrokerID,
			"account", ev.AccountID,
		)
	}
}
