// Package main is the entry point for the briefkasten HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"briefkasten/internal/admission"
	"briefkasten/internal/config"
	"briefkasten/internal/httpapi"
	"briefkasten/internal/relay"
	"briefkasten/internal/spam"
	"briefkasten/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file (optional)")
	listen := flag.String("listen", "127.0.0.1:8989", "listen on IP:PORT")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	// Block-word patterns compile once here; a bad pattern must stop
	// the process, never be skipped at request time.
	filter, err := spam.Compile(cfg.BlockWords)
	if err != nil {
		slog.Error("failed to compile block words", "error", err)
		os.Exit(1)
	}

	primary, err := selectTransport(cfg)
	if err != nil {
		slog.Error("failed to create transport", "error", err)
		os.Exit(1)
	}
	dispatcher := transport.NewDispatcher(primary, archiveTransport(cfg))

	api := httpapi.New(cfg, filter, relay.NewComposer(cfg), dispatcher, admission.NewLimiter(cfg.RateLimitSeconds))
	e := api.Router()

	slog.Info("starting briefkasten",
		"listen", *listen,
		"transport", primary.Name(),
		"directions", len(cfg.Recipients),
		"block_words", filter.Len(),
		"rate_limit_seconds", cfg.RateLimitSeconds,
		"archive_dir", cfg.ArchiveDir,
	)

	// Graceful shutdown on SIGINT/SIGTERM; in-flight sends finish.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, initiating shutdown", "signal", sig)
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := e.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	if err := e.Start(*listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("briefkasten stopped")
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectTransport chooses the primary delivery backend based on
// configuration. Config validation already rejected unknown values.
func selectTransport(cfg *config.Config) (transport.Transport, error) {
	switch cfg.Transport {
	case "ses":
		slog.Info("using AWS SES transport", "region", cfg.SES.Region)
		return transport.NewSES(context.Background(), cfg.SES)
	default:
		slog.Info("using SMTP transport",
			"host", cfg.Mail.SMTP,
			"port", cfg.Mail.Port,
			"starttls", cfg.Mail.StartTLS,
		)
		return transport.NewSMTP(cfg.Mail), nil
	}
}

// archiveTransport returns the archive mirror if a directory is
// configured and exists, nil otherwise. A missing directory only
// disables archiving; it is not fatal.
func archiveTransport(cfg *config.Config) transport.Transport {
	if cfg.ArchiveDir == "" {
		return nil
	}
	st, err := os.Stat(cfg.ArchiveDir)
	if err != nil || !st.IsDir() {
		slog.Warn("archive directory unavailable, archiving disabled", "dir", cfg.ArchiveDir)
		return nil
	}
	return transport.NewArchive(cfg.ArchiveDir)
}
