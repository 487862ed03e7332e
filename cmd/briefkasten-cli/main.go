// Package main is the sendmail-compatible command line sender. It reads
// the message body from standard input, accepts recipient and subject as
// flags or header-like stdin lines, and relays through the configured
// transport, one message per invocation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"briefkasten/internal/config"
	"briefkasten/internal/ingest"
	"briefkasten/internal/relay"
	"briefkasten/internal/spam"
	"briefkasten/internal/transport"
)

func main() {
	app := &cli.App{
		Name:  "briefkasten-cli",
		Usage: "relay a message from stdin, sendmail style",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to TOML configuration file",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "recipient address (a To: line on stdin overrides it)",
			},
			&cli.StringFlag{
				Name:    "subject",
				Aliases: []string{"s"},
				Usage:   "message subject (a Subject: line on stdin overrides it)",
			},
			&cli.StringFlag{
				Name:  "direction",
				Usage: "route to a configured recipient group instead of --to",
			},
			&cli.StringFlag{
				Name:  "from-name",
				Usage: "display name for the From header",
			},
			&cli.StringSliceFlag{
				Name:    "attach",
				Aliases: []string{"a"},
				Usage:   "attach a file (repeatable)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "briefkasten-cli:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	setupLogger(cfg.LogLevel)

	filter, err := spam.Compile(cfg.BlockWords)
	if err != nil {
		return err
	}

	in, err := ingest.Parse(os.Stdin)
	if err != nil {
		return err
	}

	// Stdin header lines win over flags.
	subject := c.String("subject")
	if in.Subject != "" {
		subject = in.Subject
	}
	recipient := c.String("to")
	if in.Recipient != "" {
		recipient = in.Recipient
	}

	direction := c.String("direction")
	if direction == "" && recipient == "" {
		return fmt.Errorf("no recipient: pass --to, --direction or a To: line on stdin")
	}

	attachments, err := loadAttachments(c.StringSlice("attach"), cfg.MaxAttachmentBytes())
	if err != nil {
		return err
	}

	msg := &relay.Msg{
		Direction:   direction,
		Mail:        recipient,
		Subject:     subject,
		Text:        in.Body,
		Attachments: attachments,
	}

	if word, blocked := filter.Match(msg.Subject, msg.Text); blocked {
		return fmt.Errorf("message blocked by content filter (%s)", word)
	}

	composer := relay.NewComposer(cfg)
	composer.SenderName = c.String("from-name")

	out, err := composer.Compose(msg)
	if err != nil {
		return err
	}

	primary, err := selectTransport(cfg)
	if err != nil {
		return err
	}
	dispatcher := transport.NewDispatcher(primary, archiveTransport(cfg))

	if err := dispatcher.Dispatch(context.Background(), out); err != nil {
		return err
	}

	fmt.Println("Send success!")
	return nil
}

// loadAttachments reads each file, enforcing the configured total size
// cap. Exceeding the cap is fatal before anything is sent; there is no
// partial send.
func loadAttachments(paths []string, maxBytes int64) ([]relay.Attachment, error) {
	var attachments []relay.Attachment
	var total int64

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		total += int64(len(data))
		if total > maxBytes {
			return nil, fmt.Errorf("attachments exceed the %d byte cap", maxBytes)
		}
		attachments = append(attachments, relay.Attachment{
			Filename: filepath.Base(p),
			Content:  data,
		})
	}

	return attachments, nil
}

// setupLogger writes text logs to stderr so stdout stays clean for the
// confirmation output.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func selectTransport(cfg *config.Config) (transport.Transport, error) {
	if cfg.Transport == "ses" {
		return transport.NewSES(context.Background(), cfg.SES)
	}
	return transport.NewSMTP(cfg.Mail), nil
}

func archiveTransport(cfg *config.Config) transport.Transport {
	if cfg.ArchiveDir == "" {
		return nil
	}
	st, err := os.Stat(cfg.ArchiveDir)
	if err != nil || !st.IsDir() {
		return nil
	}
	return transport.NewArchive(cfg.ArchiveDir)
}
