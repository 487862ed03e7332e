package transport

import (
	"context"
	"fmt"
	"os"
	"time"

	"briefkasten/internal/relay"
)

// Archive writes a copy of the composed message to a directory, one
// .eml file per message. It is a diagnostic mirror, not durable
// storage: callers treat its failures as best-effort.
type Archive struct {
	dir string
}

// NewArchive creates an Archive transport writing into dir. The caller
// is expected to have checked that the directory exists.
func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

// Send serializes the raw message to a new file in the archive
// directory. The filename carries a UTC timestamp; a random suffix
// keeps concurrent writes from colliding.
func (a *Archive) Send(_ context.Context, msg *relay.Outbound) error {
	if len(msg.To) == 0 {
		return &DeliveryError{Transport: a.Name(), Err: ErrNoRecipients}
	}

	pattern := time.Now().UTC().Format("20060102T150405") + "-*.eml"
	f, err := os.CreateTemp(a.dir, pattern)
	if err != nil {
		return &DeliveryError{Transport: a.Name(), Err: fmt.Errorf("create archive file: %w", err)}
	}

	if _, err := f.Write(msg.Raw); err != nil {
		f.Close()
		os.Remove(f.Name())
		return &DeliveryError{Transport: a.Name(), Err: fmt.Errorf("write archive file: %w", err)}
	}
	if err := f.Close(); err != nil {
		return &DeliveryError{Transport: a.Name(), Err: fmt.Errorf("close archive file: %w", err)}
	}

	return nil
}

// Name returns the transport name.
func (a *Archive) Name() string {
	return "archive"
}
