package transport

import (
	"context"
	"log/slog"

	"briefkasten/internal/relay"
)

// Dispatcher sends a composed message through the primary transport
// and, when configured, mirrors it to the archive transport.
type Dispatcher struct {
	primary Transport
	archive Transport
}

// NewDispatcher creates a Dispatcher. archive may be nil, disabling the
// mirror.
func NewDispatcher(primary, archive Transport) *Dispatcher {
	return &Dispatcher{
		primary: primary,
		archive: archive,
	}
}

// Dispatch performs the primary send and then the best-effort archive
// copy. An archive failure is logged but never reported: it does not
// roll back the already-succeeded primary send. A primary failure skips
// the archive entirely.
//
// Cancellation of the inbound request does not propagate: a send that
// has started runs to completion even if the caller disconnected.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *relay.Outbound) error {
	ctx = context.WithoutCancel(ctx)

	if err := d.primary.Send(ctx, msg); err != nil {
		return err
	}
	slog.Debug("message delivered", "transport", d.primary.Name(), "recipients", len(msg.To))

	if d.archive != nil {
		if err := d.archive.Send(ctx, msg); err != nil {
			slog.Error("archive copy failed", "error", err)
		}
	}

	return nil
}
