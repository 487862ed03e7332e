// Package transport defines the interface for mail delivery backends and
// the dispatcher that fans a composed message out to them.
package transport

import (
	"context"
	"errors"
	"fmt"

	"briefkasten/internal/relay"
)

// ErrNoRecipients is returned when a message reaches a transport with an
// empty envelope recipient list (e.g. an unmatched direction).
var ErrNoRecipients = errors.New("message has no recipients")

// Transport is the interface that delivery backends must implement.
// Each transport handles one complete delivery of an already-composed
// message; no retries, no pooling.
type Transport interface {
	// Send delivers the message. It returns an error if delivery fails.
	Send(ctx context.Context, msg *relay.Outbound) error

	// Name returns the human-readable name of this transport.
	Name() string
}

// DeliveryError reports a transport-level delivery failure. The caller
// decides whether to retry; this package never does.
type DeliveryError struct {
	Transport string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Transport, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
