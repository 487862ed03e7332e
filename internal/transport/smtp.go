package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"briefkasten/internal/config"
	"briefkasten/internal/relay"
)

// SMTP delivers messages through an upstream SMTP submission server,
// using STARTTLS or implicit TLS depending on configuration. One
// connection per Send; the contract is at-most-once delivery with no
// connection reuse.
type SMTP struct {
	host      string
	port      int
	username  string
	password  string
	startTLS  bool
	tlsConfig *tls.Config
}

// NewSMTP creates an SMTP transport from the mail configuration.
func NewSMTP(cfg config.MailConfig) *SMTP {
	return &SMTP{
		host:     cfg.SMTP,
		port:     cfg.Port,
		username: cfg.User,
		password: cfg.Password,
		startTLS: cfg.StartTLS,
		tlsConfig: &tls.Config{
			ServerName: cfg.SMTP,
		},
	}
}

// Send connects, authenticates and submits the message. The context is
// deliberately not propagated into the SMTP session: once dispatch has
// begun, a caller disconnect must not abort the send.
func (s *SMTP) Send(_ context.Context, msg *relay.Outbound) error {
	if len(msg.To) == 0 {
		return &DeliveryError{Transport: s.Name(), Err: ErrNoRecipients}
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	var (
		c   *smtp.Client
		err error
	)
	if s.startTLS {
		c, err = smtp.DialStartTLS(addr, s.tlsConfig)
	} else {
		c, err = smtp.DialTLS(addr, s.tlsConfig)
	}
	if err != nil {
		return &DeliveryError{Transport: s.Name(), Err: err}
	}
	defer c.Close()

	if s.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
			return &DeliveryError{Transport: s.Name(), Err: err}
		}
	}

	if err := c.SendMail(msg.From, msg.To, bytes.NewReader(msg.Raw)); err != nil {
		return &DeliveryError{Transport: s.Name(), Err: err}
	}

	if err := c.Quit(); err != nil {
		// The message was accepted; a failed QUIT is not a delivery failure.
		slog.Debug("smtp quit failed", "error", err)
	}

	return nil
}

// Name returns the transport name.
func (s *SMTP) Name() string {
	return "smtp"
}
