package relay

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	netmail "net/mail"
	"time"

	"github.com/emersion/go-message/mail"

	"briefkasten/internal/config"
	"briefkasten/internal/content"
)

// Composer builds transport-ready messages from Msg values. It performs
// no I/O: composition is a deterministic transformation over the message
// and the configuration it was constructed with.
type Composer struct {
	// SenderName optionally overrides the display name on the From
	// header (used by the CLI full-name flag).
	SenderName string

	sender string
	groups []config.RecipientGroup
}

// NewComposer creates a Composer using the configured sender identity
// and recipient groups.
func NewComposer(cfg *config.Config) *Composer {
	return &Composer{
		sender: cfg.Mail.User,
		groups: cfg.Recipients,
	}
}

// Compose resolves recipients, classifies the body and assembles the
// MIME message. The multipart body carries exactly one text part plus
// one sub-part per attachment, in input order.
//
// Malformed addresses yield a ValidationError. An empty resolved
// recipient list is passed through; the transport decides whether that
// is fatal.
func (c *Composer) Compose(msg *Msg) (*Outbound, error) {
	from, err := netmail.ParseAddress(c.sender)
	if err != nil {
		return nil, fmt.Errorf("sender address %q: %w", c.sender, err)
	}
	if c.SenderName != "" {
		from.Name = c.SenderName
	}

	res := Resolve(msg.Direction, msg.Mail, c.groups)
	msg.AllowHTML = res.AllowHTML

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetSubject(msg.Subject)

	var rcpts []string
	switch res.Mode {
	case ModeDirect:
		to, err := netmail.ParseAddress(msg.Mail)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("recipient address %q", msg.Mail), Err: err}
		}
		h.SetAddressList("To", []*mail.Address{to})
		rcpts = []string{to.Address}

	case ModeRouted:
		replyTo, err := netmail.ParseAddress(msg.Mail)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("reply-to address %q", msg.Mail), Err: err}
		}
		h.SetAddressList("Reply-To", []*mail.Address{replyTo})

		if len(res.Recipients) == 0 {
			slog.Debug("direction resolved to no recipients", "direction", msg.Direction)
			break
		}
		tos := make([]*mail.Address, 0, len(res.Recipients))
		for _, r := range res.Recipients {
			a, err := netmail.ParseAddress(r)
			if err != nil {
				return nil, &ValidationError{Reason: fmt.Sprintf("recipient address %q", r), Err: err}
			}
			tos = append(tos, a)
			rcpts = append(rcpts, a.Address)
		}
		h.SetAddressList("To", tos)
	}

	kind, body := content.Classify(msg.Text, res.AllowHTML)
	ctype := "text/plain"
	if kind == content.HTML {
		ctype = "text/html"
	}

	var buf bytes.Buffer
	if len(msg.Attachments) == 0 {
		h.SetContentType(ctype, map[string]string{"charset": "utf-8"})
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("create message writer: %w", err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			return nil, fmt.Errorf("write message body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("finish message body: %w", err)
		}
	} else {
		mw, err := mail.CreateWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("create message writer: %w", err)
		}

		var th mail.InlineHeader
		th.SetContentType(ctype, map[string]string{"charset": "utf-8"})
		th.Set("Content-Transfer-Encoding", "quoted-printable")
		tw, err := mw.CreateSingleInline(th)
		if err != nil {
			return nil, fmt.Errorf("create text part: %w", err)
		}
		if _, err := io.WriteString(tw, body); err != nil {
			return nil, fmt.Errorf("write text part: %w", err)
		}
		if err := tw.Close(); err != nil {
			return nil, fmt.Errorf("finish text part: %w", err)
		}

		for _, att := range msg.Attachments {
			var ah mail.AttachmentHeader
			ah.Set("Content-Type", sniffContentType(att.Content))
			ah.Set("Content-Transfer-Encoding", "base64")
			ah.SetFilename(att.Filename)
			aw, err := mw.CreateAttachment(ah)
			if err != nil {
				return nil, fmt.Errorf("create attachment %q: %w", att.Filename, err)
			}
			if _, err := aw.Write(att.Content); err != nil {
				return nil, fmt.Errorf("write attachment %q: %w", att.Filename, err)
			}
			if err := aw.Close(); err != nil {
				return nil, fmt.Errorf("finish attachment %q: %w", att.Filename, err)
			}
		}

		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("finish message: %w", err)
		}
	}

	return &Outbound{
		From: from.Address,
		To:   rcpts,
		Raw:  buf.Bytes(),
	}, nil
}

// sniffContentType inspects the attachment's magic bytes. Content that
// cannot be identified falls back to application/octet-stream rather
// than being rejected; the CLI path must accept arbitrary binaries.
func sniffContentType(data []byte) string {
	return http.DetectContentType(data)
}
