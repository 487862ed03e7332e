package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"briefkasten/internal/relay"
)

// maxFieldBytes bounds the plain text form fields of the multipart
// route. Attachments have their own configured cap.
const maxFieldBytes = 1 << 20

var errTooLarge = errors.New("attachment size cap exceeded")

// postMail handles the JSON route. The direction comes from the path
// only; a direction field in the body is ignored by the Msg decoder, so
// it cannot be spoofed.
func (a *API) postMail(c echo.Context) error {
	var msg relay.Msg
	if err := json.NewDecoder(c.Request().Body).Decode(&msg); err != nil {
		return c.String(http.StatusBadRequest, "Invalid JSON body")
	}
	msg.Direction = c.Param("direction")

	return a.deliver(c, &msg)
}

// putMail handles the multipart route. The fields mail, subject and
// text are single text values (the first occurrence wins); every other
// field carrying a filename becomes an attachment, in arrival order.
// A non-file field with any other name is a hard error.
//
// Parts are consumed as a stream and the configured attachment cap is
// enforced while reading, so an oversized upload is cut off early
// instead of being buffered whole.
func (a *API) putMail(c echo.Context) error {
	mr, err := c.Request().MultipartReader()
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid multipart body")
	}

	msg := relay.Msg{Direction: c.Param("direction")}
	var total int64
	maxBytes := a.cfg.MaxAttachmentBytes()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return c.String(http.StatusBadRequest, "Invalid multipart body")
		}

		name := part.FormName()
		switch name {
		case "mail":
			setIfEmpty(&msg.Mail, readField(part))
		case "subject":
			setIfEmpty(&msg.Subject, readField(part))
		case "text":
			setIfEmpty(&msg.Text, readField(part))
		default:
			filename := part.FileName()
			if filename == "" {
				slog.Error("unknown form field", "field", name)
				return c.String(http.StatusConflict, fmt.Sprintf("Unknown form data: %s", name))
			}
			data, err := readAttachment(part, maxBytes, &total)
			if errors.Is(err, errTooLarge) {
				return c.String(http.StatusRequestEntityTooLarge, "Attachments too large")
			}
			if err != nil {
				return c.String(http.StatusBadRequest, "Invalid multipart body")
			}
			msg.Attachments = append(msg.Attachments, relay.Attachment{
				Filename: filename,
				Content:  data,
			})
		}
	}

	return a.deliver(c, &msg)
}

// deliver runs a parsed message through the pipeline: spam filter,
// composer, dispatcher. Every rejection path is logged and mapped to a
// transport-specific status here and nowhere else.
func (a *API) deliver(c echo.Context, msg *relay.Msg) error {
	if word, blocked := a.filter.Match(msg.Subject, msg.Text); blocked {
		slog.Info("message blocked",
			"word", word,
			"direction", msg.Direction,
			"mail", msg.Mail,
		)
		return c.String(http.StatusUnprocessableEntity, "Message rejected")
	}

	out, err := a.composer.Compose(msg)
	if err != nil {
		var verr *relay.ValidationError
		if errors.As(err, &verr) {
			slog.Info("message rejected", "error", verr)
			return c.String(http.StatusUnprocessableEntity, verr.Reason)
		}
		slog.Error("composition failed", "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	if err := a.dispatcher.Dispatch(c.Request().Context(), out); err != nil {
		slog.Error("dispatch failed", "direction", msg.Direction, "error", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}

	return c.String(http.StatusOK, "Send success!")
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// readField reads a small text field, silently truncating at
// maxFieldBytes.
func readField(part *multipart.Part) string {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return ""
	}
	return string(data)
}

// readAttachment reads one attachment part in chunks, updating the
// running total and failing as soon as the cap is crossed.
func readAttachment(part *multipart.Part, maxBytes int64, total *int64) ([]byte, error) {
	var data []byte
	buf := make([]byte, 32*1024)

	for {
		n, err := part.Read(buf)
		if n > 0 {
			*total += int64(n)
			if *total > maxBytes {
				return nil, errTooLarge
			}
			data = append(data, buf[:n]...)
		}
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
