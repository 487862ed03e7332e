package httpapi

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"briefkasten/internal/admission"
	"briefkasten/internal/config"
	"briefkasten/internal/relay"
	"briefkasten/internal/spam"
	"briefkasten/internal/transport"
)

// fakeTransport records dispatched messages.
type fakeTransport struct {
	fail  error
	sends []*relay.Outbound
}

func (f *fakeTransport) Send(_ context.Context, msg *relay.Outbound) error {
	f.sends = append(f.sends, msg)
	return f.fail
}

func (f *fakeTransport) Name() string { return "fake" }

func testAPI(t *testing.T, rateLimitSeconds int) (*API, *fakeTransport) {
	t.Helper()

	cfg := &config.Config{
		RateLimitSeconds: rateLimitSeconds,
		MaxAttachmentMB:  1,
		Mail:             config.MailConfig{User: "relay@example.org"},
		Recipients: []config.RecipientGroup{
			{Direction: "support", Mails: []string{"help@example.org"}, AllowHTML: true},
		},
	}

	filter, err := spam.Compile([]string{"casino"})
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}

	ft := &fakeTransport{}
	api := New(cfg, filter, relay.NewComposer(cfg), transport.NewDispatcher(ft, nil), admission.NewLimiter(rateLimitSeconds))
	return api, ft
}

func TestPostMailSuccess(t *testing.T) {
	t.Parallel()

	api, ft := testAPI(t, 0)
	e := api.Router()

	body := `{"mail":"caller@example.com","subject":"Hi","text":"A question."}`
	req := httptest.NewRequest(http.MethodPost, "/mail/support/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Send success!" {
		t.Errorf("body: got %q", rec.Body.String())
	}
	if len(ft.sends) != 1 {
		t.Fatalf("sends: got %d, want 1", len(ft.sends))
	}
	if len(ft.sends[0].To) != 1 || ft.sends[0].To[0] != "help@example.org" {
		t.Errorf("recipients: got %v, want the support group", ft.sends[0].To)
	}
}

func TestPostMailDirectionFromPathOnly(t *testing.T) {
	t.Parallel()

	api, ft := testAPI(t, 0)
	e := api.Router()

	// A direction field in the body must be ignored.
	body := `{"direction":"spoofed","mail":"caller@example.com","subject":"Hi","text":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/mail/support/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if len(ft.sends) != 1 || ft.sends[0].To[0] != "help@example.org" {
		t.Errorf("spoofed body direction must not change routing: %+v", ft.sends)
	}
}

func TestPostMailBlockedContent(t *testing.T) {
	t.Parallel()

	api, ft := testAPI(t, 0)
	e := api.Router()

	body := `{"mail":"caller@example.com","subject":"free casino money","text":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/mail/support/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422", rec.Code)
	}
	if len(ft.sends) != 0 {
		t.Error("a blocked message must never reach the transport")
	}
}

func TestPostMailMalformedAddress(t *testing.T) {
	t.Parallel()

	api, ft := testAPI(t, 0)
	e := api.Router()

	body := `{"mail":"no address","subject":"Hi","text":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/mail/support/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422", rec.Code)
	}
	if len(ft.sends) != 0 {
		t.Error("an invalid message must not be dispatched")
	}
}

func TestPostMailInvalidJSON(t *testing.T) {
	t.Parallel()

	api, _ := testAPI(t, 0)
	e := api.Router()

	req := httptest.NewRequest(http.MethodPost, "/mail/support/", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestPostMailDispatchFailure(t *testing.T) {
	t.Parallel()

	api, ft := testAPI(t, 0)
	ft.fail = errors.New("connection refused")
	e := api.Router()

	body := `{"mail":"caller@example.com","subject":"Hi","text":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/mail/support/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}
}

func TestPutMailWithAttachments(t *testing.T) {
	t.Parallel()

	api, ft := testAPI(t, 0)
	e := api.Router()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("mail", "caller@example.com")
	mw.WriteField("subject", "Files")
	mw.WriteField("text", "see attached")
	fw, _ := mw.CreateFormFile("upload", "data.bin")
	fw.Write([]byte{0x01, 0x02, 0x03})
	mw.Close()

	req := httptest.NewRequest(http.MethodPut, "/mail/support/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if len(ft.sends) != 1 {
		t.Fatalf("sends: got %d, want 1", len(ft.sends))
	}
	if !bytes.Contains(ft.sends[0].Raw, []byte("data.bin")) {
		t.Error("attachment filename missing from the composed message")
	}
}

func TestPutMailUnknownFieldConflict(t *testing.T) {
	t.Parallel()

	api, ft := testAPI(t, 0)
	e := api.Router()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("mail", "caller@example.com")
	mw.WriteField("surprise", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPut, "/mail/support/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "surprise") {
		t.Errorf("body: got %q, want the offending field name", rec.Body.String())
	}
	if len(ft.sends) != 0 {
		t.Error("nothing may be dispatched on an unknown form field")
	}
}

func TestPutMailOversizeAttachment(t *testing.T) {
	t.Parallel()

	api, ft := testAPI(t, 0) // cap is 1 MB
	e := api.Router()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("mail", "caller@example.com")
	fw, _ := mw.CreateFormFile("upload", "big.bin")
	fw.Write(bytes.Repeat([]byte{0xff}, 1048577))
	mw.Close()

	req := httptest.NewRequest(http.MethodPut, "/mail/support/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d, want 413", rec.Code)
	}
	if len(ft.sends) != 0 {
		t.Error("an oversize upload must not be dispatched")
	}
}

func TestRateLimitRejectsSecondRequest(t *testing.T) {
	t.Parallel()

	api, _ := testAPI(t, 3600)
	e := api.Router()

	send := func() *httptest.ResponseRecorder {
		body := `{"mail":"caller@example.com","subject":"Hi","text":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/mail/support/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.7:55001"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d, want 200", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", rec.Code)
	}
	if rec.Body.String() != "Too many requests" {
		t.Errorf("429 body: got %q, want the fixed text", rec.Body.String())
	}
}

func TestAdmissionRejectsUnparsablePeer(t *testing.T) {
	t.Parallel()

	api, ft := testAPI(t, 0)
	e := api.Router()

	body := `{"mail":"caller@example.com","subject":"Hi","text":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/mail/support/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "garbage"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", rec.Code)
	}
	if len(ft.sends) != 0 {
		t.Error("an unadmitted request must not be dispatched")
	}
}
