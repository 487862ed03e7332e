package ingest

import (
	"strings"
	"testing"
)

func TestParseCronStyleMessage(t *testing.T) {
	t.Parallel()

	in, err := Parse(strings.NewReader("Subject: Hello\nTo: a@b.com\nMIME-Version: 1.0\n\nBody line one\nBody line two"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if in.Subject != "Hello" {
		t.Errorf("Subject: got %q, want %q", in.Subject, "Hello")
	}
	if in.Recipient != "a@b.com" {
		t.Errorf("Recipient: got %q, want %q", in.Recipient, "a@b.com")
	}
	if in.Body != "Body line one\nBody line two" {
		t.Errorf("Body: got %q", in.Body)
	}
}

func TestParseDropsTransportBoilerplate(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"From: root (Cron Daemon)",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 8bit",
		"X-Cron-Env: <SHELL=/bin/sh>",
		"X-Cron-Env: <HOME=/root>",
		"actual output",
	}, "\n")

	in, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Body != "actual output" {
		t.Errorf("Body: got %q, want only the output line", in.Body)
	}
}

func TestParseToWithoutAtSignIgnored(t *testing.T) {
	t.Parallel()

	in, err := Parse(strings.NewReader("To: root\nbody"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Recipient != "" {
		t.Errorf("Recipient: got %q, a placeholder To must not override", in.Recipient)
	}
	if in.Body != "body" {
		t.Errorf("Body: got %q", in.Body)
	}
}

func TestParsePreservesInnerBlankLines(t *testing.T) {
	t.Parallel()

	in, err := Parse(strings.NewReader("\n\nfirst\n\nsecond"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Body != "first\n\nsecond" {
		t.Errorf("Body: got %q, leading blanks dropped but inner blanks kept", in.Body)
	}
}

func TestParseLastHeaderWins(t *testing.T) {
	t.Parallel()

	in, err := Parse(strings.NewReader("Subject: first\nSubject: second\nbody"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Subject != "second" {
		t.Errorf("Subject: got %q, want the later override", in.Subject)
	}
}

func TestParseEmptyInput(t *testing.T) {
	t.Parallel()

	in, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Subject != "" || in.Recipient != "" || in.Body != "" {
		t.Errorf("empty input must parse to the zero value, got %+v", in)
	}
}
