// Package ingest parses sendmail-style input from standard input,
// separating mail-transport boilerplate from the message body.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Header prefixes that are never treated as body content. Cron prefixes
// its environment dump with X-Cron-Env lines.
var headerPrefixes = []string{
	"From:",
	"To:",
	"Subject:",
	"MIME-Version:",
	"Content-Type:",
	"Content-Transfer-Encoding:",
	"X-Cron-Env:",
}

// Input is the result of parsing a line-oriented stdin stream.
type Input struct {
	Subject   string
	Recipient string
	Body      string
}

// Parse reads the stream line by line. A Subject: line overrides the
// subject. A To: line overrides the recipient, but only when its value
// contains an @, which filters out placeholder To headers cron and MTAs
// like to emit. Other header-prefixed lines are dropped. Blank lines
// before any body content are dropped; blank lines after the body has
// started belong to the message.
func Parse(r io.Reader) (Input, error) {
	var in Input
	var body []string

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

scan:
	for sc.Scan() {
		line := sc.Text()

		for _, prefix := range headerPrefixes {
			if !strings.HasPrefix(line, prefix) {
				continue
			}
			value := strings.TrimSpace(line[len(prefix):])
			switch prefix {
			case "Subject:":
				in.Subject = value
			case "To:":
				if strings.Contains(value, "@") {
					in.Recipient = value
				}
			}
			continue scan
		}

		if strings.TrimSpace(line) == "" && len(body) == 0 {
			continue
		}
		body = append(body, line)
	}
	if err := sc.Err(); err != nil {
		return Input{}, fmt.Errorf("read input: %w", err)
	}

	in.Body = strings.Join(body, "\n")
	return in, nil
}
