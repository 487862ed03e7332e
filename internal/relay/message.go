// Package relay defines the canonical outbound message and composes it
// into a transport-ready MIME message.
package relay

// Msg is the canonical outbound message as assembled from an HTTP
// request or the CLI.
//
// Direction and AllowHTML are never taken from the client: Direction is
// set from the route path or CLI context only, and AllowHTML is always
// overwritten during recipient resolution.
type Msg struct {
	Direction string `json:"-"`
	Mail      string `json:"mail"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	AllowHTML bool   `json:"-"`

	Attachments []Attachment `json:"-"`
}

// Attachment is a single binary attachment in input order.
type Attachment struct {
	Filename string
	Content  []byte
}

// Outbound is a fully composed, transport-ready message. From and To
// form the envelope; Raw is the serialized RFC 5322 message.
type Outbound struct {
	From string
	To   []string
	Raw  []byte
}

// ValidationError reports client-caused composition failures, such as a
// malformed address. The boundary layer maps it to a 4xx response.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
