package relay

import "briefkasten/internal/config"

// Mode describes how the recipients of a message were determined.
type Mode int

const (
	// ModeDirect means no direction was supplied: the message's own
	// mail address is the sole recipient.
	ModeDirect Mode = iota
	// ModeRouted means the direction tag selected configured recipient
	// groups.
	ModeRouted
)

// Resolution is the outcome of recipient resolution.
type Resolution struct {
	Recipients []string
	AllowHTML  bool
	Mode       Mode
}

// Resolve maps a direction tag to the configured recipients. An empty
// direction selects direct mode, where mail itself is the recipient and
// HTML is permitted (the classifier still demands real markup before
// rendering HTML). Otherwise groups are scanned in declaration order;
// every group with a matching direction contributes its addresses and
// ORs in its HTML flag. An unmatched direction resolves to zero
// recipients with AllowHTML false; deciding whether that is fatal is the
// transport's job, not ours.
//
// Resolve is a pure function over configuration and input.
func Resolve(direction, mail string, groups []config.RecipientGroup) Resolution {
	if direction == "" {
		return Resolution{
			Recipients: []string{mail},
			AllowHTML:  true,
			Mode:       ModeDirect,
		}
	}

	res := Resolution{Mode: ModeRouted}
	for _, g := range groups {
		if g.Direction != direction {
			continue
		}
		res.Recipients = append(res.Recipients, g.Mails...)
		res.AllowHTML = res.AllowHTML || g.AllowHTML
	}

	return res
}
