// Package admission guards the HTTP entry points: it extracts the
// trustworthy client IP and applies a per-IP rate limit before any
// request parsing or composition work happens.
package admission

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Forwarded-address headers consulted when the request came through the
// trusted reverse proxy, in preference order.
var forwardHeaders = []string{"X-Forwarded-For", "X-Real-Ip"}

// ErrNoForwardedAddr is returned when the trusted proxy supplied no
// usable forwarded address.
var ErrNoForwardedAddr = errors.New("trusted proxy supplied no forwarded address")

// ClientIP determines the real client IP of a request. If the direct
// peer is the single trusted reverse proxy, the proxy-supplied forwarded
// address is used; any other peer is taken at face value and its
// forwarding headers ignored, so a non-proxy client cannot spoof its IP.
//
// Extraction failure is an error, never a fallback to some shared
// unlimited key: the caller must reject the request.
func ClientIP(remoteAddr string, hdr http.Header, trustedProxy netip.Addr) (string, error) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return "", fmt.Errorf("unparsable peer address %q: %w", remoteAddr, err)
	}

	if !trustedProxy.IsValid() || peer.Unmap() != trustedProxy.Unmap() {
		return peer.Unmap().String(), nil
	}

	for _, name := range forwardHeaders {
		v := hdr.Get(name)
		if v == "" {
			continue
		}
		// X-Forwarded-For may carry a chain; the proxy prepends the
		// address it saw, which is the first entry.
		first := strings.TrimSpace(strings.SplitN(v, ",", 2)[0])
		if ap, err := netip.ParseAddrPort(first); err == nil {
			return ap.Addr().Unmap().String(), nil
		}
		a, err := netip.ParseAddr(first)
		if err != nil {
			return "", fmt.Errorf("unparsable forwarded address %q in %s: %w", first, name, err)
		}
		return a.Unmap().String(), nil
	}

	return "", ErrNoForwardedAddr
}
