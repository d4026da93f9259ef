// Package clientip resolves the address of the client that sent a request.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Header names consulted in priority order.
const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRemoteAddr   = "Remote-Addr"
)

// FromRequest returns the client host for r.
//
// The last entry of X-Forwarded-For wins because it is the hop appended by
// the closest proxy. Without that header the Remote-Addr header is used, and
// as a last resort the host part of r.RemoteAddr.
func FromRequest(r *http.Request) string {
	if h := r.Header.Get(HeaderForwardedFor); h != "" {
		if host := lastElement(h); host != "" {
			return host
		}
	}
	if h := r.Header.Get(HeaderRemoteAddr); h != "" {
		if host := lastElement(h); host != "" {
			return host
		}
	}
	return hostOnly(r.RemoteAddr)
}

func lastElement(h string) string {
	if i := strings.LastIndexByte(h, ','); i >= 0 {
		h = h[i+1:]
	}
	return strings.TrimSpace(h)
}

func hostOnly(addr string) string {
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]")
	}
	return host
}
