package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address for rate limiting and logs.
//
// RemoteAddr is only rewritten from X-Forwarded-For / X-Real-IP when the
// router trusts proxy headers; otherwise it is the TCP peer.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
