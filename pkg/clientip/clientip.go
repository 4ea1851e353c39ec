// Package clientip resolves the peer address the rate limiters key on.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the IP the connection was made from. Dashboards and
// provisioning scripts hit the API directly, with no proxy or CDN in front,
// so RemoteAddr is authoritative here; forwarding headers are client input
// and are not consulted.
func RealClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
