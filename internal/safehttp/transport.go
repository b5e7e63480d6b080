// Package safehttp builds the HTTP client used for outbound provider
// calls. Replayed prompt instances carry recorded base URLs that users can
// edit, so by default connections into private address space are refused.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// NewClient returns an HTTP client for provider traffic. When allowPrivate
// is false, connections resolving to loopback, private, or link-local
// addresses are rejected at dial time. Local model servers need
// allowPrivate set.
func NewClient(allowPrivate bool) *http.Client {
	if allowPrivate {
		return &http.Client{}
	}
	return &http.Client{Transport: guardedTransport()}
}

func guardedTransport() *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 5 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
			ip := net.ParseIP(host)
			if ip == nil {
				conn.Close()
				return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
			}

			if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
				conn.Close()
				return nil, fmt.Errorf("access to private IP %s is denied", ip)
			}

			return conn, nil
		},
	}
}
