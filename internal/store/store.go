// Package store keeps the short-lived state of the collection endpoint:
// single-use nonces bound to a client address and per-client request
// counters. Fingerprint records are never stored.
package store

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	// IssueNonce creates a nonce that clientIP may redeem once within ttl.
	IssueNonce(ctx context.Context, clientIP string, ttl time.Duration) (string, error)
	// ConsumeNonce redeems nonce. It reports false when the nonce is
	// unknown, expired, already used or was issued to another address.
	ConsumeNonce(ctx context.Context, nonce, clientIP string) (bool, error)
	// IsRateLimited counts one request for id and reports whether id is
	// over perMinute. A non-positive limit disables limiting.
	IsRateLimited(ctx context.Context, id string, perMinute int) (bool, error)
	Close() error
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NormalizeIP returns the host portion of addr.
func NormalizeIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return host
}
