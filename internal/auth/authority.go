package auth

import "crypto/subtle"

// Authority validates privileged purge requests against a shared secret.
// Failed attempts carry no lockout of their own; purge attempts are cheap
// and infrequent, and the caller surfaces a single error reply.
type Authority struct {
	adminKey string
}

// NewAuthority creates an authority guarding purge with adminKey.
func NewAuthority(adminKey string) *Authority {
	return &Authority{adminKey: adminKey}
}

// AuthorizePurge reports whether suppliedKey matches the configured secret.
// An empty configured key disables purge entirely.
func (a *Authority) AuthorizePurge(suppliedKey string) bool {
	if a.adminKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.adminKey), []byte(suppliedKey)) == 1
}
