package session

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"uplink/pkg/types"
)

// Registry tracks active sessions keyed by connection ID. It is the only
// owner of Session records: created on join, removed on disconnect. Aliases
// are not required to be unique; two sessions may share a display name and
// alias lookups return the first match in join order.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	order    []string // connection IDs in join order, for first-match alias lookup
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*types.Session),
	}
}

// Register creates and stores a session for connID. An empty rawAlias falls
// back to a generated User_<shortID> name. remoteAddr is masked before it is
// stored; the registry never retains the raw transport address.
func (r *Registry) Register(connID, rawAlias, remoteAddr string) *types.Session {
	alias := strings.TrimSpace(rawAlias)
	if alias == "" {
		alias = fallbackAlias(connID)
	}

	sess := &types.Session{
		ConnectionID: connID,
		Alias:        alias,
		MaskedAddr:   MaskAddr(remoteAddr),
		JoinedAt:     time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.sessions[connID] = sess
	return sess
}

// Lookup returns the session for connID.
func (r *Registry) Lookup(connID string) (*types.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connID]
	return sess, ok
}

// LookupByAlias resolves an alias to a connection ID. When aliases collide
// the earliest-joined session wins.
func (r *Registry) LookupByAlias(alias string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, connID := range r.order {
		if sess, ok := r.sessions[connID]; ok && sess.Alias == alias {
			return connID, true
		}
	}
	return "", false
}

// Remove deletes the session for connID. Removing an unknown or already
// removed ID is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[connID]; !ok {
		return
	}
	delete(r.sessions, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ListAll returns all active sessions in join order.
func (r *Registry) ListAll() []*types.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*types.Session, 0, len(r.order))
	for _, connID := range r.order {
		if sess, ok := r.sessions[connID]; ok {
			sessions = append(sessions, sess)
		}
	}
	return sessions
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// MaskAddr derives the display-only address shown in rosters. The leading
// component of the host survives, the rest is masked; addresses that cannot
// be parsed or carry no useful prefix are masked entirely.
func MaskAddr(remoteAddr string) string {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return "xxx.xxx.xxx.xxx"
	}
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("%d.x.x.x", v4[0])
	}
	// IPv6: keep the first group only.
	groups := strings.Split(ip.String(), ":")
	return groups[0] + ":x:x:x"
}

func fallbackAlias(connID string) string {
	short := connID
	if len(short) > 4 {
		short = short[:4]
	}
	return "User_" + short
}
