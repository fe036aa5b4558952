// Package session bridges conversation state across otherwise-stateless
// gateway callbacks. Records live in an external store keyed by the gateway
// session id; absence of a record simply means "not logged in".
package session

import (
	"context"
	"time"
)

// DefaultTTL is the inactivity window after which a stored session expires.
const DefaultTTL = 3600 * time.Second

// Record stores the credentials persisted for one gateway session.
type Record struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

// Authenticated reports whether the record carries a usable credential.
// Both the token and the user id must be present; a stale or partial
// record is treated as logged out.
func (r Record) Authenticated() bool {
	return r.Token != "" && r.UserID != 0
}

// Manager persists session records between callbacks.
//
// Load never fails: when the store is unreachable or the key is absent the
// zero Record is returned, so affected subscribers appear logged out rather
// than seeing an error. Save overwrites wholesale; Clear is idempotent.
type Manager interface {
	Load(ctx context.Context, sessionID string) Record
	Save(ctx context.Context, sessionID string, rec Record, ttl time.Duration) error
	Clear(ctx context.Context, sessionID string) error

	// Mode identifies the backing store ("redis" or "memory") for health
	// reporting, so the degraded no-persistence fallback stays observable.
	Mode() string
}
