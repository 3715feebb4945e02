package session

import (
	"context"
	"time"
)

// DefaultTTL is the session lifetime applied when no expiry hint is present.
const DefaultTTL = 24 * time.Hour

// Payload is the mutable content of a session record. A zero UserID marks an
// anonymous session.
type Payload struct {
	UserID int64             `json:"user_id,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// ExpiryHint mirrors the cookie attributes that drive session lifetime.
type ExpiryHint struct {
	ExpiresAt time.Time
	MaxAge    time.Duration
}

// Deadline resolves the hint to an absolute expiry instant: an explicit
// expiration wins, then a max-age relative to now, then DefaultTTL.
func (h ExpiryHint) Deadline(now time.Time) time.Time {
	if !h.ExpiresAt.IsZero() {
		return h.ExpiresAt
	}
	if h.MaxAge > 0 {
		return now.Add(h.MaxAge)
	}
	return now.Add(DefaultTTL)
}

// Store is the backend contract for session persistence. A missing sid is
// (zero, false, nil), never an error; a record whose expiry has passed at
// read time must be destroyed and reported absent, not returned stale.
// Each operation is atomic with respect to a single sid; concurrent writes
// to the same sid are last-writer-wins.
type Store interface {
	// Get resolves sid to its payload.
	Get(ctx context.Context, sid string) (Payload, bool, error)
	// Set upserts the payload and recomputes the expiry from hint.
	Set(ctx context.Context, sid string, p Payload, hint ExpiryHint) error
	// Touch recomputes only the expiry, leaving the payload untouched.
	// Touching a missing sid is a no-op success; it never creates a record.
	Touch(ctx context.Context, sid string, hint ExpiryHint) error
	// Destroy deletes sid. Deleting a missing sid succeeds silently.
	Destroy(ctx context.Context, sid string) error
	// Count reports the number of stored records, expired or not.
	// Administrative use only.
	Count(ctx context.Context) (int, error)
	// All returns every record whose expiry has not passed. Not for the
	// request hot path.
	All(ctx context.Context) (map[string]Payload, error)
	// Clear deletes every record.
	Clear(ctx context.Context) error
}

func clonePayload(p Payload) Payload {
	out := Payload{UserID: p.UserID}
	if p.Values != nil {
		out.Values = make(map[string]string, len(p.Values))
		for k, v := range p.Values {
			out.Values[k] = v
		}
	}
	return out
}
