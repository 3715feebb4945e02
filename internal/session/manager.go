package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// Manager binds cookie-carried session identifiers to a Store. It follows a
// load/commit cycle: the middleware loads a State at request start and
// commits it through the Store before the first response byte, so a success
// response is never sent ahead of the session write it claims.
//
// Cookie values carry the sid plus an HMAC over it, so only identifiers this
// process minted ever reach the store. A caller-supplied sid is never
// persisted: a tampered cookie, and equally a verified cookie whose record
// the store no longer holds, both resolve to a fresh identifier.
type Manager struct {
	store      Store
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
}

// State is the per-request view of one session.
type State struct {
	ID        string
	payload   Payload
	isNew     bool
	dirty     bool
	destroyed bool
}

// NewManager constructs a Manager.
func NewManager(store Store, cookieName, secret string, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, cookieName: cookieName, secret: []byte(secret), ttl: ttl, secure: secure}
}

// Load resolves the request's session cookie against the store. A missing or
// tampered cookie, and a verified sid the store no longer resolves, all yield
// a fresh anonymous state under a newly minted identifier; the client's sid
// is never adopted.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*State, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return m.newState(), nil
	}
	sid, ok := m.verifyCookie(cookie.Value)
	if !ok {
		return m.newState(), nil
	}
	p, ok, err := m.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return m.newState(), nil
	}
	return &State{ID: sid, payload: p}, nil
}

// Commit persists the state and writes cookie headers. Destroyed states are
// removed from the store and their cookie expired; untouched live states get
// their expiry slid forward via Touch.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, st *State) error {
	if st == nil {
		return nil
	}

	if st.destroyed {
		if err := m.store.Destroy(ctx, st.ID); err != nil {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}

	hint := ExpiryHint{MaxAge: m.ttl}
	if st.dirty || st.isNew {
		if err := m.store.Set(ctx, st.ID, st.payload, hint); err != nil {
			return err
		}
		st.dirty = false
		st.isNew = false
	} else if err := m.store.Touch(ctx, st.ID, hint); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    m.signCookie(st.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(m.ttl),
	})
	return nil
}

// signCookie produces the wire form "sid.signature".
func (m *Manager) signCookie(sid string) string {
	return sid + "." + m.signature(sid)
}

// verifyCookie recovers the sid from a cookie value, rejecting anything this
// process did not sign.
func (m *Manager) verifyCookie(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}
	sid, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(m.signature(sid))) {
		return "", false
	}
	return sid, true
}

func (m *Manager) signature(sid string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(sid))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// DestroyByID removes a session record directly, outside the load/commit
// cycle of the current request.
func (m *Manager) DestroyByID(ctx context.Context, sid string) error {
	return m.store.Destroy(ctx, sid)
}

// Store exposes the backing store for administrative callers.
func (m *Manager) Store() Store {
	return m.store
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) newState() *State {
	return &State{ID: NewID(), isNew: true, dirty: true}
}

// UserID returns the authenticated principal id, zero when anonymous.
func (st *State) UserID() int64 {
	return st.payload.UserID
}

// SetUser binds the session to a principal.
func (st *State) SetUser(id int64) {
	st.payload.UserID = id
	st.dirty = true
}

// Set stores a key-value pair in the payload.
func (st *State) Set(key, value string) {
	if st.payload.Values == nil {
		st.payload.Values = make(map[string]string)
	}
	st.payload.Values[key] = value
	st.dirty = true
}

// Get retrieves a payload value.
func (st *State) Get(key string) string {
	return st.payload.Values[key]
}

// Renew replaces the state's identity with a fresh anonymous record. A
// destroyed identifier never becomes live again; a fresh login goes through
// a new sid instead.
func (st *State) Renew() {
	st.ID = NewID()
	st.payload = Payload{}
	st.isNew = true
	st.dirty = true
	st.destroyed = false
}

// Destroy marks the session for deletion at commit.
func (st *State) Destroy() {
	st.destroyed = true
}

// Destroyed reports whether the session is marked for deletion.
func (st *State) Destroyed() bool {
	return st.destroyed
}
