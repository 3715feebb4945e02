package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-app/gatehouse/internal/accounts"
	"github.com/gatehouse-app/gatehouse/internal/app"
	"github.com/gatehouse-app/gatehouse/internal/auth"
	"github.com/gatehouse-app/gatehouse/internal/session"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	_ "github.com/gatehouse-app/gatehouse/testing"
)

// fakeAccountsRepo is an in-memory accounts.Repository for end-to-end tests.
type fakeAccountsRepo struct {
	nextID     int64
	byID       map[int64]*accounts.Principal
	lastLogins []int64
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{nextID: 1, byID: make(map[int64]*accounts.Principal)}
}

func (r *fakeAccountsRepo) Create(ctx context.Context, name, email, passwordHash string) (*accounts.Principal, error) {
	for _, p := range r.byID {
		if p.Email == email {
			return nil, shared.ErrEmailTaken
		}
	}
	p := &accounts.Principal{ID: r.nextID, Name: name, Email: email, PasswordHash: passwordHash, Status: accounts.StatusActive, CreatedAt: time.Now()}
	r.byID[p.ID] = p
	r.nextID++
	out := *p
	return &out, nil
}

func (r *fakeAccountsRepo) FindByID(ctx context.Context, id int64) (*accounts.Principal, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *fakeAccountsRepo) FindByEmail(ctx context.Context, email string) (*accounts.Principal, error) {
	for _, p := range r.byID {
		if p.Email == email {
			out := *p
			return &out, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeAccountsRepo) List(ctx context.Context) ([]accounts.Principal, error) {
	var out []accounts.Principal
	for _, p := range r.byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAccountsRepo) UpdateStatus(ctx context.Context, id int64, status accounts.Status) (*accounts.Principal, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	p.Status = status
	out := *p
	return &out, nil
}

func (r *fakeAccountsRepo) BulkSetStatus(ctx context.Context, ids []int64, status accounts.Status) ([]accounts.Principal, error) {
	var out []accounts.Principal
	for _, id := range ids {
		if p, ok := r.byID[id]; ok {
			p.Status = status
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeAccountsRepo) BulkDelete(ctx context.Context, ids []int64) ([]int64, error) {
	var deleted []int64
	for _, id := range ids {
		if _, ok := r.byID[id]; ok {
			delete(r.byID, id)
			deleted = append(deleted, id)
		}
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i] < deleted[j] })
	return deleted, nil
}

func (r *fakeAccountsRepo) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	r.lastLogins = append(r.lastLogins, id)
	if p, ok := r.byID[id]; ok {
		stamp := at
		p.LastLoginAt = &stamp
	}
	return nil
}

var _ accounts.Repository = (*fakeAccountsRepo)(nil)

type apiFixture struct {
	router   http.Handler
	store    *session.MemoryStore
	repo     *fakeAccountsRepo
	recorder *stubRecorder
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := session.NewMemoryStore()
	manager := session.NewManager(store, "gatehouse_session", "test-secret", time.Hour, false)
	repo := newFakeAccountsRepo()
	recorder := &stubRecorder{}

	gate := auth.NewGate(testLogger(), repo)
	authService := auth.NewService(testLogger(), repo, recorder)
	authHandler := auth.NewHandler(testLogger(), authService, gate)

	accountsService := accounts.NewService(repo)
	accountsHandler := accounts.NewHandler(testLogger(), accountsService)

	router := app.NewRouter(app.RouterParams{
		Logger:          testLogger(),
		Config:          &app.Config{},
		Sessions:        manager,
		Gate:            gate,
		AuthHandler:     authHandler,
		AccountsHandler: accountsHandler,
	})
	return &apiFixture{router: router, store: store, repo: repo, recorder: recorder}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == "gatehouse_session" && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func decodeEnvelope(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func TestAuthScenario(t *testing.T) {
	f := newAPIFixture(t)

	// Register succeeds once.
	res := f.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"name": "Alice", "email": "alice@test.local", "password": "rightpass"}, nil)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	// A second register with the same email conflicts.
	res = f.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"name": "Alice Again", "email": "alice@test.local", "password": "other"}, nil)
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Contains(t, res.Body.String(), "Email already exists")

	// Wrong password fails unauthenticated.
	res = f.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@test.local", "password": "wrongpass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid credentials")

	// Right password succeeds and yields a session cookie.
	res = f.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@test.local", "password": "rightpass"}, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	cookie := sessionCookie(t, res)

	// The session is durably resolvable on the very next request.
	res = f.do(t, http.MethodGet, "/api/auth/check", nil, cookie)
	require.Equal(t, http.StatusOK, res.Code)

	// Gated route admits the caller.
	res = f.do(t, http.MethodGet, "/api/users", nil, cookie)
	require.Equal(t, http.StatusOK, res.Code)

	// Last-login recording was enqueued, not awaited.
	require.Len(t, f.recorder.records, 1)
	assert.Equal(t, int64(1), f.recorder.records[0].userID)

	// Logout destroys the session.
	res = f.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, res.Code)

	// The same sid never becomes live again.
	res = f.do(t, http.MethodGet, "/api/users", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginBlockedAccount(t *testing.T) {
	f := newAPIFixture(t)
	alice, err := f.repo.Create(context.Background(), "Alice", "alice@test.local", hashPassword(t, "rightpass"))
	require.NoError(t, err)
	_, err = f.repo.UpdateStatus(context.Background(), alice.ID, accounts.StatusBlocked)
	require.NoError(t, err)

	res := f.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@test.local", "password": "rightpass"}, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "Account is blocked")
}

func TestLoginAlreadyAuthenticated(t *testing.T) {
	f := newAPIFixture(t)
	_, err := f.repo.Create(context.Background(), "Alice", "alice@test.local", hashPassword(t, "rightpass"))
	require.NoError(t, err)

	res := f.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@test.local", "password": "rightpass"}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	cookie := sessionCookie(t, res)

	res = f.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@test.local", "password": "rightpass"}, cookie)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Already authenticated")
}

func TestSelfTargetingBlock(t *testing.T) {
	f := newAPIFixture(t)
	alice, err := f.repo.Create(context.Background(), "Alice", "alice@test.local", hashPassword(t, "rightpass"))
	require.NoError(t, err)
	bob, err := f.repo.Create(context.Background(), "Bob", "bob@test.local", hashPassword(t, "bobpass"))
	require.NoError(t, err)

	res := f.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@test.local", "password": "rightpass"}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	cookie := sessionCookie(t, res)

	res = f.do(t, http.MethodPost, "/api/users/block",
		map[string]any{"userIds": []int64{alice.ID, bob.ID}}, cookie)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	env := decodeEnvelope(t, res)
	assert.Equal(t, true, env["selfAction"], "self-targeting block flags the response")

	blocked, err := f.repo.FindByID(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.StatusBlocked, blocked.Status)

	// The actor's session no longer resolves through the gate.
	res = f.do(t, http.MethodGet, "/api/users", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestBulkDeleteSelf(t *testing.T) {
	f := newAPIFixture(t)
	alice, err := f.repo.Create(context.Background(), "Alice", "alice@test.local", hashPassword(t, "rightpass"))
	require.NoError(t, err)

	res := f.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@test.local", "password": "rightpass"}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	cookie := sessionCookie(t, res)

	res = f.do(t, http.MethodPost, "/api/users/delete",
		map[string]any{"userIds": []int64{alice.ID}}, cookie)
	require.Equal(t, http.StatusOK, res.Code)

	env := decodeEnvelope(t, res)
	assert.Equal(t, true, env["selfAction"])

	res = f.do(t, http.MethodGet, "/api/auth/check", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestBulkValidation(t *testing.T) {
	f := newAPIFixture(t)
	_, err := f.repo.Create(context.Background(), "Alice", "alice@test.local", hashPassword(t, "rightpass"))
	require.NoError(t, err)

	res := f.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@test.local", "password": "rightpass"}, nil)
	require.Equal(t, http.StatusOK, res.Code)
	cookie := sessionCookie(t, res)

	res = f.do(t, http.MethodPost, "/api/users/block", map[string]any{"userIds": []int64{}}, cookie)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "User IDs are required")
}
