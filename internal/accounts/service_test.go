package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-app/gatehouse/internal/accounts"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	_ "github.com/gatehouse-app/gatehouse/testing"
)

// stubAccountsRepo holds principals keyed by id and implements the subset of
// behavior the coordinator relies on.
type stubAccountsRepo struct {
	byID map[int64]accounts.Principal
	err  error
}

func newStubAccountsRepo(principals ...accounts.Principal) *stubAccountsRepo {
	r := &stubAccountsRepo{byID: make(map[int64]accounts.Principal)}
	for _, p := range principals {
		r.byID[p.ID] = p
	}
	return r
}

func (r *stubAccountsRepo) Create(ctx context.Context, name, email, passwordHash string) (*accounts.Principal, error) {
	panic("not used")
}

func (r *stubAccountsRepo) FindByID(ctx context.Context, id int64) (*accounts.Principal, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (r *stubAccountsRepo) FindByEmail(ctx context.Context, email string) (*accounts.Principal, error) {
	panic("not used")
}

func (r *stubAccountsRepo) List(ctx context.Context) ([]accounts.Principal, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []accounts.Principal
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out, nil
}

func (r *stubAccountsRepo) UpdateStatus(ctx context.Context, id int64, status accounts.Status) (*accounts.Principal, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	p.Status = status
	r.byID[id] = p
	return &p, nil
}

func (r *stubAccountsRepo) BulkSetStatus(ctx context.Context, ids []int64, status accounts.Status) ([]accounts.Principal, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []accounts.Principal
	for _, id := range ids {
		p, ok := r.byID[id]
		if !ok {
			continue
		}
		p.Status = status
		r.byID[id] = p
		out = append(out, p)
	}
	return out, nil
}

func (r *stubAccountsRepo) BulkDelete(ctx context.Context, ids []int64) ([]int64, error) {
	if r.err != nil {
		return nil, r.err
	}
	var deleted []int64
	for _, id := range ids {
		if _, ok := r.byID[id]; ok {
			delete(r.byID, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (r *stubAccountsRepo) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	panic("not used")
}

var _ accounts.Repository = (*stubAccountsRepo)(nil)

func principal(id int64, status accounts.Status) accounts.Principal {
	return accounts.Principal{
		ID:           id,
		Name:         "User",
		Email:        "user@test.local",
		PasswordHash: "secret-hash",
		Status:       status,
	}
}

func TestBlockSelfTargeting(t *testing.T) {
	repo := newStubAccountsRepo(principal(1, accounts.StatusActive), principal(2, accounts.StatusActive))
	service := accounts.NewService(repo)

	res, err := service.Block(context.Background(), []int64{1, 2}, 1)
	require.NoError(t, err)

	assert.True(t, res.SelfAction)
	require.Len(t, res.Updated, 2)
	assert.Equal(t, accounts.StatusBlocked, repo.byID[2].Status)
}

func TestBlockOthersOnly(t *testing.T) {
	repo := newStubAccountsRepo(principal(2, accounts.StatusActive))
	service := accounts.NewService(repo)

	res, err := service.Block(context.Background(), []int64{2}, 1)
	require.NoError(t, err)
	assert.False(t, res.SelfAction)
}

func TestBlockSelfActionOnRequestedSet(t *testing.T) {
	// The actor's own row is already gone; targeting it still self-invalidates.
	repo := newStubAccountsRepo(principal(2, accounts.StatusActive))
	service := accounts.NewService(repo)

	res, err := service.Block(context.Background(), []int64{1, 2}, 1)
	require.NoError(t, err)

	assert.True(t, res.SelfAction)
	require.Len(t, res.Updated, 1)
	assert.Equal(t, int64(2), res.Updated[0].ID)
}

func TestBlockStripsPasswordHash(t *testing.T) {
	repo := newStubAccountsRepo(principal(2, accounts.StatusActive))
	service := accounts.NewService(repo)

	res, err := service.Block(context.Background(), []int64{2}, 1)
	require.NoError(t, err)
	require.Len(t, res.Updated, 1)
	assert.Empty(t, res.Updated[0].PasswordHash)
}

func TestUnblockSkipsMissingIDs(t *testing.T) {
	repo := newStubAccountsRepo(principal(1, accounts.StatusBlocked))
	service := accounts.NewService(repo)

	res, err := service.Unblock(context.Background(), []int64{1, 99999})
	require.NoError(t, err)

	require.Len(t, res.Updated, 1)
	assert.Equal(t, int64(1), res.Updated[0].ID)
	assert.Equal(t, accounts.StatusActive, res.Updated[0].Status)
}

func TestUnblockSelfNeverFlagsSelfAction(t *testing.T) {
	repo := newStubAccountsRepo(principal(1, accounts.StatusBlocked))
	service := accounts.NewService(repo)

	res, err := service.Unblock(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.False(t, res.SelfAction)
}

func TestDeleteSelfTargeting(t *testing.T) {
	repo := newStubAccountsRepo(principal(1, accounts.StatusActive), principal(2, accounts.StatusActive))
	service := accounts.NewService(repo)

	res, err := service.Delete(context.Background(), []int64{1, 2}, 1)
	require.NoError(t, err)

	assert.True(t, res.SelfAction)
	assert.ElementsMatch(t, []int64{1, 2}, res.DeletedIDs)
	assert.Empty(t, repo.byID)
}

func TestDeleteMissingIDsOmitted(t *testing.T) {
	repo := newStubAccountsRepo(principal(2, accounts.StatusActive))
	service := accounts.NewService(repo)

	res, err := service.Delete(context.Background(), []int64{2, 77}, 3)
	require.NoError(t, err)

	assert.False(t, res.SelfAction)
	assert.Equal(t, []int64{2}, res.DeletedIDs)
}

func TestListStripsPasswordHash(t *testing.T) {
	repo := newStubAccountsRepo(principal(1, accounts.StatusActive))
	service := accounts.NewService(repo)

	principals, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, principals, 1)
	assert.Empty(t, principals[0].PasswordHash)
}
