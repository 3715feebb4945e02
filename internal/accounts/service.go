package accounts

import (
	"context"
	"errors"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Service implements account listing and the bulk action coordinator.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// BulkResult reports the outcome of a bulk mutation.
type BulkResult struct {
	Updated    []Principal
	DeletedIDs []int64
	// SelfAction is computed on the requested id set, not the mutated
	// subset: an actor targeting their own id self-invalidates even if the
	// row had already vanished.
	SelfAction bool
}

// List returns all accounts with the password verifier stripped.
func (s *Service) List(ctx context.Context) ([]Principal, error) {
	principals, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range principals {
		principals[i].PasswordHash = ""
	}
	return principals, nil
}

// Block sets every existing id in the set to blocked through a single
// batched mutation. Missing ids are silently omitted from the result.
func (s *Service) Block(ctx context.Context, ids []int64, actorID int64) (BulkResult, error) {
	updated, err := s.repo.BulkSetStatus(ctx, ids, StatusBlocked)
	if err != nil {
		return BulkResult{}, err
	}
	return BulkResult{Updated: sanitize(updated), SelfAction: containsID(ids, actorID)}, nil
}

// Unblock reactivates accounts id-by-id. Missing ids are skipped, not
// reported as errors; this asymmetry with Block/Delete is deliberate.
// Unblocking yourself never invalidates the acting session.
func (s *Service) Unblock(ctx context.Context, ids []int64) (BulkResult, error) {
	var updated []Principal
	for _, id := range ids {
		p, err := s.repo.UpdateStatus(ctx, id, StatusActive)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return BulkResult{}, err
		}
		updated = append(updated, *p)
	}
	return BulkResult{Updated: sanitize(updated)}, nil
}

// Delete removes every existing id in the set through a single batched
// mutation and returns the ids that were actually deleted.
func (s *Service) Delete(ctx context.Context, ids []int64, actorID int64) (BulkResult, error) {
	deleted, err := s.repo.BulkDelete(ctx, ids)
	if err != nil {
		return BulkResult{}, err
	}
	return BulkResult{DeletedIDs: deleted, SelfAction: containsID(ids, actorID)}, nil
}

func sanitize(principals []Principal) []Principal {
	for i := range principals {
		principals[i].PasswordHash = ""
	}
	return principals
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
