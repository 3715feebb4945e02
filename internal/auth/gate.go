package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gatehouse-app/gatehouse/internal/accounts"
	"github.com/gatehouse-app/gatehouse/internal/session"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Decision classifies a gate outcome.
type Decision int

const (
	// DecisionAllowed admits the request with a resolved principal.
	DecisionAllowed Decision = iota
	// DecisionUnauthenticated terminates the request with 401.
	DecisionUnauthenticated
	// DecisionForbidden terminates the request with 403.
	DecisionForbidden
)

// Outcome is the tagged result of a gate check. When Destroy is set the
// caller must complete the session destroy before signaling the failure.
type Outcome struct {
	Decision  Decision
	Principal *accounts.Principal
	Message   string
	Redirect  string
	Destroy   bool
}

// Finder resolves principals by id for the gate.
type Finder interface {
	FindByID(ctx context.Context, id int64) (*accounts.Principal, error)
}

// Gate decides whether a request's session carries an authenticated, active
// principal. Checks are side-effect-free; destroys are reported in the
// outcome and performed by the caller.
type Gate struct {
	logger *slog.Logger
	finder Finder
}

// NewGate constructs a Gate.
func NewGate(logger *slog.Logger, finder Finder) *Gate {
	return &Gate{logger: logger, finder: finder}
}

// Check resolves the session state to a principal and applies the
// account-status rules.
func (g *Gate) Check(ctx context.Context, st *session.State) (Outcome, error) {
	if st == nil || st.Destroyed() || st.UserID() == 0 {
		return Outcome{
			Decision: DecisionUnauthenticated,
			Message:  shared.UserSafeMessage(shared.ErrUnauthenticated),
			Redirect: "/login",
		}, nil
	}
	p, err := g.finder.FindByID(ctx, st.UserID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Stale session: the principal vanished out from under it.
			return Outcome{
				Decision: DecisionUnauthenticated,
				Message:  "User not found",
				Redirect: "/login",
				Destroy:  true,
			}, nil
		}
		return Outcome{}, err
	}
	if p.Status == accounts.StatusBlocked {
		return Outcome{
			Decision: DecisionForbidden,
			Message:  "Account is blocked",
			Redirect: "/login",
			Destroy:  true,
		}, nil
	}
	return Outcome{Decision: DecisionAllowed, Principal: p}, nil
}

// RequireAuthenticated guards routes that demand a live, active principal.
// Failure paths that carry Destroy mark the session; the session middleware
// completes the store destroy before the failure status is written, so a
// stale or blocked session never remains resolvable after a gated attempt.
func (g *Gate) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := session.FromContext(r.Context())
		out, err := g.Check(r.Context(), st)
		if err != nil {
			g.logger.Error("auth gate check", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if out.Destroy && st != nil {
			st.Destroy()
		}
		switch out.Decision {
		case DecisionAllowed:
			ctx := accounts.NewContext(r.Context(), out.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		case DecisionForbidden:
			shared.RespondErrorRedirect(w, http.StatusForbidden, out.Message, out.Redirect)
		default:
			shared.RespondErrorRedirect(w, http.StatusUnauthorized, out.Message, out.Redirect)
		}
	})
}

// RejectIfAuthenticated is the inverse guard for registration and login
// entry points. A live active principal short-circuits with a
// success-shaped "already authenticated" signal; a session resolving to a
// missing or non-active principal is destroyed and the request proceeds
// anonymous. Resolution failures never block the request here; the anomaly
// is logged and login/registration proceeds.
func (g *Gate) RejectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := session.FromContext(r.Context())
		if st == nil || st.UserID() == 0 {
			next.ServeHTTP(w, r)
			return
		}
		p, err := g.finder.FindByID(r.Context(), st.UserID())
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			g.logger.Warn("reject-if-authenticated resolve", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		if err == nil && p.Status == accounts.StatusActive {
			shared.RespondSuccess(w, http.StatusOK, shared.Envelope{
				Message:  "Already authenticated",
				Redirect: "/dashboard",
			})
			return
		}
		st.Destroy()
		next.ServeHTTP(w, r)
	})
}
