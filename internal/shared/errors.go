package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountBlocked indicates the account status forbids access.
	ErrAccountBlocked = errors.New("account is blocked")
	// ErrEmailTaken indicates a duplicate email on registration.
	ErrEmailTaken = errors.New("email already exists")
	// ErrUnauthenticated indicates a request without a live authenticated session.
	ErrUnauthenticated = errors.New("authentication required")
)

// UserSafeMessage maps internal errors to text safe to show callers.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, ErrAccountBlocked):
		return "Account is blocked"
	case errors.Is(err, ErrEmailTaken):
		return "Email already exists"
	case errors.Is(err, ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, ErrNotFound):
		return "Resource not found"
	default:
		return "Internal server error"
	}
}
