package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-app/gatehouse/internal/session"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      *Gate
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate *Gate) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, validator: validator.New()}
}

// MountRoutes registers auth routes on the provided router. Register and
// login carry the inverse guard plus a tighter per-IP rate limit.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Use(h.gate.RejectIfAuthenticated)
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
	})
	r.Post("/logout", h.handleLogout)
	r.Get("/check", h.handleCheck)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrEmailTaken) {
			shared.RespondError(w, http.StatusConflict, shared.UserSafeMessage(err))
			return
		}
		h.logger.Error("register", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	shared.RespondSuccess(w, http.StatusCreated, shared.Envelope{
		Message: "Registration successful",
		Data:    user,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrAccountBlocked):
			shared.RespondError(w, http.StatusForbidden, shared.UserSafeMessage(err))
		case errors.Is(err, shared.ErrInvalidCredentials):
			shared.RespondError(w, http.StatusUnauthorized, shared.UserSafeMessage(err))
		default:
			h.logger.Error("authenticate", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	st := session.FromContext(r.Context())
	if st == nil {
		h.logger.Error("session missing during login")
		shared.RespondError(w, http.StatusInternalServerError, "Session creation failed")
		return
	}
	if st.Destroyed() {
		st.Renew()
	}
	st.SetUser(user.ID)

	// Writing the response commits the session through the store first; the
	// success below is never sent ahead of a durable session write.
	shared.RespondSuccess(w, http.StatusOK, shared.Envelope{
		Message: "Login successful",
		Data:    user,
	})

	h.service.RecordLogin(r.Context(), user.ID)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if st := session.FromContext(r.Context()); st != nil {
		st.Destroy()
	}
	// Logging out an unknown or missing session still succeeds.
	shared.RespondSuccess(w, http.StatusOK, shared.Envelope{Message: "Logout successful"})
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	st := session.FromContext(r.Context())
	out, err := h.gate.Check(r.Context(), st)
	if err != nil {
		h.logger.Error("auth check", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if out.Destroy && st != nil {
		st.Destroy()
	}
	switch out.Decision {
	case DecisionAllowed:
		p := *out.Principal
		p.PasswordHash = ""
		shared.RespondSuccess(w, http.StatusOK, shared.Envelope{Data: p})
	case DecisionForbidden:
		shared.RespondErrorRedirect(w, http.StatusForbidden, out.Message, out.Redirect)
	default:
		shared.RespondErrorRedirect(w, http.StatusUnauthorized, "Not authenticated", out.Redirect)
	}
}
