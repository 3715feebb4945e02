package accounts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-app/gatehouse/internal/session"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Handler wires HTTP endpoints for account administration. Every route here
// sits behind the auth gate; the resolved principal and session state are
// read from the request context.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/block", h.block)
	r.Post("/unblock", h.unblock)
	r.Post("/delete", h.delete)
}

type bulkRequest struct {
	UserIDs []int64 `json:"userIds" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	shared.RespondSuccess(w, http.StatusOK, shared.Envelope{Data: principals})
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeBulk(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	res, err := h.service.Block(r.Context(), ids, actor.ID)
	if err != nil {
		h.logger.Error("block accounts", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "Failed to block users")
		return
	}
	h.respondBulk(w, r, res, fmt.Sprintf("%d user(s) blocked successfully", len(res.Updated)), res.Updated)
}

func (h *Handler) unblock(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeBulk(w, r)
	if !ok {
		return
	}
	res, err := h.service.Unblock(r.Context(), ids)
	if err != nil {
		h.logger.Error("unblock accounts", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "Failed to unblock users")
		return
	}
	shared.RespondSuccess(w, http.StatusOK, shared.Envelope{
		Message: fmt.Sprintf("%d user(s) unblocked successfully", len(res.Updated)),
		Data:    res.Updated,
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeBulk(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	res, err := h.service.Delete(r.Context(), ids, actor.ID)
	if err != nil {
		h.logger.Error("delete accounts", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "Failed to delete users")
		return
	}
	h.respondBulk(w, r, res, fmt.Sprintf("%d user(s) deleted successfully", len(res.DeletedIDs)), res.DeletedIDs)
}

// actor resolves the acting principal from the request context. The gate
// attaches it on every mounted route; a self-targeting mutation without it
// cannot be evaluated, so its absence terminates the request.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	actor := PrincipalFromContext(r.Context())
	if actor == nil {
		shared.RespondError(w, http.StatusUnauthorized, shared.UserSafeMessage(shared.ErrUnauthenticated))
		return nil, false
	}
	return actor, true
}

func (h *Handler) decodeBulk(w http.ResponseWriter, r *http.Request) ([]int64, bool) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "Invalid request format")
		return nil, false
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "User IDs are required")
		return nil, false
	}
	return req.UserIDs, true
}

// respondBulk marks the caller's own session for destruction when the
// requested set targeted the actor; the session middleware completes the
// destroy before the response status is written.
func (h *Handler) respondBulk(w http.ResponseWriter, r *http.Request, res BulkResult, message string, data any) {
	if res.SelfAction {
		if st := session.FromContext(r.Context()); st != nil {
			st.Destroy()
		}
	}
	shared.RespondSuccess(w, http.StatusOK, shared.Envelope{
		Message:    message,
		Data:       data,
		SelfAction: res.SelfAction,
	})
}
