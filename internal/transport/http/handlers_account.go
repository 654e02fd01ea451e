package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	accountModels "flock/internal/account/models"
	"flock/internal/transport/http/json"
	"flock/internal/transport/http/shared"
	dErrors "flock/pkg/domain-errors"
)

type AccountService interface {
	Provision(ctx context.Context, req *accountModels.SignupRequest) (*accountModels.Member, error)
	Get(ctx context.Context, id uuid.UUID) (*accountModels.Member, error)
}

// AccountHandler handles member provisioning and lookup. Signup is the one
// unauthenticated mutation the service exposes; the router mounts it outside
// the token middleware.
type AccountHandler struct {
	logger   *slog.Logger
	accounts AccountService
}

func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// RegisterPublic mounts the unauthenticated endpoints.
func (h *AccountHandler) RegisterPublic(r chi.Router) {
	r.Post("/signup", h.handleSignup)
}

// Register mounts the endpoints behind the token middleware.
func (h *AccountHandler) Register(r chi.Router) {
	r.Get("/members/{memberID}", h.handleGetMember)
}

func (h *AccountHandler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req accountModels.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	member, err := h.accounts.Provision(r.Context(), &req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, member)
}

func (h *AccountHandler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "member id must be a UUID"))
		return
	}
	member, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	json.WriteJSON(w, http.StatusOK, member)
}
