package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"flock/internal/audit"
	"flock/internal/transport/http/json"
	"flock/internal/transport/http/shared"
	dErrors "flock/pkg/domain-errors"
)

const maxAuditPageSize = 500

// AuditHandler exposes the audit trail read side.
type AuditHandler struct {
	publisher *audit.Publisher
}

func NewAuditHandler(publisher *audit.Publisher) *AuditHandler {
	return &AuditHandler{publisher: publisher}
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/audit", h.recent)
}

type auditEventPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
	Action    string    `json:"action"`
	EntityID  string    `json:"entity_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

func (h *AuditHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxAuditPageSize)
	}

	events, err := h.publisher.Recent(r.Context(), limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	payload := make([]auditEventPayload, 0, len(events))
	for _, e := range events {
		payload = append(payload, auditEventPayload{
			Timestamp: e.Timestamp,
			Actor:     e.Actor,
			Action:    string(e.Action),
			EntityID:  e.EntityID,
			Detail:    e.Detail,
		})
	}
	json.WriteJSON(w, http.StatusOK, map[string]any{"events": payload})
}
