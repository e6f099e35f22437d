package posting

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ranchbook/ranchbook/internal/platform/httpx"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

// Handler exposes the posting endpoints and document intake.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// ReverseRequest is the optional body of a reverse call.
type ReverseRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ProcessEventRequest is the body of POST /posting/process-event.
type ProcessEventRequest struct {
	EventID  string `json:"eventId" validate:"required,uuid"`
	LockerID string `json:"lockerId" validate:"max=100"`
}

func (h *Handler) post(t DocumentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := httpx.Actor(w, r)
		if !ok {
			return
		}
		id, ok := httpx.PathUUID(w, r, "id")
		if !ok {
			return
		}
		out, err := h.service.Post(r.Context(), actor, DocumentRef{Type: t, ID: id})
		h.respond(w, out, err)
	}
}

func (h *Handler) reverse(t DocumentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := httpx.Actor(w, r)
		if !ok {
			return
		}
		id, ok := httpx.PathUUID(w, r, "id")
		if !ok {
			return
		}
		var req ReverseRequest
		if r.ContentLength != 0 {
			if err := httpx.DecodeJSON(r, &req); err != nil {
				httpx.RespondError(w, h.logger, err)
				return
			}
			if err := core.Validate(req); err != nil {
				httpx.RespondError(w, h.logger, err)
				return
			}
		}
		out, err := h.service.Reverse(r.Context(), actor, DocumentRef{Type: t, ID: id}, req.Reason)
		h.respond(w, out, err)
	}
}

func (h *Handler) ProcessEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var req ProcessEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := core.Validate(req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	out, err := h.service.ProcessEvent(r.Context(), actor, ProcessEventInput{
		EventID:    uuid.MustParse(req.EventID),
		LockerID:   req.LockerID,
		RequestKey: r.Header.Get("Idempotency-Key"),
	})
	h.respond(w, out, err)
}

func (h *Handler) respond(w http.ResponseWriter, out Outcome, err error) {
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Posted(w, out.Document, out.LedgerTransactionID, out.AlreadyPosted)
}

func (h *Handler) get(t DocumentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := httpx.Actor(w, r)
		if !ok {
			return
		}
		id, ok := httpx.PathUUID(w, r, "id")
		if !ok {
			return
		}
		doc, err := h.service.Get(r.Context(), actor, DocumentRef{Type: t, ID: id})
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, http.StatusOK, doc)
	}
}

// create decodes the request into In and stores it through fn.
func create[In any, Out any](h *Handler, fn func(context.Context, core.Actor, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := httpx.Actor(w, r)
		if !ok {
			return
		}
		var in In
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		doc, err := fn(r.Context(), actor, in)
		if err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		httpx.OK(w, http.StatusCreated, doc)
	}
}
