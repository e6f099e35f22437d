package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ranchbook/ranchbook/internal/platform/httpx"
	"github.com/ranchbook/ranchbook/internal/shared"
)

// Handler exposes chart of accounts endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	accounts, err := h.service.List(r.Context(), actor.TenantID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, accounts)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	in.TenantID = actor.TenantID
	in.IsSystem = false
	acc, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, acc)
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	created, err := h.service.SeedDefaults(r.Context(), actor.TenantID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, created)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor.TenantID, id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]string{"id": id.String()})
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathUUID(w, r, "id")
	if !ok {
		return
	}
	bal, err := h.service.Balance(r.Context(), actor.TenantID, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, bal)
}

type controlAccountView struct {
	Kind    ControlKind `json:"kind"`
	Label   string      `json:"label"`
	Account *Account    `json:"account"`
	Problem string      `json:"problem,omitempty"`
}

func (h *Handler) ControlAccounts(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	resolved, problems, err := h.service.ControlAccounts(r.Context(), actor.TenantID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	views := make([]controlAccountView, 0, len(ControlKinds))
	for _, kind := range ControlKinds {
		views = append(views, controlAccountView{Kind: kind, Label: kind.Label(), Account: resolved[kind], Problem: problems[kind]})
	}
	httpx.OK(w, http.StatusOK, views)
}

func (h *Handler) Designate(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var in DesignateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	acc, err := h.service.Designate(r.Context(), actor.TenantID, ControlKind(chi.URLParam(r, "kind")), in.AccountID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, acc)
}
