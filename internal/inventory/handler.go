package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/platform/httpx"
	"github.com/ranchbook/ranchbook/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.ListItems)
	r.Post("/items", h.CreateItem)
	r.Get("/items/{id}/sites", h.Sites)
	r.Get("/items/{id}/movements", h.Movements)
	r.Put("/items/{id}/sites/{siteId}/reorder-point", h.SetReorderPoint)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	items, err := h.service.ListItems(r.Context(), actor.TenantID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, items)
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	var in CreateItemInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	in.TenantID = actor.TenantID
	item, err := h.service.CreateItem(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, item)
}

func (h *Handler) Sites(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	itemID, ok := httpx.PathUUID(w, r, "id")
	if !ok {
		return
	}
	sites, err := h.service.SiteBalances(r.Context(), actor.TenantID, itemID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, sites)
}

func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	itemID, ok := httpx.PathUUID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := MovementFilter{TenantID: actor.TenantID, ItemID: itemID}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("perPage"))
	if raw := q.Get("siteId"); raw != "" {
		siteID, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, h.logger, shared.NewValidationError("invalid siteId", map[string]string{"siteId": "must be a valid id"}))
			return
		}
		filter.SiteID = &siteID
	}
	page, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, page)
}

type reorderPointRequest struct {
	ReorderPoint *decimal.Decimal `json:"reorderPoint"`
}

func (h *Handler) SetReorderPoint(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	itemID, ok := httpx.PathUUID(w, r, "id")
	if !ok {
		return
	}
	siteID, ok := httpx.PathUUID(w, r, "siteId")
	if !ok {
		return
	}
	var req reorderPointRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	balance, err := h.service.SetReorderPoint(r.Context(), actor.TenantID, siteID, itemID, req.ReorderPoint)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, balance)
}
