package ledger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ranchbook/ranchbook/internal/platform/httpx"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

// Handler exposes ledger reads and reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger/transactions/{id}", h.GetTransaction)
	r.Get("/reports/trial-balance", h.TrialBalance)
	r.Get("/reports/profit-and-loss", h.ProfitAndLoss)
	r.Get("/reports/balance-sheet", h.BalanceSheet)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	id, ok := httpx.PathUUID(w, r, "id")
	if !ok {
		return
	}
	txn, err := h.service.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Posted(w, txn, txn.ID, false)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), actor.TenantID, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, tb)
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), actor.TenantID, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, pl)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	actor, ok := httpx.Actor(w, r)
	if !ok {
		return
	}
	asOf, err := parseAsOf(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), actor.TenantID, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, bs)
}

func parseAsOf(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("asOf")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, core.NewValidationError("invalid asOf", map[string]string{"asOf": "must be YYYY-MM-DD"})
	}
	end := t.Add(24*time.Hour - time.Nanosecond)
	return &end, nil
}
