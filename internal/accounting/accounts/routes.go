package accounts

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.List)
	r.Post("/accounts", h.Create)
	r.Post("/accounts/seed", h.Seed)
	r.Delete("/accounts/{id}", h.Delete)
	r.Get("/accounts/{id}/balance", h.Balance)
	r.Get("/control-accounts", h.ControlAccounts)
	r.Put("/control-accounts/{kind}", h.Designate)
}
