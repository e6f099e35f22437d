package posting

import "github.com/go-chi/chi/v5"

// MountAccountingRoutes registers the source document routes under /accounting.
func (h *Handler) MountAccountingRoutes(r chi.Router) {
	r.Post("/invoices", create(h, h.service.CreateInvoice))
	r.Get("/invoices/{id}", h.get(TypeInvoice))
	r.Post("/invoices/{id}/send", h.post(TypeInvoice))
	r.Post("/invoices/{id}/reverse", h.reverse(TypeInvoice))

	r.Post("/bills", create(h, h.service.CreateBill))
	r.Get("/bills/{id}", h.get(TypeBill))
	r.Post("/bills/{id}/post", h.post(TypeBill))
	r.Post("/bills/{id}/reverse", h.reverse(TypeBill))

	r.Post("/checks", create(h, h.service.CreateCheck))
	r.Get("/checks/{id}", h.get(TypeCheck))
	r.Post("/checks/{id}/post", h.post(TypeCheck))
	r.Post("/checks/{id}/reverse", h.reverse(TypeCheck))

	r.Post("/receipts", create(h, h.service.CreateReceipt))
	r.Get("/receipts/{id}", h.get(TypeReceipt))
	r.Post("/receipts/{id}/post", h.post(TypeReceipt))
	r.Post("/receipts/{id}/reverse", h.reverse(TypeReceipt))

	r.Post("/journal-entries/{id}/post", h.post(TypeJournalEntry))
	r.Post("/journal-entries/{id}/reverse", h.reverse(TypeJournalEntry))
}

// MountPostingRoutes registers the event routes under /posting.
func (h *Handler) MountPostingRoutes(r chi.Router) {
	r.Post("/events", create(h, h.service.CreateEvent))
	r.Get("/events/{id}", h.get(TypeEvent))
	r.Post("/events/{id}/reverse", h.reverse(TypeEvent))
	r.Post("/process-event", h.ProcessEvent)
}
