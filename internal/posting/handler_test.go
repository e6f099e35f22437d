package posting

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ranchbook/ranchbook/internal/accounting/journals"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

type envelope struct {
	Success             bool              `json:"success"`
	Data                json.RawMessage   `json:"data"`
	LedgerTransactionID string            `json:"ledgerTransactionId"`
	AlreadyPosted       bool              `json:"alreadyPosted"`
	Message             string            `json:"message"`
	Errors              map[string]string `json:"errors"`
}

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-Anonymous") == "" {
				req = req.WithContext(core.ContextWithActor(req.Context(), f.actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/accounting", h.MountAccountingRoutes)
	r.Route("/posting", h.MountPostingRoutes)
	return r
}

func call(t *testing.T, router http.Handler, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestHandlerInvoiceSendFlow(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	code, env := call(t, router, http.MethodPost, "/accounting/invoices", map[string]any{
		"customerName": "Hill Country Feedlot",
		"invoiceDate":  "2026-03-15",
		"lines":        []map[string]any{{"description": "Steers", "accountId": f.acct("4000"), "amount": "500"}},
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)
	var inv Invoice
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	require.Equal(t, StatusDraft, inv.Status)

	code, env = call(t, router, http.MethodPost, "/accounting/invoices/"+inv.ID.String()+"/send", nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	require.NotEmpty(t, env.LedgerTransactionID)
	var sent Invoice
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	require.Equal(t, StatusSent, sent.Status)
	require.Equal(t, env.LedgerTransactionID, sent.LedgerTransactionID.String())

	code, env = call(t, router, http.MethodPost, "/accounting/invoices/"+inv.ID.String()+"/send", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.False(t, env.Success)
	require.Contains(t, env.Message, "already posted")
	require.Equal(t, sent.LedgerTransactionID.String(), env.LedgerTransactionID)
	require.Equal(t, 1, f.txnCount())

	code, env = call(t, router, http.MethodGet, "/accounting/invoices/"+inv.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
}

func TestHandlerBillPreconditionIsBadRequest(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	code, env := call(t, router, http.MethodPost, "/accounting/bills", map[string]any{
		"billDate": "2026-03-10",
		"lines":    []map[string]any{{"description": "Fencing", "amount": "80"}},
	})
	require.Equal(t, http.StatusCreated, code)
	var bill Bill
	require.NoError(t, json.Unmarshal(env.Data, &bill))

	code, env = call(t, router, http.MethodPost, "/accounting/bills/"+bill.ID.String()+"/post", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.False(t, env.Success)
	require.Equal(t, "assign an account to line 1", env.Message)
	require.Zero(t, f.txnCount())
}

func TestHandlerNotFoundAndBadInput(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	code, env := call(t, router, http.MethodPost, "/accounting/checks/"+uuid.NewString()+"/post", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.False(t, env.Success)

	code, env = call(t, router, http.MethodPost, "/accounting/receipts/not-an-id/post", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, env.Errors, "id")

	code, env = call(t, router, http.MethodPost, "/posting/process-event", map[string]any{"eventId": "nope"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, env.Errors, "eventId")

	code, env = call(t, router, http.MethodPost, "/accounting/invoices", map[string]any{"invoiceDate": "15/03/2026"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, env.Errors, "invoiceDate")
	require.Contains(t, env.Errors, "lines")

	code, _ = call(t, router, http.MethodPost, "/posting/process-event", map[string]any{"eventId": uuid.NewString()}, "X-Anonymous", "1")
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestHandlerProcessEvent(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	hay := f.addItem("HAY", nil)

	code, env := call(t, router, http.MethodPost, "/posting/events", map[string]any{
		"siteId":    f.site,
		"type":      "purchase",
		"eventDate": "2026-03-20",
		"lines":     []map[string]any{{"itemId": hay, "quantity": "10", "unitCost": "2"}},
	})
	require.Equal(t, http.StatusCreated, code)
	var ev Event
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	require.Equal(t, StatusPending, ev.Status)

	body := map[string]any{"eventId": ev.ID, "lockerId": "worker-1"}
	code, env = call(t, router, http.MethodPost, "/posting/process-event", body, "Idempotency-Key", "evt-req-1")
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	require.NotEmpty(t, env.LedgerTransactionID)

	code, env = call(t, router, http.MethodPost, "/posting/process-event", body, "Idempotency-Key", "evt-req-1")
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, env.Message, "already posted")

	code, env = call(t, router, http.MethodPost, "/posting/events/"+ev.ID.String()+"/reverse", map[string]any{"reason": "duplicate delivery"})
	require.Equal(t, http.StatusOK, code)
	var voided Event
	require.NoError(t, json.Unmarshal(env.Data, &voided))
	require.Equal(t, StatusVoid, voided.Status)
	requireAmount(t, "0", f.stock(hay).Quantity)
}

func TestHandlerJournalEntryPostAndReverse(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	je := f.journal(
		journals.Line{LineNo: 1, AccountID: f.acct("6200"), Debit: dec("25")},
		journals.Line{LineNo: 2, AccountID: f.acct("1000"), Credit: dec("25")},
	)
	path := "/accounting/journal-entries/" + je.entry.ID.String()

	code, env := call(t, router, http.MethodPost, path+"/post", nil)
	require.Equal(t, http.StatusOK, code)
	var posted journals.Entry
	require.NoError(t, json.Unmarshal(env.Data, &posted))
	require.Equal(t, journals.StatusPosted, posted.Status)

	code, env = call(t, router, http.MethodPost, path+"/reverse", nil)
	require.Equal(t, http.StatusOK, code)
	var reversed journals.Entry
	require.NoError(t, json.Unmarshal(env.Data, &reversed))
	require.Equal(t, journals.StatusReversed, reversed.Status)
	require.Equal(t, env.LedgerTransactionID, reversed.ReversalTransactionID.String())

	code, env = call(t, router, http.MethodPost, path+"/reverse", nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, env.Message, "already REVERSED")
}

func TestHandlerStorageFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	inv := f.invoice("10", idp(f.acct("4000")))
	f.unit.failAfter = errors.New("pq: connection refused to 10.0.0.5")

	code, env := call(t, router, http.MethodPost, "/accounting/invoices/"+inv.ID.String()+"/send", nil)
	require.Equal(t, http.StatusInternalServerError, code)
	require.False(t, env.Success)
	require.NotContains(t, env.Message, "10.0.0.5")
}
