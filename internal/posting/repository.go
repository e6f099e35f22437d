package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	"github.com/ranchbook/ranchbook/internal/accounting/journals"
	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	"github.com/ranchbook/ranchbook/internal/inventory"
	"github.com/ranchbook/ranchbook/internal/platform/db"
)

const (
	invoiceColumns = `id, tenant_id, site_id, number, customer_id, customer_name, invoice_date, due_date, status, total, amount_paid,
balance_due, ledger_transaction_id, posted_at, posted_by, created_at, updated_at`
	billColumns = `id, tenant_id, site_id, number, vendor_id, vendor_name, bill_date, due_date, status, total, amount_paid,
balance_due, ledger_transaction_id, posted_at, posted_by, created_at, updated_at`
	checkColumns = `id, tenant_id, site_id, number, payee, vendor_id, check_date, bank_account_id, memo, total, status,
ledger_transaction_id, posted_at, posted_by, created_at, updated_at`
	receiptColumns = `id, tenant_id, site_id, number, payer, customer_id, receipt_date, deposit_account_id, income_account_id, amount, memo,
status, ledger_transaction_id, posted_at, posted_by, created_at, updated_at`
	eventColumns = `id, tenant_id, site_id, type, event_date, description, payment_method, cash_account_id, status,
ledger_transaction_id, posted_at, posted_by, created_at, updated_at`
)

// documentTables maps the source document types stored by this package to their tables.
var documentTables = map[DocumentType]string{
	TypeInvoice: "invoices",
	TypeBill:    "bills",
	TypeCheck:   "checks",
	TypeReceipt: "receipts",
	TypeEvent:   "events",
}

// Repository is the Postgres unit of work for posting.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Do runs fn inside one posting transaction.
func (r *Repository) Do(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithPostingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newPgTx(tx))
	})
}

// Get loads a document without locking it.
func (r *Repository) Get(ctx context.Context, tenantID uuid.UUID, ref DocumentRef) (PostableDocument, error) {
	return newDocumentStore(r.pool).load(ctx, tenantID, ref, false)
}

type pgTx struct {
	docs      *documentStore
	ledger    ledger.TxRepository
	inventory inventory.TxRepository
	accounts  accounts.Lister
}

func newPgTx(tx pgx.Tx) *pgTx {
	return &pgTx{
		docs:      newDocumentStore(tx),
		ledger:    ledger.NewTxRepository(tx),
		inventory: inventory.NewTxRepository(tx),
		accounts:  accounts.NewRepository(tx),
	}
}

func (t *pgTx) Documents() DocumentStore          { return t.docs }
func (t *pgTx) Ledger() ledger.TxRepository       { return t.ledger }
func (t *pgTx) Inventory() inventory.TxRepository { return t.inventory }
func (t *pgTx) Accounts() accounts.Lister         { return t.accounts }

type documentStore struct {
	q        db.Querier
	journals journals.TxRepository
}

func newDocumentStore(q db.Querier) *documentStore {
	return &documentStore{q: q, journals: journals.NewTxRepository(q)}
}

func (s *documentStore) Load(ctx context.Context, tenantID uuid.UUID, ref DocumentRef) (PostableDocument, error) {
	return s.load(ctx, tenantID, ref, true)
}

func (s *documentStore) load(ctx context.Context, tenantID uuid.UUID, ref DocumentRef, lock bool) (PostableDocument, error) {
	suffix := ""
	if lock {
		suffix = " FOR UPDATE"
	}
	var (
		doc PostableDocument
		err error
	)
	switch ref.Type {
	case TypeInvoice:
		doc, err = s.loadInvoice(ctx, tenantID, ref.ID, suffix)
	case TypeBill:
		doc, err = s.loadBill(ctx, tenantID, ref.ID, suffix)
	case TypeCheck:
		doc, err = s.loadCheck(ctx, tenantID, ref.ID, suffix)
	case TypeReceipt:
		doc, err = s.loadReceipt(ctx, tenantID, ref.ID, suffix)
	case TypeEvent:
		doc, err = s.loadEvent(ctx, tenantID, ref.ID, suffix)
	case TypeJournalEntry:
		var entry journals.Entry
		if lock {
			entry, err = s.journals.GetForUpdate(ctx, tenantID, ref.ID)
		} else {
			entry, err = journals.Load(ctx, s.q, tenantID, ref.ID)
		}
		if errors.Is(err, acctshared.ErrJournalNotFound) {
			return nil, notFound(ref)
		}
		doc = &journalDocument{entry: entry}
	default:
		return nil, fmt.Errorf("posting: unknown document type %q", ref.Type)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(ref)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentStore) loadInvoice(ctx context.Context, tenantID, id uuid.UUID, suffix string) (*Invoice, error) {
	var d Invoice
	err := s.q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id=$1 AND id=$2`+suffix, tenantID, id).Scan(
		&d.ID, &d.TenantID, &d.SiteID, &d.Number, &d.CustomerID, &d.CustomerName, &d.InvoiceDate, &d.DueDate, &d.Status, &d.Total,
		&d.AmountPaid, &d.BalanceDue, &d.LedgerTransactionID, &d.PostedAt, &d.PostedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, `SELECT line_no, description, account_id, quantity, unit_price, amount
FROM invoice_lines WHERE invoice_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.LineNo, &l.Description, &l.AccountID, &l.Quantity, &l.UnitPrice, &l.Amount); err != nil {
			return nil, err
		}
		d.Lines = append(d.Lines, l)
	}
	return &d, rows.Err()
}

func (s *documentStore) loadBill(ctx context.Context, tenantID, id uuid.UUID, suffix string) (*Bill, error) {
	var d Bill
	err := s.q.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE tenant_id=$1 AND id=$2`+suffix, tenantID, id).Scan(
		&d.ID, &d.TenantID, &d.SiteID, &d.Number, &d.VendorID, &d.VendorName, &d.BillDate, &d.DueDate, &d.Status, &d.Total,
		&d.AmountPaid, &d.BalanceDue, &d.LedgerTransactionID, &d.PostedAt, &d.PostedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, `SELECT line_no, description, account_id, item_id, quantity, amount
FROM bill_lines WHERE bill_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l BillLine
		if err := rows.Scan(&l.LineNo, &l.Description, &l.AccountID, &l.ItemID, &l.Quantity, &l.Amount); err != nil {
			return nil, err
		}
		d.Lines = append(d.Lines, l)
	}
	return &d, rows.Err()
}

func (s *documentStore) loadCheck(ctx context.Context, tenantID, id uuid.UUID, suffix string) (*Check, error) {
	var d Check
	err := s.q.QueryRow(ctx, `SELECT `+checkColumns+` FROM checks WHERE tenant_id=$1 AND id=$2`+suffix, tenantID, id).Scan(
		&d.ID, &d.TenantID, &d.SiteID, &d.Number, &d.Payee, &d.VendorID, &d.CheckDate, &d.BankAccountID, &d.Memo, &d.Total, &d.Status,
		&d.LedgerTransactionID, &d.PostedAt, &d.PostedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, `SELECT line_no, description, account_id, amount FROM check_lines WHERE check_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var l CheckLine
		if err := rows.Scan(&l.LineNo, &l.Description, &l.AccountID, &l.Amount); err != nil {
			rows.Close()
			return nil, err
		}
		d.Lines = append(d.Lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows, err = s.q.Query(ctx, `SELECT line_no, bill_id, amount FROM check_bill_payments WHERE check_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var bp BillPayment
		if err := rows.Scan(&bp.LineNo, &bp.BillID, &bp.Amount); err != nil {
			return nil, err
		}
		d.BillPayments = append(d.BillPayments, bp)
	}
	return &d, rows.Err()
}

func (s *documentStore) loadReceipt(ctx context.Context, tenantID, id uuid.UUID, suffix string) (*Receipt, error) {
	var d Receipt
	err := s.q.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE tenant_id=$1 AND id=$2`+suffix, tenantID, id).Scan(
		&d.ID, &d.TenantID, &d.SiteID, &d.Number, &d.Payer, &d.CustomerID, &d.ReceiptDate, &d.DepositAccountID, &d.IncomeAccountID,
		&d.Amount, &d.Memo, &d.Status, &d.LedgerTransactionID, &d.PostedAt, &d.PostedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, `SELECT line_no, invoice_id, amount FROM receipt_invoice_payments WHERE receipt_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ip InvoicePayment
		if err := rows.Scan(&ip.LineNo, &ip.InvoiceID, &ip.Amount); err != nil {
			return nil, err
		}
		d.InvoicePayments = append(d.InvoicePayments, ip)
	}
	return &d, rows.Err()
}

func (s *documentStore) loadEvent(ctx context.Context, tenantID, id uuid.UUID, suffix string) (*Event, error) {
	var d Event
	err := s.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE tenant_id=$1 AND id=$2`+suffix, tenantID, id).Scan(
		&d.ID, &d.TenantID, &d.SiteID, &d.Type, &d.EventDate, &d.Description, &d.PaymentMethod, &d.CashAccountID, &d.Status,
		&d.LedgerTransactionID, &d.PostedAt, &d.PostedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, `SELECT line_no, description, item_id, account_id, quantity, unit_cost, amount
FROM event_lines WHERE event_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l EventLine
		if err := rows.Scan(&l.LineNo, &l.Description, &l.ItemID, &l.AccountID, &l.Quantity, &l.UnitCost, &l.Amount); err != nil {
			return nil, err
		}
		d.Lines = append(d.Lines, l)
	}
	return &d, rows.Err()
}

func (s *documentStore) MarkPosted(ctx context.Context, tenantID uuid.UUID, ref DocumentRef, wb WriteBack) error {
	if ref.Type == TypeJournalEntry {
		txID := wb.LedgerTransactionID
		at := wb.At
		return s.journals.MarkPosted(ctx, journals.Entry{TenantID: tenantID, ID: ref.ID, LedgerTransactionID: &txID, PostedAt: &at, PostedBy: wb.By})
	}
	table, ok := documentTables[ref.Type]
	if !ok {
		return fmt.Errorf("posting: unknown document type %q", ref.Type)
	}
	tag, err := s.q.Exec(ctx, `UPDATE `+table+` SET status=$3, ledger_transaction_id=$4, posted_at=$5, posted_by=$6, updated_at=$5
WHERE tenant_id=$1 AND id=$2 AND ledger_transaction_id IS NULL`, tenantID, ref.ID, wb.Status, wb.LedgerTransactionID, wb.At, wb.By)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(ref)
	}
	return nil
}

func (s *documentStore) MarkReversed(ctx context.Context, tenantID uuid.UUID, ref DocumentRef, wb WriteBack) error {
	if ref.Type == TypeJournalEntry {
		txID := wb.LedgerTransactionID
		at := wb.At
		return s.journals.MarkReversed(ctx, journals.Entry{
			TenantID: tenantID, ID: ref.ID, ReversalTransactionID: &txID, ReversalReason: wb.Reason, ReversedAt: &at, ReversedBy: wb.By,
		})
	}
	table, ok := documentTables[ref.Type]
	if !ok {
		return fmt.Errorf("posting: unknown document type %q", ref.Type)
	}
	_, err := s.q.Exec(ctx, `UPDATE `+table+` SET status=$3, updated_at=$4 WHERE tenant_id=$1 AND id=$2`, tenantID, ref.ID, wb.Status, wb.At)
	return err
}

func (s *documentStore) LoadPayable(ctx context.Context, tenantID uuid.UUID, ref DocumentRef) (Payable, error) {
	table := documentTables[ref.Type]
	if ref.Type != TypeInvoice && ref.Type != TypeBill {
		return Payable{}, fmt.Errorf("posting: %s documents cannot be paid", ref.noun())
	}
	p := Payable{Ref: ref}
	err := s.q.QueryRow(ctx, `SELECT number, status, total, amount_paid, balance_due FROM `+table+`
WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, ref.ID).Scan(&p.Number, &p.Status, &p.Total, &p.AmountPaid, &p.BalanceDue)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payable{}, notFound(ref)
	}
	return p, err
}

func (s *documentStore) SavePayable(ctx context.Context, tenantID uuid.UUID, p Payable) error {
	_, err := s.q.Exec(ctx, `UPDATE `+documentTables[p.Ref.Type]+` SET status=$3, amount_paid=$4, balance_due=$5, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, p.Ref.ID, p.Status, p.AmountPaid, p.BalanceDue)
	return err
}

func (s *documentStore) NextNumber(ctx context.Context, tenantID uuid.UUID, sequence string) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx, `INSERT INTO tenant_sequences (tenant_id, name, value) VALUES ($1, $2, 1)
ON CONFLICT (tenant_id, name) DO UPDATE SET value = tenant_sequences.value + 1
RETURNING value`, tenantID, sequence).Scan(&n)
	return n, err
}

func (s *documentStore) Insert(ctx context.Context, doc PostableDocument) error {
	switch d := doc.(type) {
	case *Invoice:
		return s.insertInvoice(ctx, d)
	case *Bill:
		return s.insertBill(ctx, d)
	case *Check:
		return s.insertCheck(ctx, d)
	case *Receipt:
		return s.insertReceipt(ctx, d)
	case *Event:
		return s.insertEvent(ctx, d)
	default:
		return fmt.Errorf("posting: cannot insert %s documents here", doc.Ref().noun())
	}
}

func (s *documentStore) insertInvoice(ctx context.Context, d *Invoice) error {
	if _, err := s.q.Exec(ctx, `INSERT INTO invoices (`+invoiceColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		d.ID, d.TenantID, d.SiteID, d.Number, d.CustomerID, d.CustomerName, d.InvoiceDate, d.DueDate, d.Status, d.Total, d.AmountPaid,
		d.BalanceDue, d.LedgerTransactionID, d.PostedAt, d.PostedBy, d.CreatedAt, d.UpdatedAt); err != nil {
		return err
	}
	for _, l := range d.Lines {
		if _, err := s.q.Exec(ctx, `INSERT INTO invoice_lines (id, invoice_id, line_no, description, account_id, quantity, unit_price, amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, uuid.New(), d.ID, l.LineNo, l.Description, l.AccountID, l.Quantity, l.UnitPrice, l.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *documentStore) insertBill(ctx context.Context, d *Bill) error {
	if _, err := s.q.Exec(ctx, `INSERT INTO bills (`+billColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		d.ID, d.TenantID, d.SiteID, d.Number, d.VendorID, d.VendorName, d.BillDate, d.DueDate, d.Status, d.Total, d.AmountPaid,
		d.BalanceDue, d.LedgerTransactionID, d.PostedAt, d.PostedBy, d.CreatedAt, d.UpdatedAt); err != nil {
		return err
	}
	for _, l := range d.Lines {
		if _, err := s.q.Exec(ctx, `INSERT INTO bill_lines (id, bill_id, line_no, description, account_id, item_id, quantity, amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, uuid.New(), d.ID, l.LineNo, l.Description, l.AccountID, l.ItemID, l.Quantity, l.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *documentStore) insertCheck(ctx context.Context, d *Check) error {
	if _, err := s.q.Exec(ctx, `INSERT INTO checks (`+checkColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		d.ID, d.TenantID, d.SiteID, d.Number, d.Payee, d.VendorID, d.CheckDate, d.BankAccountID, d.Memo, d.Total, d.Status,
		d.LedgerTransactionID, d.PostedAt, d.PostedBy, d.CreatedAt, d.UpdatedAt); err != nil {
		return err
	}
	for _, l := range d.Lines {
		if _, err := s.q.Exec(ctx, `INSERT INTO check_lines (id, check_id, line_no, description, account_id, amount)
VALUES ($1,$2,$3,$4,$5,$6)`, uuid.New(), d.ID, l.LineNo, l.Description, l.AccountID, l.Amount); err != nil {
			return err
		}
	}
	for _, bp := range d.BillPayments {
		if _, err := s.q.Exec(ctx, `INSERT INTO check_bill_payments (check_id, line_no, bill_id, amount) VALUES ($1,$2,$3,$4)`,
			d.ID, bp.LineNo, bp.BillID, bp.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *documentStore) insertReceipt(ctx context.Context, d *Receipt) error {
	if _, err := s.q.Exec(ctx, `INSERT INTO receipts (`+receiptColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		d.ID, d.TenantID, d.SiteID, d.Number, d.Payer, d.CustomerID, d.ReceiptDate, d.DepositAccountID, d.IncomeAccountID, d.Amount,
		d.Memo, d.Status, d.LedgerTransactionID, d.PostedAt, d.PostedBy, d.CreatedAt, d.UpdatedAt); err != nil {
		return err
	}
	for _, ip := range d.InvoicePayments {
		if _, err := s.q.Exec(ctx, `INSERT INTO receipt_invoice_payments (receipt_id, line_no, invoice_id, amount) VALUES ($1,$2,$3,$4)`,
			d.ID, ip.LineNo, ip.InvoiceID, ip.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (s *documentStore) insertEvent(ctx context.Context, d *Event) error {
	if _, err := s.q.Exec(ctx, `INSERT INTO events (`+eventColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		d.ID, d.TenantID, d.SiteID, d.Type, d.EventDate, d.Description, d.PaymentMethod, d.CashAccountID, d.Status,
		d.LedgerTransactionID, d.PostedAt, d.PostedBy, d.CreatedAt, d.UpdatedAt); err != nil {
		return err
	}
	for _, l := range d.Lines {
		if _, err := s.q.Exec(ctx, `INSERT INTO event_lines (id, event_id, line_no, description, item_id, account_id, quantity, unit_cost, amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, uuid.New(), d.ID, l.LineNo, l.Description, l.ItemID, l.AccountID, l.Quantity, l.UnitCost, l.Amount); err != nil {
			return err
		}
	}
	return nil
}
