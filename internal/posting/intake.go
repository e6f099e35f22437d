package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	core "github.com/ranchbook/ranchbook/internal/shared"
)

const dateLayout = "2006-01-02"

// InvoiceInput creates a DRAFT invoice.
type InvoiceInput struct {
	SiteID       *uuid.UUID         `json:"siteId"`
	Number       string             `json:"number" validate:"max=40"`
	CustomerID   *uuid.UUID         `json:"customerId"`
	CustomerName string             `json:"customerName" validate:"max=200"`
	InvoiceDate  string             `json:"invoiceDate" validate:"required,datetime=2006-01-02"`
	DueDate      string             `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Lines        []InvoiceLineInput `json:"lines" validate:"required,min=1,dive"`
}

// InvoiceLineInput is one revenue line; amount defaults to quantity × unitPrice.
type InvoiceLineInput struct {
	Description string           `json:"description" validate:"max=500"`
	AccountID   *uuid.UUID       `json:"accountId"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	Amount      *decimal.Decimal `json:"amount"`
}

// BillInput creates a DRAFT bill.
type BillInput struct {
	SiteID     *uuid.UUID      `json:"siteId"`
	Number     string          `json:"number" validate:"max=40"`
	VendorID   *uuid.UUID      `json:"vendorId"`
	VendorName string          `json:"vendorName" validate:"max=200"`
	BillDate   string          `json:"billDate" validate:"required,datetime=2006-01-02"`
	DueDate    string          `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Lines      []BillLineInput `json:"lines" validate:"required,min=1,dive"`
}

// BillLineInput is one bill line. ItemID with Quantity receives stock when the bill posts.
type BillLineInput struct {
	Description string           `json:"description" validate:"max=500"`
	AccountID   *uuid.UUID       `json:"accountId"`
	ItemID      *uuid.UUID       `json:"itemId"`
	Quantity    *decimal.Decimal `json:"quantity"`
	Amount      decimal.Decimal  `json:"amount"`
}

// CheckInput creates a DRAFT check.
type CheckInput struct {
	SiteID        *uuid.UUID         `json:"siteId"`
	Number        string             `json:"number" validate:"max=40"`
	Payee         string             `json:"payee" validate:"max=200"`
	VendorID      *uuid.UUID         `json:"vendorId"`
	CheckDate     string             `json:"checkDate" validate:"required,datetime=2006-01-02"`
	BankAccountID *uuid.UUID         `json:"bankAccountId"`
	Memo          string             `json:"memo" validate:"max=500"`
	Lines         []CheckLineInput   `json:"lines" validate:"dive"`
	BillPayments  []BillPaymentInput `json:"billPayments" validate:"dive"`
}

// CheckLineInput is a direct expense line.
type CheckLineInput struct {
	Description string          `json:"description" validate:"max=500"`
	AccountID   *uuid.UUID      `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
}

// BillPaymentInput pays part of a bill.
type BillPaymentInput struct {
	BillID uuid.UUID       `json:"billId" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// ReceiptInput creates a DRAFT receipt.
type ReceiptInput struct {
	SiteID           *uuid.UUID            `json:"siteId"`
	Number           string                `json:"number" validate:"max=40"`
	Payer            string                `json:"payer" validate:"max=200"`
	CustomerID       *uuid.UUID            `json:"customerId"`
	ReceiptDate      string                `json:"receiptDate" validate:"required,datetime=2006-01-02"`
	DepositAccountID *uuid.UUID            `json:"depositAccountId"`
	IncomeAccountID  *uuid.UUID            `json:"incomeAccountId"`
	Amount           decimal.Decimal       `json:"amount"`
	Memo             string                `json:"memo" validate:"max=500"`
	InvoicePayments  []InvoicePaymentInput `json:"invoicePayments" validate:"dive"`
}

// InvoicePaymentInput applies part of a receipt to an invoice.
type InvoicePaymentInput struct {
	InvoiceID uuid.UUID       `json:"invoiceId" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// EventInput records a PENDING farm event.
type EventInput struct {
	SiteID        uuid.UUID        `json:"siteId" validate:"required"`
	Type          EventType        `json:"type" validate:"required,oneof=feeding treatment purchase sale labor"`
	EventDate     string           `json:"eventDate" validate:"required,datetime=2006-01-02"`
	Description   string           `json:"description" validate:"max=500"`
	PaymentMethod PaymentMethod    `json:"paymentMethod" validate:"omitempty,oneof=cash credit"`
	CashAccountID *uuid.UUID       `json:"cashAccountId"`
	Lines         []EventLineInput `json:"lines" validate:"required,min=1,dive"`
}

// EventLineInput is one item or amount of an event.
type EventLineInput struct {
	Description string           `json:"description" validate:"max=500"`
	ItemID      *uuid.UUID       `json:"itemId"`
	AccountID   *uuid.UUID       `json:"accountId"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unitCost"`
	Amount      *decimal.Decimal `json:"amount"`
}

func parseDate(value string) time.Time {
	t, _ := time.Parse(dateLayout, value)
	return t
}

func parseOptionalDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t := parseDate(value)
	return &t
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func checkPositive(fields map[string]string, key string, amount decimal.Decimal) {
	if !amount.Round(2).IsPositive() {
		fields[key] = "must be greater than 0"
	}
}

func invalid(message string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return core.NewValidationError(message, fields)
}

// CreateInvoice stores a DRAFT invoice, numbering it when no number is given.
func (s *Service) CreateInvoice(ctx context.Context, actor core.Actor, in InvoiceInput) (*Invoice, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	doc := &Invoice{
		ID: uuid.New(), TenantID: actor.TenantID, SiteID: in.SiteID, Number: in.Number, CustomerID: in.CustomerID,
		CustomerName: in.CustomerName, InvoiceDate: parseDate(in.InvoiceDate), DueDate: parseOptionalDate(in.DueDate),
		Status: StatusDraft, CreatedAt: now, UpdatedAt: now,
	}
	fields := make(map[string]string)
	for i, l := range in.Lines {
		qty := decimal.NewFromInt(1)
		if l.Quantity != nil {
			qty = *l.Quantity
		}
		amount := qty.Mul(orZero(l.UnitPrice)).Round(2)
		if l.Amount != nil {
			amount = l.Amount.Round(2)
		}
		checkPositive(fields, fmt.Sprintf("lines[%d].amount", i), amount)
		doc.Lines = append(doc.Lines, InvoiceLine{
			LineNo: i + 1, Description: l.Description, AccountID: l.AccountID, Quantity: qty, UnitPrice: orZero(l.UnitPrice), Amount: amount,
		})
		doc.Total = doc.Total.Add(amount)
	}
	if err := invalid("invalid invoice", fields); err != nil {
		return nil, err
	}
	doc.BalanceDue = doc.Total
	if err := s.create(ctx, actor.TenantID, doc, "invoice", "INV-%05d", &doc.Number); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateBill stores a DRAFT bill.
func (s *Service) CreateBill(ctx context.Context, actor core.Actor, in BillInput) (*Bill, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	doc := &Bill{
		ID: uuid.New(), TenantID: actor.TenantID, SiteID: in.SiteID, Number: in.Number, VendorID: in.VendorID,
		VendorName: in.VendorName, BillDate: parseDate(in.BillDate), DueDate: parseOptionalDate(in.DueDate),
		Status: StatusDraft, CreatedAt: now, UpdatedAt: now,
	}
	fields := make(map[string]string)
	for i, l := range in.Lines {
		amount := l.Amount.Round(2)
		checkPositive(fields, fmt.Sprintf("lines[%d].amount", i), amount)
		qty := orZero(l.Quantity)
		if qty.IsNegative() {
			fields[fmt.Sprintf("lines[%d].quantity", i)] = "cannot be negative"
		}
		doc.Lines = append(doc.Lines, BillLine{
			LineNo: i + 1, Description: l.Description, AccountID: l.AccountID, ItemID: l.ItemID, Quantity: qty, Amount: amount,
		})
		doc.Total = doc.Total.Add(amount)
	}
	if err := invalid("invalid bill", fields); err != nil {
		return nil, err
	}
	doc.BalanceDue = doc.Total
	if err := s.create(ctx, actor.TenantID, doc, "bill", "BILL-%05d", &doc.Number); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateCheck stores a DRAFT check.
func (s *Service) CreateCheck(ctx context.Context, actor core.Actor, in CheckInput) (*Check, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	doc := &Check{
		ID: uuid.New(), TenantID: actor.TenantID, SiteID: in.SiteID, Number: in.Number, Payee: in.Payee, VendorID: in.VendorID,
		CheckDate: parseDate(in.CheckDate), BankAccountID: in.BankAccountID, Memo: in.Memo, Status: StatusDraft,
		CreatedAt: now, UpdatedAt: now,
	}
	fields := make(map[string]string)
	if len(in.Lines) == 0 && len(in.BillPayments) == 0 {
		fields["lines"] = "add an expense line or a bill payment"
	}
	for i, l := range in.Lines {
		amount := l.Amount.Round(2)
		checkPositive(fields, fmt.Sprintf("lines[%d].amount", i), amount)
		doc.Lines = append(doc.Lines, CheckLine{LineNo: i + 1, Description: l.Description, AccountID: l.AccountID, Amount: amount})
		doc.Total = doc.Total.Add(amount)
	}
	for i, bp := range in.BillPayments {
		amount := bp.Amount.Round(2)
		checkPositive(fields, fmt.Sprintf("billPayments[%d].amount", i), amount)
		doc.BillPayments = append(doc.BillPayments, BillPayment{LineNo: i + 1, BillID: bp.BillID, Amount: amount})
		doc.Total = doc.Total.Add(amount)
	}
	if err := invalid("invalid check", fields); err != nil {
		return nil, err
	}
	if err := s.create(ctx, actor.TenantID, doc, "check", "CHK-%05d", &doc.Number); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateReceipt stores a DRAFT receipt.
func (s *Service) CreateReceipt(ctx context.Context, actor core.Actor, in ReceiptInput) (*Receipt, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	doc := &Receipt{
		ID: uuid.New(), TenantID: actor.TenantID, SiteID: in.SiteID, Number: in.Number, Payer: in.Payer, CustomerID: in.CustomerID,
		ReceiptDate: parseDate(in.ReceiptDate), DepositAccountID: in.DepositAccountID, IncomeAccountID: in.IncomeAccountID,
		Amount: in.Amount.Round(2), Memo: in.Memo, Status: StatusDraft, CreatedAt: now, UpdatedAt: now,
	}
	fields := make(map[string]string)
	checkPositive(fields, "amount", doc.Amount)
	applied := decimal.Zero
	for i, ip := range in.InvoicePayments {
		amount := ip.Amount.Round(2)
		checkPositive(fields, fmt.Sprintf("invoicePayments[%d].amount", i), amount)
		doc.InvoicePayments = append(doc.InvoicePayments, InvoicePayment{LineNo: i + 1, InvoiceID: ip.InvoiceID, Amount: amount})
		applied = applied.Add(amount)
	}
	if applied.GreaterThan(doc.Amount) {
		fields["invoicePayments"] = "cannot apply more than the amount received"
	}
	if err := invalid("invalid receipt", fields); err != nil {
		return nil, err
	}
	if err := s.create(ctx, actor.TenantID, doc, "receipt", "RCPT-%05d", &doc.Number); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateEvent stores a PENDING farm event.
func (s *Service) CreateEvent(ctx context.Context, actor core.Actor, in EventInput) (*Event, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	method := in.PaymentMethod
	if method == "" {
		method = PaymentCash
	}
	doc := &Event{
		ID: uuid.New(), TenantID: actor.TenantID, SiteID: in.SiteID, Type: in.Type, EventDate: parseDate(in.EventDate),
		Description: in.Description, PaymentMethod: method, CashAccountID: in.CashAccountID, Status: StatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
	fields := make(map[string]string)
	for i, l := range in.Lines {
		qty, unitCost := orZero(l.Quantity), orZero(l.UnitCost)
		if qty.IsNegative() {
			fields[fmt.Sprintf("lines[%d].quantity", i)] = "cannot be negative"
		}
		if unitCost.IsNegative() {
			fields[fmt.Sprintf("lines[%d].unitCost", i)] = "cannot be negative"
		}
		amount := orZero(l.Amount).Round(2)
		if l.Amount == nil && in.Type == EventPurchase {
			amount = qty.Mul(unitCost).Round(2)
		}
		doc.Lines = append(doc.Lines, EventLine{
			LineNo: i + 1, Description: l.Description, ItemID: l.ItemID, AccountID: l.AccountID,
			Quantity: qty, UnitCost: unitCost, Amount: amount,
		})
	}
	if err := invalid("invalid event", fields); err != nil {
		return nil, err
	}
	if err := s.create(ctx, actor.TenantID, doc, "", "", nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// create numbers the document from the tenant sequence when needed and inserts it.
func (s *Service) create(ctx context.Context, tenantID uuid.UUID, doc PostableDocument, sequence, format string, number *string) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		if number != nil && *number == "" {
			n, err := tx.Documents().NextNumber(ctx, tenantID, sequence)
			if err != nil {
				return err
			}
			*number = fmt.Sprintf(format, n)
		}
		return tx.Documents().Insert(ctx, doc)
	})
}
