package posting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	"github.com/ranchbook/ranchbook/internal/accounting/journals"
	"github.com/ranchbook/ranchbook/internal/inventory"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

func missingAccount(lineNo int) error {
	return core.Preconditionf("assign an account to line %d", lineNo)
}

func hasAccount(id *uuid.UUID) bool {
	return id != nil && *id != uuid.Nil
}

// Invoice bills a customer. Sending it posts Dr A/R, Cr revenue per line.
type Invoice struct {
	ID                  uuid.UUID       `json:"id"`
	TenantID            uuid.UUID       `json:"tenantId"`
	SiteID              *uuid.UUID      `json:"siteId,omitempty"`
	Number              string          `json:"number"`
	CustomerID          *uuid.UUID      `json:"customerId,omitempty"`
	CustomerName        string          `json:"customerName"`
	InvoiceDate         time.Time       `json:"invoiceDate"`
	DueDate             *time.Time      `json:"dueDate,omitempty"`
	Status              Status          `json:"status"`
	Total               decimal.Decimal `json:"total"`
	AmountPaid          decimal.Decimal `json:"amountPaid"`
	BalanceDue          decimal.Decimal `json:"balanceDue"`
	LedgerTransactionID *uuid.UUID      `json:"ledgerTransactionId,omitempty"`
	PostedAt            *time.Time      `json:"postedAt,omitempty"`
	PostedBy            string          `json:"postedBy,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	Lines               []InvoiceLine   `json:"lines"`
}

// InvoiceLine is one revenue line.
type InvoiceLine struct {
	LineNo      int             `json:"lineNo"`
	Description string          `json:"description"`
	AccountID   *uuid.UUID      `json:"accountId,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

func (d *Invoice) Ref() DocumentRef { return DocumentRef{Type: TypeInvoice, ID: d.ID} }

func (d *Invoice) Header() Header {
	desc := "Invoice " + d.Number
	if d.CustomerName != "" {
		desc += " to " + d.CustomerName
	}
	return Header{TenantID: d.TenantID, SiteID: d.SiteID, Number: d.Number, Date: d.InvoiceDate, Description: desc,
		Status: d.Status, LedgerTransactionID: d.LedgerTransactionID}
}

func (d *Invoice) StatusTransition() Transition {
	return Transition{From: StatusDraft, To: StatusSent, Reversed: StatusVoid, Settled: []Status{StatusPartiallyPaid, StatusPaid}}
}

func (d *Invoice) Validate() error {
	for _, l := range d.Lines {
		if l.Amount.IsPositive() && !hasAccount(l.AccountID) {
			return missingAccount(l.LineNo)
		}
	}
	return nil
}

func (d *Invoice) AccountMapping() []Mapping {
	return []Mapping{control(accounts.ControlAR)}
}

func (d *Invoice) BuildLines(_ context.Context, p *Plan) error {
	p.Entity("customer", d.CustomerID)
	p.Debit(p.Control(accounts.ControlAR), sumInvoiceLines(d.Lines), "Invoice "+d.Number)
	for _, l := range d.Lines {
		if l.Amount.IsPositive() {
			p.Credit(*l.AccountID, l.Amount, l.Description)
		}
	}
	return nil
}

// Paid implements settleable.
func (d *Invoice) Paid() decimal.Decimal { return d.AmountPaid }

func sumInvoiceLines(lines []InvoiceLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.Amount.IsPositive() {
			total = total.Add(l.Amount)
		}
	}
	return total
}

// Bill records a vendor charge. Posting it debits each line's account and credits A/P.
// Lines naming an item and quantity also receive stock at amount/quantity.
type Bill struct {
	ID                  uuid.UUID       `json:"id"`
	TenantID            uuid.UUID       `json:"tenantId"`
	SiteID              *uuid.UUID      `json:"siteId,omitempty"`
	Number              string          `json:"number"`
	VendorID            *uuid.UUID      `json:"vendorId,omitempty"`
	VendorName          string          `json:"vendorName"`
	BillDate            time.Time       `json:"billDate"`
	DueDate             *time.Time      `json:"dueDate,omitempty"`
	Status              Status          `json:"status"`
	Total               decimal.Decimal `json:"total"`
	AmountPaid          decimal.Decimal `json:"amountPaid"`
	BalanceDue          decimal.Decimal `json:"balanceDue"`
	LedgerTransactionID *uuid.UUID      `json:"ledgerTransactionId,omitempty"`
	PostedAt            *time.Time      `json:"postedAt,omitempty"`
	PostedBy            string          `json:"postedBy,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	Lines               []BillLine      `json:"lines"`
}

// BillLine is one expense or stock line.
type BillLine struct {
	LineNo      int             `json:"lineNo"`
	Description string          `json:"description"`
	AccountID   *uuid.UUID      `json:"accountId,omitempty"`
	ItemID      *uuid.UUID      `json:"itemId,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

func (d *Bill) Ref() DocumentRef { return DocumentRef{Type: TypeBill, ID: d.ID} }

func (d *Bill) Header() Header {
	desc := "Bill " + d.Number
	if d.VendorName != "" {
		desc += " from " + d.VendorName
	}
	return Header{TenantID: d.TenantID, SiteID: d.SiteID, Number: d.Number, Date: d.BillDate, Description: desc,
		Status: d.Status, LedgerTransactionID: d.LedgerTransactionID}
}

func (d *Bill) StatusTransition() Transition {
	return Transition{From: StatusDraft, To: StatusPosted, Reversed: StatusVoid, Settled: []Status{StatusPartiallyPaid, StatusPaid}}
}

func (d *Bill) Validate() error {
	for _, l := range d.Lines {
		if !hasAccount(l.AccountID) {
			return missingAccount(l.LineNo)
		}
		if l.ItemID != nil && l.Quantity.IsPositive() && d.SiteID == nil {
			return core.Preconditionf("line %d receives stock; set the bill's site first", l.LineNo)
		}
	}
	return nil
}

func (d *Bill) AccountMapping() []Mapping {
	return []Mapping{control(accounts.ControlAP)}
}

func (d *Bill) BuildLines(ctx context.Context, p *Plan) error {
	p.Entity("vendor", d.VendorID)
	total := decimal.Zero
	for _, l := range d.Lines {
		p.Debit(*l.AccountID, l.Amount, l.Description)
		total = total.Add(l.Amount.Round(2))
		if l.ItemID == nil || !l.Quantity.IsPositive() {
			continue
		}
		unitCost := l.Amount.DivRound(l.Quantity, 6)
		if _, err := p.Move(ctx, inventory.MovementInput{
			SiteID:        *d.SiteID,
			ItemID:        *l.ItemID,
			QuantityDelta: l.Quantity,
			Type:          inventory.MovementIn,
			UnitCost:      &unitCost,
			Note:          fmt.Sprintf("Bill %s line %d", d.Number, l.LineNo),
		}); err != nil {
			return err
		}
	}
	p.Credit(p.Control(accounts.ControlAP), total, "Bill "+d.Number)
	return nil
}

// Paid implements settleable.
func (d *Bill) Paid() decimal.Decimal { return d.AmountPaid }

// Check pays vendors out of a bank account, either against bills or as direct expense lines.
type Check struct {
	ID                  uuid.UUID       `json:"id"`
	TenantID            uuid.UUID       `json:"tenantId"`
	SiteID              *uuid.UUID      `json:"siteId,omitempty"`
	Number              string          `json:"number"`
	Payee               string          `json:"payee"`
	VendorID            *uuid.UUID      `json:"vendorId,omitempty"`
	CheckDate           time.Time       `json:"checkDate"`
	BankAccountID       *uuid.UUID      `json:"bankAccountId,omitempty"`
	Memo                string          `json:"memo"`
	Total               decimal.Decimal `json:"total"`
	Status              Status          `json:"status"`
	LedgerTransactionID *uuid.UUID      `json:"ledgerTransactionId,omitempty"`
	PostedAt            *time.Time      `json:"postedAt,omitempty"`
	PostedBy            string          `json:"postedBy,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	Lines               []CheckLine     `json:"lines"`
	BillPayments        []BillPayment   `json:"billPayments"`
}

// CheckLine is a direct expense paid by the check.
type CheckLine struct {
	LineNo      int             `json:"lineNo"`
	Description string          `json:"description"`
	AccountID   *uuid.UUID      `json:"accountId,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// BillPayment allocates part of a check to a bill.
type BillPayment struct {
	LineNo int             `json:"lineNo"`
	BillID uuid.UUID       `json:"billId"`
	Amount decimal.Decimal `json:"amount"`
}

func (d *Check) Ref() DocumentRef { return DocumentRef{Type: TypeCheck, ID: d.ID} }

func (d *Check) Header() Header {
	desc := "Check " + d.Number
	if d.Payee != "" {
		desc += " to " + d.Payee
	}
	return Header{TenantID: d.TenantID, SiteID: d.SiteID, Number: d.Number, Date: d.CheckDate, Description: desc,
		Status: d.Status, LedgerTransactionID: d.LedgerTransactionID}
}

func (d *Check) StatusTransition() Transition {
	return Transition{From: StatusDraft, To: StatusPosted, Reversed: StatusVoid}
}

func (d *Check) Validate() error {
	for _, l := range d.Lines {
		if l.Amount.IsPositive() && !hasAccount(l.AccountID) {
			return missingAccount(l.LineNo)
		}
	}
	return nil
}

func (d *Check) AccountMapping() []Mapping {
	var out []Mapping
	if !hasAccount(d.BankAccountID) {
		out = append(out, control(accounts.ControlCash))
	}
	if len(d.BillPayments) > 0 {
		out = append(out, control(accounts.ControlAP))
	}
	return out
}

func (d *Check) BuildLines(_ context.Context, p *Plan) error {
	p.Entity("vendor", d.VendorID)
	total := decimal.Zero
	for _, bp := range d.BillPayments {
		p.Debit(p.Control(accounts.ControlAP), bp.Amount, "Payment of bill "+bp.BillID.String())
		total = total.Add(bp.Amount.Round(2))
	}
	for _, l := range d.Lines {
		if !l.Amount.IsPositive() {
			continue
		}
		p.Debit(*l.AccountID, l.Amount, l.Description)
		total = total.Add(l.Amount.Round(2))
	}
	p.Credit(p.AccountOr(d.BankAccountID, accounts.ControlCash), total, "Check "+d.Number)
	return nil
}

// Allocations implements allocator.
func (d *Check) Allocations() []Allocation {
	out := make([]Allocation, 0, len(d.BillPayments))
	for _, bp := range d.BillPayments {
		out = append(out, Allocation{LineNo: bp.LineNo, Target: DocumentRef{Type: TypeBill, ID: bp.BillID}, Amount: bp.Amount})
	}
	return out
}

// Receipt deposits money from a customer, applied to invoices with any remainder booked as income.
type Receipt struct {
	ID                  uuid.UUID        `json:"id"`
	TenantID            uuid.UUID        `json:"tenantId"`
	SiteID              *uuid.UUID       `json:"siteId,omitempty"`
	Number              string           `json:"number"`
	Payer               string           `json:"payer"`
	CustomerID          *uuid.UUID       `json:"customerId,omitempty"`
	ReceiptDate         time.Time        `json:"receiptDate"`
	DepositAccountID    *uuid.UUID       `json:"depositAccountId,omitempty"`
	IncomeAccountID     *uuid.UUID       `json:"incomeAccountId,omitempty"`
	Amount              decimal.Decimal  `json:"amount"`
	Memo                string           `json:"memo"`
	Status              Status           `json:"status"`
	LedgerTransactionID *uuid.UUID       `json:"ledgerTransactionId,omitempty"`
	PostedAt            *time.Time       `json:"postedAt,omitempty"`
	PostedBy            string           `json:"postedBy,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
	InvoicePayments     []InvoicePayment `json:"invoicePayments"`
}

// InvoicePayment allocates part of a receipt to an invoice.
type InvoicePayment struct {
	LineNo    int             `json:"lineNo"`
	InvoiceID uuid.UUID       `json:"invoiceId"`
	Amount    decimal.Decimal `json:"amount"`
}

func (d *Receipt) Ref() DocumentRef { return DocumentRef{Type: TypeReceipt, ID: d.ID} }

func (d *Receipt) Header() Header {
	desc := "Receipt " + d.Number
	if d.Payer != "" {
		desc += " from " + d.Payer
	}
	return Header{TenantID: d.TenantID, SiteID: d.SiteID, Number: d.Number, Date: d.ReceiptDate, Description: desc,
		Status: d.Status, LedgerTransactionID: d.LedgerTransactionID}
}

func (d *Receipt) StatusTransition() Transition {
	return Transition{From: StatusDraft, To: StatusPosted, Reversed: StatusVoid}
}

func (d *Receipt) applied() decimal.Decimal {
	total := decimal.Zero
	for _, ip := range d.InvoicePayments {
		total = total.Add(ip.Amount.Round(2))
	}
	return total
}

func (d *Receipt) Validate() error {
	if d.applied().GreaterThan(d.Amount.Round(2)) {
		return core.Preconditionf("receipt %s applies %s to invoices but only %s was received",
			d.Number, d.applied().StringFixed(2), d.Amount.StringFixed(2))
	}
	return nil
}

func (d *Receipt) AccountMapping() []Mapping {
	var out []Mapping
	if !hasAccount(d.DepositAccountID) {
		out = append(out, control(accounts.ControlCash))
	}
	if len(d.InvoicePayments) > 0 {
		out = append(out, control(accounts.ControlAR))
	}
	if d.Amount.Round(2).GreaterThan(d.applied()) && !hasAccount(d.IncomeAccountID) {
		out = append(out, control(accounts.ControlDefaultIncome))
	}
	return out
}

func (d *Receipt) BuildLines(_ context.Context, p *Plan) error {
	p.Entity("customer", d.CustomerID)
	p.Debit(p.AccountOr(d.DepositAccountID, accounts.ControlCash), d.Amount, "Receipt "+d.Number)
	for _, ip := range d.InvoicePayments {
		p.Credit(p.Control(accounts.ControlAR), ip.Amount, "Payment of invoice "+ip.InvoiceID.String())
	}
	p.Credit(p.AccountOr(d.IncomeAccountID, accounts.ControlDefaultIncome), d.Amount.Round(2).Sub(d.applied()), "Unapplied receipt")
	return nil
}

// Allocations implements allocator.
func (d *Receipt) Allocations() []Allocation {
	out := make([]Allocation, 0, len(d.InvoicePayments))
	for _, ip := range d.InvoicePayments {
		out = append(out, Allocation{LineNo: ip.LineNo, Target: DocumentRef{Type: TypeInvoice, ID: ip.InvoiceID}, Amount: ip.Amount})
	}
	return out
}

// EventType enumerates farm activity events.
type EventType string

const (
	EventFeeding   EventType = "feeding"
	EventTreatment EventType = "treatment"
	EventPurchase  EventType = "purchase"
	EventSale      EventType = "sale"
	EventLabor     EventType = "labor"
)

// PaymentMethod selects the settlement side of purchase, sale and labor events.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
)

// Event is a farm activity that moves stock and money.
type Event struct {
	ID                  uuid.UUID     `json:"id"`
	TenantID            uuid.UUID     `json:"tenantId"`
	SiteID              uuid.UUID     `json:"siteId"`
	Type                EventType     `json:"type"`
	EventDate           time.Time     `json:"eventDate"`
	Description         string        `json:"description"`
	PaymentMethod       PaymentMethod `json:"paymentMethod"`
	CashAccountID       *uuid.UUID    `json:"cashAccountId,omitempty"`
	Status              Status        `json:"status"`
	LedgerTransactionID *uuid.UUID    `json:"ledgerTransactionId,omitempty"`
	PostedAt            *time.Time    `json:"postedAt,omitempty"`
	PostedBy            string        `json:"postedBy,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
	Lines               []EventLine   `json:"lines"`
}

// EventLine is one item or amount of an event.
type EventLine struct {
	LineNo      int             `json:"lineNo"`
	Description string          `json:"description"`
	ItemID      *uuid.UUID      `json:"itemId,omitempty"`
	AccountID   *uuid.UUID      `json:"accountId,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	Amount      decimal.Decimal `json:"amount"`
}

func (l EventLine) movesStock() bool {
	return l.ItemID != nil && l.Quantity.IsPositive()
}

func (d *Event) Ref() DocumentRef { return DocumentRef{Type: TypeEvent, ID: d.ID} }

func (d *Event) Header() Header {
	site := d.SiteID
	desc := d.Description
	if desc == "" {
		desc = fmt.Sprintf("%s event", d.Type)
	}
	return Header{TenantID: d.TenantID, SiteID: &site, Date: d.EventDate, Description: desc,
		Status: d.Status, LedgerTransactionID: d.LedgerTransactionID}
}

func (d *Event) StatusTransition() Transition {
	return Transition{From: StatusPending, To: StatusPosted, Reversed: StatusVoid}
}

// expenseKind is the control account of an expense event line without its own account.
func (d *Event) expenseKind() accounts.ControlKind {
	switch d.Type {
	case EventFeeding:
		return accounts.ControlFeedExpense
	case EventTreatment:
		return accounts.ControlMedicalExpense
	default:
		return accounts.ControlLaborExpense
	}
}

func (d *Event) settlementKind() accounts.ControlKind {
	switch {
	case d.PaymentMethod != PaymentCredit:
		return accounts.ControlCash
	case d.Type == EventSale:
		return accounts.ControlAR
	default:
		return accounts.ControlAP
	}
}

func (d *Event) Validate() error {
	for _, l := range d.Lines {
		switch d.Type {
		case EventFeeding, EventTreatment:
			if !l.movesStock() {
				return core.Preconditionf("line %d: choose an inventory item and a positive quantity", l.LineNo)
			}
		case EventPurchase:
			if !l.movesStock() || !l.UnitCost.IsPositive() {
				return core.Preconditionf("line %d: purchases need an item, a quantity and a unit cost", l.LineNo)
			}
		case EventSale, EventLabor:
			if !l.Amount.IsPositive() {
				return core.Preconditionf("line %d: enter an amount", l.LineNo)
			}
		default:
			return core.Preconditionf("unknown event type %q", d.Type)
		}
	}
	return nil
}

func (d *Event) AccountMapping() []Mapping {
	unmapped := false
	stock := false
	for _, l := range d.Lines {
		if !hasAccount(l.AccountID) {
			unmapped = true
		}
		if l.movesStock() {
			stock = true
		}
	}
	var out []Mapping
	switch d.Type {
	case EventFeeding, EventTreatment, EventLabor:
		if unmapped {
			out = append(out, control(d.expenseKind(), accounts.ControlDefaultExpense))
		}
		if d.Type == EventLabor {
			out = append(out, d.settlementMapping())
		} else {
			out = append(out, control(accounts.ControlInventory))
		}
	case EventPurchase:
		out = append(out, control(accounts.ControlInventory), d.settlementMapping())
	case EventSale:
		out = append(out, d.settlementMapping())
		if unmapped {
			out = append(out, control(accounts.ControlDefaultIncome))
		}
		if stock {
			out = append(out, control(accounts.ControlCOGS), control(accounts.ControlInventory))
		}
	}
	return out
}

func (d *Event) settlementMapping() Mapping {
	kind := d.settlementKind()
	if kind == accounts.ControlCash && hasAccount(d.CashAccountID) {
		return Mapping{}
	}
	return control(kind)
}

func (d *Event) settlementAccount(p *Plan) uuid.UUID {
	if d.settlementKind() == accounts.ControlCash {
		return p.AccountOr(d.CashAccountID, accounts.ControlCash)
	}
	return p.Control(d.settlementKind())
}

func (d *Event) BuildLines(ctx context.Context, p *Plan) error {
	switch d.Type {
	case EventFeeding, EventTreatment:
		for _, l := range d.Lines {
			cost, err := d.issue(ctx, p, l)
			if err != nil {
				return err
			}
			p.Debit(p.AccountOr(l.AccountID, d.expenseKind()), cost, l.Description)
			p.Credit(p.Control(accounts.ControlInventory), cost, l.Description)
		}
	case EventPurchase:
		total := decimal.Zero
		for _, l := range d.Lines {
			unitCost := l.UnitCost
			if _, err := d.move(ctx, p, l, inventory.MovementIn, &unitCost); err != nil {
				return err
			}
			amount := l.Quantity.Mul(l.UnitCost).Round(2)
			p.Debit(p.Control(accounts.ControlInventory), amount, l.Description)
			total = total.Add(amount)
		}
		p.Credit(d.settlementAccount(p), total, d.Header().Description)
	case EventSale:
		total := decimal.Zero
		for _, l := range d.Lines {
			total = total.Add(l.Amount.Round(2))
		}
		p.Debit(d.settlementAccount(p), total, d.Header().Description)
		for _, l := range d.Lines {
			p.Credit(p.AccountOr(l.AccountID, accounts.ControlDefaultIncome), l.Amount, l.Description)
			if !l.movesStock() {
				continue
			}
			cost, err := d.issue(ctx, p, l)
			if err != nil {
				return err
			}
			p.Debit(p.Control(accounts.ControlCOGS), cost, l.Description)
			p.Credit(p.Control(accounts.ControlInventory), cost, l.Description)
		}
	case EventLabor:
		total := decimal.Zero
		for _, l := range d.Lines {
			p.Debit(p.AccountOr(l.AccountID, d.expenseKind()), l.Amount, l.Description)
			total = total.Add(l.Amount.Round(2))
		}
		p.Credit(d.settlementAccount(p), total, d.Header().Description)
	}
	return nil
}

// issue moves a line's stock out and returns its cost. Stock with no cost at all is refused
// so the event never posts as an empty transaction.
func (d *Event) issue(ctx context.Context, p *Plan, l EventLine) (decimal.Decimal, error) {
	res, err := d.move(ctx, p, l, inventory.MovementOut, nil)
	if err != nil {
		return decimal.Zero, err
	}
	cost := res.Movement.TotalCost.Abs()
	if cost.IsZero() && l.Quantity.IsPositive() {
		return decimal.Zero, core.Preconditionf("line %d: item %s has no cost yet; receive it first", l.LineNo, res.Item.Name)
	}
	return cost, nil
}

func (d *Event) move(ctx context.Context, p *Plan, l EventLine, kind inventory.MovementType, unitCost *decimal.Decimal) (inventory.Result, error) {
	qty := l.Quantity
	if kind == inventory.MovementOut {
		qty = qty.Neg()
	}
	return p.Move(ctx, inventory.MovementInput{
		SiteID:        d.SiteID,
		ItemID:        *l.ItemID,
		QuantityDelta: qty,
		Type:          kind,
		UnitCost:      unitCost,
		Note:          fmt.Sprintf("%s event line %d", d.Type, l.LineNo),
	})
}

// journalDocument adapts a journal entry; its lines post as authored.
type journalDocument struct {
	entry journals.Entry
}

func (d *journalDocument) Ref() DocumentRef { return DocumentRef{Type: TypeJournalEntry, ID: d.entry.ID} }

func (d *journalDocument) Header() Header {
	e := d.entry
	desc := "Journal entry " + e.EntryNumber
	if e.Memo != "" {
		desc += ": " + e.Memo
	}
	return Header{TenantID: e.TenantID, SiteID: e.SiteID, Number: e.EntryNumber, Date: e.EntryDate, Description: desc,
		Status: Status(e.Status), LedgerTransactionID: e.LedgerTransactionID}
}

func (d *journalDocument) StatusTransition() Transition {
	return Transition{From: Status(journals.StatusDraft), To: Status(journals.StatusPosted), Reversed: Status(journals.StatusReversed)}
}

func (d *journalDocument) Validate() error {
	d.entry.Recalculate()
	if !d.entry.IsBalanced {
		return fmt.Errorf("%w: debits %s, credits %s", acctshared.ErrUnbalanced,
			d.entry.TotalDebits.StringFixed(2), d.entry.TotalCredits.StringFixed(2))
	}
	for _, l := range d.entry.Lines {
		if l.AccountID == uuid.Nil {
			return missingAccount(l.LineNo)
		}
	}
	return nil
}

func (d *journalDocument) AccountMapping() []Mapping { return nil }

func (d *journalDocument) BuildLines(_ context.Context, p *Plan) error {
	for _, l := range d.entry.Lines {
		p.Entity(l.EntityType, l.EntityID)
		p.add(l.AccountID, l.Debit.Round(2), l.Credit.Round(2), l.Memo)
	}
	return nil
}

// MarshalJSON renders the underlying entry.
func (d *journalDocument) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.entry)
}
