// Package posting turns source documents into ledger transactions and inventory movements.
package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/accounting/accounts"
	"github.com/ranchbook/ranchbook/internal/accounting/ledger"
	"github.com/ranchbook/ranchbook/internal/inventory"
)

// DocumentType tags the PostableDocument variants.
type DocumentType string

const (
	TypeInvoice      DocumentType = "invoice"
	TypeBill         DocumentType = "bill"
	TypeCheck        DocumentType = "check"
	TypeReceipt      DocumentType = "receipt"
	TypeJournalEntry DocumentType = "journal_entry"
	TypeEvent        DocumentType = "event"
)

var keyPrefixes = map[DocumentType]string{
	TypeInvoice:      "invoice",
	TypeBill:         "bill",
	TypeCheck:        "check",
	TypeReceipt:      "receipt",
	TypeJournalEntry: "je",
	TypeEvent:        "event",
}

// Status is the lifecycle value stored on a source document.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusPending       Status = "PENDING"
	StatusSent          Status = "SENT"
	StatusPosted        Status = "POSTED"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusVoid          Status = "VOID"
	StatusReversed      Status = "REVERSED"
)

// DocumentRef identifies one source document.
type DocumentRef struct {
	Type DocumentType
	ID   uuid.UUID
}

// IdempotencyKey derives the ledger key, e.g. "invoice-<id>".
func (r DocumentRef) IdempotencyKey() string {
	return keyPrefixes[r.Type] + "-" + r.ID.String()
}

func (r DocumentRef) noun() string {
	if r.Type == TypeJournalEntry {
		return "journal entry"
	}
	return string(r.Type)
}

// Header carries the fields every document shares.
type Header struct {
	TenantID            uuid.UUID
	SiteID              *uuid.UUID
	Number              string
	Date                time.Time
	Description         string
	Status              Status
	LedgerTransactionID *uuid.UUID
}

// Transition is the status change a document makes when posted and when reversed.
type Transition struct {
	From     Status
	To       Status
	Reversed Status
	// Settled lists further statuses that still count as posted, e.g. PAID.
	Settled []Status
}

func (t Transition) isPosted(s Status) bool {
	if s == t.To {
		return true
	}
	for _, st := range t.Settled {
		if s == st {
			return true
		}
	}
	return false
}

// Mapping names a control account role and the kinds that may fill it, tried in order.
type Mapping struct {
	Role  accounts.ControlKind
	Kinds []accounts.ControlKind
}

func control(kinds ...accounts.ControlKind) Mapping {
	return Mapping{Role: kinds[0], Kinds: kinds}
}

// PostableDocument is one source document variant with its own account mapping rule.
type PostableDocument interface {
	Ref() DocumentRef
	Header() Header
	StatusTransition() Transition
	// Validate reports line items missing the account mapping they need.
	Validate() error
	// AccountMapping lists the control accounts the lines post against.
	AccountMapping() []Mapping
	// BuildLines builds the ledger lines into the plan, moving stock through it where needed.
	BuildLines(ctx context.Context, p *Plan) error
}

// Allocation applies part of a payment to an invoice or bill.
type Allocation struct {
	LineNo int
	Target DocumentRef
	Amount decimal.Decimal
}

// allocator is implemented by payments that settle other documents.
type allocator interface {
	Allocations() []Allocation
}

// settleable is implemented by documents that payments can settle.
type settleable interface {
	Paid() decimal.Decimal
}

// Payable is the balance view of an invoice or bill used for payment application.
type Payable struct {
	Ref        DocumentRef
	Number     string
	Status     Status
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	BalanceDue decimal.Decimal
}

// apply moves amount from the balance due to the amount paid and derives the status.
// A negative amount restores a previous allocation.
func (p *Payable) apply(amount decimal.Decimal, postedStatus Status) {
	p.AmountPaid = p.AmountPaid.Add(amount)
	p.BalanceDue = p.Total.Sub(p.AmountPaid)
	switch {
	case !p.BalanceDue.IsPositive():
		p.Status = StatusPaid
	case p.AmountPaid.IsPositive():
		p.Status = StatusPartiallyPaid
	default:
		p.Status = postedStatus
	}
}

// WriteBack is stored on a document after it posts or reverses.
type WriteBack struct {
	Status              Status
	LedgerTransactionID uuid.UUID
	At                  time.Time
	By                  string
	Reason              string
}

// Plan collects the ledger lines of one posting and applies its stock movements.
type Plan struct {
	ref        DocumentRef
	tenantID   uuid.UUID
	controls   map[accounts.ControlKind]uuid.UUID
	lines      []ledger.LineInput
	movements  []inventory.Result
	entityType string
	entityID   *uuid.UUID
	move       func(ctx context.Context, in inventory.MovementInput) (inventory.Result, error)
}

// Control returns the resolved account of a mapped role.
func (p *Plan) Control(role accounts.ControlKind) uuid.UUID {
	return p.controls[role]
}

// AccountOr returns id when set, else the resolved role.
func (p *Plan) AccountOr(id *uuid.UUID, role accounts.ControlKind) uuid.UUID {
	if id != nil && *id != uuid.Nil {
		return *id
	}
	return p.Control(role)
}

// Entity tags the following lines with a counterparty.
func (p *Plan) Entity(entityType string, id *uuid.UUID) {
	p.entityType = entityType
	p.entityID = id
}

// Debit adds a debit line. Zero amounts are skipped.
func (p *Plan) Debit(account uuid.UUID, amount decimal.Decimal, memo string) {
	p.add(account, amount.Round(2), decimal.Zero, memo)
}

// Credit adds a credit line. Zero amounts are skipped.
func (p *Plan) Credit(account uuid.UUID, amount decimal.Decimal, memo string) {
	p.add(account, decimal.Zero, amount.Round(2), memo)
}

func (p *Plan) add(account uuid.UUID, debit, credit decimal.Decimal, memo string) {
	if debit.IsZero() && credit.IsZero() {
		return
	}
	p.lines = append(p.lines, ledger.LineInput{
		AccountID:  account,
		Debit:      debit,
		Credit:     credit,
		EntityType: p.entityType,
		EntityID:   p.entityID,
		Memo:       memo,
	})
}

// Move applies a stock movement in the posting unit and returns the resulting position.
func (p *Plan) Move(ctx context.Context, in inventory.MovementInput) (inventory.Result, error) {
	if p.move == nil {
		return inventory.Result{}, fmt.Errorf("posting: %s does not move stock", p.ref.noun())
	}
	in.TenantID = p.tenantID
	in.SourceType = string(p.ref.Type)
	id := p.ref.ID
	in.SourceID = &id
	res, err := p.move(ctx, in)
	if err != nil {
		return inventory.Result{}, err
	}
	p.movements = append(p.movements, res)
	return res, nil
}
