package journals

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// numberSequence names the tenant sequence backing entry numbers.
const numberSequence = "journal_entry"

// FormatNumber renders a sequence value as an entry number.
func FormatNumber(n int64) string {
	return fmt.Sprintf("JE-%05d", n)
}

// Entry is a user-authored journal entry.
type Entry struct {
	ID                    uuid.UUID       `json:"id"`
	TenantID              uuid.UUID       `json:"tenantId"`
	SiteID                *uuid.UUID      `json:"siteId,omitempty"`
	EntryNumber           string          `json:"entryNumber"`
	EntryDate             time.Time       `json:"entryDate"`
	Memo                  string          `json:"memo"`
	Status                Status          `json:"status"`
	TotalDebits           decimal.Decimal `json:"totalDebits"`
	TotalCredits          decimal.Decimal `json:"totalCredits"`
	IsBalanced            bool            `json:"isBalanced"`
	LedgerTransactionID   *uuid.UUID      `json:"ledgerTransactionId,omitempty"`
	ReversalTransactionID *uuid.UUID      `json:"reversalTransactionId,omitempty"`
	ReversalReason        string          `json:"reversalReason,omitempty"`
	CreatedBy             string          `json:"createdBy"`
	PostedAt              *time.Time      `json:"postedAt,omitempty"`
	PostedBy              string          `json:"postedBy,omitempty"`
	ReversedAt            *time.Time      `json:"reversedAt,omitempty"`
	ReversedBy            string          `json:"reversedBy,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
	Lines                 []Line          `json:"lines"`
}

// Line stores a debit or credit amount with the account denormalized for display.
type Line struct {
	LineNo      int             `json:"lineNo"`
	AccountID   uuid.UUID       `json:"accountId"`
	AccountCode string          `json:"accountCode"`
	AccountName string          `json:"accountName"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
	EntityType  string          `json:"entityType,omitempty"`
	EntityID    *uuid.UUID      `json:"entityId,omitempty"`
}

// Recalculate refreshes totals and the balanced flag from the lines.
func (e *Entry) Recalculate() {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit.Round(2))
		credit = credit.Add(l.Credit.Round(2))
	}
	e.TotalDebits = debit
	e.TotalCredits = credit
	e.IsBalanced = debit.IsPositive() && debit.Sub(credit).Abs().LessThanOrEqual(decimal.New(1, -2))
}

// AccountRef is the account data copied onto lines.
type AccountRef struct {
	ID       uuid.UUID
	Code     string
	Name     string
	IsActive bool
}
