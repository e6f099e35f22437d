package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	acctshared "github.com/ranchbook/ranchbook/internal/accounting/shared"
	core "github.com/ranchbook/ranchbook/internal/shared"
)

// Tolerance is the largest debit/credit difference still considered balanced.
var Tolerance = decimal.New(1, -2)

// Status enumerates transaction lifecycle values.
type Status string

const (
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// DuplicateMode controls how a reused idempotency key is reported.
type DuplicateMode string

const (
	// DuplicateStrict surfaces a reused key as an "already posted" error.
	DuplicateStrict DuplicateMode = "strict"
	// DuplicateReturnExisting returns the first transaction as if the call succeeded.
	DuplicateReturnExisting DuplicateMode = "retry-safe"
)

// ParseDuplicateMode maps configuration text to a mode, defaulting to strict.
func ParseDuplicateMode(s string) DuplicateMode {
	if DuplicateMode(s) == DuplicateReturnExisting {
		return DuplicateReturnExisting
	}
	return DuplicateStrict
}

// Transaction is the header of one balanced posting.
type Transaction struct {
	ID                      uuid.UUID  `json:"id"`
	TenantID                uuid.UUID  `json:"tenantId"`
	SiteID                  *uuid.UUID `json:"siteId,omitempty"`
	SourceType              string     `json:"sourceType"`
	SourceID                uuid.UUID  `json:"sourceId"`
	TransactionDate         time.Time  `json:"transactionDate"`
	Description             string     `json:"description"`
	Status                  Status     `json:"status"`
	IdempotencyKey          string     `json:"idempotencyKey"`
	ReversesTransactionID   *uuid.UUID `json:"reversesTransactionId,omitempty"`
	ReversedByTransactionID *uuid.UUID `json:"reversedByTransactionId,omitempty"`
	PostedBy                string     `json:"postedBy"`
	CreatedAt               time.Time  `json:"createdAt"`
	Entries                 []Entry    `json:"entries"`
}

// Totals sums entry debits and credits.
func (t Transaction) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range t.Entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

// Entry is one immutable line of a transaction.
type Entry struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID uuid.UUID       `json:"transactionId"`
	LineNo        int             `json:"lineNo"`
	AccountID     uuid.UUID       `json:"accountId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	EntityType    string          `json:"entityType,omitempty"`
	EntityID      *uuid.UUID      `json:"entityId,omitempty"`
	Memo          string          `json:"memo,omitempty"`
}

// LineInput describes one line to post.
type LineInput struct {
	AccountID  uuid.UUID
	Debit      decimal.Decimal
	Credit     decimal.Decimal
	EntityType string
	EntityID   *uuid.UUID
	Memo       string
}

// PostingInput groups fields required to write a transaction.
type PostingInput struct {
	TenantID              uuid.UUID
	SiteID                *uuid.UUID
	SourceType            string
	SourceID              uuid.UUID
	IdempotencyKey        string
	Date                  time.Time
	Description           string
	PostedBy              string
	ReversesTransactionID *uuid.UUID
	Lines                 []LineInput
}

// Validate ensures the lines form a balanced double entry.
func (in PostingInput) Validate() error {
	fields := make(map[string]string)
	if in.TenantID == uuid.Nil {
		fields["tenantId"] = "is required"
	}
	if in.SourceType == "" {
		fields["sourceType"] = "is required"
	}
	if in.SourceID == uuid.Nil {
		fields["sourceId"] = "is required"
	}
	if in.IdempotencyKey == "" {
		fields["idempotencyKey"] = "is required"
	}
	if in.Date.IsZero() {
		fields["date"] = "is required"
	}
	if len(fields) > 0 {
		return core.NewValidationError("invalid posting", fields)
	}
	if len(in.Lines) == 0 {
		return acctshared.ErrNoLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		key := fmt.Sprintf("lines[%d]", idx)
		dr, cr := line.Debit.Round(2), line.Credit.Round(2)
		switch {
		case line.AccountID == uuid.Nil:
			fields[key] = "account is required"
		case dr.IsNegative() || cr.IsNegative():
			fields[key] = "amounts cannot be negative"
		case dr.IsPositive() == cr.IsPositive():
			fields[key] = "exactly one of debit or credit must be positive"
		}
		debit = debit.Add(dr)
		credit = credit.Add(cr)
	}
	if len(fields) > 0 {
		return core.NewValidationError("invalid posting lines", fields)
	}
	if debit.Sub(credit).Abs().GreaterThan(Tolerance) {
		return fmt.Errorf("%w: debits %s, credits %s", acctshared.ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	TenantID      uuid.UUID
	TransactionID uuid.UUID
	Date          *time.Time
	Reason        string
	PostedBy      string
}

// Result reports the written (or previously written) transaction.
type Result struct {
	Transaction Transaction
	Duplicate   bool
}

// ReversalKey is the idempotency key of the reversal of transactionID.
func ReversalKey(transactionID uuid.UUID) string {
	return "reversal-" + transactionID.String()
}

// IntegrityIssue reports a transaction violating the balance invariant.
type IntegrityIssue struct {
	TenantID      uuid.UUID       `json:"tenantId"`
	TransactionID uuid.UUID       `json:"transactionId"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Entries       int             `json:"entries"`
}

// BalanceDrift reports a cached running balance that disagrees with its entries.
type BalanceDrift struct {
	TenantID  uuid.UUID       `json:"tenantId"`
	AccountID uuid.UUID       `json:"accountId"`
	Code      string          `json:"code"`
	Cached    decimal.Decimal `json:"cached"`
	Computed  decimal.Decimal `json:"computed"`
}
