package journals

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ranchbook/ranchbook/internal/shared"
)

// DraftInput creates or replaces a draft.
type DraftInput struct {
	TenantID  uuid.UUID   `json:"-"`
	ActorID   string      `json:"-"`
	SiteID    *uuid.UUID  `json:"siteId"`
	EntryDate string      `json:"entryDate" validate:"required,datetime=2006-01-02"`
	Memo      string      `json:"memo" validate:"max=500"`
	Lines     []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// LineInput is one authored line.
type LineInput struct {
	AccountID  uuid.UUID       `json:"accountId" validate:"required"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	Memo       string          `json:"memo" validate:"max=500"`
	EntityType string          `json:"entityType" validate:"omitempty,oneof=vendor customer animal site"`
	EntityID   *uuid.UUID      `json:"entityId"`
}

// Validate checks the draft shape. Balance is only required at posting time.
func (in DraftInput) Validate() (time.Time, error) {
	if err := shared.Validate(in); err != nil {
		return time.Time{}, err
	}
	date, _ := time.Parse("2006-01-02", in.EntryDate)
	fields := make(map[string]string)
	for idx, line := range in.Lines {
		key := fmt.Sprintf("lines[%d]", idx)
		if line.AccountID == uuid.Nil {
			fields[key] = "account is required"
			continue
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			fields[key] = "amounts cannot be negative"
			continue
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			fields[key] = "a line is either a debit or a credit"
		}
	}
	if len(fields) > 0 {
		return time.Time{}, shared.NewValidationError("invalid journal lines", fields)
	}
	return date, nil
}
