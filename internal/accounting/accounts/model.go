package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeCOGS      AccountType = "COGS"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense, AccountTypeCOGS:
		return true
	}
	return false
}

// NormalBalance is the side that increases an account.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// NormalBalance derives the normal side from the type.
func (t AccountType) NormalBalance() NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense, AccountTypeCOGS:
		return NormalDebit
	default:
		return NormalCredit
	}
}

// ControlKind names a control account role.
type ControlKind string

const (
	ControlAR             ControlKind = "AR"
	ControlAP             ControlKind = "AP"
	ControlCash           ControlKind = "CASH"
	ControlDefaultIncome  ControlKind = "DEFAULT_INCOME"
	ControlDefaultExpense ControlKind = "DEFAULT_EXPENSE"
	ControlInventory      ControlKind = "INVENTORY"
	ControlCOGS           ControlKind = "COGS"
	ControlFeedExpense    ControlKind = "FEED_EXPENSE"
	ControlMedicalExpense ControlKind = "MEDICAL_EXPENSE"
	ControlLaborExpense   ControlKind = "LABOR_EXPENSE"
)

// ControlKinds lists every kind in display order.
var ControlKinds = []ControlKind{
	ControlAR, ControlAP, ControlCash, ControlDefaultIncome, ControlDefaultExpense, ControlInventory, ControlCOGS,
	ControlFeedExpense, ControlMedicalExpense, ControlLaborExpense,
}

var controlLabels = map[ControlKind]string{
	ControlAR:             "Accounts Receivable",
	ControlAP:             "Accounts Payable",
	ControlCash:           "Cash or Bank",
	ControlDefaultIncome:  "Income",
	ControlDefaultExpense: "Expense",
	ControlInventory:      "Inventory",
	ControlCOGS:           "Cost of Goods Sold",
	ControlFeedExpense:    "Feed Expense",
	ControlMedicalExpense: "Medical Expense",
	ControlLaborExpense:   "Labor Expense",
}

// Label returns the human name of the kind.
func (k ControlKind) Label() string {
	if label, ok := controlLabels[k]; ok {
		return label
	}
	return string(k)
}

// Valid reports whether k is a known kind.
func (k ControlKind) Valid() bool {
	_, ok := controlLabels[k]
	return ok
}

// Account models a chart of accounts entry.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenantId"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Subtype        string          `json:"subtype,omitempty"`
	NormalBalance  NormalBalance   `json:"normalBalance"`
	DefaultFor     ControlKind     `json:"defaultFor,omitempty"`
	IsActive       bool            `json:"isActive"`
	IsSystem       bool            `json:"isSystem"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// BalanceDelta is the change a debit/credit pair applies to the account in its normal direction.
func (a Account) BalanceDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if a.NormalBalance == NormalCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// Balance aggregates posted entries for one account.
type Balance struct {
	AccountID      uuid.UUID       `json:"accountId"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	NormalBalance  NormalBalance   `json:"normalBalance"`
	Debits         decimal.Decimal `json:"debits"`
	Credits        decimal.Decimal `json:"credits"`
	Balance        decimal.Decimal `json:"balance"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	EntryCount     int64           `json:"entryCount"`
}
