package accounts

import "github.com/google/uuid"

// CreateInput carries fields for a new account.
type CreateInput struct {
	TenantID   uuid.UUID   `json:"-" validate:"required"`
	Code       string      `json:"code" validate:"required,max=32"`
	Name       string      `json:"name" validate:"required,max=128"`
	Type       AccountType `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE COGS"`
	Subtype    string      `json:"subtype" validate:"max=32"`
	DefaultFor ControlKind `json:"defaultFor" validate:"omitempty,oneof=AR AP CASH DEFAULT_INCOME DEFAULT_EXPENSE INVENTORY COGS FEED_EXPENSE MEDICAL_EXPENSE LABOR_EXPENSE"`
	IsSystem   bool        `json:"-"`
}

// DesignateInput selects the default account for a control kind.
type DesignateInput struct {
	AccountID uuid.UUID `json:"accountId" validate:"required"`
}

// DefaultChart is the farm chart seeded at onboarding.
func DefaultChart() []CreateInput {
	return []CreateInput{
		{Code: "1000", Name: "Cash on Hand", Type: AccountTypeAsset, Subtype: "CASH"},
		{Code: "1010", Name: "Operating Bank Account", Type: AccountTypeAsset, Subtype: "BANK", DefaultFor: ControlCash},
		{Code: "1100", Name: "Accounts Receivable", Type: AccountTypeAsset, Subtype: "AR"},
		{Code: "1200", Name: "Feed and Supplies Inventory", Type: AccountTypeAsset, Subtype: "INVENTORY"},
		{Code: "1300", Name: "Livestock", Type: AccountTypeAsset},
		{Code: "1500", Name: "Equipment", Type: AccountTypeAsset},
		{Code: "2000", Name: "Accounts Payable", Type: AccountTypeLiability, Subtype: "AP"},
		{Code: "2100", Name: "Credit Card", Type: AccountTypeLiability},
		{Code: "3000", Name: "Owner's Equity", Type: AccountTypeEquity},
		{Code: "4000", Name: "Livestock Sales", Type: AccountTypeIncome, Subtype: "SALES", DefaultFor: ControlDefaultIncome},
		{Code: "4100", Name: "Crop Sales", Type: AccountTypeIncome, Subtype: "SALES"},
		{Code: "4900", Name: "Other Farm Income", Type: AccountTypeIncome},
		{Code: "5000", Name: "Cost of Goods Sold", Type: AccountTypeCOGS, Subtype: "COGS"},
		{Code: "6000", Name: "Feed Expense", Type: AccountTypeExpense, Subtype: "FEED"},
		{Code: "6100", Name: "Veterinary and Medical", Type: AccountTypeExpense, Subtype: "MEDICAL"},
		{Code: "6200", Name: "Fuel and Oil", Type: AccountTypeExpense},
		{Code: "6300", Name: "Labor Expense", Type: AccountTypeExpense, Subtype: "LABOR"},
		{Code: "6900", Name: "General Farm Expense", Type: AccountTypeExpense, DefaultFor: ControlDefaultExpense},
	}
}
