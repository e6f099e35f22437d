package reports

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ProfitAndLossAccount represents an income or expense account summary.
type ProfitAndLossAccount struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// ProfitAndLossSection groups accounts by nature.
type ProfitAndLossSection struct {
	Label    string                 `json:"label"`
	Accounts []ProfitAndLossAccount `json:"accounts"`
	Total    decimal.Decimal        `json:"total"`
}

// ProfitAndLoss contains the structured output for the report.
type ProfitAndLoss struct {
	Income      ProfitAndLossSection `json:"income"`
	CostOfGoods ProfitAndLossSection `json:"costOfGoods"`
	Expense     ProfitAndLossSection `json:"expense"`
	GrossProfit decimal.Decimal      `json:"grossProfit"`
	NetIncome   decimal.Decimal      `json:"netIncome"`
}

// BuildProfitAndLoss aggregates accounts into income, cost of goods and expense sections.
func BuildProfitAndLoss(accounts []AccountBalance) ProfitAndLoss {
	income := ProfitAndLossSection{Label: "Income"}
	cogs := ProfitAndLossSection{Label: "Cost of Goods Sold"}
	expense := ProfitAndLossSection{Label: "Expense"}

	for _, acc := range accounts {
		row := ProfitAndLossAccount{Code: acc.Code, Name: acc.Name, Amount: acc.Net()}
		switch strings.ToUpper(acc.Type) {
		case "INCOME":
			row.Amount = row.Amount.Neg()
			income.Accounts = append(income.Accounts, row)
			income.Total = income.Total.Add(row.Amount)
		case "COGS":
			cogs.Accounts = append(cogs.Accounts, row)
			cogs.Total = cogs.Total.Add(row.Amount)
		case "EXPENSE":
			expense.Accounts = append(expense.Accounts, row)
			expense.Total = expense.Total.Add(row.Amount)
		}
	}

	for _, section := range []*ProfitAndLossSection{&income, &cogs, &expense} {
		accounts := section.Accounts
		sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	}

	gross := income.Total.Sub(cogs.Total)
	return ProfitAndLoss{
		Income:      income,
		CostOfGoods: cogs,
		Expense:     expense,
		GrossProfit: gross,
		NetIncome:   gross.Sub(expense.Total),
	}
}
