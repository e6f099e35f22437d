package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestBuildTrialBalance(t *testing.T) {
	accounts := []AccountBalance{
		{Code: "1000", Name: "Cash", Type: "ASSET", Debit: d(700), Credit: d(150)},
		{Code: "1100", Name: "Accounts Receivable", Type: "ASSET", Debit: d(500), Credit: d(0)},
		{Code: "2000", Name: "Accounts Payable", Type: "LIABILITY", Debit: d(10), Credit: d(160)},
		{Code: "4000", Name: "Livestock Sales", Type: "INCOME", Debit: d(0), Credit: d(900)},
	}

	tb := BuildTrialBalance(accounts)
	require.Len(t, tb.Groups, 4)
	require.True(t, tb.TotalDebit.Equal(d(1210)))
	require.True(t, tb.TotalCredit.Equal(d(1210)))
	require.True(t, tb.TotalDebitBalance.Equal(d(1050)))
	require.True(t, tb.TotalCreditBalance.Equal(d(1050)))
	require.True(t, tb.Balanced)
}

func TestBuildProfitAndLoss(t *testing.T) {
	accounts := []AccountBalance{
		{Code: "4000", Name: "Livestock Sales", Type: "INCOME", Credit: d(1200)},
		{Code: "5000", Name: "Cost of Goods Sold", Type: "COGS", Debit: d(300)},
		{Code: "6000", Name: "Feed", Type: "EXPENSE", Debit: d(200)},
	}

	pl := BuildProfitAndLoss(accounts)
	require.True(t, pl.Income.Total.Equal(d(1200)))
	require.True(t, pl.GrossProfit.Equal(d(900)))
	require.True(t, pl.Expense.Total.Equal(d(200)))
	require.True(t, pl.NetIncome.Equal(d(700)))
}

func TestBuildBalanceSheetIncludesCurrentEarnings(t *testing.T) {
	accounts := []AccountBalance{
		{Code: "1000", Name: "Cash", Type: "ASSET", Debit: d(1100), Credit: d(100)},
		{Code: "2000", Name: "AP", Type: "LIABILITY", Credit: d(150)},
		{Code: "3000", Name: "Equity", Type: "EQUITY", Credit: d(500)},
		{Code: "4000", Name: "Sales", Type: "INCOME", Credit: d(600)},
		{Code: "6000", Name: "Feed", Type: "EXPENSE", Debit: d(250)},
	}

	bs := BuildBalanceSheet(accounts)
	require.True(t, bs.Assets.Total.Equal(d(1000)))
	require.True(t, bs.Liabilities.Total.Equal(d(150)))
	require.True(t, bs.Equity.Total.Equal(d(850)))
	require.True(t, bs.TotalLiabilitiesAndEquity.Equal(bs.Assets.Total))
}
