// Package miles computes cost-per-thousand, sale profit and
// weighted-average position figures for loyalty-program miles.
package miles

import (
	"github.com/shopspring/decimal"
	"github.com/vportela/milesledger/pkg/models"
	"github.com/vportela/milesledger/pkg/money"
)

var (
	thousand = decimal.NewFromInt(1000)
	hundred  = decimal.NewFromInt(100)
)

// CostPerThousand returns the cost per thousand miles. A zero quantity
// returns zero rather than an error so half-filled forms can still
// render a figure.
func CostPerThousand(totalCost money.Amount, quantity int64) decimal.Decimal {
	if quantity == 0 {
		return decimal.Zero
	}
	return totalCost.Decimal().Div(decimal.NewFromInt(quantity)).Mul(thousand)
}

// ProfitBreakdown is the result of a sale profitability calculation.
type ProfitBreakdown struct {
	Profit            money.Amount    `json:"profit"`
	ProfitPerThousand decimal.Decimal `json:"profit_per_thousand"`
	MarginPercent     decimal.Decimal `json:"margin_percent"`
}

// SaleProfit computes the profit of selling quantitySold miles for
// saleValue against an average acquisition cost per thousand.
//
// When the cost of goods is zero the margin reports 100%: miles that
// cost nothing (bonuses) sell at full margin.
func SaleProfit(saleValue money.Amount, quantitySold int64, avgCostPerThousand decimal.Decimal) ProfitBreakdown {
	costOfGoods := decimal.NewFromInt(quantitySold).Div(thousand).Mul(avgCostPerThousand)
	profit := saleValue.Decimal().Sub(costOfGoods)

	profitPerThousand := decimal.Zero
	if quantitySold > 0 {
		profitPerThousand = profit.Div(decimal.NewFromInt(quantitySold)).Mul(thousand)
	}

	marginPercent := hundred
	if costOfGoods.GreaterThan(decimal.Zero) {
		marginPercent = profit.Div(costOfGoods).Mul(hundred)
	}

	return ProfitBreakdown{
		Profit:            money.FromDecimal(profit),
		ProfitPerThousand: profitPerThousand,
		MarginPercent:     marginPercent,
	}
}

// BuildPosition folds a chronological list of transactions for one
// (account, program) pair into its current position.
//
// Purchases add quantity and invested cost. Bonuses and inbound
// transfers add quantity at zero cost, diluting the average. Outflows
// relieve invested cost at the running average, keeping the average
// cost of the remaining balance unchanged.
func BuildPosition(accountKey, programKey string, txs []*models.MileTransaction) models.MilesPosition {
	var balance int64
	invested := decimal.Zero

	for _, tx := range txs {
		qty := tx.Quantity
		if qty < 0 {
			qty = -qty
		}
		switch tx.Type {
		case models.TransactionTypePurchase:
			balance += qty
			if tx.TotalCost != nil {
				invested = invested.Add(tx.TotalCost.Decimal())
			}
		case models.TransactionTypeBonus, models.TransactionTypeTransferIn:
			balance += qty
		case models.TransactionTypeSale, models.TransactionTypeTransferOut,
			models.TransactionTypeUse, models.TransactionTypeExpire:
			if balance > 0 {
				relieved := invested.Mul(decimal.NewFromInt(qty)).Div(decimal.NewFromInt(balance))
				invested = invested.Sub(relieved)
				if invested.IsNegative() {
					invested = decimal.Zero
				}
			}
			balance -= qty
		}
	}

	avg := decimal.Zero
	if balance > 0 {
		avg = invested.Div(decimal.NewFromInt(balance)).Mul(thousand)
	}

	return models.MilesPosition{
		AccountKey:             accountKey,
		ProgramKey:             programKey,
		BalanceQuantity:        balance,
		TotalInvested:          money.FromDecimal(invested),
		AverageCostPerThousand: avg,
	}
}
