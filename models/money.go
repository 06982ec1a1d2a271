package models

import (
	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/utils"
)

// MoneyPlaces is the fixed precision every persisted amount is rounded to.
const MoneyPlaces = 2

// MoneyEpsilon is the tolerance used when comparing monetary amounts, e.g.
// when deciding whether an invoice is fully paid.
var MoneyEpsilon = decimal.New(1, -MoneyPlaces)

func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// MoneyEqual reports |a-b| <= epsilon.
func MoneyEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MoneyEpsilon)
}

// ToBaseCurrency normalizes an amount into the base currency using the
// exchange rate captured at payment time (foreign units per base unit). The
// rate is required and must be positive for any non-base currency.
func ToBaseCurrency(amount decimal.Decimal, currency Currency, exchangeRate decimal.Decimal) (decimal.Decimal, error) {
	if currency == BaseCurrency {
		return RoundMoney(amount), nil
	}
	if !exchangeRate.IsPositive() {
		return decimal.Zero, &utils.ValidationError{
			Field:   "exchange_rate",
			Message: "exchange rate is required for " + string(currency) + " amounts",
		}
	}
	return RoundMoney(amount.Div(exchangeRate)), nil
}

// SumSubtotals totals a slice of line items without rounding intermediate
// results; only the final sum is rounded.
func SumSubtotals(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	return RoundMoney(total)
}
