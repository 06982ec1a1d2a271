package models_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestToBaseCurrencyUSDPassesThrough(t *testing.T) {
	got, err := models.ToBaseCurrency(dec("12.345"), models.CurrencyUSD, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(dec("12.35")) != 0 {
		t.Fatalf("expected 12.35, got %s", got)
	}
}

func TestToBaseCurrencyConvertsVES(t *testing.T) {
	got, err := models.ToBaseCurrency(dec("4000"), models.CurrencyVES, dec("40"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(dec("100")) != 0 {
		t.Fatalf("expected 100, got %s", got)
	}
}

func TestToBaseCurrencyRequiresRateForVES(t *testing.T) {
	if _, err := models.ToBaseCurrency(dec("4000"), models.CurrencyVES, decimal.Zero); err == nil {
		t.Fatal("expected an error for a VES amount without an exchange rate")
	}
	if _, err := models.ToBaseCurrency(dec("4000"), models.CurrencyVES, dec("-40")); err == nil {
		t.Fatal("expected an error for a negative exchange rate")
	}
}

func TestMoneyEqualTolerance(t *testing.T) {
	if !models.MoneyEqual(dec("100.00"), dec("100.01")) {
		t.Fatal("amounts one cent apart should compare equal")
	}
	if models.MoneyEqual(dec("100.00"), dec("100.02")) {
		t.Fatal("amounts two cents apart should not compare equal")
	}
}

func TestSumSubtotalsRoundsOnlyTheTotal(t *testing.T) {
	items := []models.LineItem{
		{Subtotal: dec("0.333")},
		{Subtotal: dec("0.333")},
		{Subtotal: dec("0.334")},
	}
	if got := models.SumSubtotals(items); got.Cmp(dec("1.00")) != 0 {
		t.Fatalf("expected 1.00, got %s", got)
	}
}
