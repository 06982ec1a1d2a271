package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/utils"
)

// Payment is one record of the append-only payment/credit-note ledger.
// AmountUSD is the normalized amount applied to the customer's debt; the
// original input amount and currency are kept alongside for traceability.
type Payment struct {
	ID              string          `json:"id"`
	ParentPaymentId string          `json:"parent_payment_id"`
	CustomerId      string          `json:"customer_id"`
	PaymentDate     time.Time       `json:"payment_date"`
	AmountInput     decimal.Decimal `json:"amount_paid_input"`
	CurrencyInput   Currency        `json:"currency_paid_input"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate_at_payment"`
	AmountUSD       decimal.Decimal `json:"amount_applied_to_debt_usd"`
	Method          PaymentMethod   `json:"payment_method"`
	Status          PaymentStatus   `json:"status"`
	// InvoiceId empty means floating customer credit, not applied to any
	// specific invoice yet.
	InvoiceId       string `json:"applied_to_invoice_id,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	BranchId        string `json:"paid_to_branch_id"`
	AccountId       string `json:"paid_to_account_id"`
}

// AffectsAccounts reports whether the record currently moves branch financial
// accounts. Pending-verification records do not until externally verified,
// and internal credit records never do: no money crosses the counter.
func (p *Payment) AffectsAccounts() bool {
	return p.Status == PaymentStatusVerified && !p.Method.IsInternalCredit()
}

// NewPaymentSplit is one operator-entered slice of a sale's payment.
type NewPaymentSplit struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        Currency        `json:"currency" validate:"required,oneof=USD VES"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	Method          PaymentMethod   `json:"method" validate:"required"`
	ReferenceNumber string          `json:"reference_number"`
	BranchId        string          `json:"branch_id" validate:"required"`
	AccountId       string          `json:"account_id" validate:"required"`
}

func (input *NewPaymentSplit) Validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if !input.Amount.IsPositive() {
		return &utils.ValidationError{Field: "splits", Message: "split amount must be positive"}
	}
	if !input.Method.IsCashEquivalent() && !input.Method.IsElectronic() {
		return &utils.ValidationError{Field: "splits", Message: "unsupported payment method " + string(input.Method)}
	}
	// Internal credit records are generated by the engine, never entered as
	// operator splits.
	if input.Method.IsInternalCredit() {
		return &utils.ValidationError{Field: "splits", Message: "method " + string(input.Method) + " cannot be entered as a split"}
	}
	if input.Method.IsElectronic() && !utils.IsValidReferenceNumber(input.ReferenceNumber) {
		return utils.ErrInvalidReferenceFormat
	}
	return nil
}

// FindPayment returns the index of a payment by id, or -1.
func FindPayment(payments []Payment, id string) int {
	for i := range payments {
		if payments[i].ID == id {
			return i
		}
	}
	return -1
}

// PaymentsOfSale selects the records created by one sale event via their
// shared parent payment id.
func PaymentsOfSale(payments []Payment, parentPaymentId string) []Payment {
	var out []Payment
	for _, p := range payments {
		if p.ParentPaymentId == parentPaymentId {
			out = append(out, p)
		}
	}
	return out
}
