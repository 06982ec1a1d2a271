package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/utils"
)

// Customer carries identity and contact data only. Balance and overdue
// balance are always derived from the sale and payment ledgers, never
// persisted, so they cannot go stale.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type NewCustomer struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (input *NewCustomer) Validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return &utils.ValidationError{Field: "phone", Message: err.Error()}
		}
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return &utils.ValidationError{Field: "email", Message: "email is not valid"}
	}
	return nil
}

// FindCustomer returns the index of a customer by id, or -1.
func FindCustomer(customers []Customer, id string) int {
	for i := range customers {
		if customers[i].ID == id {
			return i
		}
	}
	return -1
}

// CustomerBalance is the signed outstanding balance for one customer: the sum
// of all of their invoice totals minus every verified payment that brought
// external money in, whether applied to an invoice or floating. A negative
// result means the bakery owes the customer (floating credit).
//
// Internal credit records (applied floating credit, credit notes) are
// skipped: the value they move is already in the invoice sum through the
// negative-total sale that created it, and counting both would double-count
// the credit.
func CustomerBalance(sales []Sale, payments []Payment, customerId string) decimal.Decimal {
	balance := decimal.Zero
	for _, s := range sales {
		if s.CustomerId == customerId {
			balance = balance.Add(s.TotalAmount)
		}
	}
	for _, p := range payments {
		if p.CustomerId == customerId && p.Status == PaymentStatusVerified && !p.Method.IsInternalCredit() {
			balance = balance.Sub(p.AmountUSD)
		}
	}
	return RoundMoney(balance)
}

// CustomerOverdueBalance sums the unpaid remainder of positive-total invoices
// whose due date has passed. Credit notes and paid-up invoices contribute
// nothing.
func CustomerOverdueBalance(sales []Sale, payments []Payment, customerId string, now time.Time) decimal.Decimal {
	overdue := decimal.Zero
	for _, s := range sales {
		if s.CustomerId != customerId || !s.TotalAmount.IsPositive() {
			continue
		}
		if s.DueDate == nil || !s.DueDate.Before(now) {
			continue
		}
		remaining := s.TotalAmount.Sub(PaidTotal(payments, s.ID))
		if remaining.IsPositive() {
			overdue = overdue.Add(remaining)
		}
	}
	return RoundMoney(overdue)
}
