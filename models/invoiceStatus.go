package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaidTotal sums the normalized amounts of verified payments applied to one
// invoice. Pending records and floating credit do not count.
func PaidTotal(payments []Payment, invoiceId string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.InvoiceId == invoiceId && p.Status == PaymentStatusVerified {
			total = total.Add(p.AmountUSD)
		}
	}
	return total
}

// DeriveInvoiceStatus computes the invoice lifecycle state from the current
// ledger snapshot. No status field is ever stored; every screen recomputes
// this, so the status can never desynchronize from the underlying payments.
//
// Credit notes (total <= 0) settle immediately.
func DeriveInvoiceStatus(sale *Sale, payments []Payment, now time.Time) InvoiceStatus {
	if !sale.TotalAmount.IsPositive() {
		return InvoiceStatusCompleted
	}

	paid := PaidTotal(payments, sale.ID)
	if paid.GreaterThanOrEqual(sale.TotalAmount.Sub(MoneyEpsilon)) {
		return InvoiceStatusCompleted
	}

	overdue := sale.DueDate != nil && sale.DueDate.Before(now)
	if overdue {
		return InvoiceStatusOverdue
	}
	if paid.IsPositive() {
		return InvoiceStatusPartiallyPaid
	}
	return InvoiceStatusPendingPayment
}
