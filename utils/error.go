package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrInvalidReferenceFormat rejects electronic payment references that are not
// exactly six digits.
var ErrInvalidReferenceFormat = errors.New("reference number must be exactly 6 digits")

// ErrCreditNoteTargetRequired rejects a negative-total sale that neither names
// a target invoice nor explicitly opts into floating credit.
var ErrCreditNoteTargetRequired = errors.New("credit note requires a target invoice or an explicit floating-credit choice")

// ValidationError is an input problem detected before any ledger state is read.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InsufficientStockError reports the first branch/product whose projected
// stock would go below zero. Nothing has been written when it is returned.
type InsufficientStockError struct {
	BranchId  string
	ProductId string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s at branch %s: need %s, have %s",
		e.ProductId, e.BranchId, e.Requested.String(), e.Available.String())
}

// ProductNotFoundError reports a negative stock delta against a product the
// branch has never carried.
type ProductNotFoundError struct {
	BranchId  string
	ProductId string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found at branch %s", e.ProductId, e.BranchId)
}

// DuplicateReferenceError reports an electronic payment reference already used
// by any other payment, across invoices and customers.
type DuplicateReferenceError struct {
	ReferenceNumber string
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("reference number %s is already in use", e.ReferenceNumber)
}

// CreditLimitExceededError blocks a new credit sale for a customer whose
// overdue balance is beyond the configured threshold.
type CreditLimitExceededError struct {
	CustomerId string
	Overdue    decimal.Decimal
	Limit      decimal.Decimal
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf("customer %s has overdue balance %s beyond the credit limit %s",
		e.CustomerId, e.Overdue.String(), e.Limit.String())
}

// CompensationFailureError means a rollback write itself failed after an
// earlier write had already been committed. The ledger needs manual
// reconciliation; this must never be swallowed.
type CompensationFailureError struct {
	Step  string
	Cause error
}

func (e *CompensationFailureError) Error() string {
	return fmt.Sprintf("compensation failed at %s: %v", e.Step, e.Cause)
}

func (e *CompensationFailureError) Unwrap() error {
	return e.Cause
}
