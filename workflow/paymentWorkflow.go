package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/config"
	"github.com/amasijo/bakery_backend/models"
	"github.com/amasijo/bakery_backend/utils"
)

// referenceInUse checks an electronic reference against every payment in the
// system, across invoices and customers. Records belonging to the sale being
// replaced are excluded so an edit can keep its own references.
func referenceInUse(payments []models.Payment, ref string, excludeParentId string) bool {
	for _, p := range payments {
		if p.ReferenceNumber == ref && p.ParentPaymentId != excludeParentId {
			return true
		}
	}
	return false
}

func splitStatus(method models.PaymentMethod) models.PaymentStatus {
	if method.IsCashEquivalent() {
		return models.PaymentStatusVerified
	}
	return models.PaymentStatusPendingVerification
}

// buildSalePayments generates the payment/credit-note records for one sale
// event. No ledger state is modified; the caller applies the records after
// the stock commit succeeds.
//
// For a positive total the records are (a) opted-in floating credit, capped
// at min(total, |balance|), then (b) one record per operator split. For a
// negative total exactly one credit-note record, targeted or floating.
func (e *Engine) buildSalePayments(sale *models.Sale, input *models.NewSale, existing []models.Payment, customerBalance decimal.Decimal) ([]models.Payment, error) {
	if !sale.TotalAmount.IsPositive() {
		if len(input.Splits) > 0 || input.UseCustomerCredit {
			return nil, &utils.ValidationError{Field: "splits", Message: "a non-positive sale cannot take payments"}
		}
		if sale.TotalAmount.IsZero() {
			return nil, nil
		}
		if sale.CreditNoteTargetInvoiceId == "" && !input.AllowFloatingCreditNote {
			return nil, utils.ErrCreditNoteTargetRequired
		}
		branchId := ""
		if len(sale.Changes) > 0 {
			branchId = sale.Changes[0].SourceBranchId
		}
		return []models.Payment{{
			ID:              uuid.NewString(),
			ParentPaymentId: sale.ID,
			CustomerId:      sale.CustomerId,
			PaymentDate:     sale.Date,
			AmountInput:     sale.TotalAmount.Neg(),
			CurrencyInput:   models.BaseCurrency,
			AmountUSD:       sale.TotalAmount.Neg(),
			Method:          models.PaymentMethodCreditNote,
			Status:          models.PaymentStatusVerified,
			InvoiceId:       sale.CreditNoteTargetInvoiceId,
			BranchId:        branchId,
		}}, nil
	}

	var records []models.Payment
	covered := decimal.Zero

	if input.UseCustomerCredit && customerBalance.IsNegative() {
		available := customerBalance.Neg()
		applied := decimal.Min(sale.TotalAmount, available)
		if applied.IsPositive() {
			branchId := ""
			if len(sale.Branches) > 0 {
				branchId = sale.Branches[0].BranchId
			}
			records = append(records, models.Payment{
				ID:              uuid.NewString(),
				ParentPaymentId: sale.ID,
				CustomerId:      sale.CustomerId,
				PaymentDate:     sale.Date,
				AmountInput:     applied,
				CurrencyInput:   models.BaseCurrency,
				AmountUSD:       applied,
				Method:          models.PaymentMethodCustomerCredit,
				Status:          models.PaymentStatusVerified,
				InvoiceId:       sale.ID,
				BranchId:        branchId,
			})
			covered = covered.Add(applied)
		}
	}

	seenRefs := map[string]struct{}{}
	for _, split := range input.Splits {
		amountUSD, err := models.ToBaseCurrency(split.Amount, split.Currency, split.ExchangeRate)
		if err != nil {
			return nil, err
		}
		if split.Method.IsElectronic() {
			if _, dup := seenRefs[split.ReferenceNumber]; dup || referenceInUse(existing, split.ReferenceNumber, sale.ID) {
				return nil, &utils.DuplicateReferenceError{ReferenceNumber: split.ReferenceNumber}
			}
			seenRefs[split.ReferenceNumber] = struct{}{}
		}
		records = append(records, models.Payment{
			ID:              uuid.NewString(),
			ParentPaymentId: sale.ID,
			CustomerId:      sale.CustomerId,
			PaymentDate:     sale.Date,
			AmountInput:     split.Amount,
			CurrencyInput:   split.Currency,
			ExchangeRate:    split.ExchangeRate,
			AmountUSD:       amountUSD,
			Method:          split.Method,
			Status:          splitStatus(split.Method),
			InvoiceId:       sale.ID,
			ReferenceNumber: split.ReferenceNumber,
			BranchId:        split.BranchId,
			AccountId:       split.AccountId,
		})
		covered = covered.Add(amountUSD)
	}

	if covered.GreaterThan(sale.TotalAmount.Add(models.MoneyEpsilon)) {
		return nil, &utils.ValidationError{Field: "splits", Message: "payments exceed the invoice total"}
	}
	if sale.PaymentMethod == models.SalePaymentMethodPaid && !models.MoneyEqual(covered, sale.TotalAmount) {
		return nil, &utils.ValidationError{Field: "splits", Message: "a paid sale must be fully covered by credit and splits"}
	}
	return records, nil
}

// applyAccountEffects folds every account-affecting record into the branch
// accounts. sign +1 applies, sign -1 reverses.
func applyAccountEffects(accounts []models.BranchAccount, records []models.Payment, sign int) []models.BranchAccount {
	for _, rec := range records {
		if !rec.AffectsAccounts() {
			continue
		}
		delta := rec.AmountUSD
		if sign < 0 {
			delta = delta.Neg()
		}
		accounts = models.ApplyAccountDelta(accounts, rec.BranchId, rec.AccountId, delta)
	}
	return accounts
}

// NewCustomerPayment is a payment event recorded after the sale: a customer
// paying down a credit invoice, or paying in money held as floating credit.
type NewCustomerPayment struct {
	CustomerId  string                   `json:"customer_id" validate:"required"`
	InvoiceId   string                   `json:"invoice_id"`
	PaymentDate time.Time                `json:"payment_date"`
	Splits      []models.NewPaymentSplit `json:"splits" validate:"required,min=1"`
}

func (input *NewCustomerPayment) Validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	for i := range input.Splits {
		if err := input.Splits[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplyCustomerPayment appends the payment records for one post-sale payment
// event. All splits share a parent payment id. When an invoice is named, the
// event may not exceed the invoice's remaining balance; with no invoice the
// records become floating customer credit.
func (e *Engine) ApplyCustomerPayment(ctx context.Context, input *NewCustomerPayment) ([]models.Payment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if models.FindCustomer(snap.customers, input.CustomerId) < 0 {
		return nil, &utils.ValidationError{Field: "customer_id", Message: "customer not found"}
	}
	if input.InvoiceId != "" {
		idx := snap.findSale(input.InvoiceId)
		if idx < 0 {
			return nil, utils.ErrorRecordNotFound
		}
		if snap.sales[idx].CustomerId != input.CustomerId {
			return nil, &utils.ValidationError{Field: "invoice_id", Message: "invoice belongs to another customer"}
		}
	}

	when := input.PaymentDate
	if when.IsZero() {
		when = e.now()
	}
	parentId := uuid.NewString()
	var records []models.Payment
	total := decimal.Zero
	seenRefs := map[string]struct{}{}
	for _, split := range input.Splits {
		amountUSD, err := models.ToBaseCurrency(split.Amount, split.Currency, split.ExchangeRate)
		if err != nil {
			return nil, err
		}
		if split.Method.IsElectronic() {
			if _, dup := seenRefs[split.ReferenceNumber]; dup || referenceInUse(snap.payments, split.ReferenceNumber, "") {
				return nil, &utils.DuplicateReferenceError{ReferenceNumber: split.ReferenceNumber}
			}
			seenRefs[split.ReferenceNumber] = struct{}{}
		}
		records = append(records, models.Payment{
			ID:              uuid.NewString(),
			ParentPaymentId: parentId,
			CustomerId:      input.CustomerId,
			PaymentDate:     when,
			AmountInput:     split.Amount,
			CurrencyInput:   split.Currency,
			ExchangeRate:    split.ExchangeRate,
			AmountUSD:       amountUSD,
			Method:          split.Method,
			Status:          splitStatus(split.Method),
			InvoiceId:       input.InvoiceId,
			ReferenceNumber: split.ReferenceNumber,
			BranchId:        split.BranchId,
			AccountId:       split.AccountId,
		})
		total = total.Add(amountUSD)
	}

	if input.InvoiceId != "" {
		idx := snap.findSale(input.InvoiceId)
		remaining := snap.sales[idx].TotalAmount.Sub(models.PaidTotal(snap.payments, input.InvoiceId))
		if total.GreaterThan(remaining.Add(models.MoneyEpsilon)) {
			return nil, &utils.ValidationError{Field: "splits", Message: "the amount entered is more than the balance for the selected invoice"}
		}
	}

	newPayments := append(snap.payments, records...)
	if err := e.payments().SaveAll(ctx, newPayments); err != nil {
		return nil, err
	}
	newAccounts := applyAccountEffects(snap.accounts, records, +1)
	if err := e.accounts().SaveAll(ctx, newAccounts); err != nil {
		if revErr := e.payments().SaveAll(ctx, snap.payments); revErr != nil {
			compErr := &utils.CompensationFailureError{Step: "restore payments", Cause: revErr}
			config.LogError(e.logger, "workflow", "ApplyCustomerPayment", "compensation", parentId, compErr)
			return nil, compErr
		}
		return nil, err
	}
	e.publish(models.CollectionPayments)
	e.publish(models.CollectionAccounts)
	return records, nil
}

// DeletePayment reverses one record's effect on the branch accounts and
// removes it from the ledger. Derived invoice status and customer balance
// follow automatically on the next read.
func (e *Engine) DeletePayment(ctx context.Context, paymentId string) error {
	payments, err := e.payments().LoadAll(ctx)
	if err != nil {
		return err
	}
	idx := models.FindPayment(payments, paymentId)
	if idx < 0 {
		return utils.ErrorRecordNotFound
	}
	accounts, err := e.accounts().LoadAll(ctx)
	if err != nil {
		return err
	}
	removed := payments[idx]

	newPayments := append(payments[:idx:idx], payments[idx+1:]...)
	if err := e.payments().SaveAll(ctx, newPayments); err != nil {
		return err
	}
	newAccounts := applyAccountEffects(accounts, []models.Payment{removed}, -1)
	if err := e.accounts().SaveAll(ctx, newAccounts); err != nil {
		if revErr := e.payments().SaveAll(ctx, payments); revErr != nil {
			compErr := &utils.CompensationFailureError{Step: "restore payments", Cause: revErr}
			config.LogError(e.logger, "workflow", "DeletePayment", "compensation", paymentId, compErr)
			return compErr
		}
		return err
	}
	e.publish(models.CollectionPayments)
	e.publish(models.CollectionAccounts)
	return nil
}

// VerifyPayment flips a pending electronic record to verified and applies its
// effect on the receiving branch account.
func (e *Engine) VerifyPayment(ctx context.Context, paymentId string) (*models.Payment, error) {
	payments, err := e.payments().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	idx := models.FindPayment(payments, paymentId)
	if idx < 0 {
		return nil, utils.ErrorRecordNotFound
	}
	if payments[idx].Status != models.PaymentStatusPendingVerification {
		return nil, &utils.ValidationError{Field: "status", Message: "payment is not pending verification"}
	}
	accounts, err := e.accounts().LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	payments[idx].Status = models.PaymentStatusVerified
	if err := e.payments().SaveAll(ctx, payments); err != nil {
		return nil, err
	}
	accounts = applyAccountEffects(accounts, []models.Payment{payments[idx]}, +1)
	if err := e.accounts().SaveAll(ctx, accounts); err != nil {
		// Roll the status flip back so a half-applied verification never
		// survives.
		payments[idx].Status = models.PaymentStatusPendingVerification
		if revErr := e.payments().SaveAll(ctx, payments); revErr != nil {
			compErr := &utils.CompensationFailureError{Step: "revert payment status", Cause: revErr}
			config.LogError(e.logger, "workflow", "VerifyPayment", "compensation", paymentId, compErr)
			return nil, compErr
		}
		return nil, err
	}
	e.publish(models.CollectionPayments)
	e.publish(models.CollectionAccounts)

	verified := payments[idx]
	return &verified, nil
}
