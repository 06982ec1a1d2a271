package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/amasijo/bakery_backend/config"
	"github.com/amasijo/bakery_backend/models"
	"github.com/amasijo/bakery_backend/utils"
)

// CreateSale validates, commits stock, persists the sale and generates its
// payment records, in that order.
func (e *Engine) CreateSale(ctx context.Context, input *models.NewSale) (*models.Sale, error) {
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

	sale := models.BuildSale(uuid.NewString(), input, e.now())

	overridden, err := e.checkCreditGate(snap, nil, sale, input)
	if err != nil {
		return nil, err
	}

	if err := e.applyNetChange(ctx, snap, nil, sale, input); err != nil {
		return nil, err
	}
	if overridden {
		e.recordCreditOverride(ctx, sale, input)
	}
	return sale, nil
}

// EditSale replaces a sale wholesale: the original's stock effect is merged
// with the new version's into one combined commit, and its payment records
// are reversed and regenerated, never diffed incrementally.
func (e *Engine) EditSale(ctx context.Context, saleId string, input *models.NewSale) (*models.Sale, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	idx := snap.findSale(saleId)
	if idx < 0 {
		return nil, utils.ErrorRecordNotFound
	}
	original := snap.sales[idx]
	if models.FindCustomer(snap.customers, input.CustomerId) < 0 {
		return nil, &utils.ValidationError{Field: "customer_id", Message: "customer not found"}
	}

	updated := models.BuildSale(original.ID, input, e.now())

	overridden, err := e.checkCreditGate(snap, &original, updated, input)
	if err != nil {
		return nil, err
	}

	if err := e.applyNetChange(ctx, snap, &original, updated, input); err != nil {
		return nil, err
	}
	if overridden {
		e.recordCreditOverride(ctx, updated, input)
	}
	return updated, nil
}

// DeleteSale reverts a sale's full recorded effect: stock restored, payment
// records removed and their verified account effects reversed.
func (e *Engine) DeleteSale(ctx context.Context, saleId string) error {
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	idx := snap.findSale(saleId)
	if idx < 0 {
		return utils.ErrorRecordNotFound
	}
	original := snap.sales[idx]
	return e.applyNetChange(ctx, snap, &original, nil, nil)
}

func (e *Engine) GetSale(ctx context.Context, saleId string) (*models.Sale, error) {
	sales, err := e.sales().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		if sales[i].ID == saleId {
			return &sales[i], nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (e *Engine) ListSales(ctx context.Context) ([]models.Sale, error) {
	return e.sales().LoadAll(ctx)
}

// withoutSale is the snapshot's view with one sale and its payment records
// taken out, used when that sale is about to be replaced.
func withoutSale(snap *ledgerSnapshot, saleId string) ([]models.Sale, []models.Payment) {
	sales := make([]models.Sale, 0, len(snap.sales))
	for _, s := range snap.sales {
		if s.ID != saleId {
			sales = append(sales, s)
		}
	}
	payments := make([]models.Payment, 0, len(snap.payments))
	for _, p := range snap.payments {
		if p.ParentPaymentId != saleId {
			payments = append(payments, p)
		}
	}
	return sales, payments
}

// checkCreditNoteTarget rejects a credit note pointing at an invoice that
// does not exist or belongs to another customer, so a typo cannot produce a
// credit-note record applied to nothing.
func checkCreditNoteTarget(sales []models.Sale, sale *models.Sale) error {
	if sale.CreditNoteTargetInvoiceId == "" {
		return nil
	}
	for i := range sales {
		if sales[i].ID == sale.CreditNoteTargetInvoiceId {
			if sales[i].CustomerId != sale.CustomerId {
				return &utils.ValidationError{Field: "credit_note_target_invoice_id", Message: "target invoice belongs to another customer"}
			}
			return nil
		}
	}
	return &utils.ValidationError{Field: "credit_note_target_invoice_id", Message: "target invoice not found"}
}

// checkCreditGate blocks a credit sale for a customer whose overdue balance
// is past the threshold. Returns whether an authorized override was used.
func (e *Engine) checkCreditGate(snap *ledgerSnapshot, original *models.Sale, sale *models.Sale, input *models.NewSale) (bool, error) {
	if sale.PaymentMethod != models.SalePaymentMethodCredit || !sale.TotalAmount.IsPositive() {
		return false, nil
	}
	sales, payments := snap.sales, snap.payments
	if original != nil {
		sales, payments = withoutSale(snap, original.ID)
	}
	overdue := models.CustomerOverdueBalance(sales, payments, sale.CustomerId, e.now())
	if overdue.LessThanOrEqual(e.overdueCreditLimit) {
		return false, nil
	}
	if !input.CreditOverride {
		return false, &utils.CreditLimitExceededError{
			CustomerId: sale.CustomerId,
			Overdue:    overdue,
			Limit:      e.overdueCreditLimit,
		}
	}
	return true, nil
}

// recordCreditOverride appends the override to the audit collection. A
// failure here is logged loudly but does not unwind an already committed
// sale.
func (e *Engine) recordCreditOverride(ctx context.Context, sale *models.Sale, input *models.NewSale) {
	entries, err := e.audit().LoadAll(ctx)
	if err != nil {
		config.LogError(e.logger, "workflow", "recordCreditOverride", "load audit", sale.ID, err)
		return
	}
	entries = append(entries, models.AuditEntry{
		ID:           uuid.NewString(),
		At:           e.now(),
		Kind:         models.AuditKindCreditOverride,
		CustomerId:   sale.CustomerId,
		SaleId:       sale.ID,
		AuthorizedBy: input.CreditOverrideBy,
		Details:      "credit sale allowed past overdue limit",
	})
	if err := e.audit().SaveAll(ctx, entries); err != nil {
		config.LogError(e.logger, "workflow", "recordCreditOverride", "save audit", sale.ID, err)
		return
	}
	e.publish(models.CollectionAudit)
}

// applyNetChange is the one routine behind create, edit and delete:
// create passes no original, delete passes no updated, and edit passes both
// so the two stock effects merge into a single commit that crosses the
// zero-floor check once with the true net quantity per branch/product.
//
// Writes go out in the order stock -> sale record -> payments -> account
// balances. A failure after the first write triggers compensating writes in
// reverse order; if compensation itself fails the error is surfaced as a
// CompensationFailure for manual reconciliation, never swallowed.
func (e *Engine) applyNetChange(ctx context.Context, snap *ledgerSnapshot, original, updated *models.Sale, input *models.NewSale) error {
	deltas := StockDeltas{}
	if original != nil {
		deltas = MergeDeltas(deltas, SaleStockDeltas(original).Inverse())
	}

	baseSales, basePayments := snap.sales, snap.payments
	var oldRecords []models.Payment
	if original != nil {
		baseSales, basePayments = withoutSale(snap, original.ID)
		oldRecords = models.PaymentsOfSale(snap.payments, original.ID)
	}

	var newRecords []models.Payment
	if updated != nil {
		if err := checkCreditNoteTarget(baseSales, updated); err != nil {
			return err
		}
		deltas = MergeDeltas(deltas, SaleStockDeltas(updated))
		balance := models.CustomerBalance(baseSales, basePayments, updated.CustomerId)
		var err error
		newRecords, err = e.buildSalePayments(updated, input, basePayments, balance)
		if err != nil {
			return err
		}
	}

	// Validate the whole stock effect before anything is written. A failure
	// here leaves every collection untouched.
	updatedProducts, err := CommitStockDeltas(snap.products, deltas)
	if err != nil {
		return err
	}

	newSales := baseSales
	if updated != nil {
		newSales = append(newSales, *updated)
	}
	newPayments := append(basePayments, newRecords...)

	newAccounts := applyAccountEffects(snap.accounts, oldRecords, -1)
	newAccounts = applyAccountEffects(newAccounts, newRecords, +1)

	// Commit, in order.
	if err := e.products().SaveAll(ctx, updatedProducts); err != nil {
		return err
	}
	if err := e.sales().SaveAll(ctx, newSales); err != nil {
		return e.compensate(ctx, err, compensation{products: snap.products})
	}
	if err := e.payments().SaveAll(ctx, newPayments); err != nil {
		return e.compensate(ctx, err, compensation{products: snap.products, sales: snap.sales})
	}
	if err := e.accounts().SaveAll(ctx, newAccounts); err != nil {
		return e.compensate(ctx, err, compensation{products: snap.products, sales: snap.sales, payments: snap.payments})
	}

	e.publish(models.CollectionProducts)
	e.publish(models.CollectionSales)
	e.publish(models.CollectionPayments)
	e.publish(models.CollectionAccounts)
	return nil
}

// compensation holds the pre-images to restore, in reverse write order.
type compensation struct {
	payments []models.Payment
	sales    []models.Sale
	products []models.Product
}

// compensate rolls already-committed collections back to their pre-images
// after a later write failed. Best effort: the first failed rollback is
// escalated to a CompensationFailure.
func (e *Engine) compensate(ctx context.Context, cause error, comp compensation) error {
	if comp.payments != nil {
		if err := e.payments().SaveAll(ctx, comp.payments); err != nil {
			return e.compensationFailed(ctx, "restore payments", cause, err)
		}
		e.publish(models.CollectionPayments)
	}
	if comp.sales != nil {
		if err := e.sales().SaveAll(ctx, comp.sales); err != nil {
			return e.compensationFailed(ctx, "restore sales", cause, err)
		}
		e.publish(models.CollectionSales)
	}
	if comp.products != nil {
		if err := e.products().SaveAll(ctx, comp.products); err != nil {
			return e.compensationFailed(ctx, "restore products", cause, err)
		}
		e.publish(models.CollectionProducts)
	}
	return cause
}

func (e *Engine) compensationFailed(_ context.Context, step string, cause, rollbackErr error) error {
	compErr := &utils.CompensationFailureError{Step: step, Cause: rollbackErr}
	config.LogError(e.logger, "workflow", "applyNetChange", "compensation after: "+cause.Error(), nil, compErr)
	return compErr
}
