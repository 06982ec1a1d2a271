package workflow_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/amasijo/bakery_backend/events"
	"github.com/amasijo/bakery_backend/models"
	"github.com/amasijo/bakery_backend/store"
	"github.com/amasijo/bakery_backend/utils"
	"github.com/amasijo/bakery_backend/workflow"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(t *testing.T, s store.Store) *workflow.Engine {
	t.Helper()
	engine := workflow.NewEngine(s, events.NewBus(), testLogger())
	engine.SetClock(func() time.Time { return testNow })
	engine.SetOverdueCreditLimit(dec("100"))
	return engine
}

func seedProduct(t *testing.T, engine *workflow.Engine, branchId, productId, name, stock, price string) {
	t.Helper()
	_, err := engine.SetOpeningStock(context.Background(), models.Product{
		ID:             productId,
		Name:           name,
		Stock:          dec(stock),
		UnitPrice:      dec(price),
		SourceBranchId: branchId,
	})
	if err != nil {
		t.Fatalf("seed product %s@%s: %v", productId, branchId, err)
	}
}

func seedCustomer(t *testing.T, engine *workflow.Engine, name string) string {
	t.Helper()
	customer, err := engine.CreateCustomer(context.Background(), &models.NewCustomer{Name: name})
	if err != nil {
		t.Fatalf("seed customer %s: %v", name, err)
	}
	return customer.ID
}

func mustStock(t *testing.T, engine *workflow.Engine, branchId, productId string) decimal.Decimal {
	t.Helper()
	stock, err := engine.Stock(context.Background(), branchId, productId)
	if err != nil {
		t.Fatalf("read stock %s@%s: %v", productId, branchId, err)
	}
	return stock
}

func mustBalance(t *testing.T, engine *workflow.Engine, customerId string) decimal.Decimal {
	t.Helper()
	balance, err := engine.CustomerBalance(context.Background(), customerId)
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

func mustStatus(t *testing.T, engine *workflow.Engine, saleId string) models.InvoiceStatus {
	t.Helper()
	status, err := engine.InvoiceStatus(context.Background(), saleId)
	if err != nil {
		t.Fatalf("read invoice status: %v", err)
	}
	return status
}

func cashSplit(amount string) models.NewPaymentSplit {
	return models.NewPaymentSplit{
		Amount:    dec(amount),
		Currency:  models.CurrencyUSD,
		Method:    models.PaymentMethodCashUSD,
		BranchId:  "centro",
		AccountId: "caja",
	}
}

func simpleSale(customerId string, method models.SalePaymentMethod, qty string) *models.NewSale {
	return &models.NewSale{
		Date:          testNow,
		CustomerId:    customerId,
		PaymentMethod: method,
		Branches: []models.NewSaleBranchItems{
			{BranchId: "centro", Items: []models.NewLineItem{
				{ProductId: "pan", ProductName: "Pan Campesino", Quantity: dec(qty), UnitPrice: dec("10")},
			}},
		},
	}
}

func TestCreateSaleCommitsStockSaleAndPayments(t *testing.T) {
	mem := store.NewMemoryStore()
	engine := newTestEngine(t, mem)
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "20", "10")
	customerId := seedCustomer(t, engine, "Maria")

	input := simpleSale(customerId, models.SalePaymentMethodPaid, "4")
	input.Splits = []models.NewPaymentSplit{cashSplit("40")}
	sale, err := engine.CreateSale(context.Background(), input)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.TotalAmount.Cmp(dec("40")) != 0 {
		t.Fatalf("expected total 40, got %s", sale.TotalAmount)
	}
	if got := mustStock(t, engine, "centro", "pan"); got.Cmp(dec("16")) != 0 {
		t.Fatalf("expected stock 16, got %s", got)
	}
	if got := mustStatus(t, engine, sale.ID); got != models.InvoiceStatusCompleted {
		t.Fatalf("expected %s, got %s", models.InvoiceStatusCompleted, got)
	}
	if got := mustBalance(t, engine, customerId); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}

	accounts, err := store.NewCollection[models.BranchAccount](mem, models.CollectionAccounts).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Balance.Cmp(dec("40")) != 0 {
		t.Fatalf("expected one account holding 40, got %+v", accounts)
	}
}

func TestCreateSaleRejectsUnknownCustomer(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore())
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "20", "10")

	_, err := engine.CreateSale(context.Background(), simpleSale("ghost", models.SalePaymentMethodCredit, "1"))
	var verr *utils.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestCreateSaleInsufficientStockLeavesLedgerUntouched(t *testing.T) {
	mem := store.NewMemoryStore()
	engine := newTestEngine(t, mem)
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "20", "10")
	seedProduct(t, engine, "este", "torta", "Torta Tres Leches", "1", "25")
	customerId := seedCustomer(t, engine, "Maria")

	input := &models.NewSale{
		Date:          testNow,
		CustomerId:    customerId,
		PaymentMethod: models.SalePaymentMethodCredit,
		Branches: []models.NewSaleBranchItems{
			{BranchId: "centro", Items: []models.NewLineItem{{ProductId: "pan", Quantity: dec("5"), UnitPrice: dec("10")}}},
			{BranchId: "este", Items: []models.NewLineItem{{ProductId: "torta", Quantity: dec("2"), UnitPrice: dec("25")}}},
		},
	}
	_, err := engine.CreateSale(context.Background(), input)
	var stockErr *utils.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if stockErr.BranchId != "este" || stockErr.ProductId != "torta" {
		t.Fatalf("wrong offending pair: %+v", stockErr)
	}

	// The valid branch must not have been debited either.
	if got := mustStock(t, engine, "centro", "pan"); got.Cmp(dec("20")) != 0 {
		t.Fatalf("expected stock 20, got %s", got)
	}
	sales, err := engine.ListSales(context.Background())
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no persisted sales, got %d", len(sales))
	}
}

func TestDeleteSaleRevertsFullEffect(t *testing.T) {
	mem := store.NewMemoryStore()
	engine := newTestEngine(t, mem)
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "20", "10")
	customerId := seedCustomer(t, engine, "Maria")

	input := simpleSale(customerId, models.SalePaymentMethodPaid, "4")
	input.Splits = []models.NewPaymentSplit{cashSplit("40")}
	sale, err := engine.CreateSale(context.Background(), input)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if err := engine.DeleteSale(context.Background(), sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	if got := mustStock(t, engine, "centro", "pan"); got.Cmp(dec("20")) != 0 {
		t.Fatalf("expected stock restored to 20, got %s", got)
	}
	if got := mustBalance(t, engine, customerId); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}
	payments, err := store.NewCollection[models.Payment](mem, models.CollectionPayments).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("expected payment records removed, got %d", len(payments))
	}
	accounts, err := store.NewCollection[models.BranchAccount](mem, models.CollectionAccounts).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load accounts: %v", err)
	}
	for _, acc := range accounts {
		if !acc.Balance.IsZero() {
			t.Fatalf("expected account %s/%s reversed to zero, got %s", acc.BranchId, acc.AccountId, acc.Balance)
		}
	}
}

func TestDeleteSaleUnknownId(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore())
	if err := engine.DeleteSale(context.Background(), "missing"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

// Selling 10 with 2 returned nets -8; editing down to 5 sold with no returns
// must land the stock at opening minus 5, not walk through the intermediate
// states.
func TestEditSaleAppliesNetStockDelta(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore())
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "10", "10")
	customerId := seedCustomer(t, engine, "Maria")

	input := simpleSale(customerId, models.SalePaymentMethodCredit, "10")
	input.Changes = []models.NewLineItem{
		{ProductId: "pan", Quantity: dec("2"), UnitPrice: dec("10"), SourceBranchId: "centro"},
	}
	sale, err := engine.CreateSale(context.Background(), input)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got := mustStock(t, engine, "centro", "pan"); got.Cmp(dec("2")) != 0 {
		t.Fatalf("after create: expected stock 2, got %s", got)
	}

	updated, err := engine.EditSale(context.Background(), sale.ID, simpleSale(customerId, models.SalePaymentMethodCredit, "5"))
	if err != nil {
		t.Fatalf("edit sale: %v", err)
	}
	if updated.ID != sale.ID {
		t.Fatalf("edit must keep the sale id, got %s", updated.ID)
	}
	if got := mustStock(t, engine, "centro", "pan"); got.Cmp(dec("5")) != 0 {
		t.Fatalf("after edit: expected stock 5, got %s", got)
	}
	if got := mustBalance(t, engine, customerId); got.Cmp(dec("50")) != 0 {
		t.Fatalf("after edit: expected balance 50, got %s", got)
	}
}

// With every unit sold the branch sits at zero. Replaying the new version
// against current stock would fail; the merged net delta of +2 must pass.
func TestEditSaleNetDeltaCrossesZeroFloorOnce(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore())
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "10", "10")
	customerId := seedCustomer(t, engine, "Maria")

	sale, err := engine.CreateSale(context.Background(), simpleSale(customerId, models.SalePaymentMethodCredit, "10"))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got := mustStock(t, engine, "centro", "pan"); !got.IsZero() {
		t.Fatalf("expected stock 0, got %s", got)
	}

	if _, err := engine.EditSale(context.Background(), sale.ID, simpleSale(customerId, models.SalePaymentMethodCredit, "8")); err != nil {
		t.Fatalf("edit sale: %v", err)
	}
	if got := mustStock(t, engine, "centro", "pan"); got.Cmp(dec("2")) != 0 {
		t.Fatalf("expected stock 2, got %s", got)
	}
}

func TestEditSaleIdenticalInputIsIdempotent(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore())
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "10", "10")
	customerId := seedCustomer(t, engine, "Maria")

	sale, err := engine.CreateSale(context.Background(), simpleSale(customerId, models.SalePaymentMethodCredit, "4"))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	before := mustStock(t, engine, "centro", "pan")
	balanceBefore := mustBalance(t, engine, customerId)

	if _, err := engine.EditSale(context.Background(), sale.ID, simpleSale(customerId, models.SalePaymentMethodCredit, "4")); err != nil {
		t.Fatalf("edit sale: %v", err)
	}
	if got := mustStock(t, engine, "centro", "pan"); got.Cmp(before) != 0 {
		t.Fatalf("stock moved on identical edit: %s -> %s", before, got)
	}
	if got := mustBalance(t, engine, customerId); got.Cmp(balanceBefore) != 0 {
		t.Fatalf("balance moved on identical edit: %s -> %s", balanceBefore, got)
	}
}

func TestCreditGateBlocksOverLimitAndHonorsOverride(t *testing.T) {
	mem := store.NewMemoryStore()
	engine := newTestEngine(t, mem)
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "100", "10")
	customerId := seedCustomer(t, engine, "Maria")

	// An unpaid credit sale already past its due date.
	pastDue := testNow.AddDate(0, 0, -1)
	overdueInput := simpleSale(customerId, models.SalePaymentMethodCredit, "15")
	overdueInput.DueDate = &pastDue
	if _, err := engine.CreateSale(context.Background(), overdueInput); err != nil {
		t.Fatalf("create overdue sale: %v", err)
	}

	_, err := engine.CreateSale(context.Background(), simpleSale(customerId, models.SalePaymentMethodCredit, "2"))
	var limitErr *utils.CreditLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected credit limit error, got %v", err)
	}
	if limitErr.Overdue.Cmp(dec("150")) != 0 {
		t.Fatalf("expected overdue 150, got %s", limitErr.Overdue)
	}

	// A cash sale for the same customer is not gated.
	cashInput := simpleSale(customerId, models.SalePaymentMethodPaid, "2")
	cashInput.Splits = []models.NewPaymentSplit{cashSplit("20")}
	if _, err := engine.CreateSale(context.Background(), cashInput); err != nil {
		t.Fatalf("cash sale should bypass the gate: %v", err)
	}

	override := simpleSale(customerId, models.SalePaymentMethodCredit, "2")
	override.CreditOverride = true
	override.CreditOverrideBy = "admin"
	sale, err := engine.CreateSale(context.Background(), override)
	if err != nil {
		t.Fatalf("override sale: %v", err)
	}

	entries, err := store.NewCollection[models.AuditEntry](mem, models.CollectionAudit).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	if entries[0].Kind != models.AuditKindCreditOverride || entries[0].SaleId != sale.ID || entries[0].AuthorizedBy != "admin" {
		t.Fatalf("unexpected audit entry: %+v", entries[0])
	}
}

// A $100 credit invoice paid in two installments, then one installment
// removed. Status and balance must follow the ledger at every step.
func TestCreditInvoiceLifecycle(t *testing.T) {
	engine := newTestEngine(t, store.NewMemoryStore())
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "20", "10")
	customerId := seedCustomer(t, engine, "Maria")

	sale, err := engine.CreateSale(context.Background(), simpleSale(customerId, models.SalePaymentMethodCredit, "10"))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got := mustStatus(t, engine, sale.ID); got != models.InvoiceStatusPendingPayment {
		t.Fatalf("expected %s, got %s", models.InvoiceStatusPendingPayment, got)
	}
	if got := mustBalance(t, engine, customerId); got.Cmp(dec("100")) != 0 {
		t.Fatalf("expected balance 100, got %s", got)
	}

	_, err = engine.ApplyCustomerPayment(context.Background(), &workflow.NewCustomerPayment{
		CustomerId: customerId,
		InvoiceId:  sale.ID,
		Splits:     []models.NewPaymentSplit{cashSplit("60")},
	})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if got := mustStatus(t, engine, sale.ID); got != models.InvoiceStatusPartiallyPaid {
		t.Fatalf("expected %s, got %s", models.InvoiceStatusPartiallyPaid, got)
	}
	if got := mustBalance(t, engine, customerId); got.Cmp(dec("40")) != 0 {
		t.Fatalf("expected balance 40, got %s", got)
	}

	second, err := engine.ApplyCustomerPayment(context.Background(), &workflow.NewCustomerPayment{
		CustomerId: customerId,
		InvoiceId:  sale.ID,
		Splits:     []models.NewPaymentSplit{cashSplit("40")},
	})
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if got := mustStatus(t, engine, sale.ID); got != models.InvoiceStatusCompleted {
		t.Fatalf("expected %s, got %s", models.InvoiceStatusCompleted, got)
	}
	if got := mustBalance(t, engine, customerId); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}

	if err := engine.DeletePayment(context.Background(), second[0].ID); err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if got := mustStatus(t, engine, sale.ID); got != models.InvoiceStatusPartiallyPaid {
		t.Fatalf("after payment removal: expected %s, got %s", models.InvoiceStatusPartiallyPaid, got)
	}
	if got := mustBalance(t, engine, customerId); got.Cmp(dec("40")) != 0 {
		t.Fatalf("after payment removal: expected balance 40, got %s", got)
	}
}

// failingStore wraps a real store and fails writes per saveHook's verdict.
type failingStore struct {
	inner    store.Store
	saveHook func(key string) error
}

func (s *failingStore) Load(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Load(ctx, key)
}

func (s *failingStore) Save(ctx context.Context, key string, value []byte) error {
	if s.saveHook != nil {
		if err := s.saveHook(key); err != nil {
			return err
		}
	}
	return s.inner.Save(ctx, key, value)
}

func TestCreateSaleCompensatesAfterLateWriteFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	flaky := &failingStore{inner: mem}
	engine := newTestEngine(t, flaky)
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "20", "10")
	customerId := seedCustomer(t, engine, "Maria")

	diskFull := errors.New("disk full")
	flaky.saveHook = func(key string) error {
		if key == models.CollectionAccounts {
			return diskFull
		}
		return nil
	}

	input := simpleSale(customerId, models.SalePaymentMethodPaid, "4")
	input.Splits = []models.NewPaymentSplit{cashSplit("40")}
	_, err := engine.CreateSale(context.Background(), input)
	if !errors.Is(err, diskFull) {
		t.Fatalf("expected the causing error, got %v", err)
	}

	// Compensation restored every earlier write.
	if got := mustStock(t, engine, "centro", "pan"); got.Cmp(dec("20")) != 0 {
		t.Fatalf("expected stock restored to 20, got %s", got)
	}
	sales, err := engine.ListSales(context.Background())
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no persisted sales, got %d", len(sales))
	}
	payments, err := store.NewCollection[models.Payment](mem, models.CollectionPayments).LoadAll(context.Background())
	if err != nil {
		t.Fatalf("load payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("expected no persisted payments, got %d", len(payments))
	}
}

func TestCompensationFailureIsSurfaced(t *testing.T) {
	mem := store.NewMemoryStore()
	flaky := &failingStore{inner: mem}
	engine := newTestEngine(t, flaky)
	seedProduct(t, engine, "centro", "pan", "Pan Campesino", "20", "10")
	customerId := seedCustomer(t, engine, "Maria")

	// The accounts write fails and so does the payments rollback: the first
	// payments save (the forward write) goes through, the second (the
	// compensating restore) does not.
	paymentSaves := 0
	flaky.saveHook = func(key string) error {
		switch key {
		case models.CollectionAccounts:
			return errors.New("disk full")
		case models.CollectionPayments:
			paymentSaves++
			if paymentSaves > 1 {
				return errors.New("still broken")
			}
		}
		return nil
	}

	input := simpleSale(customerId, models.SalePaymentMethodPaid, "4")
	input.Splits = []models.NewPaymentSplit{cashSplit("40")}
	_, err := engine.CreateSale(context.Background(), input)
	var compErr *utils.CompensationFailureError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected a compensation failure, got %v", err)
	}
}
