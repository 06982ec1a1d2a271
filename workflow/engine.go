package workflow

import (
	"context"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/amasijo/bakery_backend/events"
	"github.com/amasijo/bakery_backend/models"
	"github.com/amasijo/bakery_backend/store"
	"github.com/amasijo/bakery_backend/utils"
)

// DefaultOverdueCreditLimit is the overdue balance (USD) past which new
// credit sales are blocked unless an authorized role overrides.
var DefaultOverdueCreditLimit = decimal.NewFromInt(100)

// Engine orchestrates every write against the persisted collections. The
// store offers no cross-key transaction, so each operation reads everything
// it needs, validates the full result in memory, and only then writes in the
// order stock -> sale record -> payments -> account balances.
type Engine struct {
	store  store.Store
	bus    *events.Bus
	logger *logrus.Logger

	overdueCreditLimit decimal.Decimal

	// now is swappable so derived-state tests can pin the clock.
	now func() time.Time
}

func NewEngine(s store.Store, bus *events.Bus, logger *logrus.Logger) *Engine {
	limit := DefaultOverdueCreditLimit
	if raw := os.Getenv("OVERDUE_CREDIT_LIMIT"); raw != "" {
		if parsed, err := decimal.NewFromString(raw); err == nil && !parsed.IsNegative() {
			limit = parsed
		}
	}
	return &Engine{
		store:              s,
		bus:                bus,
		logger:             logger,
		overdueCreditLimit: limit,
		now:                time.Now,
	}
}

func (e *Engine) SetOverdueCreditLimit(limit decimal.Decimal) {
	e.overdueCreditLimit = limit
}

func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) sales() store.Collection[models.Sale] {
	return store.NewCollection[models.Sale](e.store, models.CollectionSales)
}

func (e *Engine) payments() store.Collection[models.Payment] {
	return store.NewCollection[models.Payment](e.store, models.CollectionPayments)
}

func (e *Engine) products() store.Collection[models.Product] {
	return store.NewCollection[models.Product](e.store, models.CollectionProducts)
}

func (e *Engine) customers() store.Collection[models.Customer] {
	return store.NewCollection[models.Customer](e.store, models.CollectionCustomers)
}

func (e *Engine) transfers() store.Collection[models.TransferRecord] {
	return store.NewCollection[models.TransferRecord](e.store, models.CollectionTransfers)
}

func (e *Engine) accounts() store.Collection[models.BranchAccount] {
	return store.NewCollection[models.BranchAccount](e.store, models.CollectionAccounts)
}

func (e *Engine) audit() store.Collection[models.AuditEntry] {
	return store.NewCollection[models.AuditEntry](e.store, models.CollectionAudit)
}

func (e *Engine) publish(collection string) {
	if e.bus != nil {
		e.bus.Publish(collection)
	}
}

// ledgerSnapshot is everything a sale operation reads before deciding
// anything.
type ledgerSnapshot struct {
	sales     []models.Sale
	payments  []models.Payment
	products  []models.Product
	customers []models.Customer
	accounts  []models.BranchAccount
}

func (e *Engine) loadSnapshot(ctx context.Context) (*ledgerSnapshot, error) {
	sales, err := e.sales().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := e.payments().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	products, err := e.products().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := e.customers().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := e.accounts().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return &ledgerSnapshot{
		sales:     sales,
		payments:  payments,
		products:  products,
		customers: customers,
		accounts:  accounts,
	}, nil
}

func (snap *ledgerSnapshot) findSale(saleId string) int {
	for i := range snap.sales {
		if snap.sales[i].ID == saleId {
			return i
		}
	}
	return -1
}

// CustomerBalance recomputes a customer's signed balance from the current
// ledger.
func (e *Engine) CustomerBalance(ctx context.Context, customerId string) (decimal.Decimal, error) {
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return models.CustomerBalance(snap.sales, snap.payments, customerId), nil
}

// CustomerOverdueBalance recomputes a customer's overdue-only balance.
func (e *Engine) CustomerOverdueBalance(ctx context.Context, customerId string) (decimal.Decimal, error) {
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return models.CustomerOverdueBalance(snap.sales, snap.payments, customerId, e.now()), nil
}

// InvoiceStatus derives the lifecycle state of one invoice.
func (e *Engine) InvoiceStatus(ctx context.Context, saleId string) (models.InvoiceStatus, error) {
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return "", err
	}
	idx := snap.findSale(saleId)
	if idx < 0 {
		return "", utils.ErrorRecordNotFound
	}
	return models.DeriveInvoiceStatus(&snap.sales[idx], snap.payments, e.now()), nil
}
