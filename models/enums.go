package models

// Collection keys of the persisted document store.
const (
	CollectionSales     = "sales"
	CollectionPayments  = "payments"
	CollectionProducts  = "products"
	CollectionCustomers = "customers"
	CollectionTransfers = "transfers"
	CollectionAccounts  = "accounts"
	CollectionAudit     = "audit"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyVES Currency = "VES"
)

// BaseCurrency is the currency every ledger amount is normalized to.
const BaseCurrency = CurrencyUSD

type SalePaymentMethod string

const (
	SalePaymentMethodPaid   SalePaymentMethod = "Paid"
	SalePaymentMethodCredit SalePaymentMethod = "Credit"
)

type PaymentMethod string

const (
	PaymentMethodCashUSD        PaymentMethod = "Cash USD"
	PaymentMethodCashVES        PaymentMethod = "Cash VES"
	PaymentMethodCustomerCredit PaymentMethod = "Customer Credit"
	PaymentMethodCreditNote     PaymentMethod = "Credit Note"
	PaymentMethodTransfer       PaymentMethod = "Transfer"
	PaymentMethodPagoMovil      PaymentMethod = "Pago Movil"
	PaymentMethodCard           PaymentMethod = "Card"
)

// IsCashEquivalent reports whether the method is verified on entry. Every
// other method is electronic: it starts pending verification and must carry a
// unique 6-digit reference.
func (m PaymentMethod) IsCashEquivalent() bool {
	switch m {
	case PaymentMethodCashUSD, PaymentMethodCashVES, PaymentMethodCustomerCredit, PaymentMethodCreditNote:
		return true
	}
	return false
}

// IsInternalCredit reports whether the record redistributes value already on
// the customer's invoice ledger (applied floating credit, credit notes)
// rather than bringing external money in. Internal records drive per-invoice
// paid totals but never move branch accounts, and the balance calculator
// skips them so the credit's source invoice is not counted twice.
func (m PaymentMethod) IsInternalCredit() bool {
	return m == PaymentMethodCustomerCredit || m == PaymentMethodCreditNote
}

func (m PaymentMethod) IsElectronic() bool {
	switch m {
	case PaymentMethodTransfer, PaymentMethodPagoMovil, PaymentMethodCard:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPendingVerification PaymentStatus = "Pending Verification"
	PaymentStatusVerified            PaymentStatus = "Verified"
)

type InvoiceStatus string

const (
	InvoiceStatusPendingPayment InvoiceStatus = "Pending Payment"
	InvoiceStatusPartiallyPaid  InvoiceStatus = "Partially Paid"
	InvoiceStatusCompleted      InvoiceStatus = "Completed"
	InvoiceStatusOverdue        InvoiceStatus = "Overdue"
)
