package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/utils"
)

// DefaultCreditTermDays is the due-date term applied to an unpaid credit sale
// when the operator does not pick one.
const DefaultCreditTermDays = 7

type LineItem struct {
	ProductId      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	SourceBranchId string          `json:"source_branch_id"`
}

// SaleBranchItems groups the sold line items by the branch whose stock they
// were taken from.
type SaleBranchItems struct {
	BranchId string          `json:"branch_id"`
	Items    []LineItem      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Sale is one invoice. TotalAmount is always recomputed from the items and
// changes when the record is built; it is never accepted from input.
type Sale struct {
	ID                        string            `json:"id"`
	Date                      time.Time         `json:"date"`
	Timestamp                 time.Time         `json:"timestamp"`
	CustomerId                string            `json:"customer_id"`
	Branches                  []SaleBranchItems `json:"items_per_branch"`
	Changes                   []LineItem        `json:"changes"`
	Samples                   []LineItem        `json:"samples"`
	TotalAmount               decimal.Decimal   `json:"total_amount"`
	PaymentMethod             SalePaymentMethod `json:"payment_method"`
	DueDate                   *time.Time        `json:"due_date,omitempty"`
	CreditNoteTargetInvoiceId string            `json:"credit_note_target_invoice_id,omitempty"`
	Notes                     string            `json:"notes,omitempty"`
}

// IsCreditNote reports whether the sale's total is negative, i.e. the record
// represents a refund or adjustment.
func (s *Sale) IsCreditNote() bool {
	return s.TotalAmount.IsNegative()
}

type NewLineItem struct {
	ProductId   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	// SourceBranchId is only read for changes and samples; sold items take
	// the branch of the group they appear in.
	SourceBranchId string `json:"source_branch_id"`
}

type NewSaleBranchItems struct {
	BranchId string        `json:"branch_id"`
	Items    []NewLineItem `json:"items"`
}

type NewSale struct {
	Date                      time.Time            `json:"date" validate:"required"`
	CustomerId                string               `json:"customer_id" validate:"required"`
	Branches                  []NewSaleBranchItems `json:"items_per_branch"`
	Changes                   []NewLineItem        `json:"changes"`
	Samples                   []NewLineItem        `json:"samples"`
	PaymentMethod             SalePaymentMethod    `json:"payment_method" validate:"required,oneof=Paid Credit"`
	DueDate                   *time.Time           `json:"due_date,omitempty"`
	CreditNoteTargetInvoiceId string               `json:"credit_note_target_invoice_id,omitempty"`
	// AllowFloatingCreditNote is the operator's explicit choice to leave a
	// negative-total sale unattached to any prior invoice.
	AllowFloatingCreditNote bool   `json:"allow_floating_credit_note"`
	Notes                   string `json:"notes"`

	UseCustomerCredit bool              `json:"use_customer_credit"`
	Splits            []NewPaymentSplit `json:"splits"`

	// CreditOverride lets an authorized role push a credit sale through the
	// overdue-balance gate. Overrides are audit-logged.
	CreditOverride   bool   `json:"credit_override"`
	CreditOverrideBy string `json:"credit_override_by"`
}

func validateLineItem(kind string, item NewLineItem, requireBranch bool) error {
	if item.ProductId == "" {
		return &utils.ValidationError{Field: kind, Message: "product id is required"}
	}
	if !item.Quantity.IsPositive() {
		return &utils.ValidationError{Field: kind, Message: "quantity must be positive"}
	}
	if item.UnitPrice.IsNegative() {
		return &utils.ValidationError{Field: kind, Message: "unit price cannot be negative"}
	}
	if requireBranch && item.SourceBranchId == "" {
		return &utils.ValidationError{Field: kind, Message: "source branch id is required"}
	}
	return nil
}

// Validate rejects malformed input before any ledger state is read. Presence
// and membership rules live on the struct tags; the checks below are the
// domain rules tags cannot express.
func (input *NewSale) Validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	itemCount := 0
	for _, group := range input.Branches {
		if group.BranchId == "" {
			return &utils.ValidationError{Field: "items_per_branch", Message: "branch id is required"}
		}
		for _, item := range group.Items {
			if err := validateLineItem("items_per_branch", item, false); err != nil {
				return err
			}
			itemCount++
		}
	}
	for _, change := range input.Changes {
		if err := validateLineItem("changes", change, true); err != nil {
			return err
		}
	}
	for _, sample := range input.Samples {
		if err := validateLineItem("samples", sample, true); err != nil {
			return err
		}
	}
	if itemCount == 0 && len(input.Changes) == 0 {
		return &utils.ValidationError{Field: "items_per_branch", Message: "a sale needs at least one item or change"}
	}
	for i := range input.Splits {
		if err := input.Splits[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func buildLineItem(input NewLineItem, branchId string) LineItem {
	if branchId == "" {
		branchId = input.SourceBranchId
	}
	return LineItem{
		ProductId:      input.ProductId,
		ProductName:    input.ProductName,
		Quantity:       input.Quantity,
		UnitPrice:      input.UnitPrice,
		Subtotal:       RoundMoney(input.Quantity.Mul(input.UnitPrice)),
		SourceBranchId: branchId,
	}
}

// BuildSale maps validated input into a Sale, recomputing every subtotal and
// the invoice total. Changes subtract from the total at their loss cost;
// samples never touch it.
func BuildSale(id string, input *NewSale, now time.Time) *Sale {
	sale := &Sale{
		ID:            id,
		Date:          input.Date,
		Timestamp:     now,
		CustomerId:    input.CustomerId,
		PaymentMethod: input.PaymentMethod,
		Notes:         input.Notes,
	}

	total := decimal.Zero
	for _, group := range input.Branches {
		branch := SaleBranchItems{BranchId: group.BranchId}
		for _, item := range group.Items {
			branch.Items = append(branch.Items, buildLineItem(item, group.BranchId))
		}
		branch.Subtotal = SumSubtotals(branch.Items)
		total = total.Add(branch.Subtotal)
		sale.Branches = append(sale.Branches, branch)
	}
	for _, change := range input.Changes {
		sale.Changes = append(sale.Changes, buildLineItem(change, ""))
	}
	for _, sample := range input.Samples {
		sale.Samples = append(sale.Samples, buildLineItem(sample, ""))
	}
	sale.TotalAmount = RoundMoney(total.Sub(SumSubtotals(sale.Changes)))

	if sale.TotalAmount.IsNegative() {
		sale.CreditNoteTargetInvoiceId = input.CreditNoteTargetInvoiceId
	}
	if input.PaymentMethod == SalePaymentMethodCredit && sale.TotalAmount.IsPositive() {
		if input.DueDate != nil {
			due := *input.DueDate
			sale.DueDate = &due
		} else {
			due := input.Date.AddDate(0, 0, DefaultCreditTermDays)
			sale.DueDate = &due
		}
	}
	return sale
}
