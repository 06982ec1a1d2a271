package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/utils"
)

// TransferRecord is one directed raw-material movement between two branches.
type TransferRecord struct {
	ID           string          `json:"id"`
	FromBranchId string          `json:"from_branch_id"`
	ToBranchId   string          `json:"to_branch_id"`
	Material     string          `json:"material"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	Date         time.Time       `json:"date"`
}

type NewTransfer struct {
	FromBranchId string          `json:"from_branch_id" validate:"required"`
	ToBranchId   string          `json:"to_branch_id" validate:"required"`
	Material     string          `json:"material" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit" validate:"required"`
	Date         time.Time       `json:"date"`
}

func (input *NewTransfer) Validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.FromBranchId == input.ToBranchId {
		return &utils.ValidationError{Field: "branch", Message: "a branch cannot transfer to itself"}
	}
	if !input.Quantity.IsPositive() {
		return &utils.ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}
	return nil
}
