package workflow

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/models"
)

// NetDebt is the netted position for one branch pair and material: after
// offsetting transfers in both directions, DebtorBranchId owes Quantity of
// Material to CreditorBranchId.
type NetDebt struct {
	DebtorBranchId   string          `json:"debtor_branch_id"`
	CreditorBranchId string          `json:"creditor_branch_id"`
	Material         string          `json:"material"`
	Unit             string          `json:"unit"`
	Quantity         decimal.Decimal `json:"quantity"`
}

type debtKey struct {
	branchA  string
	branchB  string
	material string
	unit     string
}

// NetTransferDebts folds a directed transfer log into one net owed quantity
// and direction per unordered branch pair and material. Positions within the
// tolerance are considered settled and dropped. Output order is
// deterministic.
//
// This is the same net-position computation the sale processor runs per
// branch/product, applied at the coarser grain of whole transfers.
func NetTransferDebts(transfers []models.TransferRecord, tolerance decimal.Decimal) []NetDebt {
	net := map[debtKey]decimal.Decimal{}
	for _, t := range transfers {
		key := debtKey{branchA: t.FromBranchId, branchB: t.ToBranchId, material: t.Material, unit: t.Unit}
		qty := t.Quantity
		// Canonical pair order; reversed transfers flip the sign.
		if key.branchA > key.branchB {
			key.branchA, key.branchB = key.branchB, key.branchA
			qty = qty.Neg()
		}
		net[key] = net[key].Add(qty)
	}

	var debts []NetDebt
	for key, qty := range net {
		if qty.Abs().LessThanOrEqual(tolerance) {
			continue
		}
		debt := NetDebt{Material: key.material, Unit: key.unit}
		if qty.IsPositive() {
			// branchA sent more than it received: branchB owes branchA.
			debt.DebtorBranchId = key.branchB
			debt.CreditorBranchId = key.branchA
			debt.Quantity = qty
		} else {
			debt.DebtorBranchId = key.branchA
			debt.CreditorBranchId = key.branchB
			debt.Quantity = qty.Neg()
		}
		debts = append(debts, debt)
	}

	sort.Slice(debts, func(i, j int) bool {
		a, b := debts[i], debts[j]
		if a.DebtorBranchId != b.DebtorBranchId {
			return a.DebtorBranchId < b.DebtorBranchId
		}
		if a.CreditorBranchId != b.CreditorBranchId {
			return a.CreditorBranchId < b.CreditorBranchId
		}
		if a.Material != b.Material {
			return a.Material < b.Material
		}
		return a.Unit < b.Unit
	})
	return debts
}

// DefaultNettingTolerance discards net positions below a hundredth of a unit.
var DefaultNettingTolerance = decimal.New(1, -2)

// RecordTransfer appends one directed transfer to the log.
func (e *Engine) RecordTransfer(ctx context.Context, input *models.NewTransfer) (*models.TransferRecord, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	transfers, err := e.transfers().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	record := models.TransferRecord{
		ID:           uuid.NewString(),
		FromBranchId: input.FromBranchId,
		ToBranchId:   input.ToBranchId,
		Material:     input.Material,
		Quantity:     input.Quantity,
		Unit:         input.Unit,
		Date:         input.Date,
	}
	if record.Date.IsZero() {
		record.Date = e.now()
	}
	transfers = append(transfers, record)
	if err := e.transfers().SaveAll(ctx, transfers); err != nil {
		return nil, err
	}
	e.publish(models.CollectionTransfers)
	return &record, nil
}

// NetTransferDebts computes the current netted material debt between every
// branch pair from the persisted transfer log.
func (e *Engine) NetTransferDebts(ctx context.Context) ([]NetDebt, error) {
	transfers, err := e.transfers().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return NetTransferDebts(transfers, DefaultNettingTolerance), nil
}
