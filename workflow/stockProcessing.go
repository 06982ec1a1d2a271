package workflow

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/models"
	"github.com/amasijo/bakery_backend/utils"
)

// StockKey addresses one branch's stock record for one product.
type StockKey struct {
	BranchId  string
	ProductId string
}

// StockDeltas is the single combined stock change of an operation: one signed
// quantity per branch/product pair after merging every contributing sold,
// returned and sampled line.
type StockDeltas map[StockKey]decimal.Decimal

func (d StockDeltas) add(key StockKey, qty decimal.Decimal) {
	d[key] = d[key].Add(qty)
}

// SaleStockDeltas computes the net stock effect of applying a sale:
// sold and sampled quantities debit their source branch, returned units
// (changes) credit it.
func SaleStockDeltas(sale *models.Sale) StockDeltas {
	deltas := StockDeltas{}
	for _, branch := range sale.Branches {
		for _, item := range branch.Items {
			deltas.add(StockKey{branch.BranchId, item.ProductId}, item.Quantity.Neg())
		}
	}
	for _, sample := range sale.Samples {
		deltas.add(StockKey{sample.SourceBranchId, sample.ProductId}, sample.Quantity.Neg())
	}
	for _, change := range sale.Changes {
		deltas.add(StockKey{change.SourceBranchId, change.ProductId}, change.Quantity)
	}
	return deltas
}

// Inverse negates every delta; the exact undo of an applied operation.
func (d StockDeltas) Inverse() StockDeltas {
	out := StockDeltas{}
	for key, qty := range d {
		out[key] = qty.Neg()
	}
	return out
}

// MergeDeltas sums two delta maps key-wise. Merging the inverse of an
// original sale with its edited version yields one combined commit, so a
// product present in both crosses the zero-floor check exactly once with its
// true net effect.
func MergeDeltas(a, b StockDeltas) StockDeltas {
	out := StockDeltas{}
	for key, qty := range a {
		out[key] = qty
	}
	for key, qty := range b {
		out.add(key, qty)
	}
	return out
}

func (d StockDeltas) sortedKeys() []StockKey {
	keys := make([]StockKey, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].BranchId != keys[j].BranchId {
			return keys[i].BranchId < keys[j].BranchId
		}
		return keys[i].ProductId < keys[j].ProductId
	})
	return keys
}

// ReadStock returns the current quantity for a branch/product pair, zero when
// the branch has no record.
func ReadStock(products []models.Product, branchId, productId string) decimal.Decimal {
	idx := models.FindProduct(products, branchId, productId)
	if idx < 0 {
		return decimal.Zero
	}
	return products[idx].Stock
}

// CommitStockDeltas validates every delta against current stock and only then
// applies them, returning the updated product list. On any failure nothing is
// applied: either every projected quantity stays >= 0 or the whole commit is
// rejected with the first offending pair in deterministic order.
//
// A positive delta against a pair the branch never carried creates the
// record, copying name and price from another branch's record of the same
// product. A negative delta against an unknown product is always a hard
// failure.
func CommitStockDeltas(products []models.Product, deltas StockDeltas) ([]models.Product, error) {
	keys := deltas.sortedKeys()

	// Validate all.
	for _, key := range keys {
		delta := deltas[key]
		if delta.IsZero() {
			continue
		}
		idx := models.FindProduct(products, key.BranchId, key.ProductId)
		if idx < 0 {
			if delta.IsNegative() {
				return nil, &utils.ProductNotFoundError{BranchId: key.BranchId, ProductId: key.ProductId}
			}
			continue
		}
		projected := products[idx].Stock.Add(delta)
		if projected.IsNegative() {
			return nil, &utils.InsufficientStockError{
				BranchId:  key.BranchId,
				ProductId: key.ProductId,
				Requested: delta.Neg(),
				Available: products[idx].Stock,
			}
		}
	}

	// Apply all.
	updated := make([]models.Product, len(products))
	copy(updated, products)
	for _, key := range keys {
		delta := deltas[key]
		if delta.IsZero() {
			continue
		}
		idx := models.FindProduct(updated, key.BranchId, key.ProductId)
		if idx < 0 {
			record := models.Product{
				ID:             key.ProductId,
				Stock:          delta,
				SourceBranchId: key.BranchId,
			}
			// A return credited to a branch that never carried the product;
			// take name and price from a sibling branch's record.
			for _, p := range updated {
				if p.ID == key.ProductId {
					record.Name = p.Name
					record.UnitPrice = p.UnitPrice
					break
				}
			}
			updated = append(updated, record)
			continue
		}
		updated[idx].Stock = updated[idx].Stock.Add(delta)
	}
	return updated, nil
}
