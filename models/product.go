package models

import (
	"github.com/shopspring/decimal"
)

// Product is one branch's stock record for a product. The same product id
// appears once per branch that carries it. Stock never goes below zero; the
// ledger enforces that at commit time.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Stock          decimal.Decimal `json:"stock"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	SourceBranchId string          `json:"source_branch_id"`
}

// FindProduct returns the index of the stock record for a branch/product
// pair, or -1.
func FindProduct(products []Product, branchId, productId string) int {
	for i := range products {
		if products[i].SourceBranchId == branchId && products[i].ID == productId {
			return i
		}
	}
	return -1
}
