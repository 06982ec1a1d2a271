package workflow

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/amasijo/bakery_backend/models"
	"github.com/amasijo/bakery_backend/utils"
)

// SetOpeningStock registers a product at a branch with its opening quantity.
// This is the only direct stock write in the system; every later mutation
// goes through the net-delta commit of a sale operation.
func (e *Engine) SetOpeningStock(ctx context.Context, product models.Product) (*models.Product, error) {
	if product.ID == "" {
		return nil, &utils.ValidationError{Field: "id", Message: "product id is required"}
	}
	if product.SourceBranchId == "" {
		return nil, &utils.ValidationError{Field: "source_branch_id", Message: "branch id is required"}
	}
	if product.Stock.IsNegative() {
		return nil, &utils.ValidationError{Field: "stock", Message: "opening stock cannot be negative"}
	}
	if product.UnitPrice.IsNegative() {
		return nil, &utils.ValidationError{Field: "unit_price", Message: "unit price cannot be negative"}
	}

	products, err := e.products().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if idx := models.FindProduct(products, product.SourceBranchId, product.ID); idx >= 0 {
		products[idx] = product
	} else {
		products = append(products, product)
	}
	if err := e.products().SaveAll(ctx, products); err != nil {
		return nil, err
	}
	e.publish(models.CollectionProducts)
	return &product, nil
}

func (e *Engine) ListProducts(ctx context.Context) ([]models.Product, error) {
	return e.products().LoadAll(ctx)
}

// Stock reads the current quantity for one branch/product pair.
func (e *Engine) Stock(ctx context.Context, branchId, productId string) (decimal.Decimal, error) {
	products, err := e.products().LoadAll(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return ReadStock(products, branchId, productId), nil
}
