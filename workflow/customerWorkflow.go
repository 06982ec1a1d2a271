package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/amasijo/bakery_backend/models"
)

func (e *Engine) CreateCustomer(ctx context.Context, input *models.NewCustomer) (*models.Customer, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	customers, err := e.customers().LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	customer := models.Customer{
		ID:    uuid.NewString(),
		Name:  input.Name,
		Phone: input.Phone,
		Email: input.Email,
	}
	customers = append(customers, customer)
	if err := e.customers().SaveAll(ctx, customers); err != nil {
		return nil, err
	}
	e.publish(models.CollectionCustomers)
	return &customer, nil
}

func (e *Engine) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return e.customers().LoadAll(ctx)
}
