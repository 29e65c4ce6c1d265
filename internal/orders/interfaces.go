package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/internal/inventory"
	"github.com/keylinehq/keyline-backend/pkg/db/models"
)

// Reserver is the slice of the inventory engine the purchase flow consumes.
type Reserver interface {
	Reserve(ctx context.Context, productID uuid.UUID) (*inventory.Claim, *models.Product, error)
	StockCount(ctx context.Context, productID uuid.UUID) (int, error)
}
