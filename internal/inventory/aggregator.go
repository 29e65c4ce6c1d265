package inventory

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/logger"
)

// Aggregator maintains the derived stock counters on Product and Shop.
// Both counters are caches over batch state: each recompute runs a full
// SUM rather than applying a delta, so interleaved writers converge on
// the correct value once the last one finishes.
type Aggregator struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewAggregator builds an aggregator tied to the provided GORM DB.
func NewAggregator(db *gorm.DB, logg *logger.Logger) *Aggregator {
	return &Aggregator{db: db, logg: logg}
}

// Recompute refreshes Product.stock_count then Shop.stock_count. Both sums
// are attempted even if the first fails, so one wedged counter cannot stall
// the other.
func (a *Aggregator) Recompute(ctx context.Context, productID, shopID uuid.UUID) error {
	err := multierr.Combine(
		a.recomputeProduct(ctx, productID),
		a.recomputeShop(ctx, shopID),
	)
	if err != nil && a.logg != nil {
		a.logg.Error(ctx, "stock counter recompute failed", err)
	}
	return err
}

func (a *Aggregator) recomputeProduct(ctx context.Context, productID uuid.UUID) error {
	return a.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_count", a.db.
			Model(&models.InventoryBatch{}).
			Where("product_id = ?", productID).
			Select("COALESCE(SUM(line_count - consumed_count), 0)"),
		).Error
}

func (a *Aggregator) recomputeShop(ctx context.Context, shopID uuid.UUID) error {
	return a.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("id = ?", shopID).
		Update("stock_count", a.db.
			Model(&models.Product{}).
			Where("shop_id = ?", shopID).
			Select("COALESCE(SUM(stock_count), 0)"),
		).Error
}
