package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/pagination"
)

// Repository owns Product and Shop reads for the storefront surface.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindShopByID loads the shop row.
func (r *Repository) FindShopByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// ProductPage is one cursor page of a shop's listings.
type ProductPage struct {
	Products   []models.Product
	NextCursor string
}

// ListByShop returns the shop's products, newest-first, optionally restricted
// to active listings.
func (r *Repository) ListByShop(ctx context.Context, shopID uuid.UUID, activeOnly bool, limit int, cursor string) (*ProductPage, error) {
	limit = pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("shop_id = ?", shopID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	parsed, err := pagination.ParseCursor(cursor)
	if err != nil {
		return nil, err
	}
	if parsed != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			parsed.CreatedAt, parsed.CreatedAt, parsed.ID,
		)
	}

	var items []models.Product
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&items).Error; err != nil {
		return nil, err
	}

	page := &ProductPage{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	page.Products = items
	return page, nil
}
