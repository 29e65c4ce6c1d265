package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents one sellable digital listing owned by a shop.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ShopID      uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;index"`
	Title       string          `gorm:"column:title;not null"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	// StockCount is a derived cache maintained by the stock aggregator.
	StockCount int              `gorm:"column:stock_count;not null;default:0"`
	Batches    []InventoryBatch `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Purchasable reports whether buyers may reserve from this product.
func (p Product) Purchasable() bool {
	return p.IsActive
}
