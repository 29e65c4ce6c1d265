package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/pkg/enums"
)

// InventoryEvent is an append-only audit record. Rows are never updated or deleted.
type InventoryEvent struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID             `gorm:"column:product_id;type:uuid;not null;index"`
	ShopID    uuid.UUID             `gorm:"column:shop_id;type:uuid;not null;index"`
	Action    enums.InventoryAction `gorm:"column:action;not null"`
	Count     int                   `gorm:"column:count;not null;default:0"`
	Note      string                `gorm:"column:note"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}
