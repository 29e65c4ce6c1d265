package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keylinehq/keyline-backend/pkg/enums"
)

// Order is created by a successful purchase. Payment settlement is handled upstream.
type Order struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID   uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	ShopID    uuid.UUID         `gorm:"column:shop_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	Total     decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Items     []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem links one delivered inventory line to its order. DeliveryKey points
// at a fresh immutable blob holding exactly the claimed line.
type OrderItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	BatchID     uuid.UUID `gorm:"column:batch_id;type:uuid;not null"`
	LineIndex   int       `gorm:"column:line_index;not null"`
	DeliveryKey string    `gorm:"column:delivery_key;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
