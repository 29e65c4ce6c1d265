package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/keylinehq/keyline-backend/pkg/enums"
)

// Shop represents the canonical seller tenant.
type Shop struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name        string           `gorm:"column:name;not null"`
	Description *string          `gorm:"column:description"`
	OwnerID     uuid.UUID        `gorm:"column:owner_id;type:uuid;not null"`
	Status      enums.ShopStatus `gorm:"column:status;not null;default:'active'"`
	Categories  pq.StringArray   `gorm:"column:categories;type:text[]"`
	// StockCount is a derived cache maintained by the stock aggregator.
	StockCount int       `gorm:"column:stock_count;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
