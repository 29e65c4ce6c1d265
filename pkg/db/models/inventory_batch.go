package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/pkg/enums"
)

// InventoryBatch records one upload of newline-delimited inventory for a product.
// Lines below consumed_count are sold; the unsold window is [consumed_count, line_count).
type InventoryBatch struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index:idx_batches_product_created"`
	LineCount     int               `gorm:"column:line_count;not null;default:0"`
	ConsumedCount int               `gorm:"column:consumed_count;not null;default:0"`
	BlobKey       string            `gorm:"column:blob_key;not null"`
	BlobChecksum  string            `gorm:"column:blob_checksum;not null"`
	Status        enums.BatchStatus `gorm:"column:status;not null;default:'available'"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime;index:idx_batches_product_created"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// AvailableCount returns how many unsold lines the batch still holds.
func (b InventoryBatch) AvailableCount() int {
	if remaining := b.LineCount - b.ConsumedCount; remaining > 0 {
		return remaining
	}
	return 0
}
