package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/enums"
)

// Repository owns InventoryBatch persistence, including the conditional
// update that is the system's only concurrency-control primitive.
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

// CreateBatch inserts a new batch row.
func (r *Repository) CreateBatch(ctx context.Context, batch *models.InventoryBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// FindBatch loads one batch by id.
func (r *Repository) FindBatch(ctx context.Context, id uuid.UUID) (*models.InventoryBatch, error) {
	var batch models.InventoryBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindOldestAvailable returns the oldest batch that still has unsold lines,
// or nil when the product has none.
func (r *Repository) FindOldestAvailable(ctx context.Context, productID uuid.UUID) (*models.InventoryBatch, error) {
	var batch models.InventoryBatch
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ? AND line_count > consumed_count", productID, enums.BatchStatusAvailable).
		Order("created_at ASC, id ASC").
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ClaimNext attempts to advance consumed_count from expectedConsumed to
// expectedConsumed+1 on exactly one row. It returns true only when this
// caller won the line at index expectedConsumed.
func (r *Repository) ClaimNext(ctx context.Context, batchID uuid.UUID, expectedConsumed int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("id = ? AND consumed_count = ? AND line_count > consumed_count", batchID, expectedConsumed).
		Updates(map[string]any{
			"consumed_count": expectedConsumed + 1,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkSoldOut flips the batch to sold_out once every line is consumed. The
// condition keeps a stale caller from closing a batch that was rewritten.
func (r *Repository) MarkSoldOut(ctx context.Context, batchID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("id = ? AND consumed_count >= line_count", batchID).
		Update("status", enums.BatchStatusSoldOut).Error
}

// ListBatches returns every batch of the product oldest-first.
func (r *Repository) ListBatches(ctx context.Context, productID uuid.UUID) ([]models.InventoryBatch, error) {
	var batches []models.InventoryBatch
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// CurrentConsumed re-reads just the consumed counter for one batch.
func (r *Repository) CurrentConsumed(ctx context.Context, batchID uuid.UUID) (int, error) {
	var consumed int
	err := r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("id = ?", batchID).
		Pluck("consumed_count", &consumed).Error
	if err != nil {
		return 0, err
	}
	return consumed, nil
}

// RewriteBatch replaces the batch metadata after its blob was rewritten.
// The sold prefix was dropped from the body, so the consumed counter resets
// to zero and the batch becomes available again.
func (r *Repository) RewriteBatch(ctx context.Context, batchID uuid.UUID, lineCount int, blobChecksum string) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]any{
			"line_count":     lineCount,
			"consumed_count": 0,
			"blob_checksum":  blobChecksum,
			"status":         enums.BatchStatusAvailable,
			"updated_at":     time.Now().UTC(),
		}).Error
}

// DeleteBatch removes an emptied batch row.
func (r *Repository) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.InventoryBatch{}, "id = ?", batchID).Error
}

// SumAvailable computes the live unsold-line total across the product's batches.
func (r *Repository) SumAvailable(ctx context.Context, productID uuid.UUID) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("product_id = ?", productID).
		Select("SUM(line_count - consumed_count)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
