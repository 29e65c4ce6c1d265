package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/enums"
	"github.com/keylinehq/keyline-backend/pkg/pagination"
)

// EventRepository appends to and reads the inventory audit log. Rows are
// append-only: there is deliberately no update or delete surface here.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository builds an event repository tied to the provided GORM DB.
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// WithTx returns an event repository bound to the provided transaction.
func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	return &EventRepository{db: tx}
}

// Append records one audit event.
func (r *EventRepository) Append(ctx context.Context, productID, shopID uuid.UUID, action enums.InventoryAction, count int, note string) error {
	event := models.InventoryEvent{
		ID:        uuid.New(),
		ProductID: productID,
		ShopID:    shopID,
		Action:    action,
		Count:     count,
		Note:      note,
	}
	return r.db.WithContext(ctx).Create(&event).Error
}

// EventPage is one page of audit history, newest-first.
type EventPage struct {
	Events     []models.InventoryEvent
	NextCursor string
}

// ListByProduct returns a cursor page of the product's audit history.
func (r *EventRepository) ListByProduct(ctx context.Context, productID uuid.UUID, limit int, cursor string) (*EventPage, error) {
	return r.list(ctx, "product_id = ?", productID, limit, cursor)
}

// ListByShop returns a cursor page of the shop's audit history.
func (r *EventRepository) ListByShop(ctx context.Context, shopID uuid.UUID, limit int, cursor string) (*EventPage, error) {
	return r.list(ctx, "shop_id = ?", shopID, limit, cursor)
}

func (r *EventRepository) list(ctx context.Context, condition string, id uuid.UUID, limit int, cursor string) (*EventPage, error) {
	limit = pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Model(&models.InventoryEvent{}).
		Where(condition, id)

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

	var events []models.InventoryEvent
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&events).Error; err != nil {
		return nil, err
	}

	page := &EventPage{}
	if len(events) > limit {
		events = events[:limit]
		last := events[len(events)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	page.Events = events
	return page, nil
}
