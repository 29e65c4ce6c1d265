package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
)

// BatchDTO is the seller-facing projection of one inventory batch.
type BatchDTO struct {
	ID             uuid.UUID `json:"id"`
	LineCount      int       `json:"lineCount"`
	ConsumedCount  int       `json:"consumedCount"`
	AvailableCount int       `json:"availableCount"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toBatchDTO(batch models.InventoryBatch) BatchDTO {
	return BatchDTO{
		ID:             batch.ID,
		LineCount:      batch.LineCount,
		ConsumedCount:  batch.ConsumedCount,
		AvailableCount: batch.AvailableCount(),
		Status:         batch.Status.String(),
		CreatedAt:      batch.CreatedAt,
		UpdatedAt:      batch.UpdatedAt,
	}
}

// UploadResult is returned after a successful batch upload.
type UploadResult struct {
	Inventory  BatchDTO `json:"inventory"`
	StockCount int      `json:"stockCount"`
}

// DeleteInput carries either a target count or a target line/key set.
// Exactly one of the two must be populated.
type DeleteInput struct {
	Lines []string `json:"lines"`
	Count int      `json:"count"`
}

// DeleteResult is returned after a successful deletion.
type DeleteResult struct {
	Removed    int `json:"removed"`
	StockCount int `json:"stockCount"`
}

// EventDTO is one audit log entry.
type EventDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Action    string    `json:"action"`
	Count     int       `json:"count"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryResult is one page of audit history.
type HistoryResult struct {
	Events     []EventDTO `json:"events"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

func toHistoryResult(page *EventPage) *HistoryResult {
	result := &HistoryResult{
		Events:     make([]EventDTO, 0, len(page.Events)),
		NextCursor: page.NextCursor,
	}
	for _, event := range page.Events {
		result.Events = append(result.Events, EventDTO{
			ID:        event.ID,
			ProductID: event.ProductID,
			Action:    event.Action.String(),
			Count:     event.Count,
			Note:      event.Note,
			CreatedAt: event.CreatedAt,
		})
	}
	return result
}
