package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
)

// PurchaseResult is returned to the buyer after a successful reservation.
type PurchaseResult struct {
	OrderID     uuid.UUID       `json:"orderId"`
	OrderItemID uuid.UUID       `json:"orderItemId"`
	DownloadURL string          `json:"downloadUrl"`
	Total       decimal.Decimal `json:"total"`
	StockCount  int             `json:"stockCount"`
}

// OrderItemDTO is one delivered line reference.
type OrderItemDTO struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"productId"`
	DeliveryKey string    `json:"deliveryKey"`
	CreatedAt   time.Time `json:"createdAt"`
}

// OrderDTO is the buyer-facing projection of one order.
type OrderDTO struct {
	ID        uuid.UUID       `json:"id"`
	ShopID    uuid.UUID       `json:"shopId"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Items     []OrderItemDTO  `json:"items"`
	CreatedAt time.Time       `json:"createdAt"`
}

func toOrderDTO(order models.Order) OrderDTO {
	dto := OrderDTO{
		ID:        order.ID,
		ShopID:    order.ShopID,
		Status:    order.Status.String(),
		Total:     order.Total,
		Items:     make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt: order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			DeliveryKey: item.DeliveryKey,
			CreatedAt:   item.CreatedAt,
		})
	}
	return dto
}

// OrderListResult is one page of a buyer's orders.
type OrderListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}
