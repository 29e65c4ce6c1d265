package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/enums"
	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
	"github.com/keylinehq/keyline-backend/pkg/logger"
	"github.com/keylinehq/keyline-backend/pkg/storage"
)

// DefaultDownloadTTL bounds how long a delivery download link stays valid.
const DefaultDownloadTTL = 15 * time.Minute

const deliveryContentType = "text/plain; charset=utf-8"

// Service orchestrates the buyer purchase flow: reserve one line, persist an
// immutable delivery copy, record the order, and hand back a download link.
type Service struct {
	repo        Repository
	reserver    Reserver
	store       storage.Store
	signer      storage.URLSigner
	logg        *logger.Logger
	downloadTTL time.Duration
}

// NewService wires the purchase service. A non-positive TTL falls back to the
// default.
func NewService(repo Repository, reserver Reserver, store storage.Store, signer storage.URLSigner, logg *logger.Logger, downloadTTL time.Duration) *Service {
	if downloadTTL <= 0 {
		downloadTTL = DefaultDownloadTTL
	}
	return &Service{
		repo:        repo,
		reserver:    reserver,
		store:       store,
		signer:      signer,
		logg:        logg,
		downloadTTL: downloadTTL,
	}
}

// Purchase buys exactly one unit of the product. The delivery blob is written
// before the order row: a crash in between loses the unit from sale but can
// never hand two buyers the same line.
func (s *Service) Purchase(ctx context.Context, buyerID, productID uuid.UUID) (*PurchaseResult, error) {
	claim, product, err := s.reserver.Reserve(ctx, productID)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	deliveryKey := fmt.Sprintf("deliveries/%s/%s.txt", orderID, uuid.NewString())
	if err := s.store.Put(ctx, deliveryKey, []byte(claim.Line), deliveryContentType); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "writing delivery blob")
	}

	order := &models.Order{
		ID:      orderID,
		BuyerID: buyerID,
		ShopID:  product.ShopID,
		Status:  enums.OrderStatusPaid,
		Total:   product.Price,
		Items: []models.OrderItem{{
			ID:          uuid.New(),
			ProductID:   productID,
			BatchID:     claim.BatchID,
			LineIndex:   claim.LineIndex,
			DeliveryKey: deliveryKey,
		}},
	}
	if _, err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting order")
	}

	downloadURL, err := s.signer.PresignGet(deliveryKey, s.downloadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "signing download url")
	}

	stock, err := s.reserver.StockCount(ctx, productID)
	if err != nil {
		s.logg.Error(ctx, "reading stock after purchase", err)
		stock = 0
	}

	return &PurchaseResult{
		OrderID:     order.ID,
		OrderItemID: order.Items[0].ID,
		DownloadURL: downloadURL,
		Total:       order.Total,
		StockCount:  stock,
	}, nil
}

// GetOrder returns one of the buyer's orders.
func (s *Service) GetOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	dto := toOrderDTO(*order)
	return &dto, nil
}

// DownloadURL re-signs the delivery link for a previously purchased item.
func (s *Service) DownloadURL(ctx context.Context, buyerID, orderID, itemID uuid.UUID) (string, error) {
	order, err := s.GetOrder(ctx, buyerID, orderID)
	if err != nil {
		return "", err
	}
	for _, item := range order.Items {
		if item.ID == itemID {
			url, signErr := s.signer.PresignGet(item.DeliveryKey, s.downloadTTL)
			if signErr != nil {
				return "", pkgerrors.Wrap(pkgerrors.CodeDependency, signErr, "signing download url")
			}
			return url, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
}

// ListOrders pages through the buyer's purchase history.
func (s *Service) ListOrders(ctx context.Context, buyerID uuid.UUID, limit int, cursor string) (*OrderListResult, error) {
	list, err := s.repo.ListBuyerOrders(ctx, buyerID, limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	result := &OrderListResult{
		Orders:     make([]OrderDTO, 0, len(list.Orders)),
		NextCursor: list.NextCursor,
	}
	for _, order := range list.Orders {
		result.Orders = append(result.Orders, toOrderDTO(order))
	}
	return result, nil
}
