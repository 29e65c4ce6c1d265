package inventory

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/enums"
	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
	"github.com/keylinehq/keyline-backend/pkg/logger"
)

// ProductFinder is the minimal product lookup the inventory surface needs.
type ProductFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service is the seller- and buyer-facing facade over the inventory engine.
type Service struct {
	repo        *Repository
	events      *EventRepository
	reservation *ReservationEngine
	mutation    *MutationEngine
	streamer    *Streamer
	aggregator  *Aggregator
	products    ProductFinder
	logg        *logger.Logger
}

// NewService wires the facade.
func NewService(
	repo *Repository,
	events *EventRepository,
	reservation *ReservationEngine,
	mutation *MutationEngine,
	streamer *Streamer,
	aggregator *Aggregator,
	products ProductFinder,
	logg *logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		events:      events,
		reservation: reservation,
		mutation:    mutation,
		streamer:    streamer,
		aggregator:  aggregator,
		products:    products,
		logg:        logg,
	}
}

// Upload validates and stores a new inventory batch for a product the shop owns.
func (s *Service) Upload(ctx context.Context, shopID, productID uuid.UUID, filename string, content []byte) (*UploadResult, error) {
	if _, err := s.requireOwnedProduct(ctx, shopID, productID); err != nil {
		return nil, err
	}

	batch, err := s.mutation.Upload(ctx, productID, shopID, filename, content)
	if err != nil {
		return nil, err
	}

	stock, err := s.repo.SumAvailable(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing available stock")
	}
	return &UploadResult{Inventory: toBatchDTO(*batch), StockCount: stock}, nil
}

// Delete removes unsold lines by count or by line/key targets.
func (s *Service) Delete(ctx context.Context, shopID, productID uuid.UUID, input DeleteInput) (*DeleteResult, error) {
	if _, err := s.requireOwnedProduct(ctx, shopID, productID); err != nil {
		return nil, err
	}
	if len(input.Lines) > 0 && input.Count > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provide either lines or count, not both")
	}

	var removed int
	var err error
	if len(input.Lines) > 0 {
		removed, err = s.mutation.DeleteByKeys(ctx, productID, shopID, input.Lines)
	} else {
		removed, err = s.mutation.DeleteByCount(ctx, productID, shopID, input.Count)
	}
	if err != nil {
		return nil, err
	}

	stock, err := s.repo.SumAvailable(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing available stock")
	}
	return &DeleteResult{Removed: removed, StockCount: stock}, nil
}

// Export streams the product's lines to w and returns the attachment
// filename plus the number of lines written.
func (s *Service) Export(ctx context.Context, w io.Writer, shopID, productID uuid.UUID, opts ExportOptions) (string, int, error) {
	if _, err := s.requireOwnedProduct(ctx, shopID, productID); err != nil {
		return "", 0, err
	}
	total, err := s.streamer.Stream(ctx, w, productID, shopID, opts)
	if err != nil {
		return "", total, err
	}
	return ExportFilename(productID, opts), total, nil
}

// Lines returns the seller listing of a product's lines.
func (s *Service) Lines(ctx context.Context, shopID, productID uuid.UUID, scope enums.ExportScope) ([]LineView, error) {
	if _, err := s.requireOwnedProduct(ctx, shopID, productID); err != nil {
		return nil, err
	}
	return s.streamer.Lines(ctx, productID, scope)
}

// ListBatches returns every batch of the product oldest-first.
func (s *Service) ListBatches(ctx context.Context, shopID, productID uuid.UUID) ([]BatchDTO, error) {
	if _, err := s.requireOwnedProduct(ctx, shopID, productID); err != nil {
		return nil, err
	}
	batches, err := s.repo.ListBatches(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing inventory batches")
	}
	dtos := make([]BatchDTO, 0, len(batches))
	for _, batch := range batches {
		dtos = append(dtos, toBatchDTO(batch))
	}
	return dtos, nil
}

// History pages through the shop's audit log, optionally narrowed to one product.
func (s *Service) History(ctx context.Context, shopID, productID uuid.UUID, limit int, cursor string) (*HistoryResult, error) {
	var page *EventPage
	var err error
	if productID != uuid.Nil {
		if _, gateErr := s.requireOwnedProduct(ctx, shopID, productID); gateErr != nil {
			return nil, gateErr
		}
		page, err = s.events.ListByProduct(ctx, productID, limit, cursor)
	} else {
		page, err = s.events.ListByShop(ctx, shopID, limit, cursor)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing inventory history")
	}
	return toHistoryResult(page), nil
}

// Reserve claims one line for a purchase. The product must exist and be
// purchasable; the claim itself is delegated to the reservation engine.
func (s *Service) Reserve(ctx context.Context, productID uuid.UUID) (*Claim, *models.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if !product.Purchasable() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not available for purchase")
	}

	claim, err := s.reservation.Reserve(ctx, productID)
	if err != nil {
		if reservationAdvancedCounter(err) {
			if aggErr := s.aggregator.Recompute(ctx, productID, product.ShopID); aggErr != nil {
				s.logg.Error(ctx, "recomputing stock after failed reservation", aggErr)
			}
		}
		return nil, nil, err
	}

	if aggErr := s.aggregator.Recompute(ctx, productID, product.ShopID); aggErr != nil {
		s.logg.Error(ctx, "recomputing stock after reservation", aggErr)
	}
	return claim, product, nil
}

// reservationAdvancedCounter reports whether a failed reservation still won
// the conditional update. These codes are only produced after the claim
// succeeded, so consumed_count has moved and the cached stock counters must
// be refreshed before the error surfaces.
func reservationAdvancedCounter(err error) bool {
	return pkgerrors.HasCode(err, pkgerrors.CodeInventoryMissing) ||
		pkgerrors.HasCode(err, pkgerrors.CodeInventoryInvalid) ||
		pkgerrors.HasCode(err, pkgerrors.CodeDependency)
}

// StockCount returns the live unsold total for a product.
func (s *Service) StockCount(ctx context.Context, productID uuid.UUID) (int, error) {
	return s.repo.SumAvailable(ctx, productID)
}

func (s *Service) requireOwnedProduct(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if product.ShopID != shopID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another shop")
	}
	return product, nil
}
