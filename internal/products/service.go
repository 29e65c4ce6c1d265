package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
)

// Service exposes the storefront read surface over products and shops.
type Service struct {
	repo *Repository
}

// NewService wires the service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetProduct returns one listing. Inactive products are hidden from buyers.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not available")
	}
	dto := toProductDTO(*product)
	return &dto, nil
}

// GetShop returns one shop profile.
func (s *Service) GetShop(ctx context.Context, id uuid.UUID) (*ShopDTO, error) {
	shop, err := s.repo.FindShopByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shop")
	}
	dto := toShopDTO(*shop)
	return &dto, nil
}

// ListShopProducts pages through a shop's listings. Buyers only see active
// products; the owning seller sees everything.
func (s *Service) ListShopProducts(ctx context.Context, shopID uuid.UUID, includeInactive bool, limit int, cursor string) (*ProductListResult, error) {
	page, err := s.repo.ListByShop(ctx, shopID, !includeInactive, limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}
	result := &ProductListResult{
		Products:   make([]ProductDTO, 0, len(page.Products)),
		NextCursor: page.NextCursor,
	}
	for _, product := range page.Products {
		result.Products = append(result.Products, toProductDTO(product))
	}
	return result, nil
}
