package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
)

// ProductDTO is the buyer-facing projection of a listing.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	ShopID      uuid.UUID       `json:"shopId"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsActive    bool            `json:"isActive"`
	StockCount  int             `json:"stockCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func toProductDTO(product models.Product) ProductDTO {
	return ProductDTO{
		ID:          product.ID,
		ShopID:      product.ShopID,
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
		IsActive:    product.IsActive,
		StockCount:  product.StockCount,
		CreatedAt:   product.CreatedAt,
	}
}

// ShopDTO is the buyer-facing projection of a shop.
type ShopDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Status      string    `json:"status"`
	Categories  []string  `json:"categories,omitempty"`
	StockCount  int       `json:"stockCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toShopDTO(shop models.Shop) ShopDTO {
	return ShopDTO{
		ID:          shop.ID,
		Name:        shop.Name,
		Description: shop.Description,
		Status:      shop.Status.String(),
		Categories:  shop.Categories,
		StockCount:  shop.StockCount,
		CreatedAt:   shop.CreatedAt,
	}
}

// ProductListResult is one page of listings.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"nextCursor,omitempty"`
}
