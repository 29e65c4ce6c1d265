package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keylinehq/keyline-backend/api/controllers"
	"github.com/keylinehq/keyline-backend/api/middleware"
	"github.com/keylinehq/keyline-backend/internal/inventory"
	"github.com/keylinehq/keyline-backend/internal/orders"
	"github.com/keylinehq/keyline-backend/internal/products"
	"github.com/keylinehq/keyline-backend/pkg/config"
	"github.com/keylinehq/keyline-backend/pkg/enums"
	"github.com/keylinehq/keyline-backend/pkg/logger"
	"github.com/keylinehq/keyline-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient controllers.Pinger,
	blobClient controllers.Pinger,
	redisClient *redis.Client,
	productService *products.Service,
	inventoryService *inventory.Service,
	orderService *orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbClient,
			"storage":  blobClient,
			"redis":    pingerOrNil(redisClient),
		}))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/v1/products/{productID}", controllers.GetProduct(productService, logg))
		r.Route("/v1/shops/{shopID}", func(r chi.Router) {
			r.Get("/", controllers.GetShop(productService, logg))
			r.Get("/products", controllers.ListShopProducts(productService, logg))
		})
	})

	purchasePolicy := middleware.NewRateLimitPolicy(
		"purchase",
		cfg.RateLimit.PurchaseWindow,
		cfg.RateLimit.PurchaseIPLimit,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/ping", controllers.PrivatePing())

		r.Group(func(r chi.Router) {
			if redisClient != nil {
				r.Use(middleware.RateLimit(purchasePolicy, redisClient, logg))
			}
			r.Post("/v1/purchases", controllers.CreatePurchase(orderService, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(orderService, logg))
			r.Get("/{orderID}", controllers.GetOrder(orderService, logg))
			r.Get("/{orderID}/items/{itemID}/download", controllers.OrderItemDownload(orderService, logg))
		})

		r.Route("/v1/seller", func(r chi.Router) {
			r.Use(
				middleware.RequireRole(string(enums.ActorRoleSeller), logg),
				middleware.ShopContext(logg),
			)

			r.Route("/products/{productID}/inventory", func(r chi.Router) {
				r.Post("/", controllers.UploadInventory(inventoryService, cfg.Inventory.MaxUploadBytes, logg))
				r.Delete("/", controllers.DeleteInventory(inventoryService, logg))
				r.Get("/batches", controllers.ListInventoryBatches(inventoryService, logg))
				r.Get("/lines", controllers.ListInventoryLines(inventoryService, logg))
				r.Get("/export", controllers.ExportInventory(inventoryService, logg))
				r.Get("/history", controllers.InventoryHistory(inventoryService, logg))
			})
			r.Get("/inventory/history", controllers.InventoryHistory(inventoryService, logg))
		})
	})

	return r
}

// pingerOrNil keeps a nil *redis.Client from becoming a non-nil Pinger.
func pingerOrNil(client *redis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}
