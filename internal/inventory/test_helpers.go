package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/enums"
	"github.com/keylinehq/keyline-backend/pkg/logger"
	"github.com/keylinehq/keyline-backend/pkg/storage"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:inventory_%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// A single connection serializes concurrent writers; sqlite's shared
	// cache otherwise surfaces table-lock errors the production Postgres
	// stack never sees.
	if sqlDB, err := conn.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := conn.AutoMigrate(
		&models.Shop{},
		&models.Product{},
		&models.InventoryBatch{},
		&models.InventoryEvent{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return conn
}

type testStack struct {
	db          *gorm.DB
	logg        *logger.Logger
	store       *storage.Memory
	repo        *Repository
	events      *EventRepository
	aggregator  *Aggregator
	reservation *ReservationEngine
	mutation    *MutationEngine
	streamer    *Streamer
	service     *Service
}

type productFinder struct {
	db *gorm.DB
}

func (f productFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := f.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := openTestDB(t)
	store := storage.NewMemory()
	logg := logger.New(logger.Options{ServiceName: "inventory-test", Level: zerolog.ErrorLevel})

	repo := NewRepository(db)
	events := NewEventRepository(db)
	aggregator := NewAggregator(db, logg)
	reservation := NewReservationEngine(repo, store, logg, nil, 0)
	mutation := NewMutationEngine(repo, events, aggregator, store, logg, nil, 0, 0)
	streamer := NewStreamer(repo, events, store, logg)
	service := NewService(repo, events, reservation, mutation, streamer, aggregator, productFinder{db: db}, logg)

	return &testStack{
		db:          db,
		logg:        logg,
		store:       store,
		repo:        repo,
		events:      events,
		aggregator:  aggregator,
		reservation: reservation,
		mutation:    mutation,
		streamer:    streamer,
		service:     service,
	}
}

func mustCreateTestShop(t *testing.T, db *gorm.DB) *models.Shop {
	t.Helper()
	shop := &models.Shop{
		ID:      uuid.New(),
		Name:    "Test Shop",
		OwnerID: uuid.New(),
		Status:  enums.ShopStatusActive,
	}
	if err := db.Create(shop).Error; err != nil {
		t.Fatalf("create shop: %v", err)
	}
	return shop
}

func mustCreateTestProduct(t *testing.T, db *gorm.DB, shopID uuid.UUID) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		ShopID:   shopID,
		Title:    "Test Product",
		Price:    decimal.NewFromFloat(9.99),
		IsActive: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func mustUpload(t *testing.T, stack *testStack, shopID, productID uuid.UUID, lines ...string) *UploadResult {
	t.Helper()
	result, err := stack.service.Upload(context.Background(), shopID, productID, "batch.txt", []byte(JoinLines(lines)))
	if err != nil {
		t.Fatalf("upload batch: %v", err)
	}
	return result
}

func fetchBatch(t *testing.T, stack *testStack, batchID uuid.UUID) *models.InventoryBatch {
	t.Helper()
	batch, err := stack.repo.FindBatch(context.Background(), batchID)
	if err != nil {
		t.Fatalf("fetch batch: %v", err)
	}
	return batch
}

func fetchStock(t *testing.T, db *gorm.DB, productID uuid.UUID) (productStock int, shopStock int) {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("fetch product: %v", err)
	}
	var shop models.Shop
	if err := db.First(&shop, "id = ?", product.ShopID).Error; err != nil {
		t.Fatalf("fetch shop: %v", err)
	}
	return product.StockCount, shop.StockCount
}
