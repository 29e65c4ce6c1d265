package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:orders_repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderItem{}))
	return db
}

func makeOrder(t *testing.T, db *gorm.DB, buyerID uuid.UUID, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:      uuid.New(),
		BuyerID: buyerID,
		ShopID:  uuid.New(),
		Status:  enums.OrderStatusPaid,
		Total:   decimal.NewFromFloat(1.50),
		Items: []models.OrderItem{{
			ID:          uuid.New(),
			ProductID:   uuid.New(),
			BatchID:     uuid.New(),
			LineIndex:   0,
			DeliveryKey: "deliveries/" + uuid.NewString() + ".txt",
		}},
	}
	require.NoError(t, db.Create(order).Error)
	require.NoError(t, db.Model(order).Update("created_at", createdAt).Error)
	order.CreatedAt = createdAt
	return order
}

func TestFindOrderPreloadsItems(t *testing.T) {
	ctx := context.Background()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	created := makeOrder(t, db, uuid.New(), time.Now())

	found, err := repo.FindOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, created.Items[0].DeliveryKey, found.Items[0].DeliveryKey)
}

func TestListBuyerOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	buyerID := uuid.New()

	base := time.Now().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		order := makeOrder(t, db, buyerID, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, order.ID)
	}
	makeOrder(t, db, uuid.New(), base) // another buyer, must not appear

	list, err := repo.ListBuyerOrders(ctx, buyerID, 10, "")
	require.NoError(t, err)
	require.Len(t, list.Orders, 3)
	assert.Empty(t, list.NextCursor)
	assert.Equal(t, ids[2], list.Orders[0].ID)
	assert.Equal(t, ids[0], list.Orders[2].ID)
}

func TestListBuyerOrdersPaginates(t *testing.T) {
	ctx := context.Background()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	buyerID := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		makeOrder(t, db, buyerID, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := repo.ListBuyerOrders(ctx, buyerID, 3, "")
	require.NoError(t, err)
	require.Len(t, first.Orders, 3)
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.ListBuyerOrders(ctx, buyerID, 3, first.NextCursor)
	require.NoError(t, err)
	require.Len(t, second.Orders, 2)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, order := range append(first.Orders, second.Orders...) {
		assert.False(t, seen[order.ID], "order %s appeared twice", order.ID)
		seen[order.ID] = true
	}
}

func TestWithTxSharesTransaction(t *testing.T) {
	ctx := context.Background()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := repo.WithTx(tx).CreateOrder(ctx, &models.Order{
			ID:      uuid.New(),
			BuyerID: uuid.New(),
			ShopID:  uuid.New(),
			Status:  enums.OrderStatusPaid,
			Total:   decimal.NewFromFloat(1.00),
		})
		require.NoError(t, err)
		return fmt.Errorf("force rollback")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "rolled back order must not persist")
}
