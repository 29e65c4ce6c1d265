package inventory

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/pkg/enums"
	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
)

// Full seller/buyer walkthrough: upload three lines, sell one, delete one by
// key, and verify counters plus blob content at each step.
func TestInventoryLifecycle(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	shop := mustCreateTestShop(t, stack.db)
	product := mustCreateTestProduct(t, stack.db, shop.ID)

	upload, err := stack.service.Upload(ctx, shop.ID, product.ID, "codes.txt", []byte("a|1\nb|2\nc|3"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if upload.StockCount != 3 || upload.Inventory.LineCount != 3 || upload.Inventory.AvailableCount != 3 {
		t.Fatalf("unexpected upload result %+v", upload)
	}

	claim, _, err := stack.service.Reserve(ctx, product.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if claim.Line != "a|1" {
		t.Fatalf("expected first line, got %q", claim.Line)
	}
	if stock, _ := stack.service.StockCount(ctx, product.ID); stock != 2 {
		t.Fatalf("expected stock 2 after sale, got %d", stock)
	}
	if batch := fetchBatch(t, stack, upload.Inventory.ID); batch.ConsumedCount != 1 {
		t.Fatalf("expected consumed 1, got %d", batch.ConsumedCount)
	}

	deletion, err := stack.service.Delete(ctx, shop.ID, product.ID, DeleteInput{Lines: []string{"b"}})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deletion.Removed != 1 || deletion.StockCount != 1 {
		t.Fatalf("unexpected delete result %+v", deletion)
	}

	batch := fetchBatch(t, stack, upload.Inventory.ID)
	if batch.LineCount != 1 || batch.ConsumedCount != 0 {
		t.Fatalf("unexpected counters line=%d consumed=%d", batch.LineCount, batch.ConsumedCount)
	}
	body, err := stack.store.GetText(ctx, batch.BlobKey)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if body != "c|3" {
		t.Fatalf("unexpected remaining blob %q", body)
	}

	productStock, shopStock := fetchStock(t, stack.db, product.ID)
	if productStock != 1 || shopStock != 1 {
		t.Fatalf("expected cached counters 1/1, got %d/%d", productStock, shopStock)
	}
}

func TestServiceRejectsForeignProduct(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	shop := mustCreateTestShop(t, stack.db)
	otherShop := mustCreateTestShop(t, stack.db)
	product := mustCreateTestProduct(t, stack.db, otherShop.ID)

	_, err := stack.service.Upload(ctx, shop.ID, product.ID, "codes.txt", []byte("a|1"))
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestServiceUnknownProduct(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	shop := mustCreateTestShop(t, stack.db)

	_, err := stack.service.Upload(ctx, shop.ID, uuid.New(), "codes.txt", []byte("a|1"))
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestReserveInactiveProductUnavailable(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	shop := mustCreateTestShop(t, stack.db)
	product := mustCreateTestProduct(t, stack.db, shop.ID)
	mustUpload(t, stack, shop.ID, product.ID, "a|1")

	if err := stack.db.Model(product).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product: %v", err)
	}

	_, _, err := stack.service.Reserve(ctx, product.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeProductUnavailable) {
		t.Fatalf("expected PRODUCT_UNAVAILABLE, got %v", err)
	}
}

// A claim that wins the conditional update but cannot be resolved from the
// blob still consumes the line. The cached counters must reflect that before
// the desync error reaches the buyer.
func TestReserveRecomputesCountersOnResolveFailure(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	shop := mustCreateTestShop(t, stack.db)
	product := mustCreateTestProduct(t, stack.db, shop.ID)

	upload := mustUpload(t, stack, shop.ID, product.ID, "a|1", "b|2")
	if productStock, shopStock := fetchStock(t, stack.db, product.ID); productStock != 2 || shopStock != 2 {
		t.Fatalf("expected cached counters 2/2 after upload, got %d/%d", productStock, shopStock)
	}

	batch := fetchBatch(t, stack, upload.Inventory.ID)
	if err := stack.store.Delete(ctx, batch.BlobKey); err != nil {
		t.Fatalf("delete blob: %v", err)
	}

	_, _, err := stack.service.Reserve(ctx, product.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInventoryMissing) {
		t.Fatalf("expected INVENTORY_MISSING, got %v", err)
	}

	if batch := fetchBatch(t, stack, upload.Inventory.ID); batch.ConsumedCount != 1 {
		t.Fatalf("expected consumed 1 after failed resolve, got %d", batch.ConsumedCount)
	}
	productStock, shopStock := fetchStock(t, stack.db, product.ID)
	if productStock != 1 || shopStock != 1 {
		t.Fatalf("expected cached counters 1/1 after failed resolve, got %d/%d", productStock, shopStock)
	}
}

func TestDeleteRejectsAmbiguousInput(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	shop := mustCreateTestShop(t, stack.db)
	product := mustCreateTestProduct(t, stack.db, shop.ID)
	mustUpload(t, stack, shop.ID, product.ID, "a|1")

	_, err := stack.service.Delete(ctx, shop.ID, product.ID, DeleteInput{Lines: []string{"a"}, Count: 1})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = stack.service.Delete(ctx, shop.ID, product.ID, DeleteInput{})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty input, got %v", err)
	}
}

func TestServiceExportAndFilename(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	shop := mustCreateTestShop(t, stack.db)
	product := mustCreateTestProduct(t, stack.db, shop.ID)
	mustUpload(t, stack, shop.ID, product.ID, "a|1", "b|2")

	var buf bytes.Buffer
	filename, total, err := stack.service.Export(ctx, &buf, shop.ID, product.ID, ExportOptions{
		Scope:  enums.ExportScopeAll,
		Format: enums.ExportFormatTxt,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 lines, got %d", total)
	}
	if filename != ExportFilename(product.ID, ExportOptions{Scope: enums.ExportScopeAll}) {
		t.Fatalf("unexpected filename %q", filename)
	}
}

func TestServiceHistoryScopes(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	shop := mustCreateTestShop(t, stack.db)
	productA := mustCreateTestProduct(t, stack.db, shop.ID)
	productB := mustCreateTestProduct(t, stack.db, shop.ID)

	mustUpload(t, stack, shop.ID, productA.ID, "a|1")
	mustUpload(t, stack, shop.ID, productB.ID, "b|1")

	shopWide, err := stack.service.History(ctx, shop.ID, uuid.Nil, 10, "")
	if err != nil {
		t.Fatalf("shop history: %v", err)
	}
	if len(shopWide.Events) != 2 {
		t.Fatalf("expected 2 shop events, got %d", len(shopWide.Events))
	}

	perProduct, err := stack.service.History(ctx, shop.ID, productA.ID, 10, "")
	if err != nil {
		t.Fatalf("product history: %v", err)
	}
	if len(perProduct.Events) != 1 || perProduct.Events[0].ProductID != productA.ID {
		t.Fatalf("unexpected product history %+v", perProduct.Events)
	}
}

func TestServiceListBatches(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	shop := mustCreateTestShop(t, stack.db)
	product := mustCreateTestProduct(t, stack.db, shop.ID)

	first := mustUpload(t, stack, shop.ID, product.ID, "a|1", "b|2")
	second := mustUpload(t, stack, shop.ID, product.ID, "c|3")

	batches, err := stack.service.ListBatches(ctx, shop.ID, product.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0].ID != first.Inventory.ID || batches[1].ID != second.Inventory.ID {
		t.Fatal("batches should be ordered oldest first")
	}
}
