package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"spicedesk/internal/domain"
	"spicedesk/internal/store"
)

func TestApplyDeductionDrainsBatchesAndFloorsStock(t *testing.T) {
	databaseURL := os.Getenv("SPICEDESK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SPICEDESK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prd-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_transactions WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_batches WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.CreateProduct(ctx, domain.Product{
		ID:         productID,
		Name:       fmt.Sprintf("Integration Turmeric %d", stamp),
		Unit:       "kg",
		PricePaise: 28000,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	early := time.Now().UTC().AddDate(0, 1, 0)
	late := time.Now().UTC().AddDate(0, 6, 0)

	batchEarly, err := s.CreateBatch(ctx, domain.InventoryBatch{
		ProductID:  productID,
		Qty:        5,
		UnitCost:   16000,
		ExpiryDate: &early,
	})
	if err != nil {
		t.Fatalf("create early batch: %v", err)
	}
	batchLate, err := s.CreateBatch(ctx, domain.InventoryBatch{
		ProductID:  productID,
		Qty:        10,
		UnitCost:   17000,
		ExpiryDate: &late,
	})
	if err != nil {
		t.Fatalf("create late batch: %v", err)
	}

	fifo, err := s.ListActiveBatchesFIFO(ctx, productID)
	if err != nil {
		t.Fatalf("list fifo: %v", err)
	}
	if len(fifo) != 2 || fifo[0].ID != batchEarly.ID {
		t.Fatalf("expected earliest expiry first, got %+v", fifo)
	}

	entries, err := s.ApplyDeduction(ctx, store.DeductionApply{
		Draws: []domain.BatchDraw{
			{BatchID: batchEarly.ID, Qty: 5},
			{BatchID: batchLate.ID, Qty: 3},
		},
		ReferenceType: domain.RefTypeCustomerBill,
		ReferenceID:   fmt.Sprintf("dst-it-%d", stamp),
	})
	if err != nil {
		t.Fatalf("apply deduction: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}

	drained, err := s.GetBatchByID(ctx, batchEarly.ID)
	if err != nil {
		t.Fatalf("get drained batch: %v", err)
	}
	if drained.Qty != 0 || drained.Status != domain.BatchStatusInactive {
		t.Fatalf("expected drained batch inactive at qty 0, got qty=%v status=%s", drained.Qty, drained.Status)
	}

	partial, err := s.GetBatchByID(ctx, batchLate.ID)
	if err != nil {
		t.Fatalf("get partial batch: %v", err)
	}
	if partial.Qty != 7 || partial.Status != domain.BatchStatusActive {
		t.Fatalf("expected partial batch active at qty 7, got qty=%v status=%s", partial.Qty, partial.Status)
	}

	product, err := s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.StockQty != 7 {
		t.Fatalf("expected product stock 7, got %v", product.StockQty)
	}

	_, err = s.ApplyDeduction(ctx, store.DeductionApply{
		Draws:         []domain.BatchDraw{{BatchID: batchLate.ID, Qty: 50}},
		ReferenceType: domain.RefTypeManual,
		ReferenceID:   "overdraw",
	})
	if err != store.ErrInsufficientStock {
		t.Fatalf("expected ErrInsufficientStock on overdraw, got %v", err)
	}
}
