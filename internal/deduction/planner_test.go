package deduction

import (
	"testing"
	"time"

	"spicedesk/internal/domain"
)

func datePtr(value string) *time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestPlanDrawsEarliestExpiryFirst(t *testing.T) {
	batches := []domain.InventoryBatch{
		{ID: "bat-2", Qty: 10, Status: domain.BatchStatusActive, ExpiryDate: datePtr("2024-06-01")},
		{ID: "bat-1", Qty: 5, Status: domain.BatchStatusActive, ExpiryDate: datePtr("2024-01-01")},
	}

	plan, shortfall := PlanDeduction(batches, 8)
	if shortfall != 0 {
		t.Fatalf("expected no shortfall, got %v", shortfall)
	}
	if len(plan) != 2 {
		t.Fatalf("expected 2 draws, got %d", len(plan))
	}
	if plan[0].BatchID != "bat-1" || plan[0].Qty != 5 {
		t.Fatalf("first draw should exhaust bat-1, got %+v", plan[0])
	}
	if plan[1].BatchID != "bat-2" || plan[1].Qty != 3 {
		t.Fatalf("second draw should take 3 from bat-2, got %+v", plan[1])
	}
}

func TestPlanReportsShortfall(t *testing.T) {
	batches := []domain.InventoryBatch{
		{ID: "bat-1", Qty: 5, Status: domain.BatchStatusActive, ExpiryDate: datePtr("2024-01-01")},
		{ID: "bat-2", Qty: 10, Status: domain.BatchStatusActive, ExpiryDate: datePtr("2024-06-01")},
	}

	plan, shortfall := PlanDeduction(batches, 20)
	if shortfall != 5 {
		t.Fatalf("expected shortfall 5, got %v", shortfall)
	}
	if len(plan) != 2 {
		t.Fatalf("expected both batches drained, got %d draws", len(plan))
	}
	if plan[0].Qty != 5 || plan[1].Qty != 10 {
		t.Fatalf("expected full drains of 5 and 10, got %v and %v", plan[0].Qty, plan[1].Qty)
	}
}

func TestPlanNilExpirySortsLast(t *testing.T) {
	batches := []domain.InventoryBatch{
		{ID: "bat-open", Qty: 10, Status: domain.BatchStatusActive, ReceivedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "bat-dated", Qty: 4, Status: domain.BatchStatusActive, ExpiryDate: datePtr("2024-09-01"), ReceivedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	plan, _ := PlanDeduction(batches, 6)
	if plan[0].BatchID != "bat-dated" {
		t.Fatalf("dated batch must be drawn before the undated one, got %s", plan[0].BatchID)
	}
	if plan[1].BatchID != "bat-open" || plan[1].Qty != 2 {
		t.Fatalf("expected 2 from bat-open, got %+v", plan[1])
	}
}

func TestPlanTieBreaksByReceivedAt(t *testing.T) {
	expiry := datePtr("2024-06-01")
	batches := []domain.InventoryBatch{
		{ID: "bat-late", Qty: 5, Status: domain.BatchStatusActive, ExpiryDate: expiry, ReceivedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "bat-early", Qty: 5, Status: domain.BatchStatusActive, ExpiryDate: expiry, ReceivedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	plan, _ := PlanDeduction(batches, 3)
	if len(plan) != 1 || plan[0].BatchID != "bat-early" {
		t.Fatalf("expected the earlier-received batch first, got %+v", plan)
	}
}

func TestPlanSkipsInactiveAndEmptyBatches(t *testing.T) {
	batches := []domain.InventoryBatch{
		{ID: "bat-dead", Qty: 5, Status: domain.BatchStatusInactive, ExpiryDate: datePtr("2024-01-01")},
		{ID: "bat-zero", Qty: 0, Status: domain.BatchStatusActive, ExpiryDate: datePtr("2024-02-01")},
		{ID: "bat-live", Qty: 5, Status: domain.BatchStatusActive, ExpiryDate: datePtr("2024-06-01")},
	}

	plan, shortfall := PlanDeduction(batches, 5)
	if shortfall != 0 || len(plan) != 1 || plan[0].BatchID != "bat-live" {
		t.Fatalf("only the live batch should be drawn, got plan=%+v shortfall=%v", plan, shortfall)
	}
}

func TestPlanZeroRequired(t *testing.T) {
	plan, shortfall := PlanDeduction([]domain.InventoryBatch{{ID: "bat-1", Qty: 5, Status: domain.BatchStatusActive}}, 0)
	if len(plan) != 0 || shortfall != 0 {
		t.Fatalf("zero requirement must produce an empty plan, got %+v shortfall %v", plan, shortfall)
	}
}

func TestPlanNoBatchesAtAll(t *testing.T) {
	plan, shortfall := PlanDeduction(nil, 7)
	if len(plan) != 0 {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
	if shortfall != 7 {
		t.Fatalf("expected full shortfall 7, got %v", shortfall)
	}
}
