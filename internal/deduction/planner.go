package deduction

import (
	"sort"

	"spicedesk/internal/domain"
)

// PlanDeduction walks active batches soonest-expiry-first and allocates the
// required quantity across them. Batches without an expiry date sort last;
// ties fall back to the receive timestamp. The returned shortfall is whatever
// the batches could not cover; a plan is always returned, even a partial one.
func PlanDeduction(batches []domain.InventoryBatch, required float64) ([]domain.BatchDraw, float64) {
	if required <= 0 {
		return nil, 0
	}

	usable := make([]domain.InventoryBatch, 0, len(batches))
	for _, b := range batches {
		if b.Status == domain.BatchStatusActive && b.Qty > 0 {
			usable = append(usable, b)
		}
	}

	sort.SliceStable(usable, func(i, j int) bool {
		a, b := usable[i], usable[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.ReceivedAt.Before(b.ReceivedAt)
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ReceivedAt.Before(b.ReceivedAt)
		default:
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
	})

	remaining := required
	plan := make([]domain.BatchDraw, 0, len(usable))
	for _, batch := range usable {
		if remaining <= 0 {
			break
		}
		draw := batch.Qty
		if draw > remaining {
			draw = remaining
		}
		plan = append(plan, domain.BatchDraw{BatchID: batch.ID, Qty: draw})
		remaining -= draw
	}

	if remaining < 0 {
		remaining = 0
	}
	return plan, remaining
}
