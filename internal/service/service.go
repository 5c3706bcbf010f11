package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"spicedesk/internal/cache"
	"spicedesk/internal/deduction"
	"spicedesk/internal/domain"
	"spicedesk/internal/store"
	"spicedesk/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const catalogCacheKey = "spice:catalog"

type Service struct {
	repo            store.Repository
	matcher         *deduction.Matcher
	catalogCache    cache.CatalogCache
	catalogCacheTTL time.Duration
}

func New(repo store.Repository, matcher *deduction.Matcher, catalogCache cache.CatalogCache, catalogCacheTTL time.Duration) *Service {
	if matcher == nil {
		matcher = deduction.NewMatcher()
	}
	if catalogCache == nil {
		catalogCache = cache.NoopCatalogCache{}
	}
	if catalogCacheTTL < 1 {
		catalogCacheTTL = 5 * time.Minute
	}

	return &Service{
		repo:            repo,
		matcher:         matcher,
		catalogCache:    catalogCache,
		catalogCacheTTL: catalogCacheTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, includeInactive)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.ToLower(strings.TrimSpace(req.Unit))
	if req.Name == "" || !isSupportedUnit(req.Unit) || req.PricePaise < 1 {
		return domain.Product{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:       req.Name,
		Unit:       req.Unit,
		PricePaise: req.PricePaise,
		Active:     true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d", created.Name, created.PricePaise))
	s.invalidateCatalog(ctx)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Unit != nil {
		unit := strings.ToLower(strings.TrimSpace(*req.Unit))
		if !isSupportedUnit(unit) {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Unit = unit
	}
	if req.PricePaise != nil {
		if *req.PricePaise < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.PricePaise = *req.PricePaise
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,price=%d", saved.Active, saved.PricePaise))
	s.invalidateCatalog(ctx)
	return *saved, nil
}

func (s *Service) AdjustProductStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	req.Reason = strings.TrimSpace(req.Reason)
	if id == "" || req.NewQty < 0 || req.Reason == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if err := s.repo.SetProductStock(ctx, id, req.NewQty); err != nil {
		return domain.Product{}, err
	}

	// Manual corrections land in the same ledger as deductions so the
	// transaction history explains every stock figure.
	if _, err := s.repo.CreateInventoryTransaction(ctx, domain.InventoryTransaction{
		ProductID:     id,
		Type:          domain.TxTypeAdjustment,
		Qty:           req.NewQty - existing.StockQty,
		ReferenceType: domain.RefTypeManual,
		ReferenceID:   id,
		Note:          req.Reason,
	}); err != nil {
		log.Printf("[service] WARN: failed to record adjustment for %s: %v", id, err)
	}

	s.logAudit(ctx, "stock_adjust", "product", id, fmt.Sprintf("from=%v,to=%v,reason=%s", existing.StockQty, req.NewQty, req.Reason))
	s.invalidateCatalog(ctx)

	updated, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}

func (s *Service) ReceiveBatch(ctx context.Context, req domain.BatchReceiveRequest) (domain.InventoryBatch, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.InventoryBatch{}, fmt.Errorf("admin role required")
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" || req.Qty <= 0 || req.UnitCost < 1 {
		return domain.InventoryBatch{}, store.ErrInvalidInput
	}

	expiry, err := parseOptionalDate(req.ExpiryDate)
	if err != nil {
		return domain.InventoryBatch{}, store.ErrInvalidInput
	}

	batch, err := s.repo.CreateBatch(ctx, domain.InventoryBatch{
		ProductID:  req.ProductID,
		BatchCode:  strings.TrimSpace(req.BatchCode),
		Qty:        req.Qty,
		UnitCost:   req.UnitCost,
		ExpiryDate: expiry,
		SourceType: "manual",
		Notes:      strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return domain.InventoryBatch{}, err
	}

	s.logAudit(ctx, "batch_receive", "inventory_batch", batch.ID, fmt.Sprintf("product=%s,qty=%v,expiry=%s", batch.ProductID, batch.Qty, req.ExpiryDate))
	s.invalidateCatalog(ctx)
	return *batch, nil
}

func (s *Service) ListBatches(ctx context.Context, productID string, includeExpired bool, limit int) (domain.BatchListResponse, error) {
	batches, err := s.repo.ListBatches(ctx, strings.TrimSpace(productID), !includeExpired, limit)
	if err != nil {
		return domain.BatchListResponse{}, err
	}
	return domain.BatchListResponse{Batches: batches}, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Supplier{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrInvalidInput
	}

	saved, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_create", "supplier", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

// CreatePurchase records the invoice and opens one inventory batch per line.
// Batch creation already bumps the product aggregate, so the purchase itself
// never touches stock directly.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Purchase{}, fmt.Errorf("admin role required")
	}

	req.SupplierID = strings.TrimSpace(req.SupplierID)
	if req.SupplierID == "" || len(req.Items) == 0 {
		return domain.Purchase{}, store.ErrInvalidInput
	}

	if _, err := s.repo.GetSupplierByID(ctx, req.SupplierID); err != nil {
		return domain.Purchase{}, err
	}

	total := int64(0)
	for i, item := range req.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" || item.Qty <= 0 || item.UnitCost < 1 {
			return domain.Purchase{}, store.ErrInvalidInput
		}
		if _, err := parseOptionalDate(item.ExpiryDate); err != nil {
			return domain.Purchase{}, store.ErrInvalidInput
		}
		if _, err := s.repo.GetProductByID(ctx, item.ProductID); err != nil {
			return domain.Purchase{}, err
		}
		req.Items[i] = item
		total += int64(math.Round(item.Qty * float64(item.UnitCost)))
	}

	purchase, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		SupplierID:    req.SupplierID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		TotalPaise:    total,
		ReceivedBy:    actor.Username,
		Items:         req.Items,
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	for _, item := range purchase.Items {
		expiry, _ := parseOptionalDate(item.ExpiryDate)
		batch, err := s.repo.CreateBatch(ctx, domain.InventoryBatch{
			ProductID:  item.ProductID,
			BatchCode:  "PUR-" + purchase.ID,
			Qty:        item.Qty,
			UnitCost:   item.UnitCost,
			ExpiryDate: expiry,
			SourceType: "purchase",
			SourceID:   purchase.ID,
		})
		if err != nil {
			return domain.Purchase{}, err
		}
		log.Printf("[service] purchase %s opened batch %s product=%s qty=%v", purchase.ID, batch.ID, item.ProductID, item.Qty)
	}

	s.logAudit(ctx, "purchase_create", "purchase", purchase.ID, fmt.Sprintf("supplier=%s,items=%d,total=%d", purchase.SupplierID, len(purchase.Items), purchase.TotalPaise))
	s.invalidateCatalog(ctx)
	return *purchase, nil
}

func (s *Service) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	purchase, err := s.repo.GetPurchaseByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Purchase{}, err
	}
	return *purchase, nil
}

func (s *Service) ListPurchases(ctx context.Context, supplierID string, limit int) (domain.PurchaseListResponse, error) {
	purchases, err := s.repo.ListPurchases(ctx, strings.TrimSpace(supplierID), limit)
	if err != nil {
		return domain.PurchaseListResponse{}, err
	}
	return domain.PurchaseListResponse{Purchases: purchases}, nil
}

// CreateDistribution bills a caterer and deducts inventory up front. A line
// that is short on stock aborts the whole bill; a caterer is never billed
// for stock that did not leave the shelf. A free-text line that matches no
// product is billed as written but skipped for deduction, the same way
// unmatched order lines are skipped on delivery.
func (s *Service) CreateDistribution(ctx context.Context, req domain.DistributionCreateRequest) (domain.DistributionResponse, error) {
	req.CatererName = strings.TrimSpace(req.CatererName)
	if req.CatererName == "" || len(req.Items) == 0 {
		return domain.DistributionResponse{}, store.ErrInvalidInput
	}

	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return domain.DistributionResponse{}, err
	}

	distID := xid.New("dst")
	result := &domain.DeductionResult{
		ReferenceType: domain.RefTypeCustomerBill,
		ReferenceID:   distID,
	}
	total := int64(0)
	draws := make([]domain.BatchDraw, 0, len(req.Items)*2)
	// reserved tracks per-batch quantity already claimed by earlier lines so
	// two lines naming the same product cannot double-draw one batch.
	reserved := make(map[string]float64)
	for i, line := range req.Items {
		line.ItemName = strings.TrimSpace(line.ItemName)
		if line.ItemName == "" || line.Qty <= 0 {
			return domain.DistributionResponse{}, store.ErrInvalidInput
		}

		if len(line.BatchDraws) > 0 {
			planned := float64(0)
			for _, draw := range line.BatchDraws {
				batch, err := s.repo.GetBatchByID(ctx, draw.BatchID)
				if err != nil {
					return domain.DistributionResponse{}, err
				}
				if batch.Status != domain.BatchStatusActive || batch.Qty-reserved[batch.ID] < draw.Qty || draw.Qty <= 0 {
					return domain.DistributionResponse{}, store.ErrInsufficientStock
				}
				planned += draw.Qty
			}
			if planned < line.Qty {
				return domain.DistributionResponse{}, store.ErrInsufficientStock
			}
			for _, draw := range line.BatchDraws {
				reserved[draw.BatchID] += draw.Qty
			}
			draws = append(draws, line.BatchDraws...)
		} else {
			product, matched := s.matcher.Match(line.ItemName, products)
			if !matched {
				if line.PricePaise < 1 {
					return domain.DistributionResponse{}, fmt.Errorf("%w: unmatched line %q has no price", store.ErrInvalidInput, line.ItemName)
				}
				log.Printf("[service] WARN: distribution line %q matched no product, billing without deduction", line.ItemName)
				result.LinesSkipped = append(result.LinesSkipped, line.ItemName)
				total += int64(math.Round(line.Qty * float64(line.PricePaise)))
				req.Items[i] = line
				continue
			}
			batches, err := s.repo.ListActiveBatchesFIFO(ctx, product.Product.ID)
			if err != nil {
				return domain.DistributionResponse{}, err
			}
			plan, shortfall := deduction.PlanDeduction(unreservedBatches(batches, reserved), line.Qty)
			if shortfall > 0 {
				return domain.DistributionResponse{}, fmt.Errorf("%w: %s short by %v", store.ErrInsufficientStock, product.Product.Name, shortfall)
			}
			for _, draw := range plan {
				reserved[draw.BatchID] += draw.Qty
			}
			draws = append(draws, plan...)
			if line.Unit == "" {
				line.Unit = product.Product.Unit
			}
			if line.PricePaise < 1 {
				line.PricePaise = product.Product.PricePaise
			}
		}

		if line.PricePaise < 1 {
			return domain.DistributionResponse{}, store.ErrInvalidInput
		}
		total += int64(math.Round(line.Qty * float64(line.PricePaise)))
		result.LinesApplied++
		req.Items[i] = line
	}

	dist, err := s.repo.CreateDistributionWithDeduction(ctx, domain.Distribution{
		ID:           distID,
		CatererName:  req.CatererName,
		CatererPhone: strings.TrimSpace(req.CatererPhone),
		Status:       domain.DistributionStatusBilled,
		TotalPaise:   total,
		Items:        req.Items,
	}, store.DeductionApply{
		Draws:         draws,
		ReferenceType: domain.RefTypeCustomerBill,
		ReferenceID:   distID,
		Note:          "distribution to " + req.CatererName,
	})
	if err != nil {
		return domain.DistributionResponse{}, err
	}

	s.logAudit(ctx, "distribution_create", "distribution", dist.ID, fmt.Sprintf("caterer=%s,items=%d,total=%d", dist.CatererName, len(dist.Items), dist.TotalPaise))
	s.invalidateCatalog(ctx)
	return domain.DistributionResponse{Distribution: *dist, Deduction: result}, nil
}

// unreservedBatches returns the batches with earlier lines' claims
// subtracted, dropping anything fully claimed.
func unreservedBatches(batches []domain.InventoryBatch, reserved map[string]float64) []domain.InventoryBatch {
	if len(reserved) == 0 {
		return batches
	}
	out := make([]domain.InventoryBatch, 0, len(batches))
	for _, batch := range batches {
		batch.Qty -= reserved[batch.ID]
		if batch.Qty > 0 {
			out = append(out, batch)
		}
	}
	return out
}

func (s *Service) GetDistribution(ctx context.Context, id string) (domain.DistributionResponse, error) {
	dist, err := s.repo.GetDistributionByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.DistributionResponse{}, err
	}
	return domain.DistributionResponse{Distribution: *dist}, nil
}

func (s *Service) ListDistributions(ctx context.Context, status string, limit int) (domain.DistributionListResponse, error) {
	dists, err := s.repo.ListDistributions(ctx, status, limit)
	if err != nil {
		return domain.DistributionListResponse{}, err
	}
	return domain.DistributionListResponse{Distributions: dists}, nil
}

func (s *Service) RecordPayment(ctx context.Context, distributionID string, req domain.PaymentCreateRequest) (domain.Payment, error) {
	distributionID = strings.TrimSpace(distributionID)
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if distributionID == "" || req.AmountPaise < 1 || !isSupportedPaymentMethod(req.Method) {
		return domain.Payment{}, store.ErrInvalidInput
	}
	if req.Method != "cash" && strings.TrimSpace(req.Reference) == "" {
		return domain.Payment{}, store.ErrInvalidInput
	}

	dist, err := s.repo.GetDistributionByID(ctx, distributionID)
	if err != nil {
		return domain.Payment{}, err
	}

	outstanding := dist.TotalPaise - dist.PaidPaise
	if req.AmountPaise > outstanding {
		return domain.Payment{}, fmt.Errorf("%w: payment exceeds outstanding %d", store.ErrInvalidInput, outstanding)
	}

	payment, err := s.repo.CreatePayment(ctx, domain.Payment{
		DistributionID: distributionID,
		AmountPaise:    req.AmountPaise,
		Method:         req.Method,
		Reference:      strings.TrimSpace(req.Reference),
		Note:           strings.TrimSpace(req.Note),
	})
	if err != nil {
		return domain.Payment{}, err
	}

	paid := dist.PaidPaise + req.AmountPaise
	status := domain.DistributionStatusPartiallyPaid
	if paid >= dist.TotalPaise {
		status = domain.DistributionStatusPaid
	}
	if _, err := s.repo.UpdateDistributionPayment(ctx, distributionID, paid, status); err != nil {
		return domain.Payment{}, err
	}

	if status == domain.DistributionStatusPaid {
		s.cancelPendingReminders(ctx, distributionID)
	}

	s.logAudit(ctx, "payment_record", "payment", payment.ID, fmt.Sprintf("distribution=%s,amount=%d,method=%s,status=%s", distributionID, req.AmountPaise, req.Method, status))
	return *payment, nil
}

func (s *Service) ListPayments(ctx context.Context, distributionID string) (domain.PaymentListResponse, error) {
	payments, err := s.repo.ListPayments(ctx, strings.TrimSpace(distributionID))
	if err != nil {
		return domain.PaymentListResponse{}, err
	}
	return domain.PaymentListResponse{Payments: payments}, nil
}

func (s *Service) CreateReminder(ctx context.Context, req domain.ReminderCreateRequest) (domain.Reminder, error) {
	req.DistributionID = strings.TrimSpace(req.DistributionID)
	if req.DistributionID == "" || strings.TrimSpace(req.DueDate) == "" {
		return domain.Reminder{}, store.ErrInvalidInput
	}

	dueDate, err := time.Parse("2006-01-02", strings.TrimSpace(req.DueDate))
	if err != nil {
		return domain.Reminder{}, store.ErrInvalidInput
	}

	dist, err := s.repo.GetDistributionByID(ctx, req.DistributionID)
	if err != nil {
		return domain.Reminder{}, err
	}
	if dist.Status == domain.DistributionStatusPaid {
		return domain.Reminder{}, fmt.Errorf("%w: distribution already settled", store.ErrInvalidInput)
	}

	reminder, err := s.repo.CreateReminder(ctx, domain.Reminder{
		DistributionID: req.DistributionID,
		CatererName:    dist.CatererName,
		DueDate:        dueDate.UTC(),
		Status:         domain.ReminderStatusPending,
		Note:           strings.TrimSpace(req.Note),
	})
	if err != nil {
		return domain.Reminder{}, err
	}

	s.logAudit(ctx, "reminder_create", "reminder", reminder.ID, fmt.Sprintf("distribution=%s,due=%s", req.DistributionID, req.DueDate))
	return *reminder, nil
}

func (s *Service) ListReminders(ctx context.Context, status string, limit int) (domain.ReminderListResponse, error) {
	reminders, err := s.repo.ListReminders(ctx, status, limit)
	if err != nil {
		return domain.ReminderListResponse{}, err
	}
	return domain.ReminderListResponse{Reminders: reminders}, nil
}

func (s *Service) CancelReminder(ctx context.Context, id string) (domain.Reminder, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Reminder{}, store.ErrInvalidInput
	}

	reminder, err := s.repo.UpdateReminderStatus(ctx, id, domain.ReminderStatusCancelled, nil)
	if err != nil {
		return domain.Reminder{}, err
	}

	s.logAudit(ctx, "reminder_cancel", "reminder", reminder.ID, "cancelled")
	return *reminder, nil
}

// RunDueReminders marks every pending reminder at or past its due date as
// sent. Dispatch is a log line; an SMS or WhatsApp gateway would hook in
// here. Called by the cron scheduler and exposed for a manual admin run.
func (s *Service) RunDueReminders(ctx context.Context) (domain.ReminderRunResponse, error) {
	now := time.Now().UTC()
	due, err := s.repo.ListDueReminders(ctx, now)
	if err != nil {
		return domain.ReminderRunResponse{}, err
	}

	dispatched := 0
	for _, reminder := range due {
		sentAt := now
		if _, err := s.repo.UpdateReminderStatus(ctx, reminder.ID, domain.ReminderStatusSent, &sentAt); err != nil {
			log.Printf("[service] WARN: failed to mark reminder %s sent: %v", reminder.ID, err)
			continue
		}
		log.Printf("[service] payment reminder dispatched: caterer=%s distribution=%s due=%s", reminder.CatererName, reminder.DistributionID, reminder.DueDate.Format("2006-01-02"))
		dispatched++
	}

	if dispatched > 0 {
		s.logAudit(ctx, "reminder_run", "reminder", "", fmt.Sprintf("dispatched=%d", dispatched))
	}

	return domain.ReminderRunResponse{
		Dispatched: dispatched,
		RanAt:      now.Format(time.RFC3339),
	}, nil
}

// PlaceOrder is the public storefront intake. No auth, no stock touch;
// inventory moves only when staff later marks the order delivered.
func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.OrderResponse, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" || len(req.Items) == 0 {
		return domain.OrderResponse{}, store.ErrInvalidInput
	}

	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	total := int64(0)
	for i, line := range req.Items {
		line.ItemName = strings.TrimSpace(line.ItemName)
		line.BatchDraws = nil
		if line.ItemName == "" || line.Qty <= 0 {
			return domain.OrderResponse{}, store.ErrInvalidInput
		}
		if line.PricePaise < 1 {
			match, matched := s.matcher.Match(line.ItemName, products)
			if !matched {
				return domain.OrderResponse{}, fmt.Errorf("%w: %s", store.ErrNoMatch, line.ItemName)
			}
			line.PricePaise = match.Product.PricePaise
			if line.Unit == "" {
				line.Unit = match.Product.Unit
			}
		}
		total += int64(math.Round(line.Qty * float64(line.PricePaise)))
		req.Items[i] = line
	}

	order, err := s.repo.CreateOrder(ctx, domain.Order{
		CustomerName:    req.CustomerName,
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		Status:          domain.OrderStatusPending,
		TotalPaise:      total,
		Items:           req.Items,
	})
	if err != nil {
		return domain.OrderResponse{}, err
	}

	log.Printf("[service] storefront order %s placed: customer=%s items=%d total=%d", order.ID, order.CustomerName, len(order.Items), order.TotalPaise)
	return domain.OrderResponse{Order: *order}, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.OrderResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return domain.OrderResponse{Order: *order}, nil
}

func (s *Service) ListOrders(ctx context.Context, status string, limit int) (domain.OrderListResponse, error) {
	orders, err := s.repo.ListOrders(ctx, status, limit)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	return domain.OrderListResponse{Orders: orders}, nil
}

// UpdateOrderStatus walks pending → confirmed → delivered, or cancels from
// any non-terminal state. Delivery triggers inventory deduction but never
// fails because of it: an unmatched or short line is reported in the result
// and logged, and the order still completes.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, req domain.OrderStatusRequest) (domain.Order, *domain.DeductionResult, error) {
	id = strings.TrimSpace(id)
	next := strings.ToLower(strings.TrimSpace(req.Status))
	if id == "" || next == "" {
		return domain.Order{}, nil, store.ErrInvalidInput
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, nil, err
	}
	if !isValidOrderTransition(order.Status, next) {
		return domain.Order{}, nil, fmt.Errorf("%w: cannot move order from %s to %s", store.ErrInvalidInput, order.Status, next)
	}

	var deliveredAt *time.Time
	var result *domain.DeductionResult
	if next == domain.OrderStatusDelivered {
		now := time.Now().UTC()
		deliveredAt = &now
		result = s.deductForDelivery(ctx, order)
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, id, next, deliveredAt)
	if err != nil {
		return domain.Order{}, nil, err
	}

	s.logAudit(ctx, "order_status", "order", updated.ID, fmt.Sprintf("from=%s,to=%s", order.Status, next))
	if next == domain.OrderStatusDelivered {
		s.invalidateCatalog(ctx)
	}
	return *updated, result, nil
}

// deductForDelivery applies the lenient per-line policy: skip what cannot
// be matched, draw what is available when short, and keep going.
func (s *Service) deductForDelivery(ctx context.Context, order *domain.Order) *domain.DeductionResult {
	result := &domain.DeductionResult{
		ReferenceType: domain.RefTypeOrderDelivery,
		ReferenceID:   order.ID,
		Shortfalls:    make(map[string]float64),
	}

	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		log.Printf("[service] WARN: delivery deduction for order %s skipped entirely: %v", order.ID, err)
		result.LinesSkipped = append(result.LinesSkipped, "all: product listing failed")
		return result
	}

	for _, line := range order.Items {
		match, matched := s.matcher.Match(line.ItemName, products)
		if !matched {
			log.Printf("[service] WARN: order %s line %q matched no product, skipping deduction", order.ID, line.ItemName)
			result.LinesSkipped = append(result.LinesSkipped, line.ItemName)
			continue
		}

		batches, err := s.repo.ListActiveBatchesFIFO(ctx, match.Product.ID)
		if err != nil {
			log.Printf("[service] WARN: order %s line %q batch listing failed: %v", order.ID, line.ItemName, err)
			result.LinesSkipped = append(result.LinesSkipped, line.ItemName)
			continue
		}

		plan, shortfall := deduction.PlanDeduction(batches, line.Qty)
		if shortfall > 0 {
			log.Printf("[service] WARN: order %s line %q short by %v %s, deducting available only", order.ID, line.ItemName, shortfall, match.Product.Unit)
			result.Shortfalls[match.Product.Name] = shortfall
		}
		if len(plan) == 0 {
			continue
		}

		if _, err := s.repo.ApplyDeduction(ctx, store.DeductionApply{
			Draws:         plan,
			ReferenceType: domain.RefTypeOrderDelivery,
			ReferenceID:   order.ID,
			Note:          "delivery of " + line.ItemName,
		}); err != nil {
			log.Printf("[service] WARN: order %s line %q deduction failed: %v", order.ID, line.ItemName, err)
			result.LinesSkipped = append(result.LinesSkipped, line.ItemName)
			continue
		}
		result.LinesApplied++
	}

	return result
}

// StorefrontCatalog lists active products for the public shop page, served
// from redis when warm.
func (s *Service) StorefrontCatalog(ctx context.Context) (domain.CatalogResponse, error) {
	if cached, hit, err := s.catalogCache.Get(ctx, catalogCacheKey); err == nil && hit {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: catalog cache read failed: %v", err)
	}

	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return domain.CatalogResponse{}, err
	}

	resp := domain.CatalogResponse{Catalog: make([]domain.CatalogEntry, 0, len(products))}
	for _, product := range products {
		resp.Catalog = append(resp.Catalog, domain.CatalogEntry{
			ID:         product.ID,
			Name:       product.Name,
			Unit:       product.Unit,
			PricePaise: product.PricePaise,
			InStock:    product.StockQty > 0,
		})
	}

	if err := s.catalogCache.Set(ctx, catalogCacheKey, &resp, s.catalogCacheTTL); err != nil {
		log.Printf("[service] WARN: catalog cache write failed: %v", err)
	}
	return resp, nil
}

func (s *Service) StockValuation(ctx context.Context) (domain.StockValuationReport, error) {
	return s.repo.GetStockValuation(ctx)
}

func (s *Service) ListInventoryTransactions(ctx context.Context, productID string, limit int) (domain.InventoryTransactionListResponse, error) {
	entries, err := s.repo.ListInventoryTransactions(ctx, strings.TrimSpace(productID), limit)
	if err != nil {
		return domain.InventoryTransactionListResponse{}, err
	}
	return domain.InventoryTransactionListResponse{Transactions: entries}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) cancelPendingReminders(ctx context.Context, distributionID string) {
	reminders, err := s.repo.ListReminders(ctx, domain.ReminderStatusPending, 200)
	if err != nil {
		log.Printf("[service] WARN: failed to list reminders for %s: %v", distributionID, err)
		return
	}
	for _, reminder := range reminders {
		if reminder.DistributionID != distributionID {
			continue
		}
		if _, err := s.repo.UpdateReminderStatus(ctx, reminder.ID, domain.ReminderStatusCancelled, nil); err != nil {
			log.Printf("[service] WARN: failed to cancel reminder %s: %v", reminder.ID, err)
		}
	}
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalogCache.Invalidate(ctx, catalogCacheKey); err != nil {
		log.Printf("[service] WARN: catalog cache invalidation failed: %v", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	date := parsed.UTC()
	return &date, nil
}

func isValidOrderTransition(from string, to string) bool {
	switch from {
	case domain.OrderStatusPending:
		return to == domain.OrderStatusConfirmed || to == domain.OrderStatusCancelled
	case domain.OrderStatusConfirmed:
		return to == domain.OrderStatusDelivered || to == domain.OrderStatusCancelled
	default:
		return false
	}
}

func isSupportedUnit(unit string) bool {
	switch unit {
	case "kg", "g", "pack":
		return true
	default:
		return false
	}
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case "cash", "upi", "bank_transfer", "cheque":
		return true
	default:
		return false
	}
}
