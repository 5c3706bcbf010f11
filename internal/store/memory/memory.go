package memory

import (
	"context"
	"log"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"spicedesk/internal/domain"
	"spicedesk/internal/store"
	"spicedesk/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	batchesByID     map[string]domain.InventoryBatch
	transactions    []domain.InventoryTransaction
	suppliersByID   map[string]domain.Supplier
	purchasesByID   map[string]domain.Purchase
	distsByID       map[string]domain.Distribution
	paymentsByID    map[string]domain.Payment
	remindersByID   map[string]domain.Reminder
	ordersByID      map[string]domain.Order
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; unset
// means hardcoded dev defaults with a warning. The memory store is never
// used in production (DATABASE_URL switches the backend to PostgreSQL).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prd-turmeric", Name: "Turmeric Powder", Unit: "kg", PricePaise: 28000, Active: true, CreatedAt: now},
		{ID: "prd-chili", Name: "Red Chili Powder", Unit: "kg", PricePaise: 32000, Active: true, CreatedAt: now},
		{ID: "prd-cumin", Name: "Cumin Seeds", Unit: "kg", PricePaise: 45000, Active: true, CreatedAt: now},
		{ID: "prd-coriander", Name: "Coriander Powder", Unit: "kg", PricePaise: 22000, Active: true, CreatedAt: now},
		{ID: "prd-pepper", Name: "Black Pepper", Unit: "kg", PricePaise: 85000, Active: true, CreatedAt: now},
		{ID: "prd-cardamom", Name: "Green Cardamom", Unit: "kg", PricePaise: 320000, Active: true, CreatedAt: now},
		{ID: "prd-hing", Name: "Asafoetida", Unit: "kg", PricePaise: 180000, Active: true, CreatedAt: now},
		{ID: "prd-methi", Name: "Fenugreek Seeds", Unit: "kg", PricePaise: 15000, Active: true, CreatedAt: now},
	}

	productMap := make(map[string]domain.Product, len(products))
	batches := make(map[string]domain.InventoryBatch)
	for _, p := range products {
		productMap[p.ID] = p
	}

	expiry := now.AddDate(1, 0, 0)
	for _, p := range products {
		id := xid.New("bat")
		qty := 25.0
		unitCost := p.PricePaise * 60 / 100
		batch := domain.InventoryBatch{
			ID:         id,
			ProductID:  p.ID,
			BatchCode:  "SEED-" + p.ID,
			Qty:        qty,
			UnitCost:   unitCost,
			ValuePaise: int64(math.Round(qty * float64(unitCost))),
			ExpiryDate: &expiry,
			ReceivedAt: now,
			Status:     domain.BatchStatusActive,
			SourceType: "seed",
		}
		batches[id] = batch
		prod := productMap[p.ID]
		prod.StockQty = qty
		productMap[p.ID] = prod
	}

	return &Store{
		products:        productMap,
		batchesByID:     batches,
		transactions:    make([]domain.InventoryTransaction, 0, 128),
		suppliersByID:   make(map[string]domain.Supplier),
		purchasesByID:   make(map[string]domain.Purchase),
		distsByID:       make(map[string]domain.Distribution),
		paymentsByID:    make(map[string]domain.Payment),
		remindersByID:   make(map[string]domain.Reminder),
		ordersByID:      make(map[string]domain.Order),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

// NewEmpty returns a store with only the seed users, no catalog. Tests use
// it when they want full control of the fixture data.
func NewEmpty() *Store {
	s := NewSeeded()
	s.products = map[string]domain.Product{}
	s.batchesByID = map[string]domain.InventoryBatch{}
	return s
}

func (s *Store) ListProducts(_ context.Context, includeInactive bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !includeInactive && !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.Unit == "" || product.PricePaise < 1 {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.products {
		if strings.EqualFold(existing.Name, product.Name) {
			return nil, store.ErrInvalidInput
		}
	}

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Unit == "" || product.PricePaise < 1 {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.StockQty = existing.StockQty
	product.CreatedAt = existing.CreatedAt

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) SetProductStock(_ context.Context, productID string, qty float64) error {
	if qty < 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	product.StockQty = qty
	s.products[productID] = product
	return nil
}

func (s *Store) CreateBatch(_ context.Context, batch domain.InventoryBatch) (*domain.InventoryBatch, error) {
	if batch.ProductID == "" || batch.Qty <= 0 || batch.UnitCost < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[batch.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}

	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	if strings.TrimSpace(batch.BatchCode) == "" {
		batch.BatchCode = "MANUAL-" + batch.ID
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	if batch.SourceType == "" {
		batch.SourceType = "manual"
	}
	batch.Status = domain.BatchStatusActive
	batch.ValuePaise = int64(math.Round(batch.Qty * float64(batch.UnitCost)))

	s.batchesByID[batch.ID] = cloneBatch(batch)
	product.StockQty += batch.Qty
	s.products[batch.ProductID] = product

	created := cloneBatch(batch)
	return &created, nil
}

func (s *Store) GetBatchByID(_ context.Context, id string) (*domain.InventoryBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, exists := s.batchesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyBatch := cloneBatch(batch)
	return &copyBatch, nil
}

func (s *Store) ListBatches(_ context.Context, productID string, activeOnly bool, limit int) ([]domain.InventoryBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	result := make([]domain.InventoryBatch, 0, limit)
	for _, batch := range s.batchesByID {
		if productID != "" && batch.ProductID != productID {
			continue
		}
		if activeOnly && batch.Status != domain.BatchStatusActive {
			continue
		}
		result = append(result, cloneBatch(batch))
	}

	slices.SortFunc(result, compareBatchFIFO)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListActiveBatchesFIFO(_ context.Context, productID string) ([]domain.InventoryBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryBatch, 0, 16)
	for _, batch := range s.batchesByID {
		if batch.ProductID != productID {
			continue
		}
		if batch.Status != domain.BatchStatusActive || batch.Qty <= 0 {
			continue
		}
		result = append(result, cloneBatch(batch))
	}

	slices.SortFunc(result, compareBatchFIFO)
	return result, nil
}

// ApplyDeduction commits every draw or none. It verifies all draws against
// current quantities before mutating anything, mirroring what the SQL store
// does inside a serializable transaction.
func (s *Store) ApplyDeduction(_ context.Context, apply store.DeductionApply) ([]domain.InventoryTransaction, error) {
	if len(apply.Draws) == 0 || apply.ReferenceType == "" || apply.ReferenceID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateDrawsLocked(apply.Draws); err != nil {
		return nil, err
	}
	return s.applyDrawsLocked(apply), nil
}

func (s *Store) validateDrawsLocked(draws []domain.BatchDraw) error {
	for _, draw := range draws {
		if draw.Qty <= 0 {
			return store.ErrInvalidInput
		}
		batch, exists := s.batchesByID[draw.BatchID]
		if !exists {
			return store.ErrNotFound
		}
		if batch.Status != domain.BatchStatusActive {
			return store.ErrInvalidInput
		}
		if batch.Qty < draw.Qty {
			return store.ErrInsufficientStock
		}
	}
	return nil
}

func (s *Store) applyDrawsLocked(apply store.DeductionApply) []domain.InventoryTransaction {
	now := time.Now().UTC()
	entries := make([]domain.InventoryTransaction, 0, len(apply.Draws))
	for _, draw := range apply.Draws {
		batch := s.batchesByID[draw.BatchID]
		batch.Qty -= draw.Qty
		batch.ValuePaise = int64(math.Round(batch.Qty * float64(batch.UnitCost)))
		if batch.Qty == 0 {
			batch.Status = domain.BatchStatusInactive
		}
		s.batchesByID[draw.BatchID] = batch

		product, exists := s.products[batch.ProductID]
		if exists {
			product.StockQty -= draw.Qty
			if product.StockQty < 0 {
				product.StockQty = 0
			}
			s.products[batch.ProductID] = product
		}

		entry := domain.InventoryTransaction{
			ID:            xid.New("itx"),
			BatchID:       draw.BatchID,
			ProductID:     batch.ProductID,
			Type:          domain.TxTypeDeduction,
			Qty:           draw.Qty,
			ReferenceType: apply.ReferenceType,
			ReferenceID:   apply.ReferenceID,
			Note:          apply.Note,
			CreatedAt:     now,
		}
		s.transactions = append(s.transactions, entry)
		entries = append(entries, entry)
	}

	return entries
}

func (s *Store) CreateInventoryTransaction(_ context.Context, entry domain.InventoryTransaction) (*domain.InventoryTransaction, error) {
	if entry.ProductID == "" || entry.Type == "" || entry.ReferenceType == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[entry.ProductID]; !exists {
		return nil, store.ErrNotFound
	}
	if entry.ID == "" {
		entry.ID = xid.New("itx")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.transactions = append(s.transactions, entry)
	saved := entry
	return &saved, nil
}

func (s *Store) ListInventoryTransactions(_ context.Context, productID string, limit int) ([]domain.InventoryTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 200
	}
	result := make([]domain.InventoryTransaction, 0, limit)
	for _, entry := range s.transactions {
		if productID != "" && entry.ProductID != productID {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.InventoryTransaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	s.suppliersByID[supplier.ID] = supplier
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, exists := s.suppliersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.Name, b.Name)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return suppliers, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.suppliersByID[purchase.SupplierID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, item := range purchase.Items {
		if item.ProductID == "" || item.Qty <= 0 || item.UnitCost < 1 {
			return nil, store.ErrInvalidInput
		}
		if _, exists := s.products[item.ProductID]; !exists {
			return nil, store.ErrNotFound
		}
	}

	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	s.purchasesByID[purchase.ID] = clonePurchase(purchase)
	saved := clonePurchase(purchase)
	return &saved, nil
}

func (s *Store) GetPurchaseByID(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchase, exists := s.purchasesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPurchase := clonePurchase(purchase)
	return &copyPurchase, nil
}

func (s *Store) ListPurchases(_ context.Context, supplierID string, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	result := make([]domain.Purchase, 0, len(s.purchasesByID))
	for _, purchase := range s.purchasesByID {
		if supplierID != "" && purchase.SupplierID != supplierID {
			continue
		}
		result = append(result, clonePurchase(purchase))
	}
	slices.SortFunc(result, func(a, b domain.Purchase) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateDistribution(_ context.Context, dist domain.Distribution) (*domain.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createDistributionLocked(dist)
}

// CreateDistributionWithDeduction validates the draws and the bill under one
// lock before mutating anything, so a rejected bill leaves stock untouched.
func (s *Store) CreateDistributionWithDeduction(_ context.Context, dist domain.Distribution, apply store.DeductionApply) (*domain.Distribution, error) {
	for _, draw := range apply.Draws {
		if draw.BatchID == "" {
			return nil, store.ErrInvalidInput
		}
	}
	if len(apply.Draws) > 0 && (apply.ReferenceType == "" || apply.ReferenceID == "") {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(dist.CatererName) == "" || len(dist.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if err := s.validateDrawsLocked(apply.Draws); err != nil {
		return nil, err
	}

	if len(apply.Draws) > 0 {
		s.applyDrawsLocked(apply)
	}
	return s.createDistributionLocked(dist)
}

func (s *Store) createDistributionLocked(dist domain.Distribution) (*domain.Distribution, error) {
	dist.CatererName = strings.TrimSpace(dist.CatererName)
	if dist.CatererName == "" || len(dist.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	if dist.ID == "" {
		dist.ID = xid.New("dst")
	}
	if dist.CreatedAt.IsZero() {
		dist.CreatedAt = time.Now().UTC()
	}
	if dist.Status == "" {
		dist.Status = domain.DistributionStatusBilled
	}

	s.distsByID[dist.ID] = cloneDistribution(dist)
	saved := cloneDistribution(dist)
	return &saved, nil
}

func (s *Store) GetDistributionByID(_ context.Context, id string) (*domain.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dist, exists := s.distsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyDist := cloneDistribution(dist)
	return &copyDist, nil
}

func (s *Store) ListDistributions(_ context.Context, status string, limit int) ([]domain.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	status = strings.ToLower(strings.TrimSpace(status))
	result := make([]domain.Distribution, 0, len(s.distsByID))
	for _, dist := range s.distsByID {
		if status != "" && dist.Status != status {
			continue
		}
		result = append(result, cloneDistribution(dist))
	}
	slices.SortFunc(result, func(a, b domain.Distribution) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpdateDistributionPayment(_ context.Context, id string, paidPaise int64, status string) (*domain.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dist, exists := s.distsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	dist.PaidPaise = paidPaise
	dist.Status = status
	s.distsByID[id] = dist
	copyDist := cloneDistribution(dist)
	return &copyDist, nil
}

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment.DistributionID == "" || payment.AmountPaise < 1 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.distsByID[payment.DistributionID]; !exists {
		return nil, store.ErrNotFound
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	s.paymentsByID[payment.ID] = payment
	copyPayment := payment
	return &copyPayment, nil
}

func (s *Store) ListPayments(_ context.Context, distributionID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Payment, 0, 16)
	for _, payment := range s.paymentsByID {
		if distributionID != "" && payment.DistributionID != distributionID {
			continue
		}
		result = append(result, payment)
	}
	slices.SortFunc(result, func(a, b domain.Payment) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateReminder(_ context.Context, reminder domain.Reminder) (*domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reminder.DistributionID == "" || reminder.DueDate.IsZero() {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.distsByID[reminder.DistributionID]; !exists {
		return nil, store.ErrNotFound
	}
	if reminder.ID == "" {
		reminder.ID = xid.New("rem")
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	if reminder.Status == "" {
		reminder.Status = domain.ReminderStatusPending
	}

	s.remindersByID[reminder.ID] = reminder
	copyReminder := reminder
	return &copyReminder, nil
}

func (s *Store) ListReminders(_ context.Context, status string, limit int) ([]domain.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	status = strings.ToLower(strings.TrimSpace(status))
	result := make([]domain.Reminder, 0, len(s.remindersByID))
	for _, reminder := range s.remindersByID {
		if status != "" && reminder.Status != status {
			continue
		}
		result = append(result, reminder)
	}
	slices.SortFunc(result, func(a, b domain.Reminder) int {
		if a.DueDate.Equal(b.DueDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.DueDate.Before(b.DueDate) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListDueReminders(_ context.Context, asOf time.Time) ([]domain.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Reminder, 0, 16)
	for _, reminder := range s.remindersByID {
		if reminder.Status != domain.ReminderStatusPending {
			continue
		}
		if reminder.DueDate.After(asOf) {
			continue
		}
		result = append(result, reminder)
	}
	slices.SortFunc(result, func(a, b domain.Reminder) int {
		if a.DueDate.Equal(b.DueDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.DueDate.Before(b.DueDate) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) UpdateReminderStatus(_ context.Context, id string, status string, sentAt *time.Time) (*domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminder, exists := s.remindersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	reminder.Status = status
	reminder.SentAt = sentAt
	s.remindersByID[id] = reminder
	copyReminder := reminder
	return &copyReminder, nil
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.CustomerName = strings.TrimSpace(order.CustomerName)
	if order.CustomerName == "" || len(order.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	s.ordersByID[order.ID] = cloneOrder(order)
	saved := cloneOrder(order)
	return &saved, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOrder := cloneOrder(order)
	return &copyOrder, nil
}

func (s *Store) ListOrders(_ context.Context, status string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	status = strings.ToLower(strings.TrimSpace(status))
	result := make([]domain.Order, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		if status != "" && order.Status != status {
			continue
		}
		result = append(result, cloneOrder(order))
	}
	slices.SortFunc(result, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status string, deliveredAt *time.Time) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	order.Status = status
	if deliveredAt != nil {
		order.DeliveredAt = deliveredAt
	}
	s.ordersByID[id] = order
	copyOrder := cloneOrder(order)
	return &copyOrder, nil
}

func (s *Store) GetStockValuation(_ context.Context) (domain.StockValuationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.StockValuationReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Lines:       make([]domain.StockValuationLine, 0, len(s.products)),
	}

	byProduct := map[string]*domain.StockValuationLine{}
	for _, batch := range s.batchesByID {
		if batch.Status != domain.BatchStatusActive {
			continue
		}
		line := byProduct[batch.ProductID]
		if line == nil {
			product := s.products[batch.ProductID]
			line = &domain.StockValuationLine{
				ProductID:   batch.ProductID,
				ProductName: product.Name,
				Unit:        product.Unit,
			}
			byProduct[batch.ProductID] = line
		}
		line.StockQty += batch.Qty
		line.ActiveBatches++
		line.ValuePaise += batch.ValuePaise
	}

	for _, line := range byProduct {
		report.Lines = append(report.Lines, *line)
		report.TotalPaise += line.ValuePaise
	}
	slices.SortFunc(report.Lines, func(a, b domain.StockValuationLine) int {
		return cmpString(a.ProductName, b.ProductName)
	})

	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func compareBatchFIFO(a domain.InventoryBatch, b domain.InventoryBatch) int {
	if a.ExpiryDate == nil && b.ExpiryDate != nil {
		return 1
	}
	if a.ExpiryDate != nil && b.ExpiryDate == nil {
		return -1
	}
	if a.ExpiryDate != nil && b.ExpiryDate != nil {
		if a.ExpiryDate.Before(*b.ExpiryDate) {
			return -1
		}
		if a.ExpiryDate.After(*b.ExpiryDate) {
			return 1
		}
	}
	if a.ReceivedAt.Before(b.ReceivedAt) {
		return -1
	}
	if a.ReceivedAt.After(b.ReceivedAt) {
		return 1
	}
	return cmpString(a.ID, b.ID)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneBatch(src domain.InventoryBatch) domain.InventoryBatch {
	dup := src
	if src.ExpiryDate != nil {
		expiry := src.ExpiryDate.UTC()
		dup.ExpiryDate = &expiry
	}
	return dup
}

func clonePurchase(src domain.Purchase) domain.Purchase {
	dup := src
	items := make([]domain.PurchaseItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}

func cloneDistribution(src domain.Distribution) domain.Distribution {
	dup := src
	items := make([]domain.LineItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}

func cloneOrder(src domain.Order) domain.Order {
	dup := src
	items := make([]domain.LineItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}
