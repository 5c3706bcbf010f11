package store

import (
	"context"
	"errors"
	"time"

	"spicedesk/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNoMatch           = errors.New("no matching product")
	ErrInvalidInput      = errors.New("invalid input")
)

// DeductionApply is the unit of work for the ledger updater: every draw in
// Draws commits atomically or none of them do.
type DeductionApply struct {
	Draws         []domain.BatchDraw
	ReferenceType string
	ReferenceID   string
	Note          string
}

type Repository interface {
	ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetProductStock(ctx context.Context, productID string, qty float64) error

	CreateBatch(ctx context.Context, batch domain.InventoryBatch) (*domain.InventoryBatch, error)
	GetBatchByID(ctx context.Context, id string) (*domain.InventoryBatch, error)
	ListBatches(ctx context.Context, productID string, activeOnly bool, limit int) ([]domain.InventoryBatch, error)
	ListActiveBatchesFIFO(ctx context.Context, productID string) ([]domain.InventoryBatch, error)
	ApplyDeduction(ctx context.Context, apply DeductionApply) ([]domain.InventoryTransaction, error)
	CreateInventoryTransaction(ctx context.Context, entry domain.InventoryTransaction) (*domain.InventoryTransaction, error)
	ListInventoryTransactions(ctx context.Context, productID string, limit int) ([]domain.InventoryTransaction, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, supplierID string, limit int) ([]domain.Purchase, error)

	CreateDistribution(ctx context.Context, dist domain.Distribution) (*domain.Distribution, error)
	// CreateDistributionWithDeduction posts the bill and applies its draws in
	// one unit of work, so a failed insert never leaves stock drawn down. An
	// empty draw list posts the bill alone.
	CreateDistributionWithDeduction(ctx context.Context, dist domain.Distribution, apply DeductionApply) (*domain.Distribution, error)
	GetDistributionByID(ctx context.Context, id string) (*domain.Distribution, error)
	ListDistributions(ctx context.Context, status string, limit int) ([]domain.Distribution, error)
	UpdateDistributionPayment(ctx context.Context, id string, paidPaise int64, status string) (*domain.Distribution, error)

	CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	ListPayments(ctx context.Context, distributionID string) ([]domain.Payment, error)

	CreateReminder(ctx context.Context, reminder domain.Reminder) (*domain.Reminder, error)
	ListReminders(ctx context.Context, status string, limit int) ([]domain.Reminder, error)
	ListDueReminders(ctx context.Context, asOf time.Time) ([]domain.Reminder, error)
	UpdateReminderStatus(ctx context.Context, id string, status string, sentAt *time.Time) (*domain.Reminder, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status string, deliveredAt *time.Time) (*domain.Order, error)

	GetStockValuation(ctx context.Context) (domain.StockValuationReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
