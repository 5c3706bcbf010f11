package domain

import "time"

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit"`
	PricePaise int64     `json:"price_paise"`
	StockQty   float64   `json:"stock_qty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	PricePaise int64  `json:"price_paise"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Unit       *string `json:"unit,omitempty"`
	PricePaise *int64  `json:"price_paise,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

type StockAdjustRequest struct {
	NewQty float64 `json:"new_qty"`
	Reason string  `json:"reason"`
}

type InventoryBatch struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"product_id"`
	BatchCode  string     `json:"batch_code"`
	Qty        float64    `json:"qty"`
	UnitCost   int64      `json:"unit_cost_paise"`
	ValuePaise int64      `json:"value_paise"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
	Status     string     `json:"status"`
	SourceType string     `json:"source_type"`
	SourceID   string     `json:"source_id,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

type BatchReceiveRequest struct {
	ProductID  string  `json:"product_id"`
	BatchCode  string  `json:"batch_code"`
	Qty        float64 `json:"qty"`
	UnitCost   int64   `json:"unit_cost_paise"`
	ExpiryDate string  `json:"expiry_date,omitempty"`
	Notes      string  `json:"notes"`
}

type BatchListResponse struct {
	Batches []InventoryBatch `json:"batches"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type PurchaseItem struct {
	ProductID  string  `json:"product_id"`
	Qty        float64 `json:"qty"`
	UnitCost   int64   `json:"unit_cost_paise"`
	ExpiryDate string  `json:"expiry_date,omitempty"`
}

type Purchase struct {
	ID            string         `json:"id"`
	SupplierID    string         `json:"supplier_id"`
	InvoiceNumber string         `json:"invoice_number"`
	TotalPaise    int64          `json:"total_paise"`
	ReceivedBy    string         `json:"received_by"`
	CreatedAt     time.Time      `json:"created_at"`
	Items         []PurchaseItem `json:"items"`
}

type PurchaseCreateRequest struct {
	SupplierID    string         `json:"supplier_id"`
	InvoiceNumber string         `json:"invoice_number"`
	Items         []PurchaseItem `json:"items"`
}

type PurchaseListResponse struct {
	Purchases []Purchase `json:"purchases"`
}

// BatchDraw is one step of a deduction plan: take Qty from the batch.
type BatchDraw struct {
	BatchID string  `json:"batch_id"`
	Qty     float64 `json:"qty"`
}

// LineItem is what both deduction trigger points carry: a free-text item
// name plus requested quantity. If BatchDraws is set the caller has chosen
// batches explicitly and the matcher and planner are skipped for that line.
type LineItem struct {
	ItemName   string      `json:"item_name"`
	Qty        float64     `json:"qty"`
	Unit       string      `json:"unit"`
	PricePaise int64       `json:"price_paise"`
	BatchDraws []BatchDraw `json:"batch_draws,omitempty"`
}

type Distribution struct {
	ID           string     `json:"id"`
	CatererName  string     `json:"caterer_name"`
	CatererPhone string     `json:"caterer_phone"`
	Status       string     `json:"status"`
	TotalPaise   int64      `json:"total_paise"`
	PaidPaise    int64      `json:"paid_paise"`
	CreatedAt    time.Time  `json:"created_at"`
	Items        []LineItem `json:"items"`
}

type DistributionCreateRequest struct {
	CatererName  string     `json:"caterer_name"`
	CatererPhone string     `json:"caterer_phone"`
	Items        []LineItem `json:"items"`
}

type DistributionResponse struct {
	Distribution Distribution     `json:"distribution"`
	Deduction    *DeductionResult `json:"deduction,omitempty"`
}

type DistributionListResponse struct {
	Distributions []Distribution `json:"distributions"`
}

type Payment struct {
	ID             string    `json:"id"`
	DistributionID string    `json:"distribution_id"`
	AmountPaise    int64     `json:"amount_paise"`
	Method         string    `json:"method"`
	Reference      string    `json:"reference,omitempty"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type PaymentCreateRequest struct {
	AmountPaise int64  `json:"amount_paise"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
	Note        string `json:"note"`
}

type PaymentListResponse struct {
	Payments []Payment `json:"payments"`
}

type Reminder struct {
	ID             string     `json:"id"`
	DistributionID string     `json:"distribution_id"`
	CatererName    string     `json:"caterer_name"`
	DueDate        time.Time  `json:"due_date"`
	Status         string     `json:"status"`
	Note           string     `json:"note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
}

type ReminderCreateRequest struct {
	DistributionID string `json:"distribution_id"`
	DueDate        string `json:"due_date"`
	Note           string `json:"note"`
}

type ReminderListResponse struct {
	Reminders []Reminder `json:"reminders"`
}

type ReminderRunResponse struct {
	Dispatched int    `json:"dispatched"`
	RanAt      string `json:"ran_at"`
}

type Order struct {
	ID              string     `json:"id"`
	CustomerName    string     `json:"customer_name"`
	CustomerPhone   string     `json:"customer_phone"`
	DeliveryAddress string     `json:"delivery_address"`
	Status          string     `json:"status"`
	TotalPaise      int64      `json:"total_paise"`
	CreatedAt       time.Time  `json:"created_at"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	Items           []LineItem `json:"items"`
}

type OrderCreateRequest struct {
	CustomerName    string     `json:"customer_name"`
	CustomerPhone   string     `json:"customer_phone"`
	DeliveryAddress string     `json:"delivery_address"`
	Items           []LineItem `json:"items"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

// DeductionResult summarizes what the engine did for one order or bill.
// On the delivery path unmatched and short lines are reported here rather
// than failing the delivery.
type DeductionResult struct {
	ReferenceType string             `json:"reference_type"`
	ReferenceID   string             `json:"reference_id"`
	LinesApplied  int                `json:"lines_applied"`
	LinesSkipped  []string           `json:"lines_skipped,omitempty"`
	Shortfalls    map[string]float64 `json:"shortfalls,omitempty"`
}

type InventoryTransaction struct {
	ID            string    `json:"id"`
	BatchID       string    `json:"batch_id"`
	ProductID     string    `json:"product_id"`
	Type          string    `json:"type"`
	Qty           float64   `json:"qty"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   string    `json:"reference_id"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type InventoryTransactionListResponse struct {
	Transactions []InventoryTransaction `json:"transactions"`
}

type StockValuationLine struct {
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	Unit          string  `json:"unit"`
	StockQty      float64 `json:"stock_qty"`
	ActiveBatches int     `json:"active_batches"`
	ValuePaise    int64   `json:"value_paise"`
}

type StockValuationReport struct {
	GeneratedAt string               `json:"generated_at"`
	TotalPaise  int64                `json:"total_paise"`
	Lines       []StockValuationLine `json:"lines"`
}

type CatalogEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	PricePaise int64  `json:"price_paise"`
	InStock    bool   `json:"in_stock"`
}

type CatalogResponse struct {
	Catalog []CatalogEntry `json:"catalog"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is the persistence model for login credentials. Password is
// a bcrypt hash, never plaintext.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	BatchStatusActive   = "active"
	BatchStatusInactive = "inactive"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

const (
	DistributionStatusBilled        = "billed"
	DistributionStatusPartiallyPaid = "partially_paid"
	DistributionStatusPaid          = "paid"
)

const (
	ReminderStatusPending   = "pending"
	ReminderStatusSent      = "sent"
	ReminderStatusCancelled = "cancelled"
)

const (
	TxTypeDeduction  = "deduction"
	TxTypeAdjustment = "adjustment"

	RefTypeOrderDelivery = "order_delivery"
	RefTypeCustomerBill  = "customer_bill"
	RefTypeManual        = "manual"
)
