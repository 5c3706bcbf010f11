package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"spicedesk/internal/domain"
	"spicedesk/internal/store"
	"spicedesk/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, price_paise, stock_qty, active, created_at
		FROM products
		WHERE ($1 OR active = true)
		ORDER BY name
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.PricePaise, &p.StockQty, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" || product.Unit == "" || product.PricePaise < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, unit, price_paise, stock_qty, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,0,$5,$6,now())
	`, product.ID, product.Name, product.Unit, product.PricePaise, product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit, price_paise, stock_qty, active, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Unit, &product.PricePaise, &product.StockQty, &product.Active, &product.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	product.CreatedAt = product.CreatedAt.UTC()
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Unit == "" || product.PricePaise < 1 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, unit = $3, price_paise = $4, active = $5, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Unit, product.PricePaise, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) SetProductStock(ctx context.Context, productID string, qty float64) error {
	if qty < 0 {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = $2, updated_at = now()
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateBatch(ctx context.Context, batch domain.InventoryBatch) (*domain.InventoryBatch, error) {
	if strings.TrimSpace(batch.ProductID) == "" || batch.Qty <= 0 || batch.UnitCost < 1 {
		return nil, store.ErrInvalidInput
	}
	if batch.ID == "" {
		batch.ID = xid.New("bat")
	}
	batch.BatchCode = strings.TrimSpace(batch.BatchCode)
	if batch.BatchCode == "" {
		batch.BatchCode = "MANUAL-" + batch.ID
	}
	if batch.SourceType == "" {
		batch.SourceType = "manual"
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	batch.Status = domain.BatchStatusActive
	batch.ValuePaise = int64(math.Round(batch.Qty * float64(batch.UnitCost)))

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_batches (
			id, product_id, batch_code, qty, unit_cost_paise, value_paise,
			expiry_date, received_at, status, source_type, source_id, notes, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
	`, batch.ID, batch.ProductID, batch.BatchCode, batch.Qty, batch.UnitCost, batch.ValuePaise,
		nullDate(batch.ExpiryDate), batch.ReceivedAt, batch.Status, batch.SourceType, nullIfEmpty(batch.SourceID), strings.TrimSpace(batch.Notes))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = stock_qty + $2, updated_at = now()
		WHERE id = $1
	`, batch.ProductID, batch.Qty)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := batch
	return &created, nil
}

func (s *Store) GetBatchByID(ctx context.Context, id string) (*domain.InventoryBatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, batch_code, qty, unit_cost_paise, value_paise,
			expiry_date, received_at, status, source_type, source_id, notes
		FROM inventory_batches
		WHERE id = $1
	`, id)
	batch, err := scanBatchRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return batch, nil
}

func (s *Store) ListBatches(ctx context.Context, productID string, activeOnly bool, limit int) ([]domain.InventoryBatch, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, batch_code, qty, unit_cost_paise, value_paise,
			expiry_date, received_at, status, source_type, source_id, notes
		FROM inventory_batches
		WHERE ($1 = '' OR product_id = $1)
			AND (NOT $2 OR status = 'active')
		ORDER BY expiry_date ASC NULLS LAST, received_at ASC
		LIMIT $3
	`, productID, activeOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBatchRows(rows, limit)
}

func (s *Store) ListActiveBatchesFIFO(ctx context.Context, productID string) ([]domain.InventoryBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, batch_code, qty, unit_cost_paise, value_paise,
			expiry_date, received_at, status, source_type, source_id, notes
		FROM inventory_batches
		WHERE product_id = $1 AND status = 'active' AND qty > 0
		ORDER BY expiry_date ASC NULLS LAST, received_at ASC
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBatchRows(rows, 64)
}

// ApplyDeduction commits every draw in one serializable transaction. Each
// batch row is locked before it is checked, so concurrent deductions against
// the same batches serialize instead of double-spending quantity.
func (s *Store) ApplyDeduction(ctx context.Context, apply store.DeductionApply) ([]domain.InventoryTransaction, error) {
	if len(apply.Draws) == 0 || apply.ReferenceType == "" || apply.ReferenceID == "" {
		return nil, store.ErrInvalidInput
	}
	for _, draw := range apply.Draws {
		if draw.BatchID == "" || draw.Qty <= 0 {
			return nil, store.ErrInvalidInput
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	entries, err := applyDrawsTx(ctx, tx, apply)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

// applyDrawsTx runs the per-draw lock/check/update/append loop inside the
// caller's transaction.
func applyDrawsTx(ctx context.Context, tx *sql.Tx, apply store.DeductionApply) ([]domain.InventoryTransaction, error) {
	now := time.Now().UTC()
	entries := make([]domain.InventoryTransaction, 0, len(apply.Draws))
	for _, draw := range apply.Draws {
		var productID string
		var qty float64
		var unitCost int64
		var status string
		err := tx.QueryRowContext(ctx, `
			SELECT product_id, qty, unit_cost_paise, status
			FROM inventory_batches
			WHERE id = $1
			FOR UPDATE
		`, draw.BatchID).Scan(&productID, &qty, &unitCost, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if status != domain.BatchStatusActive {
			return nil, store.ErrInvalidInput
		}
		if qty < draw.Qty {
			return nil, store.ErrInsufficientStock
		}

		remaining := qty - draw.Qty
		nextStatus := domain.BatchStatusActive
		if remaining == 0 {
			nextStatus = domain.BatchStatusInactive
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE inventory_batches
			SET qty = $2, value_paise = $3, status = $4, updated_at = now()
			WHERE id = $1
		`, draw.BatchID, remaining, int64(math.Round(remaining*float64(unitCost))), nextStatus)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = GREATEST(stock_qty - $2, 0), updated_at = now()
			WHERE id = $1
		`, productID, draw.Qty)
		if err != nil {
			return nil, err
		}

		entry := domain.InventoryTransaction{
			ID:            xid.New("itx"),
			BatchID:       draw.BatchID,
			ProductID:     productID,
			Type:          domain.TxTypeDeduction,
			Qty:           draw.Qty,
			ReferenceType: apply.ReferenceType,
			ReferenceID:   apply.ReferenceID,
			Note:          apply.Note,
			CreatedAt:     now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory_transactions (id, batch_id, product_id, type, qty, reference_type, reference_id, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, entry.ID, entry.BatchID, entry.ProductID, entry.Type, entry.Qty, entry.ReferenceType, entry.ReferenceID, strings.TrimSpace(entry.Note), entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *Store) CreateInventoryTransaction(ctx context.Context, entry domain.InventoryTransaction) (*domain.InventoryTransaction, error) {
	if entry.ProductID == "" || entry.Type == "" || entry.ReferenceType == "" {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("itx")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_transactions (id, batch_id, product_id, type, qty, reference_type, reference_id, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, nullIfEmpty(entry.BatchID), entry.ProductID, entry.Type, entry.Qty, entry.ReferenceType, entry.ReferenceID, strings.TrimSpace(entry.Note), entry.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	saved := entry
	return &saved, nil
}

func (s *Store) ListInventoryTransactions(ctx context.Context, productID string, limit int) ([]domain.InventoryTransaction, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(batch_id, ''), product_id, type, qty, reference_type, reference_id, note, created_at
		FROM inventory_transactions
		WHERE ($1 = '' OR product_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.InventoryTransaction, 0, limit)
	for rows.Next() {
		var entry domain.InventoryTransaction
		if err := rows.Scan(&entry.ID, &entry.BatchID, &entry.ProductID, &entry.Type, &entry.Qty, &entry.ReferenceType, &entry.ReferenceID, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	supplier.Phone = strings.TrimSpace(supplier.Phone)
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, address, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, supplier.ID, supplier.Name, supplier.Phone, supplier.Address, supplier.CreatedAt)
	if err != nil {
		return nil, err
	}
	saved := supplier
	return &saved, nil
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, address, created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.Address, &supplier.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	supplier.CreatedAt = supplier.CreatedAt.UTC()
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, address, created_at
		FROM suppliers
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.Address, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		supplier.CreatedAt = supplier.CreatedAt.UTC()
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(purchase.Items)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, supplier_id, invoice_number, total_paise, received_by, items, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, purchase.ID, purchase.SupplierID, purchase.InvoiceNumber, purchase.TotalPaise, purchase.ReceivedBy, itemsJSON, purchase.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	saved := purchase
	return &saved, nil
}

func (s *Store) GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error) {
	var purchase domain.Purchase
	var itemsJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, supplier_id, invoice_number, total_paise, received_by, items, created_at
		FROM purchases
		WHERE id = $1
	`, id).Scan(&purchase.ID, &purchase.SupplierID, &purchase.InvoiceNumber, &purchase.TotalPaise, &purchase.ReceivedBy, &itemsJSON, &purchase.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &purchase.Items); err != nil {
		return nil, err
	}
	purchase.CreatedAt = purchase.CreatedAt.UTC()
	return &purchase, nil
}

func (s *Store) ListPurchases(ctx context.Context, supplierID string, limit int) ([]domain.Purchase, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, invoice_number, total_paise, received_by, items, created_at
		FROM purchases
		WHERE ($1 = '' OR supplier_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, supplierID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, limit)
	for rows.Next() {
		var purchase domain.Purchase
		var itemsJSON []byte
		if err := rows.Scan(&purchase.ID, &purchase.SupplierID, &purchase.InvoiceNumber, &purchase.TotalPaise, &purchase.ReceivedBy, &itemsJSON, &purchase.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &purchase.Items); err != nil {
			return nil, err
		}
		purchase.CreatedAt = purchase.CreatedAt.UTC()
		purchases = append(purchases, purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) CreateDistribution(ctx context.Context, dist domain.Distribution) (*domain.Distribution, error) {
	return insertDistribution(ctx, s.db, dist)
}

// CreateDistributionWithDeduction draws down the batches and posts the bill
// row in one serializable transaction, so a failed insert rolls the draws
// back instead of leaving orphaned ledger rows.
func (s *Store) CreateDistributionWithDeduction(ctx context.Context, dist domain.Distribution, apply store.DeductionApply) (*domain.Distribution, error) {
	for _, draw := range apply.Draws {
		if draw.BatchID == "" || draw.Qty <= 0 {
			return nil, store.ErrInvalidInput
		}
	}
	if len(apply.Draws) > 0 && (apply.ReferenceType == "" || apply.ReferenceID == "") {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if len(apply.Draws) > 0 {
		if _, err := applyDrawsTx(ctx, tx, apply); err != nil {
			return nil, err
		}
	}

	saved, err := insertDistribution(ctx, tx, dist)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

type execContext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertDistribution(ctx context.Context, ex execContext, dist domain.Distribution) (*domain.Distribution, error) {
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

	itemsJSON, err := json.Marshal(dist.Items)
	if err != nil {
		return nil, err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO distributions (id, caterer_name, caterer_phone, status, total_paise, paid_paise, items, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, dist.ID, dist.CatererName, dist.CatererPhone, dist.Status, dist.TotalPaise, dist.PaidPaise, itemsJSON, dist.CreatedAt)
	if err != nil {
		return nil, err
	}
	saved := dist
	return &saved, nil
}

func (s *Store) GetDistributionByID(ctx context.Context, id string) (*domain.Distribution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, caterer_name, caterer_phone, status, total_paise, paid_paise, items, created_at
		FROM distributions
		WHERE id = $1
	`, id)
	dist, err := scanDistributionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return dist, nil
}

func (s *Store) ListDistributions(ctx context.Context, status string, limit int) ([]domain.Distribution, error) {
	if limit < 1 {
		limit = 100
	}
	status = strings.ToLower(strings.TrimSpace(status))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, caterer_name, caterer_phone, status, total_paise, paid_paise, items, created_at
		FROM distributions
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dists := make([]domain.Distribution, 0, limit)
	for rows.Next() {
		var dist domain.Distribution
		var itemsJSON []byte
		if err := rows.Scan(&dist.ID, &dist.CatererName, &dist.CatererPhone, &dist.Status, &dist.TotalPaise, &dist.PaidPaise, &itemsJSON, &dist.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &dist.Items); err != nil {
			return nil, err
		}
		dist.CreatedAt = dist.CreatedAt.UTC()
		dists = append(dists, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dists, nil
}

func (s *Store) UpdateDistributionPayment(ctx context.Context, id string, paidPaise int64, status string) (*domain.Distribution, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE distributions
		SET paid_paise = $2, status = $3
		WHERE id = $1
	`, id, paidPaise, status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetDistributionByID(ctx, id)
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.DistributionID == "" || payment.AmountPaise < 1 {
		return nil, store.ErrInvalidInput
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, distribution_id, amount_paise, method, reference, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, payment.ID, payment.DistributionID, payment.AmountPaise, payment.Method, nullIfEmpty(payment.Reference), strings.TrimSpace(payment.Note), payment.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	saved := payment
	return &saved, nil
}

func (s *Store) ListPayments(ctx context.Context, distributionID string) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, distribution_id, amount_paise, method, COALESCE(reference,''), note, created_at
		FROM payments
		WHERE ($1 = '' OR distribution_id = $1)
		ORDER BY created_at ASC
	`, distributionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 16)
	for rows.Next() {
		var payment domain.Payment
		if err := rows.Scan(&payment.ID, &payment.DistributionID, &payment.AmountPaise, &payment.Method, &payment.Reference, &payment.Note, &payment.CreatedAt); err != nil {
			return nil, err
		}
		payment.CreatedAt = payment.CreatedAt.UTC()
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) CreateReminder(ctx context.Context, reminder domain.Reminder) (*domain.Reminder, error) {
	if reminder.DistributionID == "" || reminder.DueDate.IsZero() {
		return nil, store.ErrInvalidInput
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, distribution_id, caterer_name, due_date, status, note, created_at, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, reminder.ID, reminder.DistributionID, reminder.CatererName, reminder.DueDate, reminder.Status, strings.TrimSpace(reminder.Note), reminder.CreatedAt, nullTime(reminder.SentAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	saved := reminder
	return &saved, nil
}

func (s *Store) ListReminders(ctx context.Context, status string, limit int) ([]domain.Reminder, error) {
	if limit < 1 {
		limit = 100
	}
	status = strings.ToLower(strings.TrimSpace(status))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, distribution_id, caterer_name, due_date, status, note, created_at, sent_at
		FROM reminders
		WHERE ($1 = '' OR status = $1)
		ORDER BY due_date ASC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminderRows(rows, limit)
}

func (s *Store) ListDueReminders(ctx context.Context, asOf time.Time) ([]domain.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, distribution_id, caterer_name, due_date, status, note, created_at, sent_at
		FROM reminders
		WHERE status = 'pending' AND due_date <= $1
		ORDER BY due_date ASC
	`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminderRows(rows, 32)
}

func (s *Store) UpdateReminderStatus(ctx context.Context, id string, status string, sentAt *time.Time) (*domain.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE reminders
		SET status = $2, sent_at = $3
		WHERE id = $1
		RETURNING id, distribution_id, caterer_name, due_date, status, note, created_at, sent_at
	`, id, status, nullTime(sentAt))

	reminder, err := scanReminderRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return reminder, nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
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

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, customer_name, customer_phone, delivery_address, status, total_paise, items, created_at, delivered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, order.ID, order.CustomerName, order.CustomerPhone, order.DeliveryAddress, order.Status, order.TotalPaise, itemsJSON, order.CreatedAt, nullTime(order.DeliveredAt))
	if err != nil {
		return nil, err
	}
	saved := order
	return &saved, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_name, customer_phone, delivery_address, status, total_paise, items, created_at, delivered_at
		FROM orders
		WHERE id = $1
	`, id)
	order, err := scanOrderRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *Store) ListOrders(ctx context.Context, status string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 100
	}
	status = strings.ToLower(strings.TrimSpace(status))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, customer_phone, delivery_address, status, total_paise, items, created_at, delivered_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status string, deliveredAt *time.Time) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, delivered_at = COALESCE($3, delivered_at)
		WHERE id = $1
	`, id, status, nullTime(deliveredAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetOrderByID(ctx, id)
}

func (s *Store) GetStockValuation(ctx context.Context) (domain.StockValuationReport, error) {
	report := domain.StockValuationReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Lines:       make([]domain.StockValuationLine, 0, 64),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.unit,
			COALESCE(SUM(b.qty),0)::float8,
			COUNT(b.id)::int,
			COALESCE(SUM(b.value_paise),0)::bigint
		FROM products p
		JOIN inventory_batches b ON b.product_id = p.id AND b.status = 'active'
		GROUP BY p.id, p.name, p.unit
		ORDER BY p.name
	`)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.StockValuationLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Unit, &line.StockQty, &line.ActiveBatches, &line.ValuePaise); err != nil {
			return report, err
		}
		report.Lines = append(report.Lines, line)
		report.TotalPaise += line.ValuePaise
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatchRow(row rowScanner) (*domain.InventoryBatch, error) {
	var batch domain.InventoryBatch
	var expiry sql.NullTime
	var sourceID sql.NullString
	err := row.Scan(&batch.ID, &batch.ProductID, &batch.BatchCode, &batch.Qty, &batch.UnitCost, &batch.ValuePaise,
		&expiry, &batch.ReceivedAt, &batch.Status, &batch.SourceType, &sourceID, &batch.Notes)
	if err != nil {
		return nil, err
	}
	batch.ReceivedAt = batch.ReceivedAt.UTC()
	if expiry.Valid {
		e := nowDateUTC(expiry.Time.UTC())
		batch.ExpiryDate = &e
	}
	if sourceID.Valid {
		batch.SourceID = sourceID.String
	}
	return &batch, nil
}

func scanBatchRows(rows *sql.Rows, hint int) ([]domain.InventoryBatch, error) {
	batches := make([]domain.InventoryBatch, 0, hint)
	for rows.Next() {
		batch, err := scanBatchRow(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func scanDistributionRow(row rowScanner) (*domain.Distribution, error) {
	var dist domain.Distribution
	var itemsJSON []byte
	err := row.Scan(&dist.ID, &dist.CatererName, &dist.CatererPhone, &dist.Status, &dist.TotalPaise, &dist.PaidPaise, &itemsJSON, &dist.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &dist.Items); err != nil {
		return nil, err
	}
	dist.CreatedAt = dist.CreatedAt.UTC()
	return &dist, nil
}

func scanOrderRow(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON []byte
	var deliveredAt sql.NullTime
	err := row.Scan(&order.ID, &order.CustomerName, &order.CustomerPhone, &order.DeliveryAddress, &order.Status, &order.TotalPaise, &itemsJSON, &order.CreatedAt, &deliveredAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	if deliveredAt.Valid {
		at := deliveredAt.Time.UTC()
		order.DeliveredAt = &at
	}
	return &order, nil
}

func scanReminderRow(row rowScanner) (*domain.Reminder, error) {
	var reminder domain.Reminder
	var sentAt sql.NullTime
	err := row.Scan(&reminder.ID, &reminder.DistributionID, &reminder.CatererName, &reminder.DueDate, &reminder.Status, &reminder.Note, &reminder.CreatedAt, &sentAt)
	if err != nil {
		return nil, err
	}
	reminder.DueDate = reminder.DueDate.UTC()
	reminder.CreatedAt = reminder.CreatedAt.UTC()
	if sentAt.Valid {
		at := sentAt.Time.UTC()
		reminder.SentAt = &at
	}
	return &reminder, nil
}

func scanReminderRows(rows *sql.Rows, hint int) ([]domain.Reminder, error) {
	reminders := make([]domain.Reminder, 0, hint)
	for rows.Next() {
		reminder, err := scanReminderRow(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reminders, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return nowDateUTC(*val)
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
