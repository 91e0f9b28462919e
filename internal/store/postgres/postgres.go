package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
)

// atomicAttempts is the internal retry limit for serialization conflicts.
const atomicAttempts = 5

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

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Atomic runs fn inside a serializable transaction. Serialization failures
// and deadlocks re-run the whole fn against fresh state; after
// atomicAttempts the conflict surfaces as store.ErrConflict.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < atomicAttempts; attempt++ {
		pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}

		tx := &sqlTx{tx: pgTx}
		if err := fn(ctx, tx); err != nil {
			_ = pgTx.Rollback()
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := pgTx.Commit(); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: retries exhausted: %v", store.ErrConflict, lastErr)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

type sqlTx struct {
	tx     *sql.Tx
	writes int
}

func (t *sqlTx) SumMovements(ctx context.Context, variantID, warehouseID string) (int, error) {
	var sum int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(qty), 0)
		FROM stock_movements
		WHERE variant_id = $1 AND warehouse_id = $2
	`, variantID, warehouseID).Scan(&sum)
	return sum, err
}

func (t *sqlTx) SumCashTransactions(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type IN ('in','transfer_in') THEN amount_cents ELSE -amount_cents END), 0)
		FROM cash_transactions
		WHERE account_id = $1
	`, accountID).Scan(&sum)
	return sum, err
}

func (t *sqlTx) WriteCount() int {
	return t.writes
}

func (t *sqlTx) GetWarehouse(ctx context.Context, warehouseID string) (domain.Warehouse, error) {
	var w domain.Warehouse
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, code
		FROM warehouses
		WHERE id = $1
	`, warehouseID).Scan(&w.ID, &w.Name, &w.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Warehouse{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Warehouse{}, err
	}
	return w, nil
}

func (t *sqlTx) GetSnapshot(ctx context.Context, variantID, warehouseID string) (domain.StockSnapshot, error) {
	snap := domain.StockSnapshot{VariantID: variantID, WarehouseID: warehouseID}
	err := t.tx.QueryRowContext(ctx, `
		SELECT qty, updated_at
		FROM stock_snapshots
		WHERE id = $1
	`, domain.SnapshotKey(variantID, warehouseID)).Scan(&snap.Qty, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, nil
	}
	if err != nil {
		return domain.StockSnapshot{}, err
	}
	return snap, nil
}

func (t *sqlTx) PutSnapshot(ctx context.Context, snap domain.StockSnapshot) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_snapshots (id, variant_id, warehouse_id, qty, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (id)
		DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()
	`, domain.SnapshotKey(snap.VariantID, snap.WarehouseID), snap.VariantID, snap.WarehouseID, snap.Qty)
	if err != nil {
		return err
	}
	t.writes++
	return nil
}

func (t *sqlTx) AppendMovement(ctx context.Context, mv domain.StockMovement) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, variant_id, warehouse_id, type, origin, qty, ref_id, ref_type, date, notes, actor)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, mv.ID, mv.VariantID, mv.WarehouseID, string(mv.Type), string(mv.Origin), mv.Qty,
		nullIfEmpty(mv.RefID), nullIfEmpty(mv.RefType), mv.Date, strings.TrimSpace(mv.Notes), nullIfEmpty(mv.Actor))
	if err != nil {
		return err
	}
	t.writes++
	return nil
}

func (t *sqlTx) GetAccount(ctx context.Context, accountID string) (domain.CashAccount, error) {
	var acc domain.CashAccount
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, code, balance_cents
		FROM cash_accounts
		WHERE id = $1
	`, accountID).Scan(&acc.ID, &acc.Name, &acc.Code, &acc.BalanceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CashAccount{}, store.ErrNotFound
	}
	if err != nil {
		return domain.CashAccount{}, err
	}
	return acc, nil
}

func (t *sqlTx) PutAccount(ctx context.Context, account domain.CashAccount) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cash_accounts (id, name, code, balance_cents, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, code = EXCLUDED.code,
			balance_cents = EXCLUDED.balance_cents, updated_at = now()
	`, account.ID, account.Name, account.Code, account.BalanceCents)
	if err != nil {
		return err
	}
	t.writes++
	return nil
}

func (t *sqlTx) GetCashTransaction(ctx context.Context, entryID string) (domain.CashTransaction, error) {
	var entry domain.CashTransaction
	var txType string
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, type, amount_cents, account_id,
			COALESCE(category,''), COALESCE(description,''), date,
			COALESCE(ref_type,''), COALESCE(ref_id,''), COALESCE(actor,'')
		FROM cash_transactions
		WHERE id = $1
	`, entryID).Scan(&entry.ID, &txType, &entry.AmountCents, &entry.AccountID,
		&entry.Category, &entry.Description, &entry.Date, &entry.RefType, &entry.RefID, &entry.Actor)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CashTransaction{}, store.ErrNotFound
	}
	if err != nil {
		return domain.CashTransaction{}, err
	}
	entry.Type = domain.CashTxType(txType)
	return entry, nil
}

func (t *sqlTx) PutCashTransaction(ctx context.Context, entry domain.CashTransaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cash_transactions (id, type, amount_cents, account_id, category, description, date, ref_type, ref_id, actor)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id)
		DO UPDATE SET type = EXCLUDED.type, amount_cents = EXCLUDED.amount_cents,
			account_id = EXCLUDED.account_id, category = EXCLUDED.category,
			description = EXCLUDED.description, date = EXCLUDED.date
	`, entry.ID, string(entry.Type), entry.AmountCents, entry.AccountID,
		nullIfEmpty(entry.Category), nullIfEmpty(entry.Description), entry.Date,
		nullIfEmpty(entry.RefType), nullIfEmpty(entry.RefID), nullIfEmpty(entry.Actor))
	if err != nil {
		return err
	}
	t.writes++
	return nil
}

func (t *sqlTx) DeleteCashTransaction(ctx context.Context, entryID string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM cash_transactions WHERE id = $1`, entryID)
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
	t.writes++
	return nil
}

func (t *sqlTx) GetVariant(ctx context.Context, variantID string) (domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, product_id, sku, COALESCE(marketplace_sku,''), name, price_cents, cost_cents, active
		FROM product_variants
		WHERE id = $1
	`, variantID).Scan(&v.ID, &v.ProductID, &v.SKU, &v.MarketplaceSKU, &v.Name, &v.PriceCents, &v.CostCents, &v.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProductVariant{}, store.ErrNotFound
	}
	if err != nil {
		return domain.ProductVariant{}, err
	}
	return v, nil
}

func (t *sqlTx) ResolveVariantSKU(ctx context.Context, sku string) (domain.ProductVariant, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.ProductVariant{}, store.ErrNotFound
	}
	var v domain.ProductVariant
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, product_id, sku, COALESCE(marketplace_sku,''), name, price_cents, cost_cents, active
		FROM product_variants
		WHERE upper(sku) = $1 OR upper(COALESCE(marketplace_sku,'')) = $1
		ORDER BY (upper(sku) = $1) DESC
		LIMIT 1
	`, sku).Scan(&v.ID, &v.ProductID, &v.SKU, &v.MarketplaceSKU, &v.Name, &v.PriceCents, &v.CostCents, &v.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProductVariant{}, store.ErrNotFound
	}
	if err != nil {
		return domain.ProductVariant{}, err
	}
	return v, nil
}

func (t *sqlTx) FindSalesOrderByNo(ctx context.Context, orderNo string) (domain.SalesOrder, error) {
	var order domain.SalesOrder
	var itemsJSON []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, order_no, COALESCE(channel,''), COALESCE(customer_id,''), status,
			warehouse_id, COALESCE(account_id,''), total_cents, received_cents,
			change_cents, paid, created_at, COALESCE(actor,''), items
		FROM sales_orders
		WHERE order_no = $1
	`, orderNo).Scan(&order.ID, &order.OrderNo, &order.Channel, &order.CustomerID, &order.Status,
		&order.WarehouseID, &order.AccountID, &order.TotalCents, &order.ReceivedCents,
		&order.ChangeCents, &order.Paid, &order.CreatedAt, &order.Actor, &itemsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SalesOrder{}, store.ErrNotFound
	}
	if err != nil {
		return domain.SalesOrder{}, err
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return domain.SalesOrder{}, err
		}
	}
	return order, nil
}

func (t *sqlTx) PutSalesOrder(ctx context.Context, order domain.SalesOrder) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO sales_orders (id, order_no, channel, customer_id, status, warehouse_id,
			account_id, total_cents, received_cents, change_cents, paid, created_at, actor, items)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, order.ID, order.OrderNo, nullIfEmpty(order.Channel), nullIfEmpty(order.CustomerID), order.Status,
		order.WarehouseID, nullIfEmpty(order.AccountID), order.TotalCents, order.ReceivedCents,
		order.ChangeCents, order.Paid, order.CreatedAt, nullIfEmpty(order.Actor), itemsJSON)
	if err != nil {
		return err
	}
	t.writes++
	return nil
}

func (t *sqlTx) UpdateSalesOrderStatus(ctx context.Context, orderID, status string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sales_orders SET status = $2, updated_at = now() WHERE id = $1
	`, orderID, status)
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
	t.writes++
	return nil
}

func (t *sqlTx) PutPurchaseOrder(ctx context.Context, order domain.PurchaseOrder) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, order_no, supplier_id, warehouse_id, status,
			total_cents, paid_from_account_id, created_at, actor, items)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, order.ID, nullIfEmpty(order.OrderNo), order.SupplierID, order.WarehouseID, order.Status,
		order.TotalCents, nullIfEmpty(order.PaidFromAccountID), order.CreatedAt, nullIfEmpty(order.Actor), itemsJSON)
	if err != nil {
		return err
	}
	t.writes++
	return nil
}

func (s *Store) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, code FROM warehouses ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Warehouse, 0, 16)
	for rows.Next() {
		var w domain.Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Code); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) ListVariants(ctx context.Context) ([]domain.ProductVariant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, sku, COALESCE(marketplace_sku,''), name, price_cents, cost_cents, active
		FROM product_variants
		WHERE active = true
		ORDER BY sku
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ProductVariant, 0, 128)
	for rows.Next() {
		var v domain.ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.MarketplaceSKU, &v.Name, &v.PriceCents, &v.CostCents, &v.Active); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) ListSnapshots(ctx context.Context, warehouseID string) ([]domain.StockSnapshot, error) {
	query := `SELECT variant_id, warehouse_id, qty, updated_at FROM stock_snapshots`
	args := []any{}
	if warehouseID != "" {
		query += ` WHERE warehouse_id = $1`
		args = append(args, warehouseID)
	}
	query += ` ORDER BY variant_id, warehouse_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StockSnapshot, 0, 256)
	for rows.Next() {
		var snap domain.StockSnapshot
		if err := rows.Scan(&snap.VariantID, &snap.WarehouseID, &snap.Qty, &snap.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) ListMovements(ctx context.Context, variantID, warehouseID string, limit int) ([]domain.StockMovement, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, variant_id, warehouse_id, type, origin, qty,
			COALESCE(ref_id,''), COALESCE(ref_type,''), date, COALESCE(notes,''), COALESCE(actor,'')
		FROM stock_movements
		WHERE ($1 = '' OR variant_id = $1)
			AND ($2 = '' OR warehouse_id = $2)
		ORDER BY date DESC, id DESC
		LIMIT $3
	`, variantID, warehouseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StockMovement, 0, limit)
	for rows.Next() {
		var mv domain.StockMovement
		var mvType, origin string
		if err := rows.Scan(&mv.ID, &mv.VariantID, &mv.WarehouseID, &mvType, &origin, &mv.Qty,
			&mv.RefID, &mv.RefType, &mv.Date, &mv.Notes, &mv.Actor); err != nil {
			return nil, err
		}
		mv.Type = domain.MovementType(mvType)
		mv.Origin = domain.MovementOrigin(origin)
		out = append(out, mv)
	}
	return out, rows.Err()
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.CashAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, code, balance_cents FROM cash_accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.CashAccount, 0, 16)
	for rows.Next() {
		var acc domain.CashAccount
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.Code, &acc.BalanceCents); err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (s *Store) ListChartOfAccounts(ctx context.Context) ([]domain.ChartOfAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type FROM chart_of_accounts ORDER BY type, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChartOfAccount, 0, 32)
	for rows.Next() {
		var coa domain.ChartOfAccount
		if err := rows.Scan(&coa.ID, &coa.Name, &coa.Type); err != nil {
			return nil, err
		}
		out = append(out, coa)
	}
	return out, rows.Err()
}

func (s *Store) ListCashTransactions(ctx context.Context, accountID string, from, to time.Time, limit int) ([]domain.CashTransaction, error) {
	if limit < 1 {
		limit = 200
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, amount_cents, account_id,
			COALESCE(category,''), COALESCE(description,''), date,
			COALESCE(ref_type,''), COALESCE(ref_id,''), COALESCE(actor,'')
		FROM cash_transactions
		WHERE ($1 = '' OR account_id = $1)
			AND date >= $2 AND date < $3
		ORDER BY date DESC, id DESC
		LIMIT $4
	`, accountID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.CashTransaction, 0, limit)
	for rows.Next() {
		var entry domain.CashTransaction
		var txType string
		if err := rows.Scan(&entry.ID, &txType, &entry.AmountCents, &entry.AccountID,
			&entry.Category, &entry.Description, &entry.Date, &entry.RefType, &entry.RefID, &entry.Actor); err != nil {
			return nil, err
		}
		entry.Type = domain.CashTxType(txType)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) ListSalesOrders(ctx context.Context, limit int) ([]domain.SalesOrder, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_no, COALESCE(channel,''), COALESCE(customer_id,''), status,
			warehouse_id, COALESCE(account_id,''), total_cents, received_cents,
			change_cents, paid, created_at, COALESCE(actor,''), items
		FROM sales_orders
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SalesOrder, 0, limit)
	for rows.Next() {
		var order domain.SalesOrder
		var itemsJSON []byte
		if err := rows.Scan(&order.ID, &order.OrderNo, &order.Channel, &order.CustomerID, &order.Status,
			&order.WarehouseID, &order.AccountID, &order.TotalCents, &order.ReceivedCents,
			&order.ChangeCents, &order.Paid, &order.CreatedAt, &order.Actor, &itemsJSON); err != nil {
			return nil, err
		}
		if len(itemsJSON) > 0 {
			if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
				return nil, err
			}
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (s *Store) ListPurchaseOrders(ctx context.Context, limit int) ([]domain.PurchaseOrder, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(order_no,''), supplier_id, warehouse_id, status,
			total_cents, COALESCE(paid_from_account_id,''), created_at, COALESCE(actor,''), items
		FROM purchase_orders
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PurchaseOrder, 0, limit)
	for rows.Next() {
		var order domain.PurchaseOrder
		var itemsJSON []byte
		if err := rows.Scan(&order.ID, &order.OrderNo, &order.SupplierID, &order.WarehouseID, &order.Status,
			&order.TotalCents, &order.PaidFromAccountID, &order.CreatedAt, &order.Actor, &itemsJSON); err != nil {
			return nil, err
		}
		if len(itemsJSON) > 0 {
			if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
				return nil, err
			}
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (s *Store) SumMovements(ctx context.Context, variantID, warehouseID string) (int, error) {
	var sum int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(qty), 0)
		FROM stock_movements
		WHERE variant_id = $1 AND warehouse_id = $2
	`, variantID, warehouseID).Scan(&sum)
	return sum, err
}

func (s *Store) SumCashTransactions(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type IN ('in','transfer_in') THEN amount_cents ELSE -amount_cents END), 0)
		FROM cash_transactions
		WHERE account_id = $1
	`, accountID).Scan(&sum)
	return sum, err
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
