package store

import (
	"context"
	"errors"
	"time"

	"tokokas/backend/internal/domain"
)

var (
	// ErrNotFound reports a referenced document missing at read time.
	ErrNotFound = errors.New("not found")
	// ErrValidation reports input rejected before it caused any write.
	ErrValidation = errors.New("validation failed")
	// ErrConflict reports a concurrent-write conflict that survived the
	// internal retry limit of Atomic.
	ErrConflict = errors.New("write conflict")
)

// Tx is the handle a recipe uses inside one atomic unit. Every read observes
// committed state as of the unit, every write takes effect only if the whole
// unit commits. Recipes must derive new aggregate values exclusively from
// reads made through the Tx, never from values fetched outside the unit.
//
// Absent snapshots read as zero-quantity documents so recipes can merge-add
// without an existence check. Absent accounts, variants and entries return
// ErrNotFound.
type Tx interface {
	GetWarehouse(ctx context.Context, warehouseID string) (domain.Warehouse, error)

	GetSnapshot(ctx context.Context, variantID, warehouseID string) (domain.StockSnapshot, error)
	PutSnapshot(ctx context.Context, snap domain.StockSnapshot) error
	AppendMovement(ctx context.Context, mv domain.StockMovement) error

	GetAccount(ctx context.Context, accountID string) (domain.CashAccount, error)
	PutAccount(ctx context.Context, account domain.CashAccount) error

	GetCashTransaction(ctx context.Context, entryID string) (domain.CashTransaction, error)
	PutCashTransaction(ctx context.Context, entry domain.CashTransaction) error
	DeleteCashTransaction(ctx context.Context, entryID string) error

	GetVariant(ctx context.Context, variantID string) (domain.ProductVariant, error)
	// ResolveVariantSKU matches a normalized SKU against the catalog,
	// checking the primary SKU first and the marketplace alias second.
	ResolveVariantSKU(ctx context.Context, sku string) (domain.ProductVariant, error)

	FindSalesOrderByNo(ctx context.Context, orderNo string) (domain.SalesOrder, error)
	PutSalesOrder(ctx context.Context, order domain.SalesOrder) error
	UpdateSalesOrderStatus(ctx context.Context, orderID, status string) error

	PutPurchaseOrder(ctx context.Context, order domain.PurchaseOrder) error

	// SumMovements and SumCashTransactions recompute an aggregate from its
	// log as seen by this unit, staged writes included. Repair tooling
	// derives the corrected value from these, never from a sum fetched
	// outside the unit.
	SumMovements(ctx context.Context, variantID, warehouseID string) (int, error)
	SumCashTransactions(ctx context.Context, accountID string) (int64, error)

	// WriteCount is the number of writes staged so far in this unit.
	WriteCount() int
}

// Store is the transactional document store behind the ledger. Atomic runs
// fn with serializable isolation against every other unit touching the same
// documents: on a detected conflict the whole fn re-runs against fresh
// state, up to an internal attempt limit, after which ErrConflict surfaces.
// fn therefore must be safe to re-execute; any error return aborts the unit
// with zero observable effect.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListWarehouses(ctx context.Context) ([]domain.Warehouse, error)
	ListVariants(ctx context.Context) ([]domain.ProductVariant, error)
	ListSnapshots(ctx context.Context, warehouseID string) ([]domain.StockSnapshot, error)
	ListMovements(ctx context.Context, variantID, warehouseID string, limit int) ([]domain.StockMovement, error)
	ListAccounts(ctx context.Context) ([]domain.CashAccount, error)
	ListChartOfAccounts(ctx context.Context) ([]domain.ChartOfAccount, error)
	ListCashTransactions(ctx context.Context, accountID string, from, to time.Time, limit int) ([]domain.CashTransaction, error)
	ListSalesOrders(ctx context.Context, limit int) ([]domain.SalesOrder, error)
	ListPurchaseOrders(ctx context.Context, limit int) ([]domain.PurchaseOrder, error)

	// SumMovements and SumCashTransactions recompute an aggregate from its
	// log; they exist for rebuild/verify tooling and invariant tests, never
	// for serving reads.
	SumMovements(ctx context.Context, variantID, warehouseID string) (int, error)
	SumCashTransactions(ctx context.Context, accountID string) (int64, error)
}
