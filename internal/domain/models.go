package domain

import "time"

type Warehouse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type ProductVariant struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	SKU            string `json:"sku"`
	MarketplaceSKU string `json:"marketplace_sku,omitempty"`
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	CostCents      int64  `json:"cost_cents"`
	Active         bool   `json:"active"`
}

// MovementType classifies a stock movement on the append-only log.
type MovementType string

const (
	MovementSaleOut          MovementType = "sale_out"
	MovementPurchaseIn       MovementType = "purchase_in"
	MovementAdjustmentOpname MovementType = "adjustment_opname"
	MovementAdjustmentIn     MovementType = "adjustment_in"
	MovementTransfer         MovementType = "transfer"
)

// MovementOrigin tags how a movement relates to the snapshot it touched.
// Derived movements carry a delta that was merge-added onto the snapshot.
// Authoritative movements record the compensating delta of an opname, where
// the snapshot was set to a counted ground-truth value instead.
type MovementOrigin string

const (
	OriginDerived       MovementOrigin = "derived"
	OriginAuthoritative MovementOrigin = "authoritative"
)

type StockMovement struct {
	ID          string         `json:"id"`
	VariantID   string         `json:"variant_id"`
	WarehouseID string         `json:"warehouse_id"`
	Type        MovementType   `json:"type"`
	Origin      MovementOrigin `json:"origin"`
	Qty         int            `json:"qty"`
	RefID       string         `json:"ref_id,omitempty"`
	RefType     string         `json:"ref_type,omitempty"`
	Date        time.Time      `json:"date"`
	Notes       string         `json:"notes,omitempty"`
	Actor       string         `json:"actor,omitempty"`
}

type StockSnapshot struct {
	VariantID   string    `json:"variant_id"`
	WarehouseID string    `json:"warehouse_id"`
	Qty         int       `json:"qty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SnapshotKey is the document key of a stock snapshot.
func SnapshotKey(variantID, warehouseID string) string {
	return variantID + "_" + warehouseID
}

// CashTxType classifies a cash ledger entry. Signed value is +amount for
// in/transfer_in and -amount for out/transfer_out.
type CashTxType string

const (
	CashIn          CashTxType = "in"
	CashOut         CashTxType = "out"
	CashTransferIn  CashTxType = "transfer_in"
	CashTransferOut CashTxType = "transfer_out"
)

// Sign returns +1 or -1 depending on whether the type credits or debits
// the account, and 0 for an unknown type.
func (t CashTxType) Sign() int64 {
	switch t {
	case CashIn, CashTransferIn:
		return 1
	case CashOut, CashTransferOut:
		return -1
	}
	return 0
}

type CashTransaction struct {
	ID          string     `json:"id"`
	Type        CashTxType `json:"type"`
	AmountCents int64      `json:"amount_cents"`
	AccountID   string     `json:"account_id"`
	Category    string     `json:"category,omitempty"`
	Description string     `json:"description,omitempty"`
	Date        time.Time  `json:"date"`
	RefType     string     `json:"ref_type,omitempty"`
	RefID       string     `json:"ref_id,omitempty"`
	Actor       string     `json:"actor,omitempty"`
}

// SignedAmount is the entry's contribution to its account balance.
func (c CashTransaction) SignedAmount() int64 {
	return c.Type.Sign() * c.AmountCents
}

type CashAccount struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	BalanceCents int64  `json:"balance_cents"`
}

type ChartOfAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Supplier struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type SalesOrderItem struct {
	VariantID      string `json:"variant_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name,omitempty"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type SalesOrder struct {
	ID            string           `json:"id"`
	OrderNo       string           `json:"order_no"`
	Channel       string           `json:"channel,omitempty"`
	CustomerID    string           `json:"customer_id,omitempty"`
	Status        string           `json:"status"`
	WarehouseID   string           `json:"warehouse_id"`
	AccountID     string           `json:"account_id,omitempty"`
	TotalCents    int64            `json:"total_cents"`
	ReceivedCents int64            `json:"received_cents"`
	ChangeCents   int64            `json:"change_cents"`
	Paid          bool             `json:"paid"`
	CreatedAt     time.Time        `json:"created_at"`
	Actor         string           `json:"actor,omitempty"`
	Items         []SalesOrderItem `json:"items"`
}

type PurchaseOrderItem struct {
	VariantID string `json:"variant_id"`
	SKU       string `json:"sku"`
	Qty       int    `json:"qty"`
	CostCents int64  `json:"cost_cents"`
}

type PurchaseOrder struct {
	ID                string              `json:"id"`
	OrderNo           string              `json:"order_no"`
	SupplierID        string              `json:"supplier_id"`
	WarehouseID       string              `json:"warehouse_id"`
	Status            string              `json:"status"`
	TotalCents        int64               `json:"total_cents"`
	PaidFromAccountID string              `json:"paid_from_account_id,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	Actor             string              `json:"actor,omitempty"`
	Items             []PurchaseOrderItem `json:"items"`
}

type CheckoutLine struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
}

type CheckoutRequest struct {
	WarehouseID   string         `json:"warehouse_id"`
	AccountID     string         `json:"account_id"`
	CustomerID    string         `json:"customer_id,omitempty"`
	ReceivedCents int64          `json:"received_cents"`
	Lines         []CheckoutLine `json:"lines"`
}

type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	TotalCents  int64  `json:"total_cents"`
	ChangeCents int64  `json:"change_cents"`
	ItemCount   int    `json:"item_count"`
	CreatedAt   string `json:"created_at"`
}

type OpnameRequest struct {
	VariantID   string `json:"variant_id"`
	WarehouseID string `json:"warehouse_id"`
	TargetQty   int    `json:"target_qty"`
	Notes       string `json:"notes,omitempty"`
}

type OpnameResponse struct {
	VariantID   string `json:"variant_id"`
	WarehouseID string `json:"warehouse_id"`
	SystemQty   int    `json:"system_qty"`
	TargetQty   int    `json:"target_qty"`
	DeltaQty    int    `json:"delta_qty"`
	MovementID  string `json:"movement_id,omitempty"`
	Applied     bool   `json:"applied"`
}

type TransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	AmountCents   int64  `json:"amount_cents"`
	Notes         string `json:"notes,omitempty"`
}

type TransferResponse struct {
	OutEntryID       string `json:"out_entry_id"`
	InEntryID        string `json:"in_entry_id"`
	FromBalanceCents int64  `json:"from_balance_cents"`
	ToBalanceCents   int64  `json:"to_balance_cents"`
}

type CashEntryRequest struct {
	Type        CashTxType `json:"type"`
	AccountID   string     `json:"account_id"`
	AmountCents int64      `json:"amount_cents"`
	Category    string     `json:"category,omitempty"`
	Description string     `json:"description,omitempty"`
	Date        time.Time  `json:"date,omitempty"`
}

// CashEntryUpdate carries the editable fields of a cash entry. Nil fields
// keep their stored value.
type CashEntryUpdate struct {
	Type        *CashTxType `json:"type,omitempty"`
	AccountID   *string     `json:"account_id,omitempty"`
	AmountCents *int64      `json:"amount_cents,omitempty"`
	Category    *string     `json:"category,omitempty"`
	Description *string     `json:"description,omitempty"`
	Date        *time.Time  `json:"date,omitempty"`
}

type PurchaseReceiveRequest struct {
	OrderNo           string              `json:"order_no,omitempty"`
	SupplierID        string              `json:"supplier_id"`
	WarehouseID       string              `json:"warehouse_id"`
	PaidFromAccountID string              `json:"paid_from_account_id,omitempty"`
	Items             []PurchaseOrderItem `json:"items"`
}

type Actor struct {
	Username string
}

const (
	OrderStatusPaid      = "paid"
	OrderStatusUnpaid    = "unpaid"
	OrderStatusCancelled = "cancelled"
	OrderStatusReceived  = "received"
)

const (
	RefTypeSalesOrder    = "sales_order"
	RefTypePurchaseOrder = "purchase_order"
	RefTypeTransfer      = "cash_transfer"
	RefTypeOpname        = "stock_opname"
	RefTypeManual        = "manual"
)
