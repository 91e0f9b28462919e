package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/xid"
)

// Store is an in-memory implementation of the transactional document store,
// used by tests and importer dry runs. Atomic takes the write lock for the
// whole unit, so units are trivially serializable and never conflict; writes
// are staged and applied to the base maps only when the unit's fn returns
// nil, which gives the same zero-partial-effect guarantee as the real store.
type Store struct {
	mu            sync.RWMutex
	warehouses    map[string]domain.Warehouse
	variants      map[string]domain.ProductVariant
	snapshots     map[string]domain.StockSnapshot
	movements     []domain.StockMovement
	accounts      map[string]domain.CashAccount
	chart         []domain.ChartOfAccount
	cashTxByID    map[string]domain.CashTransaction
	cashTxOrder   []string
	salesByID     map[string]domain.SalesOrder
	salesIDByNo   map[string]string
	purchasesByID map[string]domain.PurchaseOrder
	customers     map[string]domain.Customer
	suppliers     map[string]domain.Supplier
}

func New() *Store {
	return &Store{
		warehouses:    map[string]domain.Warehouse{},
		variants:      map[string]domain.ProductVariant{},
		snapshots:     map[string]domain.StockSnapshot{},
		accounts:      map[string]domain.CashAccount{},
		cashTxByID:    map[string]domain.CashTransaction{},
		salesByID:     map[string]domain.SalesOrder{},
		salesIDByNo:   map[string]string{},
		purchasesByID: map[string]domain.PurchaseOrder{},
		customers:     map[string]domain.Customer{},
		suppliers:     map[string]domain.Supplier{},
	}
}

// NewSeeded builds a store with a small consistent dataset: every seeded
// snapshot is backed by an opening adjustment_in movement and every account
// balance by an opening cash entry, so the log/aggregate invariants hold
// from the start.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	s.warehouses["wh-jkt"] = domain.Warehouse{ID: "wh-jkt", Name: "Gudang Jakarta", Code: "JKT"}
	s.warehouses["wh-bdg"] = domain.Warehouse{ID: "wh-bdg", Name: "Gudang Bandung", Code: "BDG"}

	variants := []domain.ProductVariant{
		{ID: "var-mie-01", ProductID: "prd-mie", SKU: "SKU-MIE-01", MarketplaceSKU: "MP-MIE-GORENG", Name: "Mie Goreng Instan", PriceCents: 3500, CostCents: 2700, Active: true},
		{ID: "var-telur-01", ProductID: "prd-telur", SKU: "SKU-TELUR-01", MarketplaceSKU: "MP-TELUR-10", Name: "Telur 10 Butir", PriceCents: 26500, CostCents: 23000, Active: true},
		{ID: "var-kopi-01", ProductID: "prd-kopi", SKU: "SKU-KOPI-01", MarketplaceSKU: "MP-KOPI-SACHET", Name: "Kopi Sachet", PriceCents: 2600, CostCents: 1700, Active: true},
		{ID: "var-susu-01", ProductID: "prd-susu", SKU: "SKU-SUSU-01", MarketplaceSKU: "MP-SUSU-UHT", Name: "Susu UHT 1L", PriceCents: 18900, CostCents: 13600, Active: true},
	}
	for _, v := range variants {
		s.variants[v.ID] = v
	}

	openingStock := map[string]int{
		"var-mie-01":   120,
		"var-telur-01": 40,
		"var-kopi-01":  200,
		"var-susu-01":  60,
	}
	for variantID, qty := range openingStock {
		s.snapshots[domain.SnapshotKey(variantID, "wh-jkt")] = domain.StockSnapshot{
			VariantID: variantID, WarehouseID: "wh-jkt", Qty: qty, UpdatedAt: now,
		}
		s.movements = append(s.movements, domain.StockMovement{
			ID: xid.New("mv"), VariantID: variantID, WarehouseID: "wh-jkt",
			Type: domain.MovementAdjustmentIn, Origin: domain.OriginDerived,
			Qty: qty, RefType: domain.RefTypeManual, Date: now, Notes: "opening stock",
		})
	}

	openingCash := map[string]int64{"acc-kas": 500000, "acc-bca": 2500000}
	s.accounts["acc-kas"] = domain.CashAccount{ID: "acc-kas", Name: "Kas Toko", Code: "KAS", BalanceCents: openingCash["acc-kas"]}
	s.accounts["acc-bca"] = domain.CashAccount{ID: "acc-bca", Name: "Bank BCA", Code: "BCA", BalanceCents: openingCash["acc-bca"]}
	for accountID, amount := range openingCash {
		id := xid.New("ctx")
		s.cashTxByID[id] = domain.CashTransaction{
			ID: id, Type: domain.CashIn, AmountCents: amount, AccountID: accountID,
			Category: "modal", Description: "opening balance", Date: now, RefType: domain.RefTypeManual,
		}
		s.cashTxOrder = append(s.cashTxOrder, id)
	}

	s.chart = []domain.ChartOfAccount{
		{ID: "coa-sales", Name: "Penjualan", Type: "income"},
		{ID: "coa-purchase", Name: "Pembelian", Type: "expense"},
		{ID: "coa-ops", Name: "Operasional", Type: "expense"},
	}

	s.suppliers["sup-01"] = domain.Supplier{ID: "sup-01", Name: "PT Sumber Pangan", Phone: "0811111111"}
	s.customers["cus-01"] = domain.Customer{ID: "cus-01", Name: "Pelanggan Umum"}

	return s
}

// UpsertVariant is a test/seed helper outside the atomic surface.
func (s *Store) UpsertVariant(v domain.ProductVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
}

// UpsertAccount is a test/seed helper outside the atomic surface.
func (s *Store) UpsertAccount(a domain.CashAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

type memTx struct {
	base *Store

	snapshots     map[string]domain.StockSnapshot
	movements     []domain.StockMovement
	accounts      map[string]domain.CashAccount
	cashTx        map[string]domain.CashTransaction
	cashTxDeleted map[string]bool
	cashTxNew     []string
	sales         map[string]domain.SalesOrder
	salesNoIndex  map[string]string
	purchases     map[string]domain.PurchaseOrder
	writes        int
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		base:          s,
		snapshots:     map[string]domain.StockSnapshot{},
		accounts:      map[string]domain.CashAccount{},
		cashTx:        map[string]domain.CashTransaction{},
		cashTxDeleted: map[string]bool{},
		sales:         map[string]domain.SalesOrder{},
		salesNoIndex:  map[string]string{},
		purchases:     map[string]domain.PurchaseOrder{},
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	tx.commit()
	return nil
}

func (t *memTx) commit() {
	for key, snap := range t.snapshots {
		t.base.snapshots[key] = snap
	}
	t.base.movements = append(t.base.movements, t.movements...)
	for id, acc := range t.accounts {
		t.base.accounts[id] = acc
	}
	for _, id := range t.cashTxNew {
		t.base.cashTxOrder = append(t.base.cashTxOrder, id)
	}
	for id, entry := range t.cashTx {
		t.base.cashTxByID[id] = entry
	}
	for id := range t.cashTxDeleted {
		delete(t.base.cashTxByID, id)
		for i, existing := range t.base.cashTxOrder {
			if existing == id {
				t.base.cashTxOrder = append(t.base.cashTxOrder[:i], t.base.cashTxOrder[i+1:]...)
				break
			}
		}
	}
	for id, order := range t.sales {
		t.base.salesByID[id] = order
	}
	for orderNo, id := range t.salesNoIndex {
		t.base.salesIDByNo[orderNo] = id
	}
	for id, order := range t.purchases {
		t.base.purchasesByID[id] = order
	}
}

func (t *memTx) GetWarehouse(_ context.Context, warehouseID string) (domain.Warehouse, error) {
	if w, ok := t.base.warehouses[warehouseID]; ok {
		return w, nil
	}
	return domain.Warehouse{}, store.ErrNotFound
}

func (t *memTx) GetSnapshot(_ context.Context, variantID, warehouseID string) (domain.StockSnapshot, error) {
	key := domain.SnapshotKey(variantID, warehouseID)
	if snap, ok := t.snapshots[key]; ok {
		return snap, nil
	}
	if snap, ok := t.base.snapshots[key]; ok {
		return snap, nil
	}
	return domain.StockSnapshot{VariantID: variantID, WarehouseID: warehouseID}, nil
}

func (t *memTx) PutSnapshot(_ context.Context, snap domain.StockSnapshot) error {
	t.snapshots[domain.SnapshotKey(snap.VariantID, snap.WarehouseID)] = snap
	t.writes++
	return nil
}

func (t *memTx) AppendMovement(_ context.Context, mv domain.StockMovement) error {
	t.movements = append(t.movements, mv)
	t.writes++
	return nil
}

func (t *memTx) GetAccount(_ context.Context, accountID string) (domain.CashAccount, error) {
	if acc, ok := t.accounts[accountID]; ok {
		return acc, nil
	}
	if acc, ok := t.base.accounts[accountID]; ok {
		return acc, nil
	}
	return domain.CashAccount{}, store.ErrNotFound
}

func (t *memTx) PutAccount(_ context.Context, account domain.CashAccount) error {
	t.accounts[account.ID] = account
	t.writes++
	return nil
}

func (t *memTx) GetCashTransaction(_ context.Context, entryID string) (domain.CashTransaction, error) {
	if t.cashTxDeleted[entryID] {
		return domain.CashTransaction{}, store.ErrNotFound
	}
	if entry, ok := t.cashTx[entryID]; ok {
		return entry, nil
	}
	if entry, ok := t.base.cashTxByID[entryID]; ok {
		return entry, nil
	}
	return domain.CashTransaction{}, store.ErrNotFound
}

func (t *memTx) PutCashTransaction(_ context.Context, entry domain.CashTransaction) error {
	_, staged := t.cashTx[entry.ID]
	_, existing := t.base.cashTxByID[entry.ID]
	if !staged && !existing {
		t.cashTxNew = append(t.cashTxNew, entry.ID)
	}
	delete(t.cashTxDeleted, entry.ID)
	t.cashTx[entry.ID] = entry
	t.writes++
	return nil
}

func (t *memTx) DeleteCashTransaction(ctx context.Context, entryID string) error {
	if _, err := t.GetCashTransaction(ctx, entryID); err != nil {
		return err
	}
	delete(t.cashTx, entryID)
	t.cashTxDeleted[entryID] = true
	t.writes++
	return nil
}

func (t *memTx) GetVariant(_ context.Context, variantID string) (domain.ProductVariant, error) {
	if v, ok := t.base.variants[variantID]; ok {
		return v, nil
	}
	return domain.ProductVariant{}, store.ErrNotFound
}

func (t *memTx) ResolveVariantSKU(_ context.Context, sku string) (domain.ProductVariant, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.ProductVariant{}, store.ErrNotFound
	}
	for _, v := range t.base.variants {
		if strings.ToUpper(v.SKU) == sku {
			return v, nil
		}
	}
	for _, v := range t.base.variants {
		if v.MarketplaceSKU != "" && strings.ToUpper(v.MarketplaceSKU) == sku {
			return v, nil
		}
	}
	return domain.ProductVariant{}, store.ErrNotFound
}

func (t *memTx) FindSalesOrderByNo(_ context.Context, orderNo string) (domain.SalesOrder, error) {
	id, ok := t.salesNoIndex[orderNo]
	if !ok {
		id, ok = t.base.salesIDByNo[orderNo]
	}
	if !ok {
		return domain.SalesOrder{}, store.ErrNotFound
	}
	if order, staged := t.sales[id]; staged {
		return order, nil
	}
	order, found := t.base.salesByID[id]
	if !found {
		return domain.SalesOrder{}, store.ErrNotFound
	}
	return order, nil
}

func (t *memTx) PutSalesOrder(_ context.Context, order domain.SalesOrder) error {
	t.sales[order.ID] = order
	if order.OrderNo != "" {
		t.salesNoIndex[order.OrderNo] = order.ID
	}
	t.writes++
	return nil
}

func (t *memTx) UpdateSalesOrderStatus(_ context.Context, orderID, status string) error {
	order, staged := t.sales[orderID]
	if !staged {
		var ok bool
		order, ok = t.base.salesByID[orderID]
		if !ok {
			return store.ErrNotFound
		}
	}
	order.Status = status
	t.sales[orderID] = order
	t.writes++
	return nil
}

func (t *memTx) PutPurchaseOrder(_ context.Context, order domain.PurchaseOrder) error {
	t.purchases[order.ID] = order
	t.writes++
	return nil
}

func (t *memTx) SumMovements(_ context.Context, variantID, warehouseID string) (int, error) {
	sum := 0
	for _, mv := range t.base.movements {
		if mv.VariantID == variantID && mv.WarehouseID == warehouseID {
			sum += mv.Qty
		}
	}
	for _, mv := range t.movements {
		if mv.VariantID == variantID && mv.WarehouseID == warehouseID {
			sum += mv.Qty
		}
	}
	return sum, nil
}

func (t *memTx) SumCashTransactions(_ context.Context, accountID string) (int64, error) {
	var sum int64
	for id, entry := range t.base.cashTxByID {
		if _, staged := t.cashTx[id]; staged {
			continue
		}
		if t.cashTxDeleted[id] {
			continue
		}
		if entry.AccountID == accountID {
			sum += entry.SignedAmount()
		}
	}
	for _, entry := range t.cashTx {
		if entry.AccountID == accountID {
			sum += entry.SignedAmount()
		}
	}
	return sum, nil
}

func (t *memTx) WriteCount() int {
	return t.writes
}

func (s *Store) ListWarehouses(_ context.Context) ([]domain.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Warehouse, 0, len(s.warehouses))
	for _, w := range s.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListVariants(_ context.Context) ([]domain.ProductVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProductVariant, 0, len(s.variants))
	for _, v := range s.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *Store) ListSnapshots(_ context.Context, warehouseID string) ([]domain.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StockSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if warehouseID != "" && snap.WarehouseID != warehouseID {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.SnapshotKey(out[i].VariantID, out[i].WarehouseID) < domain.SnapshotKey(out[j].VariantID, out[j].WarehouseID)
	})
	return out, nil
}

func (s *Store) ListMovements(_ context.Context, variantID, warehouseID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit < 1 {
		limit = 200
	}
	out := make([]domain.StockMovement, 0, limit)
	for i := len(s.movements) - 1; i >= 0 && len(out) < limit; i-- {
		mv := s.movements[i]
		if variantID != "" && mv.VariantID != variantID {
			continue
		}
		if warehouseID != "" && mv.WarehouseID != warehouseID {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]domain.CashAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CashAccount, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) ListChartOfAccounts(_ context.Context) ([]domain.ChartOfAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChartOfAccount, len(s.chart))
	copy(out, s.chart)
	return out, nil
}

func (s *Store) ListCashTransactions(_ context.Context, accountID string, from, to time.Time, limit int) ([]domain.CashTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit < 1 {
		limit = 200
	}
	out := make([]domain.CashTransaction, 0, limit)
	for i := len(s.cashTxOrder) - 1; i >= 0 && len(out) < limit; i-- {
		entry, ok := s.cashTxByID[s.cashTxOrder[i]]
		if !ok {
			continue
		}
		if accountID != "" && entry.AccountID != accountID {
			continue
		}
		if !from.IsZero() && entry.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.Date.Before(to) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) ListSalesOrders(_ context.Context, limit int) ([]domain.SalesOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit < 1 {
		limit = 200
	}
	out := make([]domain.SalesOrder, 0, len(s.salesByID))
	for _, order := range s.salesByID {
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context, limit int) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit < 1 {
		limit = 200
	}
	out := make([]domain.PurchaseOrder, 0, len(s.purchasesByID))
	for _, order := range s.purchasesByID {
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SumMovements(_ context.Context, variantID, warehouseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := 0
	for _, mv := range s.movements {
		if mv.VariantID == variantID && mv.WarehouseID == warehouseID {
			sum += mv.Qty
		}
	}
	return sum, nil
}

func (s *Store) SumCashTransactions(_ context.Context, accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum int64
	for _, entry := range s.cashTxByID {
		if entry.AccountID == accountID {
			sum += entry.SignedAmount()
		}
	}
	return sum, nil
}
