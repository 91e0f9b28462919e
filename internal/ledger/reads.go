package ledger

import (
	"context"
	"encoding/json"
	"time"

	"tokokas/backend/internal/cache"
	"tokokas/backend/internal/domain"
)

// InventoryRow is one line of the inventory listing: a variant with its
// per-warehouse quantities, precomputed so clients render it as-is.
type InventoryRow struct {
	Variant    domain.ProductVariant `json:"variant"`
	Qty        map[string]int        `json:"qty_by_warehouse"`
	TotalQty   int                   `json:"total_qty"`
	ValueCents int64                 `json:"value_cents"`
}

// POSMasterData is everything the point of sale needs to boot: catalog,
// warehouses, accounts. It changes rarely and caches long.
type POSMasterData struct {
	Warehouses []domain.Warehouse      `json:"warehouses"`
	Variants   []domain.ProductVariant `json:"variants"`
	Accounts   []domain.CashAccount    `json:"accounts"`
}

// DashboardSummary aggregates the headline numbers of the back office.
type DashboardSummary struct {
	CashTotalCents  int64 `json:"cash_total_cents"`
	StockUnits      int   `json:"stock_units"`
	StockValueCents int64 `json:"stock_value_cents"`
	AccountCount    int   `json:"account_count"`
	VariantCount    int   `json:"variant_count"`
}

// cached runs fill on a miss and serves the stored projection on a hit.
// Cache failures degrade to a direct fill; they never fail a read.
func cached[T any](ctx context.Context, l *Ledger, key cache.Key, ttl time.Duration, fill func(ctx context.Context) (T, error)) (T, error) {
	var out T
	payload, hit, err := l.cache.Get(ctx, key)
	if err != nil {
		l.log.WithError(err).WithField("key", key).Warn("cache read failed")
	} else if hit {
		if err := json.Unmarshal(payload, &out); err == nil {
			return out, nil
		}
		l.log.WithField("key", key).Warn("cache entry undecodable, refilling")
	}

	out, err = fill(ctx)
	if err != nil {
		return out, err
	}
	if payload, err := json.Marshal(out); err == nil {
		if err := l.cache.Set(ctx, key, payload, ttl); err != nil {
			l.log.WithError(err).WithField("key", key).Warn("cache write failed")
		}
	}
	return out, nil
}

// ListInventory serves the inventory listing projection.
func (l *Ledger) ListInventory(ctx context.Context) ([]InventoryRow, error) {
	return cached(ctx, l, cache.KeyInventoryListing, l.ttls.InventoryListing, func(ctx context.Context) ([]InventoryRow, error) {
		variants, err := l.store.ListVariants(ctx)
		if err != nil {
			return nil, err
		}
		snaps, err := l.store.ListSnapshots(ctx, "")
		if err != nil {
			return nil, err
		}

		byVariant := make(map[string]map[string]int)
		for _, snap := range snaps {
			if byVariant[snap.VariantID] == nil {
				byVariant[snap.VariantID] = make(map[string]int)
			}
			byVariant[snap.VariantID][snap.WarehouseID] = snap.Qty
		}

		rows := make([]InventoryRow, 0, len(variants))
		for _, variant := range variants {
			row := InventoryRow{Variant: variant, Qty: byVariant[variant.ID]}
			if row.Qty == nil {
				row.Qty = map[string]int{}
			}
			for _, qty := range row.Qty {
				row.TotalQty += qty
			}
			row.ValueCents = int64(row.TotalQty) * variant.CostCents
			rows = append(rows, row)
		}
		return rows, nil
	})
}

// POSMaster serves the point-of-sale boot payload.
func (l *Ledger) POSMaster(ctx context.Context) (POSMasterData, error) {
	return cached(ctx, l, cache.KeyPOSMasterData, l.ttls.POSMasterData, func(ctx context.Context) (POSMasterData, error) {
		warehouses, err := l.store.ListWarehouses(ctx)
		if err != nil {
			return POSMasterData{}, err
		}
		variants, err := l.store.ListVariants(ctx)
		if err != nil {
			return POSMasterData{}, err
		}
		accounts, err := l.store.ListAccounts(ctx)
		if err != nil {
			return POSMasterData{}, err
		}
		return POSMasterData{Warehouses: warehouses, Variants: variants, Accounts: accounts}, nil
	})
}

// WarehouseStock serves the per-warehouse snapshot list the POS checks
// availability against. All warehouses share one namespace entry; the
// filter runs over the cached projection.
func (l *Ledger) WarehouseStock(ctx context.Context, warehouseID string) ([]domain.StockSnapshot, error) {
	snaps, err := cached(ctx, l, cache.KeyPOSStockSnapshots, l.ttls.StockSnapshots, func(ctx context.Context) ([]domain.StockSnapshot, error) {
		return l.store.ListSnapshots(ctx, "")
	})
	if err != nil {
		return nil, err
	}
	if warehouseID == "" {
		return snaps, nil
	}
	filtered := snaps[:0:0]
	for _, snap := range snaps {
		if snap.WarehouseID == warehouseID {
			filtered = append(filtered, snap)
		}
	}
	return filtered, nil
}

// CashLedger serves the account list with materialized balances plus the
// most recent entries.
func (l *Ledger) CashLedger(ctx context.Context) ([]domain.CashAccount, []domain.CashTransaction, error) {
	type payload struct {
		Accounts []domain.CashAccount     `json:"accounts"`
		Entries  []domain.CashTransaction `json:"entries"`
	}
	out, err := cached(ctx, l, cache.KeyCashLedger, l.ttls.CashLedger, func(ctx context.Context) (payload, error) {
		accounts, err := l.store.ListAccounts(ctx)
		if err != nil {
			return payload{}, err
		}
		entries, err := l.store.ListCashTransactions(ctx, "", time.Time{}, time.Time{}, 100)
		if err != nil {
			return payload{}, err
		}
		return payload{Accounts: accounts, Entries: entries}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out.Accounts, out.Entries, nil
}

// Dashboard serves the headline summary projection.
func (l *Ledger) Dashboard(ctx context.Context) (DashboardSummary, error) {
	return cached(ctx, l, cache.KeyDashboardSummary, l.ttls.DashboardSummary, func(ctx context.Context) (DashboardSummary, error) {
		accounts, err := l.store.ListAccounts(ctx)
		if err != nil {
			return DashboardSummary{}, err
		}
		variants, err := l.store.ListVariants(ctx)
		if err != nil {
			return DashboardSummary{}, err
		}
		snaps, err := l.store.ListSnapshots(ctx, "")
		if err != nil {
			return DashboardSummary{}, err
		}

		sum := DashboardSummary{AccountCount: len(accounts), VariantCount: len(variants)}
		for _, account := range accounts {
			sum.CashTotalCents += account.BalanceCents
		}
		cost := make(map[string]int64, len(variants))
		for _, variant := range variants {
			cost[variant.ID] = variant.CostCents
		}
		for _, snap := range snaps {
			sum.StockUnits += snap.Qty
			sum.StockValueCents += int64(snap.Qty) * cost[snap.VariantID]
		}
		return sum, nil
	})
}

// SalesHistory serves the recent sales orders projection.
func (l *Ledger) SalesHistory(ctx context.Context, limit int) ([]domain.SalesOrder, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	orders, err := cached(ctx, l, cache.KeySalesHistory, l.ttls.SalesHistory, func(ctx context.Context) ([]domain.SalesOrder, error) {
		return l.store.ListSalesOrders(ctx, 200)
	})
	if err != nil {
		return nil, err
	}
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// PurchaseHistory serves the recent purchase orders projection.
func (l *Ledger) PurchaseHistory(ctx context.Context, limit int) ([]domain.PurchaseOrder, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	orders, err := cached(ctx, l, cache.KeyPurchaseHistory, l.ttls.PurchaseHistory, func(ctx context.Context) ([]domain.PurchaseOrder, error) {
		return l.store.ListPurchaseOrders(ctx, 200)
	})
	if err != nil {
		return nil, err
	}
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}
