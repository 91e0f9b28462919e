package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokokas/backend/internal/cache"
	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/store/memory"
)

func newTestLedger() (*Ledger, *memory.Store, *cache.MemoryCache) {
	st := memory.NewSeeded()
	c := cache.NewMemoryCache()
	return New(st, c, nil, DefaultTTLs()), st, c
}

// seedStock sets a snapshot through the same path a real adjustment would,
// so the movement log stays consistent with the aggregate.
func seedStock(t *testing.T, st *memory.Store, variantID, warehouseID string, qty int) {
	t.Helper()
	err := st.Atomic(context.Background(), func(ctx context.Context, tx store.Tx) error {
		snap, err := tx.GetSnapshot(ctx, variantID, warehouseID)
		if err != nil {
			return err
		}
		diff := qty - snap.Qty
		if diff == 0 {
			return nil
		}
		if err := tx.AppendMovement(ctx, domain.StockMovement{
			ID: "mv-seed-" + variantID, VariantID: variantID, WarehouseID: warehouseID,
			Type: domain.MovementAdjustmentIn, Origin: domain.OriginDerived,
			Qty: diff, RefType: domain.RefTypeManual, Date: time.Now().UTC(),
		}); err != nil {
			return err
		}
		snap.Qty = qty
		return tx.PutSnapshot(ctx, snap)
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func snapshotQty(t *testing.T, st *memory.Store, variantID, warehouseID string) int {
	t.Helper()
	snaps, err := st.ListSnapshots(context.Background(), warehouseID)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	for _, snap := range snaps {
		if snap.VariantID == variantID {
			return snap.Qty
		}
	}
	return 0
}

func accountBalance(t *testing.T, st *memory.Store, accountID string) int64 {
	t.Helper()
	accounts, err := st.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	for _, acc := range accounts {
		if acc.ID == accountID {
			return acc.BalanceCents
		}
	}
	t.Fatalf("account %s not found", accountID)
	return 0
}

func TestCheckoutScenario(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := WithActor(context.Background(), domain.Actor{Username: "kasir"})

	st.UpsertVariant(domain.ProductVariant{
		ID: "var-x", ProductID: "prd-x", SKU: "SKU-X", Name: "Produk X",
		PriceCents: 1000, CostCents: 700, Active: true,
	})
	seedStock(t, st, "var-x", "wh-jkt", 10)
	st.UpsertAccount(domain.CashAccount{ID: "acc-x", Name: "Kas X", Code: "KSX"})

	resp, err := led.Checkout(ctx, domain.CheckoutRequest{
		WarehouseID:   "wh-jkt",
		AccountID:     "acc-x",
		ReceivedCents: 5000,
		Lines:         []domain.CheckoutLine{{VariantID: "var-x", Qty: 3}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.TotalCents != 3000 {
		t.Fatalf("expected total 3000, got %d", resp.TotalCents)
	}
	if resp.ChangeCents != 2000 {
		t.Fatalf("expected change 2000, got %d", resp.ChangeCents)
	}
	if got := snapshotQty(t, st, "var-x", "wh-jkt"); got != 7 {
		t.Fatalf("expected snapshot qty 7, got %d", got)
	}
	if got := accountBalance(t, st, "acc-x"); got != 3000 {
		t.Fatalf("expected balance 3000, got %d", got)
	}

	movements, err := st.ListMovements(context.Background(), "var-x", "wh-jkt", 10)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if movements[0].Qty != -3 || movements[0].Type != domain.MovementSaleOut {
		t.Fatalf("expected sale_out movement of -3, got %s %d", movements[0].Type, movements[0].Qty)
	}

	entries, err := st.ListCashTransactions(context.Background(), "acc-x", time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list cash transactions: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != domain.CashIn || entries[0].AmountCents != 3000 {
		t.Fatalf("expected one cash in of 3000, got %+v", entries)
	}
}

func TestCheckoutRejectsInsufficientPaymentWithoutSideEffects(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := context.Background()

	before := snapshotQty(t, st, "var-mie-01", "wh-jkt")
	balanceBefore := accountBalance(t, st, "acc-kas")

	_, err := led.Checkout(ctx, domain.CheckoutRequest{
		WarehouseID:   "wh-jkt",
		AccountID:     "acc-kas",
		ReceivedCents: 100,
		Lines:         []domain.CheckoutLine{{VariantID: "var-mie-01", Qty: 2}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := snapshotQty(t, st, "var-mie-01", "wh-jkt"); got != before {
		t.Fatalf("snapshot changed on rejected checkout: %d -> %d", before, got)
	}
	if got := accountBalance(t, st, "acc-kas"); got != balanceBefore {
		t.Fatalf("balance changed on rejected checkout: %d -> %d", balanceBefore, got)
	}
}

func TestCheckoutAbortsAtomicallyOnMissingVariant(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := context.Background()

	before := snapshotQty(t, st, "var-mie-01", "wh-jkt")
	balanceBefore := accountBalance(t, st, "acc-kas")
	ordersBefore, _ := st.ListSalesOrders(ctx, 100)

	_, err := led.Checkout(ctx, domain.CheckoutRequest{
		WarehouseID:   "wh-jkt",
		AccountID:     "acc-kas",
		ReceivedCents: 100000,
		Lines: []domain.CheckoutLine{
			{VariantID: "var-mie-01", Qty: 2},
			{VariantID: "var-missing", Qty: 1},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := snapshotQty(t, st, "var-mie-01", "wh-jkt"); got != before {
		t.Fatalf("first line leaked through an aborted unit: %d -> %d", before, got)
	}
	if got := accountBalance(t, st, "acc-kas"); got != balanceBefore {
		t.Fatalf("balance leaked through an aborted unit")
	}
	ordersAfter, _ := st.ListSalesOrders(ctx, 100)
	if len(ordersAfter) != len(ordersBefore) {
		t.Fatalf("order header leaked through an aborted unit")
	}
}

// Every recipe that takes a warehouse id verifies the warehouse exists
// inside its unit, so a typoed id cannot materialize movements or a
// snapshot against a warehouse the catalog has never seen.
func TestRecipesRejectUnknownWarehouse(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := context.Background()

	balanceBefore := accountBalance(t, st, "acc-kas")
	ordersBefore, _ := st.ListSalesOrders(ctx, 100)

	_, err := led.Checkout(ctx, domain.CheckoutRequest{
		WarehouseID:   "wh-ghost",
		AccountID:     "acc-kas",
		ReceivedCents: 100000,
		Lines:         []domain.CheckoutLine{{VariantID: "var-mie-01", Qty: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("checkout: expected not found for unknown warehouse, got %v", err)
	}

	_, err = led.Opname(ctx, domain.OpnameRequest{
		VariantID: "var-mie-01", WarehouseID: "wh-ghost", TargetQty: 3,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("opname: expected not found for unknown warehouse, got %v", err)
	}

	_, err = led.ReceivePurchase(ctx, domain.PurchaseReceiveRequest{
		SupplierID: "sup-01", WarehouseID: "wh-ghost",
		Items: []domain.PurchaseOrderItem{{VariantID: "var-mie-01", Qty: 5, CostCents: 2600}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("receive purchase: expected not found for unknown warehouse, got %v", err)
	}

	_, err = led.ImportBatch(ctx, "wh-ghost", "acc-kas", []ImportedOrder{{
		OrderNo: "INV-GHOST-1", Channel: "shopee", Paid: true,
		Lines: []ImportedLine{{SKU: "SKU-MIE-01", Qty: 1, UnitPriceCents: 4000}},
	}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("import batch: expected not found for unknown warehouse, got %v", err)
	}

	// None of the rejected units may have left a trace.
	if got := snapshotQty(t, st, "var-mie-01", "wh-ghost"); got != 0 {
		t.Fatalf("ghost warehouse grew a snapshot: qty %d", got)
	}
	movements, _ := st.ListMovements(ctx, "var-mie-01", "wh-ghost", 10)
	if len(movements) != 0 {
		t.Fatalf("ghost warehouse has movements: %+v", movements)
	}
	if got := accountBalance(t, st, "acc-kas"); got != balanceBefore {
		t.Fatalf("balance moved on rejected units: %d -> %d", balanceBefore, got)
	}
	ordersAfter, _ := st.ListSalesOrders(ctx, 100)
	if len(ordersAfter) != len(ordersBefore) {
		t.Fatalf("order header leaked through a rejected unit")
	}
}

func TestOpnameScenario(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := WithActor(context.Background(), domain.Actor{Username: "gudang"})

	st.UpsertVariant(domain.ProductVariant{
		ID: "var-y", ProductID: "prd-y", SKU: "SKU-Y", Name: "Produk Y",
		PriceCents: 2000, CostCents: 1500, Active: true,
	})
	seedStock(t, st, "var-y", "wh-jkt", 7)

	resp, err := led.Opname(ctx, domain.OpnameRequest{
		VariantID: "var-y", WarehouseID: "wh-jkt", TargetQty: 5, Notes: "stok fisik",
	})
	if err != nil {
		t.Fatalf("opname failed: %v", err)
	}
	if !resp.Applied || resp.DeltaQty != -2 {
		t.Fatalf("expected applied delta -2, got %+v", resp)
	}
	if got := snapshotQty(t, st, "var-y", "wh-jkt"); got != 5 {
		t.Fatalf("expected snapshot qty 5, got %d", got)
	}

	movements, err := st.ListMovements(ctx, "var-y", "wh-jkt", 10)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	mv := movements[0]
	if mv.Type != domain.MovementAdjustmentOpname || mv.Qty != -2 {
		t.Fatalf("expected adjustment_opname of -2, got %s %d", mv.Type, mv.Qty)
	}
	if mv.Origin != domain.OriginAuthoritative {
		t.Fatalf("expected authoritative origin, got %s", mv.Origin)
	}

	// The compensating movement restores the log/snapshot equality.
	sum, err := st.SumMovements(ctx, "var-y", "wh-jkt")
	if err != nil {
		t.Fatalf("sum movements: %v", err)
	}
	if sum != 5 {
		t.Fatalf("expected movement sum 5 after opname, got %d", sum)
	}
}

func TestOpnameZeroDiffIsSilentNoOp(t *testing.T) {
	led, st, c := newTestLedger()
	ctx := context.Background()

	qty := snapshotQty(t, st, "var-kopi-01", "wh-jkt")
	movementsBefore, _ := st.ListMovements(ctx, "var-kopi-01", "wh-jkt", 100)
	if err := c.Set(ctx, cache.KeyInventoryListing, []byte("x"), time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	resp, err := led.Opname(ctx, domain.OpnameRequest{
		VariantID: "var-kopi-01", WarehouseID: "wh-jkt", TargetQty: qty,
	})
	if err != nil {
		t.Fatalf("zero-diff opname should succeed, got %v", err)
	}
	if resp.Applied || resp.MovementID != "" {
		t.Fatalf("zero-diff opname should not write, got %+v", resp)
	}

	movementsAfter, _ := st.ListMovements(ctx, "var-kopi-01", "wh-jkt", 100)
	if len(movementsAfter) != len(movementsBefore) {
		t.Fatalf("zero-diff opname appended a movement")
	}
	if _, hit, _ := c.Get(ctx, cache.KeyInventoryListing); !hit {
		t.Fatalf("zero-diff opname should not invalidate the cache")
	}
}

func TestTransferScenario(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := context.Background()

	st.UpsertAccount(domain.CashAccount{ID: "acc-a", Name: "A", Code: "A", BalanceCents: 10000})
	st.UpsertAccount(domain.CashAccount{ID: "acc-b", Name: "B", Code: "B", BalanceCents: 2000})

	resp, err := led.Transfer(ctx, domain.TransferRequest{
		FromAccountID: "acc-a", ToAccountID: "acc-b", AmountCents: 1500,
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if resp.FromBalanceCents != 8500 || resp.ToBalanceCents != 3500 {
		t.Fatalf("expected 8500/3500, got %d/%d", resp.FromBalanceCents, resp.ToBalanceCents)
	}
	if got := accountBalance(t, st, "acc-a"); got != 8500 {
		t.Fatalf("expected source balance 8500, got %d", got)
	}
	if got := accountBalance(t, st, "acc-b"); got != 3500 {
		t.Fatalf("expected destination balance 3500, got %d", got)
	}

	outRows, _ := st.ListCashTransactions(ctx, "acc-a", time.Time{}, time.Time{}, 10)
	inRows, _ := st.ListCashTransactions(ctx, "acc-b", time.Time{}, time.Time{}, 10)
	if len(outRows) != 1 || outRows[0].Type != domain.CashTransferOut || outRows[0].AmountCents != 1500 {
		t.Fatalf("expected one transfer_out of 1500 on source, got %+v", outRows)
	}
	if len(inRows) != 1 || inRows[0].Type != domain.CashTransferIn || inRows[0].AmountCents != 1500 {
		t.Fatalf("expected one transfer_in of 1500 on destination, got %+v", inRows)
	}
	if outRows[0].RefID == "" || outRows[0].RefID != inRows[0].RefID {
		t.Fatalf("transfer legs should share a ref id")
	}
}

func TestTransferRejectsSameAccount(t *testing.T) {
	led, _, _ := newTestLedger()

	_, err := led.Transfer(context.Background(), domain.TransferRequest{
		FromAccountID: "acc-kas", ToAccountID: "acc-kas", AmountCents: 100,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEditCashEntryUndoThenApply(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := context.Background()

	st.UpsertAccount(domain.CashAccount{ID: "acc-a", Name: "A", Code: "A", BalanceCents: 1500})
	entry, err := led.CreateCashEntry(ctx, domain.CashEntryRequest{
		Type: domain.CashOut, AccountID: "acc-a", AmountCents: 500, Category: "operasional",
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if got := accountBalance(t, st, "acc-a"); got != 1000 {
		t.Fatalf("expected balance 1000 after expense, got %d", got)
	}

	newAmount := int64(800)
	updated, err := led.EditCashEntry(ctx, entry.ID, domain.CashEntryUpdate{AmountCents: &newAmount})
	if err != nil {
		t.Fatalf("edit entry: %v", err)
	}
	if updated.AmountCents != 800 {
		t.Fatalf("expected stored amount 800, got %d", updated.AmountCents)
	}
	// Undo 500 then apply 800: 1000 + 500 - 800 = 700, never 200.
	if got := accountBalance(t, st, "acc-a"); got != 700 {
		t.Fatalf("expected balance 700 after edit, got %d", got)
	}
}

func TestEditCashEntryAcrossAccounts(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := context.Background()

	st.UpsertAccount(domain.CashAccount{ID: "acc-a", Name: "A", Code: "A", BalanceCents: 1000})
	st.UpsertAccount(domain.CashAccount{ID: "acc-b", Name: "B", Code: "B", BalanceCents: 1000})

	entry, err := led.CreateCashEntry(ctx, domain.CashEntryRequest{
		Type: domain.CashOut, AccountID: "acc-a", AmountCents: 300,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	newAccount := "acc-b"
	newAmount := int64(400)
	if _, err := led.EditCashEntry(ctx, entry.ID, domain.CashEntryUpdate{
		AccountID: &newAccount, AmountCents: &newAmount,
	}); err != nil {
		t.Fatalf("edit entry: %v", err)
	}

	// The stored entry's account gets the undo, the new account the apply.
	if got := accountBalance(t, st, "acc-a"); got != 1000 {
		t.Fatalf("expected old account restored to 1000, got %d", got)
	}
	if got := accountBalance(t, st, "acc-b"); got != 600 {
		t.Fatalf("expected new account 600, got %d", got)
	}
}

func TestDeleteCashEntryReversesBalance(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := context.Background()

	st.UpsertAccount(domain.CashAccount{ID: "acc-a", Name: "A", Code: "A", BalanceCents: 2000})
	entry, err := led.CreateCashEntry(ctx, domain.CashEntryRequest{
		Type: domain.CashIn, AccountID: "acc-a", AmountCents: 750,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if err := led.DeleteCashEntry(ctx, entry.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	if got := accountBalance(t, st, "acc-a"); got != 2000 {
		t.Fatalf("expected balance restored to 2000, got %d", got)
	}
	rows, _ := st.ListCashTransactions(ctx, "acc-a", time.Time{}, time.Time{}, 10)
	if len(rows) != 0 {
		t.Fatalf("expected entry gone, got %+v", rows)
	}
}

func TestTransferLegsRejectEditAndDelete(t *testing.T) {
	led, _, _ := newTestLedger()
	ctx := context.Background()

	resp, err := led.Transfer(ctx, domain.TransferRequest{
		FromAccountID: "acc-kas", ToAccountID: "acc-bca", AmountCents: 1000,
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	amount := int64(2000)
	if _, err := led.EditCashEntry(ctx, resp.OutEntryID, domain.CashEntryUpdate{AmountCents: &amount}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error editing a transfer leg, got %v", err)
	}
	if err := led.DeleteCashEntry(ctx, resp.InEntryID); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error deleting a transfer leg, got %v", err)
	}
}

func TestReceivePurchaseAddsStockAndDebitsAccount(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := context.Background()

	before := snapshotQty(t, st, "var-susu-01", "wh-jkt")
	balanceBefore := accountBalance(t, st, "acc-bca")

	order, err := led.ReceivePurchase(ctx, domain.PurchaseReceiveRequest{
		SupplierID:        "sup-01",
		WarehouseID:       "wh-jkt",
		PaidFromAccountID: "acc-bca",
		Items: []domain.PurchaseOrderItem{
			{VariantID: "var-susu-01", Qty: 20, CostCents: 13000},
		},
	})
	if err != nil {
		t.Fatalf("receive purchase: %v", err)
	}
	if order.TotalCents != 260000 {
		t.Fatalf("expected total 260000, got %d", order.TotalCents)
	}
	if got := snapshotQty(t, st, "var-susu-01", "wh-jkt"); got != before+20 {
		t.Fatalf("expected qty %d, got %d", before+20, got)
	}
	if got := accountBalance(t, st, "acc-bca"); got != balanceBefore-260000 {
		t.Fatalf("expected balance %d, got %d", balanceBefore-260000, got)
	}
}

// After an arbitrary successful mix of recipes, every aggregate still equals
// the signed sum of its log.
func TestAggregatesMatchLogsAfterMixedSequence(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin"})

	if _, err := led.Checkout(ctx, domain.CheckoutRequest{
		WarehouseID: "wh-jkt", AccountID: "acc-kas", ReceivedCents: 50000,
		Lines: []domain.CheckoutLine{
			{VariantID: "var-mie-01", Qty: 4},
			{VariantID: "var-kopi-01", Qty: 10},
		},
	}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := led.Transfer(ctx, domain.TransferRequest{
		FromAccountID: "acc-bca", ToAccountID: "acc-kas", AmountCents: 300000,
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	entry, err := led.CreateCashEntry(ctx, domain.CashEntryRequest{
		Type: domain.CashOut, AccountID: "acc-kas", AmountCents: 45000, Category: "listrik",
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	newAmount := int64(52000)
	if _, err := led.EditCashEntry(ctx, entry.ID, domain.CashEntryUpdate{AmountCents: &newAmount}); err != nil {
		t.Fatalf("edit entry: %v", err)
	}
	if _, err := led.Opname(ctx, domain.OpnameRequest{
		VariantID: "var-telur-01", WarehouseID: "wh-jkt", TargetQty: 37,
	}); err != nil {
		t.Fatalf("opname: %v", err)
	}
	if _, err := led.ReceivePurchase(ctx, domain.PurchaseReceiveRequest{
		SupplierID: "sup-01", WarehouseID: "wh-jkt", PaidFromAccountID: "acc-bca",
		Items: []domain.PurchaseOrderItem{{VariantID: "var-mie-01", Qty: 50, CostCents: 2600}},
	}); err != nil {
		t.Fatalf("receive purchase: %v", err)
	}
	extra, err := led.CreateCashEntry(ctx, domain.CashEntryRequest{
		Type: domain.CashIn, AccountID: "acc-bca", AmountCents: 12345,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if err := led.DeleteCashEntry(ctx, extra.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}

	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	for _, acc := range accounts {
		sum, err := st.SumCashTransactions(ctx, acc.ID)
		if err != nil {
			t.Fatalf("sum cash: %v", err)
		}
		if sum != acc.BalanceCents {
			t.Fatalf("account %s: balance %d != log sum %d", acc.ID, acc.BalanceCents, sum)
		}
	}

	snaps, err := st.ListSnapshots(ctx, "")
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	for _, snap := range snaps {
		sum, err := st.SumMovements(ctx, snap.VariantID, snap.WarehouseID)
		if err != nil {
			t.Fatalf("sum movements: %v", err)
		}
		if sum != snap.Qty {
			t.Fatalf("snapshot %s/%s: qty %d != log sum %d", snap.VariantID, snap.WarehouseID, snap.Qty, sum)
		}
	}
}

// After each mutation kind, every key in its invalidation set must miss.
func TestMutationsInvalidateTheirCacheKeys(t *testing.T) {
	led, st, c := newTestLedger()
	ctx := context.Background()

	fillAll := func() {
		for _, key := range cache.Keys() {
			if err := c.Set(ctx, key, []byte("cached"), time.Hour); err != nil {
				t.Fatalf("fill cache: %v", err)
			}
		}
	}
	assertInvalidated := func(kind cache.MutationKind) {
		t.Helper()
		for _, key := range cache.KeysFor(kind) {
			if _, hit, _ := c.Get(ctx, key); hit {
				t.Fatalf("kind %s: key %s still cached after mutation", kind, key)
			}
		}
	}

	fillAll()
	if _, err := led.Checkout(ctx, domain.CheckoutRequest{
		WarehouseID: "wh-jkt", AccountID: "acc-kas", ReceivedCents: 10000,
		Lines: []domain.CheckoutLine{{VariantID: "var-mie-01", Qty: 1}},
	}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	assertInvalidated(cache.MutationCheckout)

	fillAll()
	qty := snapshotQty(t, st, "var-kopi-01", "wh-jkt")
	if _, err := led.Opname(ctx, domain.OpnameRequest{
		VariantID: "var-kopi-01", WarehouseID: "wh-jkt", TargetQty: qty + 3,
	}); err != nil {
		t.Fatalf("opname: %v", err)
	}
	assertInvalidated(cache.MutationOpname)

	fillAll()
	if _, err := led.Transfer(ctx, domain.TransferRequest{
		FromAccountID: "acc-bca", ToAccountID: "acc-kas", AmountCents: 500,
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	assertInvalidated(cache.MutationCashTransfer)

	fillAll()
	entry, err := led.CreateCashEntry(ctx, domain.CashEntryRequest{
		Type: domain.CashIn, AccountID: "acc-kas", AmountCents: 900,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	assertInvalidated(cache.MutationCashEntryCreate)

	fillAll()
	amount := int64(1100)
	if _, err := led.EditCashEntry(ctx, entry.ID, domain.CashEntryUpdate{AmountCents: &amount}); err != nil {
		t.Fatalf("edit entry: %v", err)
	}
	assertInvalidated(cache.MutationCashEntryEdit)

	fillAll()
	if err := led.DeleteCashEntry(ctx, entry.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	assertInvalidated(cache.MutationCashEntryDelete)

	fillAll()
	if _, err := led.ReceivePurchase(ctx, domain.PurchaseReceiveRequest{
		SupplierID: "sup-01", WarehouseID: "wh-jkt",
		Items: []domain.PurchaseOrderItem{{VariantID: "var-telur-01", Qty: 5, CostCents: 22000}},
	}); err != nil {
		t.Fatalf("receive purchase: %v", err)
	}
	assertInvalidated(cache.MutationPurchaseReceive)

	fillAll()
	if _, err := led.ImportBatch(ctx, "wh-jkt", "acc-kas", []ImportedOrder{{
		OrderNo: "INV-CACHE-1", Channel: "shopee", Paid: true,
		Lines: []ImportedLine{{SKU: "SKU-MIE-01", Qty: 1, UnitPriceCents: 4000}},
	}}); err != nil {
		t.Fatalf("import batch: %v", err)
	}
	assertInvalidated(cache.MutationSalesImport)
}

func TestCachedReadsServeStaleUntilInvalidated(t *testing.T) {
	led, st, _ := newTestLedger()
	ctx := context.Background()

	first, err := led.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	// A direct store write outside any recipe must not show up while the
	// cached projection is live.
	st.UpsertAccount(domain.CashAccount{ID: "acc-new", Name: "Baru", Code: "NEW", BalanceCents: 99999})

	second, err := led.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if second.AccountCount != first.AccountCount {
		t.Fatalf("cached dashboard should not reflect uninvalidated writes")
	}
}
