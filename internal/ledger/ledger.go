// Package ledger is the transaction coordinator of the back office. Every
// mutation of the stock/cash logs and their materialized balances goes
// through one of its recipes, each of which reads, computes and writes
// inside a single atomic store unit and invalidates the read cache on
// success. Readers get O(1) projections through the cache; they never
// recompute balances from previously fetched lists.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tokokas/backend/internal/cache"
	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return "system"
}

// TTLs holds the per-namespace cache lifetimes. Volatile projections get
// short lifetimes, master data long ones.
type TTLs struct {
	InventoryListing time.Duration
	POSMasterData    time.Duration
	StockSnapshots   time.Duration
	CashLedger       time.Duration
	DashboardSummary time.Duration
	SalesHistory     time.Duration
	PurchaseHistory  time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		InventoryListing: 5 * time.Minute,
		POSMasterData:    60 * time.Minute,
		StockSnapshots:   5 * time.Minute,
		CashLedger:       10 * time.Minute,
		DashboardSummary: 15 * time.Minute,
		SalesHistory:     15 * time.Minute,
		PurchaseHistory:  30 * time.Minute,
	}
}

type Ledger struct {
	store store.Store
	cache cache.Cache
	log   *logrus.Logger
	ttls  TTLs
}

func New(st store.Store, c cache.Cache, log *logrus.Logger, ttls TTLs) *Ledger {
	if c == nil {
		c = cache.Noop{}
	}
	if log == nil {
		log = logrus.New()
	}
	if ttls == (TTLs{}) {
		ttls = DefaultTTLs()
	}
	return &Ledger{store: st, cache: c, log: log, ttls: ttls}
}

// invalidate flushes the mutation kind's cache keys. Invalidation failure
// never fails the recipe: the write is committed, and a stale entry will
// also age out by TTL.
func (l *Ledger) invalidate(ctx context.Context, kind cache.MutationKind) {
	if err := cache.Invalidate(ctx, l.cache, kind); err != nil {
		l.log.WithError(err).WithField("mutation", kind).Warn("cache invalidation failed")
	}
}

// Checkout sells the given lines from one warehouse against one payment
// account. Prices are read from the catalog inside the atomic unit; the
// insufficient-payment check runs against that fresh total, so it can only
// abort the unit, never leave partial writes.
func (l *Ledger) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if req.WarehouseID == "" || req.AccountID == "" {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: warehouse and account required", store.ErrValidation)
	}
	if len(req.Lines) == 0 {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: empty cart", store.ErrValidation)
	}
	for _, line := range req.Lines {
		if line.VariantID == "" || line.Qty < 1 {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: bad line qty", store.ErrValidation)
		}
	}

	actor := actorName(ctx)
	var resp domain.CheckoutResponse

	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetWarehouse(ctx, req.WarehouseID); err != nil {
			return fmt.Errorf("warehouse %s: %w", req.WarehouseID, err)
		}

		now := time.Now().UTC()
		orderID := xid.New("so")

		items := make([]domain.SalesOrderItem, 0, len(req.Lines))
		total := int64(0)
		for _, line := range req.Lines {
			variant, err := tx.GetVariant(ctx, line.VariantID)
			if err != nil {
				return fmt.Errorf("variant %s: %w", line.VariantID, err)
			}
			items = append(items, domain.SalesOrderItem{
				VariantID:      variant.ID,
				SKU:            variant.SKU,
				Name:           variant.Name,
				Qty:            line.Qty,
				UnitPriceCents: variant.PriceCents,
			})
			total += int64(line.Qty) * variant.PriceCents
		}

		if req.ReceivedCents < total {
			return fmt.Errorf("%w: received %d < total %d", store.ErrValidation, req.ReceivedCents, total)
		}
		change := req.ReceivedCents - total

		order := domain.SalesOrder{
			ID:            orderID,
			OrderNo:       orderID,
			Channel:       "pos",
			CustomerID:    req.CustomerID,
			Status:        domain.OrderStatusPaid,
			WarehouseID:   req.WarehouseID,
			AccountID:     req.AccountID,
			TotalCents:    total,
			ReceivedCents: req.ReceivedCents,
			ChangeCents:   change,
			Paid:          true,
			CreatedAt:     now,
			Actor:         actor,
			Items:         items,
		}
		if err := tx.PutSalesOrder(ctx, order); err != nil {
			return err
		}

		for _, item := range items {
			if err := applyStockDelta(ctx, tx, stockDelta{
				VariantID:   item.VariantID,
				WarehouseID: req.WarehouseID,
				Type:        domain.MovementSaleOut,
				Qty:         -item.Qty,
				RefID:       orderID,
				RefType:     domain.RefTypeSalesOrder,
				Date:        now,
				Actor:       actor,
			}); err != nil {
				return err
			}
		}

		if err := applyCashCredit(ctx, tx, domain.CashTransaction{
			ID:          xid.New("ctx"),
			Type:        domain.CashIn,
			AmountCents: total,
			AccountID:   req.AccountID,
			Category:    "penjualan",
			Description: "POS checkout " + orderID,
			Date:        now,
			RefType:     domain.RefTypeSalesOrder,
			RefID:       orderID,
			Actor:       actor,
		}); err != nil {
			return err
		}

		resp = domain.CheckoutResponse{
			OrderID:     orderID,
			TotalCents:  total,
			ChangeCents: change,
			ItemCount:   len(items),
			CreatedAt:   now.Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	l.invalidate(ctx, cache.MutationCheckout)
	l.log.WithFields(logrus.Fields{
		"order_id": resp.OrderID,
		"total":    resp.TotalCents,
		"actor":    actor,
	}).Info("checkout committed")
	return resp, nil
}

// Opname sets a snapshot to a counted ground-truth quantity and appends the
// compensating authoritative movement in the same unit, so the
// snapshot-equals-log-sum invariant holds again immediately after. A count
// matching the system quantity is a silent no-op: success, no writes, no
// cache invalidation.
func (l *Ledger) Opname(ctx context.Context, req domain.OpnameRequest) (domain.OpnameResponse, error) {
	if req.VariantID == "" || req.WarehouseID == "" {
		return domain.OpnameResponse{}, fmt.Errorf("%w: variant and warehouse required", store.ErrValidation)
	}
	if req.TargetQty < 0 {
		return domain.OpnameResponse{}, fmt.Errorf("%w: negative counted qty", store.ErrValidation)
	}

	actor := actorName(ctx)
	var resp domain.OpnameResponse

	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetVariant(ctx, req.VariantID); err != nil {
			return fmt.Errorf("variant %s: %w", req.VariantID, err)
		}
		if _, err := tx.GetWarehouse(ctx, req.WarehouseID); err != nil {
			return fmt.Errorf("warehouse %s: %w", req.WarehouseID, err)
		}

		snap, err := tx.GetSnapshot(ctx, req.VariantID, req.WarehouseID)
		if err != nil {
			return err
		}
		diff := req.TargetQty - snap.Qty

		resp = domain.OpnameResponse{
			VariantID:   req.VariantID,
			WarehouseID: req.WarehouseID,
			SystemQty:   snap.Qty,
			TargetQty:   req.TargetQty,
			DeltaQty:    diff,
		}
		if diff == 0 {
			return nil
		}

		now := time.Now().UTC()
		mv := domain.StockMovement{
			ID:          xid.New("mv"),
			VariantID:   req.VariantID,
			WarehouseID: req.WarehouseID,
			Type:        domain.MovementAdjustmentOpname,
			Origin:      domain.OriginAuthoritative,
			Qty:         diff,
			RefType:     domain.RefTypeOpname,
			Date:        now,
			Notes:       strings.TrimSpace(req.Notes),
			Actor:       actor,
		}
		if err := tx.AppendMovement(ctx, mv); err != nil {
			return err
		}

		snap.Qty = req.TargetQty
		snap.UpdatedAt = now
		if err := tx.PutSnapshot(ctx, snap); err != nil {
			return err
		}

		resp.MovementID = mv.ID
		resp.Applied = true
		return nil
	})
	if err != nil {
		return domain.OpnameResponse{}, err
	}

	if resp.Applied {
		l.invalidate(ctx, cache.MutationOpname)
		l.log.WithFields(logrus.Fields{
			"variant":   resp.VariantID,
			"warehouse": resp.WarehouseID,
			"delta":     resp.DeltaQty,
			"actor":     actor,
		}).Info("opname committed")
	}
	return resp, nil
}

// Transfer moves an amount between two cash accounts: two ledger rows and
// two balance updates, all one unit.
func (l *Ledger) Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferResponse, error) {
	if req.FromAccountID == "" || req.ToAccountID == "" {
		return domain.TransferResponse{}, fmt.Errorf("%w: both accounts required", store.ErrValidation)
	}
	if req.FromAccountID == req.ToAccountID {
		return domain.TransferResponse{}, fmt.Errorf("%w: same-account transfer", store.ErrValidation)
	}
	if req.AmountCents < 1 {
		return domain.TransferResponse{}, fmt.Errorf("%w: non-positive amount", store.ErrValidation)
	}

	actor := actorName(ctx)
	var resp domain.TransferResponse

	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		from, err := tx.GetAccount(ctx, req.FromAccountID)
		if err != nil {
			return fmt.Errorf("account %s: %w", req.FromAccountID, err)
		}
		to, err := tx.GetAccount(ctx, req.ToAccountID)
		if err != nil {
			return fmt.Errorf("account %s: %w", req.ToAccountID, err)
		}

		now := time.Now().UTC()
		refID := xid.New("trf")
		notes := strings.TrimSpace(req.Notes)

		outEntry := domain.CashTransaction{
			ID:          xid.New("ctx"),
			Type:        domain.CashTransferOut,
			AmountCents: req.AmountCents,
			AccountID:   from.ID,
			Category:    "transfer",
			Description: notes,
			Date:        now,
			RefType:     domain.RefTypeTransfer,
			RefID:       refID,
			Actor:       actor,
		}
		inEntry := domain.CashTransaction{
			ID:          xid.New("ctx"),
			Type:        domain.CashTransferIn,
			AmountCents: req.AmountCents,
			AccountID:   to.ID,
			Category:    "transfer",
			Description: notes,
			Date:        now,
			RefType:     domain.RefTypeTransfer,
			RefID:       refID,
			Actor:       actor,
		}
		if err := tx.PutCashTransaction(ctx, outEntry); err != nil {
			return err
		}
		if err := tx.PutCashTransaction(ctx, inEntry); err != nil {
			return err
		}

		from.BalanceCents -= req.AmountCents
		to.BalanceCents += req.AmountCents
		if err := tx.PutAccount(ctx, from); err != nil {
			return err
		}
		if err := tx.PutAccount(ctx, to); err != nil {
			return err
		}

		resp = domain.TransferResponse{
			OutEntryID:       outEntry.ID,
			InEntryID:        inEntry.ID,
			FromBalanceCents: from.BalanceCents,
			ToBalanceCents:   to.BalanceCents,
		}
		return nil
	})
	if err != nil {
		return domain.TransferResponse{}, err
	}

	l.invalidate(ctx, cache.MutationCashTransfer)
	l.log.WithFields(logrus.Fields{
		"from":   req.FromAccountID,
		"to":     req.ToAccountID,
		"amount": req.AmountCents,
		"actor":  actor,
	}).Info("cash transfer committed")
	return resp, nil
}

// CreateCashEntry appends a manual in/out entry and applies its signed
// amount to the account balance.
func (l *Ledger) CreateCashEntry(ctx context.Context, req domain.CashEntryRequest) (domain.CashTransaction, error) {
	if req.Type != domain.CashIn && req.Type != domain.CashOut {
		return domain.CashTransaction{}, fmt.Errorf("%w: manual entries are in or out", store.ErrValidation)
	}
	if req.AccountID == "" {
		return domain.CashTransaction{}, fmt.Errorf("%w: account required", store.ErrValidation)
	}
	if req.AmountCents < 1 {
		return domain.CashTransaction{}, fmt.Errorf("%w: non-positive amount", store.ErrValidation)
	}

	actor := actorName(ctx)
	entry := domain.CashTransaction{
		ID:          xid.New("ctx"),
		Type:        req.Type,
		AmountCents: req.AmountCents,
		AccountID:   req.AccountID,
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Date:        req.Date,
		RefType:     domain.RefTypeManual,
		Actor:       actor,
	}
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}

	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		account, err := tx.GetAccount(ctx, req.AccountID)
		if err != nil {
			return fmt.Errorf("account %s: %w", req.AccountID, err)
		}
		if err := tx.PutCashTransaction(ctx, entry); err != nil {
			return err
		}
		account.BalanceCents += entry.SignedAmount()
		return tx.PutAccount(ctx, account)
	})
	if err != nil {
		return domain.CashTransaction{}, err
	}

	l.invalidate(ctx, cache.MutationCashEntryCreate)
	l.log.WithFields(logrus.Fields{
		"entry":   entry.ID,
		"type":    entry.Type,
		"amount":  entry.AmountCents,
		"account": entry.AccountID,
	}).Info("cash entry committed")
	return entry, nil
}

// EditCashEntry rewrites a manual entry's fields with an undo-then-apply
// balance correction: the account referenced by the stored entry is reread
// and gets the undo of the old signed amount; the account referenced after
// the edit is reread and gets the apply of the new signed amount. When the
// account does not change those are the same freshly read document, so the
// net effect is balance - signedOld + signedNew. Transfer legs cannot be
// edited; their pairing would break.
func (l *Ledger) EditCashEntry(ctx context.Context, entryID string, upd domain.CashEntryUpdate) (domain.CashTransaction, error) {
	if strings.TrimSpace(entryID) == "" {
		return domain.CashTransaction{}, fmt.Errorf("%w: entry id required", store.ErrValidation)
	}
	if upd.Type != nil && *upd.Type != domain.CashIn && *upd.Type != domain.CashOut {
		return domain.CashTransaction{}, fmt.Errorf("%w: manual entries are in or out", store.ErrValidation)
	}
	if upd.AmountCents != nil && *upd.AmountCents < 1 {
		return domain.CashTransaction{}, fmt.Errorf("%w: non-positive amount", store.ErrValidation)
	}

	var updated domain.CashTransaction

	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		entry, err := tx.GetCashTransaction(ctx, entryID)
		if err != nil {
			return fmt.Errorf("entry %s: %w", entryID, err)
		}
		if entry.Type == domain.CashTransferIn || entry.Type == domain.CashTransferOut {
			return fmt.Errorf("%w: transfer legs cannot be edited", store.ErrValidation)
		}
		signedOld := entry.SignedAmount()
		oldAccountID := entry.AccountID

		updated = entry
		if upd.Type != nil {
			updated.Type = *upd.Type
		}
		if upd.AccountID != nil {
			if strings.TrimSpace(*upd.AccountID) == "" {
				return fmt.Errorf("%w: account required", store.ErrValidation)
			}
			updated.AccountID = *upd.AccountID
		}
		if upd.AmountCents != nil {
			updated.AmountCents = *upd.AmountCents
		}
		if upd.Category != nil {
			updated.Category = strings.TrimSpace(*upd.Category)
		}
		if upd.Description != nil {
			updated.Description = strings.TrimSpace(*upd.Description)
		}
		if upd.Date != nil {
			updated.Date = *upd.Date
		}
		signedNew := updated.SignedAmount()

		if updated.AccountID == oldAccountID {
			account, err := tx.GetAccount(ctx, oldAccountID)
			if err != nil {
				return fmt.Errorf("account %s: %w", oldAccountID, err)
			}
			account.BalanceCents = account.BalanceCents - signedOld + signedNew
			if err := tx.PutAccount(ctx, account); err != nil {
				return err
			}
		} else {
			oldAccount, err := tx.GetAccount(ctx, oldAccountID)
			if err != nil {
				return fmt.Errorf("account %s: %w", oldAccountID, err)
			}
			newAccount, err := tx.GetAccount(ctx, updated.AccountID)
			if err != nil {
				return fmt.Errorf("account %s: %w", updated.AccountID, err)
			}
			oldAccount.BalanceCents -= signedOld
			newAccount.BalanceCents += signedNew
			if err := tx.PutAccount(ctx, oldAccount); err != nil {
				return err
			}
			if err := tx.PutAccount(ctx, newAccount); err != nil {
				return err
			}
		}

		return tx.PutCashTransaction(ctx, updated)
	})
	if err != nil {
		return domain.CashTransaction{}, err
	}

	l.invalidate(ctx, cache.MutationCashEntryEdit)
	l.log.WithField("entry", entryID).Info("cash entry edited")
	return updated, nil
}

// DeleteCashEntry reverses the entry's signed amount on its account and
// removes the ledger row. Transfer legs cannot be deleted individually.
func (l *Ledger) DeleteCashEntry(ctx context.Context, entryID string) error {
	if strings.TrimSpace(entryID) == "" {
		return fmt.Errorf("%w: entry id required", store.ErrValidation)
	}

	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		entry, err := tx.GetCashTransaction(ctx, entryID)
		if err != nil {
			return fmt.Errorf("entry %s: %w", entryID, err)
		}
		if entry.Type == domain.CashTransferIn || entry.Type == domain.CashTransferOut {
			return fmt.Errorf("%w: transfer legs cannot be deleted", store.ErrValidation)
		}

		account, err := tx.GetAccount(ctx, entry.AccountID)
		if err != nil {
			return fmt.Errorf("account %s: %w", entry.AccountID, err)
		}
		account.BalanceCents -= entry.SignedAmount()
		if err := tx.PutAccount(ctx, account); err != nil {
			return err
		}
		return tx.DeleteCashTransaction(ctx, entryID)
	})
	if err != nil {
		return err
	}

	l.invalidate(ctx, cache.MutationCashEntryDelete)
	l.log.WithField("entry", entryID).Info("cash entry deleted")
	return nil
}

// ReceivePurchase records a received purchase order: per line one
// purchase_in movement plus snapshot merge-add, and, when a paying account
// is named, one cash out entry plus balance debit, all one unit.
func (l *Ledger) ReceivePurchase(ctx context.Context, req domain.PurchaseReceiveRequest) (domain.PurchaseOrder, error) {
	if req.SupplierID == "" || req.WarehouseID == "" {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: supplier and warehouse required", store.ErrValidation)
	}
	if len(req.Items) == 0 {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: empty purchase", store.ErrValidation)
	}
	for _, item := range req.Items {
		if item.VariantID == "" || item.Qty < 1 || item.CostCents < 0 {
			return domain.PurchaseOrder{}, fmt.Errorf("%w: bad purchase line", store.ErrValidation)
		}
	}

	actor := actorName(ctx)
	var order domain.PurchaseOrder

	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetWarehouse(ctx, req.WarehouseID); err != nil {
			return fmt.Errorf("warehouse %s: %w", req.WarehouseID, err)
		}

		now := time.Now().UTC()
		orderID := xid.New("po")

		items := make([]domain.PurchaseOrderItem, 0, len(req.Items))
		total := int64(0)
		for _, item := range req.Items {
			variant, err := tx.GetVariant(ctx, item.VariantID)
			if err != nil {
				return fmt.Errorf("variant %s: %w", item.VariantID, err)
			}
			item.SKU = variant.SKU
			items = append(items, item)
			total += int64(item.Qty) * item.CostCents
		}

		order = domain.PurchaseOrder{
			ID:                orderID,
			OrderNo:           strings.TrimSpace(req.OrderNo),
			SupplierID:        req.SupplierID,
			WarehouseID:       req.WarehouseID,
			Status:            domain.OrderStatusReceived,
			TotalCents:        total,
			PaidFromAccountID: req.PaidFromAccountID,
			CreatedAt:         now,
			Actor:             actor,
			Items:             items,
		}
		if err := tx.PutPurchaseOrder(ctx, order); err != nil {
			return err
		}

		for _, item := range items {
			if err := applyStockDelta(ctx, tx, stockDelta{
				VariantID:   item.VariantID,
				WarehouseID: req.WarehouseID,
				Type:        domain.MovementPurchaseIn,
				Qty:         item.Qty,
				RefID:       orderID,
				RefType:     domain.RefTypePurchaseOrder,
				Date:        now,
				Actor:       actor,
			}); err != nil {
				return err
			}
		}

		if req.PaidFromAccountID != "" && total > 0 {
			account, err := tx.GetAccount(ctx, req.PaidFromAccountID)
			if err != nil {
				return fmt.Errorf("account %s: %w", req.PaidFromAccountID, err)
			}
			entry := domain.CashTransaction{
				ID:          xid.New("ctx"),
				Type:        domain.CashOut,
				AmountCents: total,
				AccountID:   account.ID,
				Category:    "pembelian",
				Description: "purchase " + orderID,
				Date:        now,
				RefType:     domain.RefTypePurchaseOrder,
				RefID:       orderID,
				Actor:       actor,
			}
			if err := tx.PutCashTransaction(ctx, entry); err != nil {
				return err
			}
			account.BalanceCents += entry.SignedAmount()
			if err := tx.PutAccount(ctx, account); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	l.invalidate(ctx, cache.MutationPurchaseReceive)
	l.log.WithFields(logrus.Fields{
		"purchase": order.ID,
		"total":    order.TotalCents,
		"actor":    actor,
	}).Info("purchase received")
	return order, nil
}

type stockDelta struct {
	VariantID   string
	WarehouseID string
	Type        domain.MovementType
	Qty         int
	RefID       string
	RefType     string
	Date        time.Time
	Notes       string
	Actor       string
}

// applyStockDelta appends a derived movement and merge-adds its delta onto
// the snapshot read inside the same unit.
func applyStockDelta(ctx context.Context, tx store.Tx, d stockDelta) error {
	if err := tx.AppendMovement(ctx, domain.StockMovement{
		ID:          xid.New("mv"),
		VariantID:   d.VariantID,
		WarehouseID: d.WarehouseID,
		Type:        d.Type,
		Origin:      domain.OriginDerived,
		Qty:         d.Qty,
		RefID:       d.RefID,
		RefType:     d.RefType,
		Date:        d.Date,
		Notes:       d.Notes,
		Actor:       d.Actor,
	}); err != nil {
		return err
	}

	snap, err := tx.GetSnapshot(ctx, d.VariantID, d.WarehouseID)
	if err != nil {
		return err
	}
	snap.Qty += d.Qty
	snap.UpdatedAt = d.Date
	return tx.PutSnapshot(ctx, snap)
}

// applyCashCredit appends the entry and applies its signed amount to the
// freshly read account balance.
func applyCashCredit(ctx context.Context, tx store.Tx, entry domain.CashTransaction) error {
	account, err := tx.GetAccount(ctx, entry.AccountID)
	if err != nil {
		return fmt.Errorf("account %s: %w", entry.AccountID, err)
	}
	if err := tx.PutCashTransaction(ctx, entry); err != nil {
		return err
	}
	account.BalanceCents += entry.SignedAmount()
	return tx.PutAccount(ctx, account)
}
