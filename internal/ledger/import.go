package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tokokas/backend/internal/cache"
	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/xid"
)

// ImportedLine is one sales line of an externally exported order, already
// parsed to canonical form but not yet matched against the catalog. SKU
// matching happens inside the import unit so a catalog edit racing the
// import cannot split a line's resolution.
type ImportedLine struct {
	SKU            string
	FallbackSKU    string
	Qty            int
	UnitPriceCents int64
}

// ImportedOrder is one externally exported order. OrderNo is the
// idempotency key: an order number already present in the store is never
// re-applied, at most its status is brought up to date.
type ImportedOrder struct {
	OrderNo string
	Channel string
	Status  string
	Paid    bool
	Date    time.Time
	Lines   []ImportedLine
}

// Import outcome actions.
const (
	ImportCreated       = "created"
	ImportStatusUpdated = "status_updated"
	ImportUnchanged     = "unchanged"
	ImportNoLineMatched = "no_line_matched"
)

type ImportOutcome struct {
	OrderNo      string
	Action       string
	SkippedLines int
	Writes       int
}

// ImportBatch applies one planned batch of imported orders in a single
// atomic unit. Either every order in the batch lands or none does; the
// caller chunks orders so no batch exceeds the store's write budget, and
// never splits one order across batches.
func (l *Ledger) ImportBatch(ctx context.Context, warehouseID, accountID string, orders []ImportedOrder) ([]ImportOutcome, error) {
	if warehouseID == "" || accountID == "" {
		return nil, fmt.Errorf("%w: warehouse and account required", store.ErrValidation)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	actor := actorName(ctx)
	var outcomes []ImportOutcome

	err := l.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		outcomes = outcomes[:0]
		if _, err := tx.GetWarehouse(ctx, warehouseID); err != nil {
			return fmt.Errorf("warehouse %s: %w", warehouseID, err)
		}
		for _, order := range orders {
			outcome, err := applyImportedOrder(ctx, tx, order, warehouseID, accountID, actor)
			if err != nil {
				return fmt.Errorf("order %s: %w", order.OrderNo, err)
			}
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.invalidate(ctx, cache.MutationSalesImport)
	l.log.WithFields(logrus.Fields{
		"orders": len(orders),
		"actor":  actor,
	}).Info("import batch committed")
	return outcomes, nil
}

func applyImportedOrder(ctx context.Context, tx store.Tx, order ImportedOrder, warehouseID, accountID, actor string) (ImportOutcome, error) {
	outcome := ImportOutcome{OrderNo: order.OrderNo}
	before := tx.WriteCount()

	existing, err := tx.FindSalesOrderByNo(ctx, order.OrderNo)
	switch {
	case err == nil:
		// Duplicate order number: status-only update, no stock, no cash.
		if order.Status != "" && order.Status != existing.Status {
			if err := tx.UpdateSalesOrderStatus(ctx, existing.ID, order.Status); err != nil {
				return outcome, err
			}
			outcome.Action = ImportStatusUpdated
		} else {
			outcome.Action = ImportUnchanged
		}
		outcome.Writes = tx.WriteCount() - before
		return outcome, nil
	case !errors.Is(err, store.ErrNotFound):
		return outcome, err
	}

	items := make([]domain.SalesOrderItem, 0, len(order.Lines))
	total := int64(0)
	for _, line := range order.Lines {
		variant, err := resolveImportSKU(ctx, tx, line)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				outcome.SkippedLines++
				continue
			}
			return outcome, err
		}
		items = append(items, domain.SalesOrderItem{
			VariantID:      variant.ID,
			SKU:            variant.SKU,
			Name:           variant.Name,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
		})
		total += int64(line.Qty) * line.UnitPriceCents
	}
	if len(items) == 0 {
		outcome.Action = ImportNoLineMatched
		return outcome, nil
	}

	now := time.Now().UTC()
	date := order.Date
	if date.IsZero() {
		date = now
	}
	status := order.Status
	if status == "" {
		if order.Paid {
			status = domain.OrderStatusPaid
		} else {
			status = domain.OrderStatusUnpaid
		}
	}

	so := domain.SalesOrder{
		ID:            xid.New("so"),
		OrderNo:       order.OrderNo,
		Channel:       order.Channel,
		Status:        status,
		WarehouseID:   warehouseID,
		TotalCents:    total,
		ReceivedCents: total,
		Paid:          order.Paid,
		CreatedAt:     date,
		Actor:         actor,
		Items:         items,
	}
	if order.Paid {
		so.AccountID = accountID
	}
	if err := tx.PutSalesOrder(ctx, so); err != nil {
		return outcome, err
	}

	for _, item := range items {
		if err := applyStockDelta(ctx, tx, stockDelta{
			VariantID:   item.VariantID,
			WarehouseID: warehouseID,
			Type:        domain.MovementSaleOut,
			Qty:         -item.Qty,
			RefID:       so.ID,
			RefType:     domain.RefTypeSalesOrder,
			Date:        date,
			Actor:       actor,
		}); err != nil {
			return outcome, err
		}
	}

	if order.Paid && total > 0 {
		if err := applyCashCredit(ctx, tx, domain.CashTransaction{
			ID:          xid.New("ctx"),
			Type:        domain.CashIn,
			AmountCents: total,
			AccountID:   accountID,
			Category:    "penjualan",
			Description: fmt.Sprintf("import %s %s", order.Channel, order.OrderNo),
			Date:        date,
			RefType:     domain.RefTypeSalesOrder,
			RefID:       so.ID,
			Actor:       actor,
		}); err != nil {
			return outcome, err
		}
	}

	outcome.Action = ImportCreated
	outcome.Writes = tx.WriteCount() - before
	return outcome, nil
}

// resolveImportSKU tries the line's primary SKU column first and the
// fallback column second.
func resolveImportSKU(ctx context.Context, tx store.Tx, line ImportedLine) (domain.ProductVariant, error) {
	if line.SKU != "" {
		variant, err := tx.ResolveVariantSKU(ctx, line.SKU)
		if err == nil {
			return variant, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.ProductVariant{}, err
		}
	}
	if line.FallbackSKU != "" {
		return tx.ResolveVariantSKU(ctx, line.FallbackSKU)
	}
	return domain.ProductVariant{}, store.ErrNotFound
}
