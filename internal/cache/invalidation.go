package cache

import "context"

// MutationKind names a successful coordinator recipe or importer run for
// cache-invalidation purposes.
type MutationKind string

const (
	MutationCheckout        MutationKind = "checkout"
	MutationOpname          MutationKind = "opname"
	MutationCashTransfer    MutationKind = "cash_transfer"
	MutationCashEntryCreate MutationKind = "cash_entry_create"
	MutationCashEntryEdit   MutationKind = "cash_entry_edit"
	MutationCashEntryDelete MutationKind = "cash_entry_delete"
	MutationPurchaseReceive MutationKind = "purchase_receive"
	MutationSalesImport     MutationKind = "sales_import"
)

// invalidations is the single sanctioned mutation-to-cache-keys mapping.
// Call sites never carry their own deletion lists; they name a kind and the
// table decides. The sets are deliberately conservative: a kind invalidates
// every projection its writes could have skewed, not the minimal delta.
var invalidations = map[MutationKind][]Key{
	MutationCheckout: {
		KeyInventoryListing, KeyPOSStockSnapshots, KeyCashLedger,
		KeyDashboardSummary, KeySalesHistory,
	},
	MutationOpname: {
		KeyInventoryListing, KeyPOSStockSnapshots, KeyDashboardSummary,
	},
	MutationCashTransfer: {
		KeyCashLedger, KeyDashboardSummary,
	},
	MutationCashEntryCreate: {
		KeyCashLedger, KeyDashboardSummary,
	},
	MutationCashEntryEdit: {
		KeyCashLedger, KeyDashboardSummary,
	},
	MutationCashEntryDelete: {
		KeyCashLedger, KeyDashboardSummary,
	},
	MutationPurchaseReceive: {
		KeyInventoryListing, KeyPOSStockSnapshots, KeyCashLedger,
		KeyDashboardSummary, KeyPurchaseHistory,
	},
	MutationSalesImport: {
		KeyInventoryListing, KeyPOSStockSnapshots, KeyCashLedger,
		KeyDashboardSummary, KeySalesHistory,
	},
}

// KeysFor returns the cache keys a mutation kind invalidates.
func KeysFor(kind MutationKind) []Key {
	keys := invalidations[kind]
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

// Kinds lists every mutation kind, for tests.
func Kinds() []MutationKind {
	out := make([]MutationKind, 0, len(invalidations))
	for kind := range invalidations {
		out = append(out, kind)
	}
	return out
}

// Invalidate deletes every key mapped to kind. It runs synchronously after
// a successful mutation, before control returns to the caller.
func Invalidate(ctx context.Context, c Cache, kind MutationKind) error {
	return c.Delete(ctx, invalidations[kind]...)
}
