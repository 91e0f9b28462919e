package cache

import (
	"context"
	"sync"
	"time"
)

// Key names a cached projection namespace. The set is fixed; readers and
// the invalidation table may only use these constants.
type Key string

const (
	KeyInventoryListing  Key = "inventory-listing"
	KeyPOSMasterData     Key = "POS-master-data"
	KeyPOSStockSnapshots Key = "POS-stock-snapshots"
	KeyCashLedger        Key = "cash-ledger"
	KeyDashboardSummary  Key = "dashboard-summary"
	KeySalesHistory      Key = "sales-history"
	KeyPurchaseHistory   Key = "purchase-history"
)

// Keys lists every namespace, for tests and bulk flushes.
func Keys() []Key {
	return []Key{
		KeyInventoryListing,
		KeyPOSMasterData,
		KeyPOSStockSnapshots,
		KeyCashLedger,
		KeyDashboardSummary,
		KeySalesHistory,
		KeyPurchaseHistory,
	}
}

// Cache stores serialized projections per namespace. A Get is a hit iff the
// entry was Set less than its ttl ago.
type Cache interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...Key) error
}

type Noop struct{}

func (Noop) Get(_ context.Context, _ Key) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(_ context.Context, _ Key, _ []byte, _ time.Duration) error { return nil }

func (Noop) Delete(_ context.Context, _ ...Key) error { return nil }

type memoryEntry struct {
	payload  []byte
	storedAt time.Time
	ttl      time.Duration
}

// MemoryCache is the default, process-local cache. There is no cross-process
// coherency, which is why invalidation is by mutation kind rather than by
// precise delta.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: map[Key]memoryEntry{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source; tests only.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *MemoryCache) Get(_ context.Context, key Key) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(entry.storedAt) >= entry.ttl {
		return nil, false, nil
	}
	// Hand out a copy so a caller mutating the slice cannot corrupt the
	// cached payload.
	out := make([]byte, len(entry.payload))
	copy(out, entry.payload)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key Key, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{payload: payload, storedAt: c.now(), ttl: ttl}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}
