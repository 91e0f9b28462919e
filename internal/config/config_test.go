package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IMPORT_BATCH_WRITE_CAP", "")
	t.Setenv("DEFAULT_WAREHOUSE_ID", "")
	t.Setenv("IMPORT_CANCEL_KEYWORDS", "")

	cfg := Load()
	if cfg.ImportWriteCap != 450 {
		t.Fatalf("expected default write cap 450, got %d", cfg.ImportWriteCap)
	}
	if cfg.DefaultWarehouseID != "wh-jkt" {
		t.Fatalf("expected default warehouse, got %q", cfg.DefaultWarehouseID)
	}
	if cfg.CancelKeywords != nil {
		t.Fatalf("expected nil keywords when unset, got %v", cfg.CancelKeywords)
	}
}

func TestLoadClampsCacheTTLs(t *testing.T) {
	t.Setenv("CACHE_TTL_INVENTORY_MINUTES", "1")
	t.Setenv("CACHE_TTL_MASTER_DATA_MINUTES", "240")

	cfg := Load()
	if cfg.CacheTTLs.InventoryListing != 5*time.Minute {
		t.Fatalf("expected clamp to 5m, got %s", cfg.CacheTTLs.InventoryListing)
	}
	if cfg.CacheTTLs.POSMasterData != 60*time.Minute {
		t.Fatalf("expected clamp to 60m, got %s", cfg.CacheTTLs.POSMasterData)
	}
}

func TestLoadSplitsKeywordLists(t *testing.T) {
	t.Setenv("IMPORT_CANCEL_KEYWORDS", "batal, cancel ,refund")

	cfg := Load()
	want := []string{"batal", "cancel", "refund"}
	if len(cfg.CancelKeywords) != len(want) {
		t.Fatalf("expected %d keywords, got %v", len(want), cfg.CancelKeywords)
	}
	for i, kw := range want {
		if cfg.CancelKeywords[i] != kw {
			t.Fatalf("keyword %d: expected %q, got %q", i, kw, cfg.CancelKeywords[i])
		}
	}
}
