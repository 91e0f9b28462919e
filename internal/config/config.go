package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"tokokas/backend/internal/ledger"
)

type Config struct {
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	DefaultWarehouseID string
	DefaultAccountID   string
	ImportWriteCap     int
	CancelKeywords     []string
	PaidKeywords       []string
	CacheTTLs          ledger.TTLs
	LogLevel           string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	writeCap, err := strconv.Atoi(getEnv("IMPORT_BATCH_WRITE_CAP", "450"))
	if err != nil || writeCap < 1 {
		writeCap = 450
	}

	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		DefaultWarehouseID: getEnv("DEFAULT_WAREHOUSE_ID", "wh-jkt"),
		DefaultAccountID:   getEnv("DEFAULT_ACCOUNT_ID", "acc-kas"),
		ImportWriteCap:     writeCap,
		CancelKeywords:     splitKeywords(os.Getenv("IMPORT_CANCEL_KEYWORDS")),
		PaidKeywords:       splitKeywords(os.Getenv("IMPORT_PAID_KEYWORDS")),
		CacheTTLs:          loadTTLs(),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// ttlMinutes reads a CACHE_TTL_* variable in minutes, clamped to the 5-60
// minute range the projections are tuned for.
func ttlMinutes(key string, fallback int) time.Duration {
	minutes, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		minutes = fallback
	}
	if minutes < 5 {
		minutes = 5
	}
	if minutes > 60 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

func loadTTLs() ledger.TTLs {
	return ledger.TTLs{
		InventoryListing: ttlMinutes("CACHE_TTL_INVENTORY_MINUTES", 5),
		POSMasterData:    ttlMinutes("CACHE_TTL_MASTER_DATA_MINUTES", 60),
		StockSnapshots:   ttlMinutes("CACHE_TTL_STOCK_MINUTES", 5),
		CashLedger:       ttlMinutes("CACHE_TTL_CASH_MINUTES", 10),
		DashboardSummary: ttlMinutes("CACHE_TTL_DASHBOARD_MINUTES", 15),
		SalesHistory:     ttlMinutes("CACHE_TTL_SALES_MINUTES", 15),
		PurchaseHistory:  ttlMinutes("CACHE_TTL_PURCHASES_MINUTES", 30),
	}
}

// splitKeywords parses a comma-separated keyword list; an empty variable
// returns nil so callers fall back to their defaults.
func splitKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
