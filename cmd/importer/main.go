// Command importer reconciles a marketplace sales export (CSV or XLSX)
// against the ledger. Re-running the same file is safe: orders dedup by
// their external order number.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"tokokas/backend/internal/cache"
	"tokokas/backend/internal/config"
	"tokokas/backend/internal/domain"
	"tokokas/backend/internal/importer"
	"tokokas/backend/internal/ledger"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/store/memory"
	pgstore "tokokas/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		file      = flag.String("file", "", "export file to import (.csv or .xlsx)")
		warehouse = flag.String("warehouse", "", "destination warehouse id (default from env)")
		account   = flag.String("account", "", "receiving cash account id (default from env)")
		channel   = flag.String("channel", "marketplace", "sales channel label for imported orders")
		actor     = flag.String("actor", "importer", "actor recorded on audit fields")
	)
	flag.Parse()

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)

	if *file == "" {
		log.Fatal("missing -file")
	}
	if *warehouse == "" {
		*warehouse = cfg.DefaultWarehouseID
	}
	if *account == "" {
		*account = cfg.DefaultAccountID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = ledger.WithActor(ctx, domain.Actor{Username: *actor})

	st, closeStore := openStore(ctx, cfg, log)
	defer closeStore()
	c, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	led := ledger.New(st, c, log, cfg.CacheTTLs)
	imp, err := importer.New(led, log, importer.Options{
		WarehouseID:    *warehouse,
		AccountID:      *account,
		Channel:        *channel,
		WriteCap:       cfg.ImportWriteCap,
		CancelKeywords: cfg.CancelKeywords,
		PaidKeywords:   cfg.PaidKeywords,
	})
	if err != nil {
		log.WithError(err).Fatal("importer init failed")
	}

	records, err := importer.ReadFile(*file)
	if err != nil {
		log.WithError(err).WithField("file", *file).Fatal("cannot read export")
	}

	res, err := imp.Run(ctx, records)
	if err != nil {
		var partial *importer.PartialImportError
		if errors.As(err, &partial) {
			log.WithFields(logrus.Fields{
				"batches_committed": partial.BatchesCommitted,
				"orders_applied":    partial.OrdersApplied,
			}).WithError(partial.Err).Error("import halted; committed batches stand, re-run to resume")
		} else {
			log.WithError(err).Error("import failed")
		}
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"orders_created": res.OrdersCreated,
		"status_updated": res.StatusUpdated,
		"unchanged":      res.OrdersUnchanged,
		"no_match":       res.OrdersNoMatch,
		"lines_skipped":  res.LinesSkipped,
		"batches":        res.Batches,
	}).Info("import complete")
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func openStore(ctx context.Context, cfg config.Config, log *logrus.Logger) (store.Store, func()) {
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback")
		}
		log.Info("store: postgres")
		return pg, func() { _ = pg.Close() }
	}
	log.Info("store: in-memory (seeded)")
	return memory.NewSeeded(), func() {}
}

func openCache(ctx context.Context, cfg config.Config, log *logrus.Logger) (cache.Cache, func()) {
	if cfg.RedisAddr == "" {
		log.Info("cache: in-memory")
		return cache.NewMemoryCache(), func() {}
	}
	rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rc.Ping(ctx); err != nil {
		log.WithError(err).Warn("redis unavailable, using in-memory cache")
		return cache.NewMemoryCache(), func() {}
	}
	log.Info("cache: redis")
	return rc, func() { _ = rc.Close() }
}
