// Command rebuild verifies every materialized aggregate against its log:
// each stock snapshot against the signed movement sum, each account balance
// against the signed cash transaction sum. With -fix, drifted aggregates
// are overwritten to the log's value, one atomic unit each. The log is the
// source of truth; rebuild never writes log entries.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"tokokas/backend/internal/config"
	"tokokas/backend/internal/store"
	"tokokas/backend/internal/store/memory"
	pgstore "tokokas/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	fix := flag.Bool("fix", false, "overwrite drifted aggregates to their log sum")
	flag.Parse()

	cfg := config.Load()
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("postgres unavailable")
		}
		defer pg.Close()
		st = pg
		log.Info("store: postgres")
	} else {
		st = memory.NewSeeded()
		log.Info("store: in-memory (seeded)")
	}

	drifted, err := run(ctx, st, log, *fix)
	if err != nil {
		log.WithError(err).Fatal("rebuild failed")
	}
	if drifted > 0 && !*fix {
		log.WithField("drifted", drifted).Warn("drift found; re-run with -fix to repair")
		os.Exit(1)
	}
	log.Info("rebuild complete")
}

func run(ctx context.Context, st store.Store, log *logrus.Logger, fix bool) (int, error) {
	drifted := 0

	snaps, err := st.ListSnapshots(ctx, "")
	if err != nil {
		return 0, err
	}
	for _, snap := range snaps {
		want, err := st.SumMovements(ctx, snap.VariantID, snap.WarehouseID)
		if err != nil {
			return drifted, err
		}
		if want == snap.Qty {
			continue
		}
		drifted++
		entry := log.WithFields(logrus.Fields{
			"variant":   snap.VariantID,
			"warehouse": snap.WarehouseID,
			"stored":    snap.Qty,
			"log_sum":   want,
		})
		if !fix {
			entry.Warn("stock snapshot drift")
			continue
		}
		variantID, warehouseID := snap.VariantID, snap.WarehouseID
		err = st.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
			// The sum above only detected the drift; the value written
			// must come from this unit's own read of the log, or a
			// movement committed in between would be erased.
			target, err := tx.SumMovements(ctx, variantID, warehouseID)
			if err != nil {
				return err
			}
			cur, err := tx.GetSnapshot(ctx, variantID, warehouseID)
			if err != nil {
				return err
			}
			if cur.Qty == target {
				return nil
			}
			cur.Qty = target
			cur.UpdatedAt = time.Now().UTC()
			return tx.PutSnapshot(ctx, cur)
		})
		if err != nil {
			return drifted, err
		}
		entry.Info("stock snapshot repaired")
	}

	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return drifted, err
	}
	for _, account := range accounts {
		want, err := st.SumCashTransactions(ctx, account.ID)
		if err != nil {
			return drifted, err
		}
		if want == account.BalanceCents {
			continue
		}
		drifted++
		entry := log.WithFields(logrus.Fields{
			"account": account.ID,
			"stored":  account.BalanceCents,
			"log_sum": want,
		})
		if !fix {
			entry.Warn("account balance drift")
			continue
		}
		accountID := account.ID
		err = st.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
			target, err := tx.SumCashTransactions(ctx, accountID)
			if err != nil {
				return err
			}
			cur, err := tx.GetAccount(ctx, accountID)
			if err != nil {
				return err
			}
			if cur.BalanceCents == target {
				return nil
			}
			cur.BalanceCents = target
			return tx.PutAccount(ctx, cur)
		})
		if err != nil {
			return drifted, err
		}
		entry.Info("account balance repaired")
	}

	return drifted, nil
}
