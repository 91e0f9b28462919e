// Package importer reconciles marketplace sales exports against the ledger.
// A run is three stages: a pure parse stage producing canonical rows, a
// planner chunking orders into batches under the store's write ceiling, and
// an executor that applies each batch as one atomic unit through the
// coordinator. Re-running a file is safe: orders dedup by external order
// number.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"tokokas/backend/internal/ledger"
	"tokokas/backend/internal/store"
)

// DefaultWriteCap bounds the estimated write count of one batch.
const DefaultWriteCap = 450

func DefaultCancelKeywords() []string {
	return []string{"batal", "cancel", "refund", "pengembalian"}
}

func DefaultPaidKeywords() []string {
	return []string{"selesai", "lunas", "paid", "completed", "dikirim", "shipped", "sedang dikirim"}
}

// Options configures one import run.
type Options struct {
	WarehouseID    string
	AccountID      string
	Channel        string
	WriteCap       int
	CancelKeywords []string
	PaidKeywords   []string
	Fields         FieldMap
}

func (o *Options) fill() {
	if o.WriteCap < 1 {
		o.WriteCap = DefaultWriteCap
	}
	if o.CancelKeywords == nil {
		o.CancelKeywords = DefaultCancelKeywords()
	}
	if o.PaidKeywords == nil {
		o.PaidKeywords = DefaultPaidKeywords()
	}
	if len(o.Fields.OrderNo) == 0 {
		o.Fields = DefaultFieldMap()
	}
}

// Result is the operator-facing tally of a run.
type Result struct {
	RowsRead         int
	RowsUnidentified int
	RowsCancelled    int
	OrdersTotal      int
	OrdersCreated    int
	StatusUpdated    int
	OrdersUnchanged  int
	OrdersNoMatch    int
	LinesSkipped     int
	Batches          int
}

// PartialImportError reports a run that halted after some batches already
// committed. Committed batches stand; recovery is re-running the import.
type PartialImportError struct {
	BatchesCommitted int
	OrdersApplied    int
	Err              error
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("import halted after %d committed batches (%d orders applied): %v",
		e.BatchesCommitted, e.OrdersApplied, e.Err)
}

func (e *PartialImportError) Unwrap() error { return e.Err }

type Importer struct {
	ledger *ledger.Ledger
	log    *logrus.Logger
	opts   Options
}

func New(l *ledger.Ledger, log *logrus.Logger, opts Options) (*Importer, error) {
	if opts.WarehouseID == "" || opts.AccountID == "" {
		return nil, fmt.Errorf("%w: importer needs a warehouse and an account", store.ErrValidation)
	}
	opts.fill()
	if log == nil {
		log = logrus.New()
	}
	return &Importer{ledger: l, log: log, opts: opts}, nil
}

// ReadCSV reads a comma-separated export into raw records keyed by
// normalized header. Ragged rows are tolerated; short rows read as empty
// trailing fields.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = NormalizeHeader(h)
	}

	var records []Record
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(records)+2, err)
		}
		rec := make(Record, len(keys))
		for i, key := range keys {
			if key == "" {
				continue
			}
			if i < len(fields) {
				rec[key] = fields[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadXLSX reads the first sheet of a spreadsheet export into raw records
// keyed by normalized header.
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	keys := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		keys[i] = NormalizeHeader(h)
	}
	records := make([]Record, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		rec := make(Record, len(keys))
		for i, key := range keys {
			if key == "" {
				continue
			}
			if i < len(cells) {
				rec[key] = cells[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadFile dispatches on extension: .csv or .xlsx.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(f)
	}
	return nil, fmt.Errorf("unsupported file type %q, want .csv or .xlsx", filepath.Ext(path))
}

// orderCost estimates the writes one imported order can stage: the order
// header, per line a movement plus a snapshot, and for a paid order a cash
// entry plus a balance update. Duplicates cost less at execution time; the
// planner budgets for the worst case.
func orderCost(order ledger.ImportedOrder) int {
	cost := 1 + 2*len(order.Lines)
	if order.Paid {
		cost += 2
	}
	return cost
}

// planBatches packs orders into batches whose summed cost stays under the
// cap. One order never spans two batches; an order costlier than the cap
// gets a batch of its own.
func planBatches(orders []ledger.ImportedOrder, limit int) [][]ledger.ImportedOrder {
	var batches [][]ledger.ImportedOrder
	var current []ledger.ImportedOrder
	used := 0

	for _, order := range orders {
		cost := orderCost(order)
		if len(current) > 0 && used+cost > limit {
			batches = append(batches, current)
			current = nil
			used = 0
		}
		current = append(current, order)
		used += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// Run parses, plans and executes one import. On a failed batch it returns
// the tally so far plus a *PartialImportError; everything committed before
// the failure stands.
func (imp *Importer) Run(ctx context.Context, records []Record) (Result, error) {
	res := Result{RowsRead: len(records)}

	var rows []Row
	for _, rec := range records {
		row, identified, err := ParseRow(rec, imp.opts.Fields)
		if err != nil {
			imp.log.WithError(err).Warn("row dropped")
			res.RowsUnidentified++
			continue
		}
		if !identified {
			res.RowsUnidentified++
			continue
		}
		rows = append(rows, row)
	}

	orders, cancelled := GroupOrders(rows, imp.opts.CancelKeywords, imp.opts.PaidKeywords, imp.opts.Channel)
	res.RowsCancelled = cancelled
	res.OrdersTotal = len(orders)

	batches := planBatches(orders, imp.opts.WriteCap)
	imp.log.WithFields(logrus.Fields{
		"rows":    res.RowsRead,
		"orders":  res.OrdersTotal,
		"batches": len(batches),
		"channel": imp.opts.Channel,
	}).Info("import run starting")

	applied := 0
	for i, batch := range batches {
		outcomes, err := imp.ledger.ImportBatch(ctx, imp.opts.WarehouseID, imp.opts.AccountID, batch)
		if err != nil {
			imp.log.WithError(err).WithField("batch", i+1).Error("batch failed, halting run")
			return res, &PartialImportError{
				BatchesCommitted: res.Batches,
				OrdersApplied:    applied,
				Err:              err,
			}
		}
		res.Batches++
		for _, out := range outcomes {
			applied++
			res.LinesSkipped += out.SkippedLines
			switch out.Action {
			case ledger.ImportCreated:
				res.OrdersCreated++
			case ledger.ImportStatusUpdated:
				res.StatusUpdated++
			case ledger.ImportUnchanged:
				res.OrdersUnchanged++
			case ledger.ImportNoLineMatched:
				res.OrdersNoMatch++
				imp.log.WithField("order_no", out.OrderNo).Warn("no line matched the catalog")
			}
		}
		imp.log.WithFields(logrus.Fields{
			"batch":  i + 1,
			"orders": len(batch),
		}).Info("batch committed")
	}

	imp.log.WithFields(logrus.Fields{
		"created":        res.OrdersCreated,
		"status_updated": res.StatusUpdated,
		"unchanged":      res.OrdersUnchanged,
		"no_match":       res.OrdersNoMatch,
		"lines_skipped":  res.LinesSkipped,
		"cancelled_rows": res.RowsCancelled,
	}).Info("import run finished")
	return res, nil
}
