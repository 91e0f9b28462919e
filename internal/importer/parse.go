package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tokokas/backend/internal/ledger"
)

// Marketplace exports disagree on header spelling, casing and embedded
// newlines, so every header is normalized before field access and every
// field is looked up through an ordered candidate list. This stage is pure:
// it turns raw records into canonical rows and grouped pending orders with
// no side effects, so the executing stage only ever sees clean input.

// NormalizeHeader lowercases a header cell, folds newlines into spaces,
// collapses runs of whitespace and trims the ends.
func NormalizeHeader(h string) string {
	h = strings.ToLower(h)
	h = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// Row is one source line item in canonical form.
type Row struct {
	OrderNo     string
	Status      string
	SKU         string
	FallbackSKU string
	Name        string
	Qty         int
	PriceCents  int64
	Date        time.Time
}

// FieldMap names the normalized header candidates per logical field, in
// priority order. Defaults cover the Shopee and Tokopedia export
// vocabularies seen in practice.
type FieldMap struct {
	OrderNo     []string
	Status      []string
	SKU         []string
	FallbackSKU []string
	Name        []string
	Qty         []string
	Price       []string
	Date        []string
}

func DefaultFieldMap() FieldMap {
	return FieldMap{
		OrderNo:     []string{"no. pesanan", "no pesanan", "nomor pesanan", "order id", "order sn", "invoice"},
		Status:      []string{"status pesanan", "order status", "status terakhir", "status"},
		SKU:         []string{"nomor referensi sku", "seller sku", "sku penjual", "sku"},
		FallbackSKU: []string{"sku induk", "parent sku", "sku marketplace"},
		Name:        []string{"nama produk", "product name", "nama barang"},
		Qty:         []string{"jumlah", "quantity", "qty"},
		Price:       []string{"harga setelah diskon", "harga jual (idr)", "harga jual", "deal price", "harga awal", "price"},
		Date:        []string{"waktu pesanan dibuat", "tanggal pembayaran", "order creation time", "created at"},
	}
}

// Record is one raw source row keyed by normalized header.
type Record map[string]string

func pick(rec Record, candidates []string) string {
	for _, key := range candidates {
		if v, ok := rec[key]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// ParseRow converts a raw record to canonical form. A row without an order
// identifier in any candidate field is unidentifiable and reports ok=false.
func ParseRow(rec Record, fields FieldMap) (Row, bool, error) {
	orderNo := pick(rec, fields.OrderNo)
	if orderNo == "" {
		return Row{}, false, nil
	}

	row := Row{
		OrderNo:     orderNo,
		Status:      strings.ToLower(pick(rec, fields.Status)),
		SKU:         strings.ToUpper(pick(rec, fields.SKU)),
		FallbackSKU: strings.ToUpper(pick(rec, fields.FallbackSKU)),
		Name:        pick(rec, fields.Name),
	}

	if raw := pick(rec, fields.Qty); raw != "" {
		qty, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Row{}, true, fmt.Errorf("order %s: bad qty %q", orderNo, raw)
		}
		row.Qty = qty
	}
	if row.Qty < 1 {
		row.Qty = 1
	}

	if raw := pick(rec, fields.Price); raw != "" {
		cents, err := ParseMoneyCents(raw)
		if err != nil {
			return Row{}, true, fmt.Errorf("order %s: bad price %q", orderNo, raw)
		}
		row.PriceCents = cents
	}

	if raw := pick(rec, fields.Date); raw != "" {
		row.Date = parseDate(raw)
	}
	return row, true, nil
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ParseMoneyCents converts a locale-formatted money string to integer
// cents. It accepts a currency prefix, non-breaking spaces, Indonesian
// grouping (1.234.567), and decimal forms in either convention (1,234.56
// and 1.234,56).
func ParseMoneyCents(raw string) (int64, error) {
	s := strings.ReplaceAll(raw, " ", " ")
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"rp.", "rp", "idr"} {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount %q", raw)
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both present: the later one is the decimal mark.
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ",")
	case lastDot >= 0:
		s = normalizeSingleSeparator(s, ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q: %w", raw, err)
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// normalizeSingleSeparator decides whether a lone separator kind is a
// grouping or a decimal mark. Repeated separators and a trailing group of
// exactly three digits mean grouping (Indonesian 1.500 is one thousand five
// hundred, not 1.5); anything else is a decimal mark.
func normalizeSingleSeparator(s, sep string) string {
	idx := strings.LastIndex(s, sep)
	tail := len(s) - idx - 1
	if strings.Count(s, sep) > 1 || tail == 3 {
		return strings.ReplaceAll(s, sep, "")
	}
	if sep == "," {
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

// isCancelled reports whether the row's status matches any cancellation
// keyword, substring and case-insensitive.
func isCancelled(status string, keywords []string) bool {
	status = strings.ToLower(status)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(status, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// isPaid reports whether the row's status maps to a settled payment.
func isPaid(status string, keywords []string) bool {
	status = strings.ToLower(status)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(status, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// GroupOrders folds canonical rows into pending orders, dropping cancelled
// rows, preserving first-seen order. One order's rows stay together, which
// is what lets the planner keep an order inside a single batch.
func GroupOrders(rows []Row, cancelKeywords, paidKeywords []string, channel string) ([]ledger.ImportedOrder, int) {
	byNo := make(map[string]int)
	var orders []ledger.ImportedOrder
	cancelled := 0

	for _, row := range rows {
		if isCancelled(row.Status, cancelKeywords) {
			cancelled++
			continue
		}
		idx, ok := byNo[row.OrderNo]
		if !ok {
			idx = len(orders)
			byNo[row.OrderNo] = idx
			orders = append(orders, ledger.ImportedOrder{
				OrderNo: row.OrderNo,
				Channel: channel,
				Date:    row.Date,
			})
		}
		order := &orders[idx]
		order.Paid = order.Paid || isPaid(row.Status, paidKeywords)
		if order.Paid {
			order.Status = "paid"
		} else {
			order.Status = "unpaid"
		}
		if order.Date.IsZero() {
			order.Date = row.Date
		}
		order.Lines = append(order.Lines, ledger.ImportedLine{
			SKU:            row.SKU,
			FallbackSKU:    row.FallbackSKU,
			Qty:            row.Qty,
			UnitPriceCents: row.PriceCents,
		})
	}
	return orders, cancelled
}
