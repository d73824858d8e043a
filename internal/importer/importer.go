package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"partsmarket/internal/domain"
)

// LineItemWriter receives parsed rows. *cart.Store satisfies it.
type LineItemWriter interface {
	Add(item domain.LineItem, quantity int) error
}

// CSVImporter reads cart rows from CSV with the header
// id,kind,name,price,quantity[,originalPrice,shopId,estimatedMinutes].
type CSVImporter struct {
	reader *csv.Reader
	cart   LineItemWriter
}

func NewCSVImporter(r io.Reader, cart LineItemWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader: csvr,
		cart:   cart,
	}
}

var requiredHeaders = []string{"id", "price"}

// Run parses every row and adds it to the cart. It stops at the first
// invalid row and reports its line number.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return 0, fmt.Errorf("missing %q column", h)
		}
	}

	imported := 0
	for {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line, _ := i.reader.FieldPos(0)

		item, qty, skip, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if skip {
			continue
		}
		if err := i.cart.Add(item, qty); err != nil {
			return imported, fmt.Errorf("line %d: add %q: %w", line, item.ID, err)
		}
		imported++
	}
	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (domain.LineItem, int, bool, error) {
	id := pick(record, index, "id")
	if id == "" {
		return domain.LineItem{}, 0, true, nil
	}

	kind := domain.LineItemKind(strings.ToLower(pick(record, index, "kind")))
	if kind == "" {
		kind = domain.KindPart
	}

	price, err := decimal.NewFromString(pick(record, index, "price"))
	if err != nil {
		return domain.LineItem{}, 0, false, fmt.Errorf("invalid price for %q: %w", id, err)
	}

	qty := 1
	if raw := pick(record, index, "quantity"); raw != "" {
		if qty, err = strconv.Atoi(raw); err != nil {
			return domain.LineItem{}, 0, false, fmt.Errorf("invalid quantity for %q: %w", id, err)
		}
	}

	item := domain.LineItem{
		ID:        id,
		Kind:      kind,
		Name:      pick(record, index, "name"),
		UnitPrice: price,
		ShopID:    pick(record, index, "shopid"),
	}
	if raw := pick(record, index, "originalprice"); raw != "" {
		orig, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.LineItem{}, 0, false, fmt.Errorf("invalid originalPrice for %q: %w", id, err)
		}
		item.OriginalPrice = &orig
	}
	if raw := pick(record, index, "estimatedminutes"); raw != "" && kind == domain.KindLabor {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return domain.LineItem{}, 0, false, fmt.Errorf("invalid estimatedMinutes for %q: %w", id, err)
		}
		item.Schedule = &domain.LaborSchedule{EstimatedMinutes: minutes}
	}
	return item, qty, false, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
