package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/sniffer"
)

const (
	itemSeparator  = "|"
	fieldSeparator = ","
	itemFieldCount = 4
)

// BillSummaryRow is one bill-summary record: a complete bill with its items
// embedded as "name,quantity,price,category|..." in a single cell.
type BillSummaryRow struct {
	ShopName    string `csv:"shop_name"`
	Date        string `csv:"date"`
	TotalAmount string `csv:"total_amount"`
	LineItems   string `csv:"line_items"`
}

// ParseBillSummary produces one bill per row. Rows with a bad date, total or item
// segment are skipped and reported; the remaining rows still produce bills.
func ParseBillSummary(r io.Reader, opts Options) (*Result, error) {
	var rows []*BillSummaryRow
	if err := unmarshalRows(r, opts.Delimiter, &rows); err != nil {
		return nil, err
	}

	result := &Result{
		Format:    sniffer.FormatBillSummary,
		Bills:     make([]*common.Bill, 0, len(rows)),
		RowsTotal: len(rows),
	}

	for i, row := range rows {
		bill, err := parseBillSummaryRow(row, opts.fallbackCategory())
		if err != nil {
			result.Skipped = append(result.Skipped, common.RowError{Line: lineNumber(i), Err: err})
			continue
		}
		result.Bills = append(result.Bills, bill)
	}

	return result, nil
}

func parseBillSummaryRow(row *BillSummaryRow, fallbackCategory string) (*common.Bill, error) {
	date, err := normalizer.ParseStrictDate(row.Date)
	if err != nil {
		return nil, err
	}

	total, err := normalizer.ParseNonNegativeAmount(row.TotalAmount)
	if err != nil {
		return nil, err
	}

	items, err := parseEmbeddedItems(row.LineItems, fallbackCategory)
	if err != nil {
		return nil, err
	}

	shop := normalizer.CleanName(row.ShopName)
	if shop == "" {
		shop = common.UnknownShop
	}

	return &common.Bill{
		ShopName:    shop,
		Date:        date,
		TotalAmount: total,
		UploadType:  common.UploadTypeCSV,
		LineItems:   items,
	}, nil
}

// SplitLineItems splits a line_items cell into its raw four-field segments.
// An empty cell has no items.
func SplitLineItems(cell string) ([][]string, error) {
	if strings.TrimSpace(cell) == "" {
		return nil, nil
	}

	segments := strings.Split(cell, itemSeparator)
	fields := make([][]string, 0, len(segments))
	for i, segment := range segments {
		parts := strings.Split(segment, fieldSeparator)
		if len(parts) != itemFieldCount {
			return nil, fmt.Errorf("%w: item %d has %d fields, want %d", common.ErrMalformedLineItem, i+1, len(parts), itemFieldCount)
		}
		fields = append(fields, parts)
	}
	return fields, nil
}

func parseEmbeddedItems(cell, fallbackCategory string) ([]common.LineItem, error) {
	segments, err := SplitLineItems(cell)
	if err != nil {
		return nil, err
	}

	items := make([]common.LineItem, 0, len(segments))
	for i, fields := range segments {
		name := normalizer.CleanName(fields[0])
		if name == "" {
			return nil, fmt.Errorf("%w: item %d has no name", common.ErrMalformedLineItem, i+1)
		}

		qty, err := decimal.NewFromString(strings.TrimSpace(fields[1]))
		if err != nil || !qty.IsPositive() {
			return nil, fmt.Errorf("%w: item %d has invalid quantity %q", common.ErrMalformedLineItem, i+1, fields[1])
		}

		price, err := normalizer.ParseNonNegativeAmount(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", common.ErrMalformedLineItem, i+1, err)
		}

		category := normalizer.CleanName(fields[3])
		if category == "" || normalizer.IsNA(category) {
			category = fallbackCategory
		}

		items = append(items, common.LineItem{
			Name:     name,
			Quantity: qty,
			Price:    price,
			Category: category,
		})
	}
	return items, nil
}

// FormatLineItems renders items back into the line_items cell format.
func FormatLineItems(items []common.LineItem) string {
	segments := make([]string, 0, len(items))
	for _, item := range items {
		segments = append(segments, strings.Join([]string{
			item.Name,
			item.Quantity.String(),
			item.Price.StringFixed(2),
			item.Category,
		}, fieldSeparator))
	}
	return strings.Join(segments, itemSeparator)
}

// WriteBillSummary exports bills in the bill-summary schema.
func WriteBillSummary(w io.Writer, bills []*common.Bill) error {
	rows := make([]*BillSummaryRow, 0, len(bills))
	for _, bill := range bills {
		rows = append(rows, &BillSummaryRow{
			ShopName:    bill.ShopName,
			Date:        bill.DateString(),
			TotalAmount: bill.TotalAmount.StringFixed(2),
			LineItems:   FormatLineItems(bill.LineItems),
		})
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write bill summary csv: %w", err)
	}
	return nil
}
