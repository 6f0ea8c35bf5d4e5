package parser

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/sniffer"
)

// LineItemRow is one line-item record. Only the name, total paid, date and shop
// address columns are required; the rest are used when present.
type LineItemRow struct {
	ItemName    string `csv:"Item Name"`
	ItemType    string `csv:"Item Type"`
	ItemSubType string `csv:"Item Sub Type"`
	Quantity    string `csv:"Quantity"`
	UnitMeasure string `csv:"Unit measure"`
	CostPerUnit string `csv:"Cost per unit"`
	TotalPaid   string `csv:"Total amount paid"`
	Date        string `csv:"Date"`
	ShopAddress string `csv:"Shop Address"`
	ShopName    string `csv:"Shop Name"`
}

type groupKey struct {
	date string
	shop string
}

// ParseLineItems parses every row into a line item and groups rows sharing a
// (date, shop) key into one bill. Bills come out in first-occurrence order of their
// key and items keep row order; a bill's total is the exact sum of its item prices.
func ParseLineItems(r io.Reader, opts Options) (*Result, error) {
	var rows []*LineItemRow
	if err := unmarshalRows(r, opts.Delimiter, &rows); err != nil {
		return nil, err
	}

	result := &Result{
		Format:    sniffer.FormatLineItem,
		RowsTotal: len(rows),
	}

	groups := make(map[groupKey]*common.Bill)
	var order []groupKey

	for i, row := range rows {
		key, date, item, err := parseLineItemRow(row, opts.fallbackCategory())
		if err != nil {
			result.Skipped = append(result.Skipped, common.RowError{Line: lineNumber(i), Err: err})
			continue
		}

		bill, ok := groups[key]
		if !ok {
			bill = &common.Bill{
				ShopName:    key.shop,
				Date:        date,
				TotalAmount: decimal.Zero,
				UploadType:  common.UploadTypeCSV,
			}
			groups[key] = bill
			order = append(order, key)
		}
		bill.LineItems = append(bill.LineItems, item)
		bill.TotalAmount = bill.TotalAmount.Add(item.Price)
	}

	result.Bills = make([]*common.Bill, 0, len(order))
	for _, key := range order {
		result.Bills = append(result.Bills, groups[key])
	}

	return result, nil
}

func parseLineItemRow(row *LineItemRow, fallbackCategory string) (groupKey, time.Time, common.LineItem, error) {
	name := normalizer.CleanName(row.ItemName)
	if name == "" {
		return groupKey{}, time.Time{}, common.LineItem{}, fmt.Errorf("%w: missing item name", common.ErrMalformedLineItem)
	}

	date, err := normalizer.ParseFlexibleDate(row.Date)
	if err != nil {
		return groupKey{}, time.Time{}, common.LineItem{}, err
	}

	price, err := normalizer.ParseNonNegativeAmount(row.TotalPaid)
	if err != nil {
		return groupKey{}, time.Time{}, common.LineItem{}, err
	}

	item := common.LineItem{
		Name:     name,
		Quantity: normalizer.QuantityOrOne(row.Quantity),
		Price:    price,
		Category: chooseCategory(row, fallbackCategory),
	}

	key := groupKey{
		date: date.Format(common.DateLayout),
		shop: shopIdentifier(row),
	}
	return key, date, item, nil
}

// chooseCategory prefers the sub type, then the type, then the fallback.
func chooseCategory(row *LineItemRow, fallbackCategory string) string {
	for _, candidate := range []string{row.ItemSubType, row.ItemType} {
		candidate = normalizer.CleanName(candidate)
		if candidate != "" && !normalizer.IsNA(candidate) {
			return candidate
		}
	}
	return fallbackCategory
}

func shopIdentifier(row *LineItemRow) string {
	for _, candidate := range []string{row.ShopAddress, row.ShopName} {
		if shop := normalizer.CleanName(candidate); shop != "" {
			return shop
		}
	}
	return common.UnknownShop
}
