package common

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the canonical text form of a bill date.
const DateLayout = "2006-01-02"

// DefaultFallbackCategory is the category given to items with no category signal.
const DefaultFallbackCategory = "Uncategorized"

// UnknownShop names bills whose source carries no shop identifier.
const UnknownShop = "Unknown Shop"

// UploadType records which ingestion path produced a bill.
type UploadType string

const (
	UploadTypeImage UploadType = "image"
	UploadTypeCSV   UploadType = "csv"
)

// LineItem is one purchased line. Price is the total paid for the line, not a unit price.
type LineItem struct {
	Name     string          `json:"item_name"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

// Spend is the line's contribution to category and item aggregates.
func (li LineItem) Spend() decimal.Decimal {
	return li.Price.Mul(li.Quantity)
}

// Bill is the canonical record all ingestion paths converge to.
type Bill struct {
	ID          uuid.UUID       `json:"id"`
	ShopName    string          `json:"shop_name"`
	Date        time.Time       `json:"date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	UploadType  UploadType      `json:"upload_type"`
	SourceFile  string          `json:"source_file,omitempty"`
	LineItems   []LineItem      `json:"line_items"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DateString returns the bill date in DateLayout.
func (b *Bill) DateString() string {
	return b.Date.Format(DateLayout)
}

// ItemsTotal sums the line prices.
func (b *Bill) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.LineItems {
		total = total.Add(item.Price)
	}
	return total
}

// NormalizeDate truncates t to a UTC calendar day.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
