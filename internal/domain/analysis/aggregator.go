// Package analysis computes spending aggregates over canonical bills.
package analysis

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// MaxTopItems caps the top_items ranking.
const MaxTopItems = 10

type ShopStat struct {
	ShopName   string          `json:"shop_name"`
	BillCount  int             `json:"bill_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

type CategoryStat struct {
	Category   string          `json:"category"`
	ItemCount  int             `json:"item_count"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

type ItemStat struct {
	ItemName      string          `json:"item_name"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	PurchaseCount int             `json:"purchase_count"`
}

type Summary struct {
	TotalSpent    decimal.Decimal `json:"total_spent"`
	TotalBills    int             `json:"total_bills"`
	UniqueShops   int             `json:"unique_shops"`
	TotalItems    int             `json:"total_items"`
	AvgBillAmount decimal.Decimal `json:"avg_bill_amount"`
}

// Result is the monthly analysis. Shops and categories keep first-occurrence order.
type Result struct {
	Month      int            `json:"month"`
	Year       int            `json:"year"`
	Shops      []ShopStat     `json:"shops"`
	Categories []CategoryStat `json:"categories"`
	TopItems   []ItemStat     `json:"top_items"`
	Summary    Summary        `json:"summary"`
}

// Aggregate computes the analysis for the bills that fall inside period. A zero
// period keeps every bill.
func Aggregate(bills []*common.Bill, period common.Period) *Result {
	result := &Result{
		Month:      period.Month,
		Year:       period.Year,
		Shops:      []ShopStat{},
		Categories: []CategoryStat{},
		TopItems:   []ItemStat{},
		Summary:    emptySummary(),
	}

	shopIndex := make(map[string]int)
	categoryIndex := make(map[string]int)
	itemIndex := make(map[string]int)
	var items []ItemStat

	for _, bill := range bills {
		if bill == nil || !period.Contains(bill.Date) {
			continue
		}

		i, ok := shopIndex[bill.ShopName]
		if !ok {
			i = len(result.Shops)
			shopIndex[bill.ShopName] = i
			result.Shops = append(result.Shops, ShopStat{ShopName: bill.ShopName, TotalSpent: decimal.Zero})
		}
		result.Shops[i].BillCount++
		result.Shops[i].TotalSpent = result.Shops[i].TotalSpent.Add(bill.TotalAmount)

		result.Summary.TotalBills++
		result.Summary.TotalSpent = result.Summary.TotalSpent.Add(bill.TotalAmount)

		for _, item := range bill.LineItems {
			spend := item.Spend()
			result.Summary.TotalItems++

			c, ok := categoryIndex[item.Category]
			if !ok {
				c = len(result.Categories)
				categoryIndex[item.Category] = c
				result.Categories = append(result.Categories, CategoryStat{Category: item.Category, TotalSpent: decimal.Zero})
			}
			result.Categories[c].ItemCount++
			result.Categories[c].TotalSpent = result.Categories[c].TotalSpent.Add(spend)

			n, ok := itemIndex[item.Name]
			if !ok {
				n = len(items)
				itemIndex[item.Name] = n
				items = append(items, ItemStat{ItemName: item.Name, TotalSpent: decimal.Zero, TotalQuantity: decimal.Zero})
			}
			items[n].TotalSpent = items[n].TotalSpent.Add(spend)
			items[n].TotalQuantity = items[n].TotalQuantity.Add(item.Quantity)
			items[n].PurchaseCount++
		}
	}

	result.Summary.UniqueShops = len(result.Shops)
	result.Summary.AvgBillAmount = average(result.Summary.TotalSpent, result.Summary.TotalBills)
	result.TopItems = topItems(items, MaxTopItems)

	return result
}

// Summarize computes only the summary statistics for the bills inside period.
func Summarize(bills []*common.Bill, period common.Period) Summary {
	summary := emptySummary()
	shops := make(map[string]struct{})

	for _, bill := range bills {
		if bill == nil || !period.Contains(bill.Date) {
			continue
		}
		summary.TotalBills++
		summary.TotalSpent = summary.TotalSpent.Add(bill.TotalAmount)
		summary.TotalItems += len(bill.LineItems)
		shops[bill.ShopName] = struct{}{}
	}

	summary.UniqueShops = len(shops)
	summary.AvgBillAmount = average(summary.TotalSpent, summary.TotalBills)
	return summary
}

// topItems ranks items by spend, descending. Items arrive in first-occurrence
// order and the stable sort keeps that order among ties.
func topItems(items []ItemStat, limit int) []ItemStat {
	ranked := append([]ItemStat{}, items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalSpent.GreaterThan(ranked[j].TotalSpent)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count))).Round(2)
}

func emptySummary() Summary {
	return Summary{
		TotalSpent:    decimal.Zero,
		AvgBillAmount: decimal.Zero,
	}
}
