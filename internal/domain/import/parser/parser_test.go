package parser

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/sniffer"
)

const billSummaryCSV = `shop_name,date,total_amount,line_items
Costco,2025-02-09,$19.98,"Strawberries,1,15.98,Fruit|Bananas,1,4.00,Fruit"
Walmart,2025-02-10,5.00,"Bread,2,5.00,"
Target,2025-02-11,3.00,"Soap,1,3.00"
`

const lineItemHeader = "Item Name,Item Type,Item Sub Type,Quantity,Unit measure,Cost per unit,Total amount paid,Date,Shop Address\n"

func mustParse(t *testing.T, data string) *Result {
	t.Helper()
	config, err := sniffer.DetectConfig([]byte(data))
	if err != nil {
		t.Fatalf("DetectConfig failed: %v", err)
	}
	result, err := Parse([]byte(data), config, Options{FallbackCategory: "Misc"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return result
}

func TestParseBillSummary_SkipsMalformedRow(t *testing.T) {
	result := mustParse(t, billSummaryCSV)

	if len(result.Bills) != 2 {
		t.Fatalf("expected 2 bills, got %d", len(result.Bills))
	}
	if result.RowsSkipped() != 1 {
		t.Fatalf("expected 1 skipped row, got %d", result.RowsSkipped())
	}
	if result.RowsTotal != 3 {
		t.Errorf("expected 3 rows total, got %d", result.RowsTotal)
	}

	skipped := result.Skipped[0]
	if skipped.Line != 4 {
		t.Errorf("expected skipped line 4, got %d", skipped.Line)
	}
	if !errors.Is(skipped, common.ErrMalformedLineItem) {
		t.Errorf("expected ErrMalformedLineItem, got %v", skipped.Err)
	}

	costco := result.Bills[0]
	if costco.ShopName != "Costco" || costco.DateString() != "2025-02-09" {
		t.Errorf("unexpected first bill: %s %s", costco.ShopName, costco.DateString())
	}
	if !costco.TotalAmount.Equal(decimal.RequireFromString("19.98")) {
		t.Errorf("expected total 19.98, got %s", costco.TotalAmount)
	}
	if len(costco.LineItems) != 2 || costco.LineItems[1].Name != "Bananas" {
		t.Errorf("unexpected items: %+v", costco.LineItems)
	}
	if costco.UploadType != common.UploadTypeCSV {
		t.Errorf("expected csv upload type, got %s", costco.UploadType)
	}

	bread := result.Bills[1].LineItems[0]
	if bread.Category != "Misc" {
		t.Errorf("expected fallback category Misc, got %q", bread.Category)
	}
	if !bread.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected quantity 2, got %s", bread.Quantity)
	}
}

func TestParseBillSummary_RowErrors(t *testing.T) {
	data := `shop_name,date,total_amount,line_items
A,02/09/2025,1.00,"x,1,1.00,c"
B,2025-02-09,abc,"x,1,1.00,c"
C,2025-02-09,1.00,"x,one,1.00,c"
D,2025-02-09,1.00,"x,1,1.00,c|"
E,2025-02-09,1.00,
`
	result := mustParse(t, data)

	want := []error{common.ErrInvalidDate, common.ErrInvalidAmount, common.ErrMalformedLineItem, common.ErrMalformedLineItem}
	if len(result.Skipped) != len(want) {
		t.Fatalf("expected %d skipped rows, got %d: %v", len(want), len(result.Skipped), result.Skipped)
	}
	for i, err := range want {
		if !errors.Is(result.Skipped[i], err) {
			t.Errorf("row %d: expected %v, got %v", result.Skipped[i].Line, err, result.Skipped[i].Err)
		}
	}

	if len(result.Bills) != 1 || len(result.Bills[0].LineItems) != 0 {
		t.Fatalf("expected one bill without items, got %+v", result.Bills)
	}
}

func TestParseBillSummary_TotalTrustedAsGiven(t *testing.T) {
	data := "shop_name,date,total_amount,line_items\nLidl,2025-03-01,50.00,\"Milk,1,1.00,Dairy\"\n"
	result := mustParse(t, data)
	if !result.Bills[0].TotalAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected given total 50.00, got %s", result.Bills[0].TotalAmount)
	}
}

func TestSplitLineItems_RoundTrip(t *testing.T) {
	items := [][]string{
		{"Strawberries", "2", "15.98", "Fruit"},
		{"Organic A2 Milk", "1.5", "4.49", "Dairy"},
		{"Toor Dal", "1", "3.00", "Daal"},
	}

	segments := make([]string, 0, len(items))
	for _, fields := range items {
		segments = append(segments, strings.Join(fields, ","))
	}

	got, err := SplitLineItems(strings.Join(segments, "|"))
	if err != nil {
		t.Fatalf("SplitLineItems failed: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("expected %d segments, got %d", len(items), len(got))
	}
	for i := range items {
		for j := range items[i] {
			if got[i][j] != items[i][j] {
				t.Errorf("segment %d field %d: got %q, want %q", i, j, got[i][j], items[i][j])
			}
		}
	}
}

func TestFormatLineItems_Inverse(t *testing.T) {
	want := []common.LineItem{
		{Name: "Milk 2L", Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString("3.99"), Category: "Dairy"},
		{Name: "Bread", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("5.00"), Category: "Grain"},
	}

	items, err := parseEmbeddedItems(FormatLineItems(want), common.DefaultFallbackCategory)
	if err != nil {
		t.Fatalf("parseEmbeddedItems failed: %v", err)
	}
	for i := range want {
		if items[i].Name != want[i].Name || items[i].Category != want[i].Category ||
			!items[i].Price.Equal(want[i].Price) || !items[i].Quantity.Equal(want[i].Quantity) {
			t.Errorf("item %d: got %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestWriteBillSummary(t *testing.T) {
	result := mustParse(t, billSummaryCSV)

	var buf bytes.Buffer
	if err := WriteBillSummary(&buf, result.Bills); err != nil {
		t.Fatalf("WriteBillSummary failed: %v", err)
	}

	again := mustParse(t, buf.String())
	if len(again.Bills) != len(result.Bills) || again.RowsSkipped() != 0 {
		t.Fatalf("expected exported file to re-import cleanly, got %d bills and %v", len(again.Bills), again.Skipped)
	}
	if !again.Bills[0].TotalAmount.Equal(result.Bills[0].TotalAmount) {
		t.Errorf("total changed on export: %s vs %s", again.Bills[0].TotalAmount, result.Bills[0].TotalAmount)
	}
}

func TestParseLineItems_GroupsByDateAndShop(t *testing.T) {
	data := lineItemHeader +
		"Strawberries,Fruit,NA,2,lb,7.99,$15.98,2025-02-09,Costco\n" +
		"Bananas,Fruit,NA,1,bunch,4.00,$4.00,2025-02-09,Costco\n"

	result := mustParse(t, data)

	if len(result.Bills) != 1 {
		t.Fatalf("expected 1 bill, got %d", len(result.Bills))
	}
	bill := result.Bills[0]
	if bill.ShopName != "Costco" || bill.DateString() != "2025-02-09" {
		t.Errorf("unexpected bill key: %s %s", bill.ShopName, bill.DateString())
	}
	if !bill.TotalAmount.Equal(decimal.RequireFromString("19.98")) {
		t.Errorf("expected total 19.98, got %s", bill.TotalAmount)
	}
	if len(bill.LineItems) != 2 {
		t.Fatalf("expected 2 items, got %d", len(bill.LineItems))
	}
	if !bill.LineItems[0].Price.Equal(decimal.RequireFromString("15.98")) {
		t.Errorf("expected price to be the line total, got %s", bill.LineItems[0].Price)
	}
}

func TestParseLineItems_NonAdjacentRowsMerge(t *testing.T) {
	data := lineItemHeader +
		"Milk,Dairy,,1,,,3.99,02/09/2025,Costco\n" +
		"Soap,Household,,1,,,2.00,02/09/2025,Target\n" +
		"Eggs,Dairy,,1,,,5.00,2025-02-09,Costco\n" +
		"Tea,Beverages,,1,,,1.50,02/10/2025,Costco\n"

	result := mustParse(t, data)

	if len(result.Bills) != 3 {
		t.Fatalf("expected 3 bills, got %d", len(result.Bills))
	}
	order := []string{"Costco 2025-02-09", "Target 2025-02-09", "Costco 2025-02-10"}
	for i, want := range order {
		if got := result.Bills[i].ShopName + " " + result.Bills[i].DateString(); got != want {
			t.Errorf("bill %d: got %s, want %s", i, got, want)
		}
	}
	costco := result.Bills[0]
	if len(costco.LineItems) != 2 || costco.LineItems[0].Name != "Milk" || costco.LineItems[1].Name != "Eggs" {
		t.Errorf("expected Milk then Eggs, got %+v", costco.LineItems)
	}
	if !costco.TotalAmount.Equal(decimal.RequireFromString("8.99")) {
		t.Errorf("expected total 8.99, got %s", costco.TotalAmount)
	}
}

func TestParseLineItems_RowRules(t *testing.T) {
	data := lineItemHeader +
		"Cilantro,Vegetable,Herb,NA,,,0.99,02/09/2025,Costco\n" +
		"Rice,Grain,NA,two,,,12.00,02/09/2025,Costco\n" +
		"Widget,,,3,,,4.50,02/09/2025,\n" +
		"Broken,,,1,,,abc,02/09/2025,Costco\n" +
		"Missing,,,1,,,,02/09/2025,Costco\n" +
		"Late,,,1,,,1.00,31/12/2025,Costco\n" +
		",,,1,,,1.00,02/09/2025,Costco\n"

	result := mustParse(t, data)

	wantSkipped := []struct {
		line int
		err  error
	}{
		{5, common.ErrInvalidAmount},
		{6, common.ErrInvalidAmount},
		{7, common.ErrInvalidDate},
		{8, common.ErrMalformedLineItem},
	}
	if len(result.Skipped) != len(wantSkipped) {
		t.Fatalf("expected %d skipped rows, got %v", len(wantSkipped), result.Skipped)
	}
	for i, want := range wantSkipped {
		got := result.Skipped[i]
		if got.Line != want.line || !errors.Is(got, want.err) {
			t.Errorf("skipped %d: got %v, want line %d %v", i, got, want.line, want.err)
		}
	}

	if len(result.Bills) != 2 {
		t.Fatalf("expected 2 bills, got %d", len(result.Bills))
	}
	costco := result.Bills[0]
	if costco.LineItems[0].Category != "Herb" {
		t.Errorf("expected sub type to win, got %q", costco.LineItems[0].Category)
	}
	if !costco.LineItems[0].Quantity.Equal(decimal.NewFromInt(1)) || !costco.LineItems[1].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected default quantity 1")
	}
	if costco.LineItems[1].Category != "Grain" {
		t.Errorf("expected item type when sub type is NA, got %q", costco.LineItems[1].Category)
	}

	unknown := result.Bills[1]
	if unknown.ShopName != common.UnknownShop {
		t.Errorf("expected %q, got %q", common.UnknownShop, unknown.ShopName)
	}
	if unknown.LineItems[0].Category != "Misc" {
		t.Errorf("expected fallback category, got %q", unknown.LineItems[0].Category)
	}
	if !unknown.TotalAmount.Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("expected quantity not multiplied into total, got %s", unknown.TotalAmount)
	}
}

func TestParseLineItems_ShopNameFallback(t *testing.T) {
	data := "Item Name,Total amount paid,Date,Shop Address,Shop Name\nMilk,3.99,2025-01-02,,Lidl\n"
	result := mustParse(t, data)
	if result.Bills[0].ShopName != "Lidl" {
		t.Fatalf("expected Shop Name fallback, got %q", result.Bills[0].ShopName)
	}
}

func TestParseLineItems_PermutationInvariant(t *testing.T) {
	rows := []string{
		"Milk,Dairy,,1,,,3.99,2025-02-09,Costco",
		"Eggs,Dairy,,1,,,5.00,2025-02-09,Costco",
		"Soap,Household,,1,,,2.00,2025-02-09,Target",
		"Tea,Beverages,,1,,,1.50,2025-02-10,Costco",
		"Rice,Grain,,1,,,12.00,2025-02-10,Costco",
		"Basil,Herb,,1,,,0.99,2025-02-11,Safeway",
	}

	totals := func(rows []string) map[string]string {
		result := mustParse(t, lineItemHeader+strings.Join(rows, "\n")+"\n")
		out := make(map[string]string, len(result.Bills))
		for _, bill := range result.Bills {
			out[bill.ShopName+"|"+bill.DateString()] = fmt.Sprintf("%s/%d", bill.TotalAmount.StringFixed(2), len(bill.LineItems))
		}
		return out
	}

	want := totals(rows)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := append([]string(nil), rows...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := totals(shuffled)
		if len(got) != len(want) {
			t.Fatalf("permutation %d: expected %d bills, got %d", i, len(want), len(got))
		}
		for key, total := range want {
			if got[key] != total {
				t.Errorf("permutation %d: bill %s got %s, want %s", i, key, got[key], total)
			}
		}
	}
}

func TestParse_EmptyFile(t *testing.T) {
	config := &sniffer.FileConfig{Format: sniffer.FormatLineItem, Delimiter: ','}
	if _, err := Parse([]byte(""), config, Options{}); !errors.Is(err, common.ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func BenchmarkParseLineItems(b *testing.B) {
	var sb strings.Builder
	sb.WriteString(lineItemHeader)
	shops := []string{"Costco", "Target", "Safeway", "Walmart"}
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&sb, "Item %d,Fruit,NA,1,,,%d.99,2025-02-%02d,%s\n", i, i%50, i%28+1, shops[i%len(shops)])
	}
	data := sb.String()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseLineItems(strings.NewReader(data), Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
