// Package receipt turns raw OCR text lines into line items.
// Parsing is heuristic: lines without a trailing amount are noise and are dropped
// silently, never reported as errors.
package receipt

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/normalizer"
)

var (
	// amountToken matches "3.99", "$3.99", "1,299.00" or a currency-prefixed integer like "$5".
	amountToken = regexp.MustCompile(`^(?:[$€£]?\d{1,3}(?:,\d{3})+\.\d{2}|[$€£]?\d+\.\d{2}|[$€£]\d+)$`)

	// countPrefix matches a glued count like "2x" or "1.5X".
	countPrefix = regexp.MustCompile(`^(\d+(?:\.\d+)?)[xX]$`)

	bareCount = regexp.MustCompile(`^\d+$`)
	number    = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

	maxLinePrice = decimal.NewFromInt(1000)
)

// skipWords mark header, footer and payment lines.
var skipWords = map[string]struct{}{
	"item": {}, "description": {}, "qty": {}, "quantity": {}, "price": {},
	"total": {}, "subtotal": {}, "tax": {}, "receipt": {}, "invoice": {},
	"date": {}, "time": {}, "cashier": {}, "register": {}, "password": {},
	"pin": {}, "card": {}, "signature": {}, "thank": {}, "visit": {},
	"change": {}, "cash": {}, "tendered": {}, "balance": {}, "discount": {},
	"coupon": {}, "voucher": {}, "refund": {}, "return": {}, "exchange": {},
	"void": {}, "cancelled": {}, "transaction": {},
}

// Parser extracts line items from receipt text.
type Parser struct {
	FallbackCategory string
}

// NewParser returns a parser that assigns fallbackCategory to every item.
func NewParser(fallbackCategory string) *Parser {
	if fallbackCategory == "" {
		fallbackCategory = common.DefaultFallbackCategory
	}
	return &Parser{FallbackCategory: fallbackCategory}
}

// Parse returns one line item per line that carries a plausible name and amount,
// in source line order. The matched amount is the line total; a leading count only
// sets the quantity.
func (p *Parser) Parse(lines []string) []common.LineItem {
	category := p.FallbackCategory
	if category == "" {
		category = common.DefaultFallbackCategory
	}

	var items []common.LineItem
	for _, line := range lines {
		item, ok := parseLine(line)
		if !ok {
			continue
		}
		item.Category = category
		items = append(items, item)
	}
	return items
}

func parseLine(line string) (common.LineItem, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return common.LineItem{}, false
	}

	priceAt := -1
	for i := len(fields) - 1; i > 0; i-- {
		if amountToken.MatchString(fields[i]) {
			priceAt = i
			break
		}
	}
	if priceAt < 0 {
		return common.LineItem{}, false
	}

	price, err := normalizer.ParseAmount(fields[priceAt])
	if err != nil || !price.IsPositive() || price.GreaterThanOrEqual(maxLinePrice) {
		return common.LineItem{}, false
	}

	nameFields, qty := splitCount(fields[:priceAt])
	name := normalizer.CleanName(strings.Join(nameFields, " "))
	if !hasLetter(name) || isSkipLine(name) {
		return common.LineItem{}, false
	}

	return common.LineItem{
		Name:     name,
		Quantity: qty,
		Price:    price,
	}, true
}

// splitCount strips a leading "N x", "Nx" or bare integer count from the name tokens.
func splitCount(fields []string) ([]string, decimal.Decimal) {
	one := decimal.NewFromInt(1)
	if len(fields) < 2 {
		return fields, one
	}

	if m := countPrefix.FindStringSubmatch(fields[0]); m != nil {
		if qty, ok := normalizer.ParseQuantity(m[1]); ok {
			return fields[1:], qty
		}
	}

	if len(fields) >= 3 && number.MatchString(fields[0]) && strings.EqualFold(fields[1], "x") {
		if qty, ok := normalizer.ParseQuantity(fields[0]); ok {
			return fields[2:], qty
		}
	}

	if bareCount.MatchString(fields[0]) {
		if qty, ok := normalizer.ParseQuantity(fields[0]); ok {
			return fields[1:], qty
		}
	}

	return fields, one
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// isSkipLine reports whether any whole word of s is a receipt keyword.
func isSkipLine(s string) bool {
	for _, word := range words(s) {
		if _, ok := skipWords[word]; ok {
			return true
		}
	}
	return false
}

// words lowercases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
