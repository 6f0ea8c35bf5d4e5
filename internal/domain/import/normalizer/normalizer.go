// Package normalizer handles money, quantity and date parsing for imported bills.
// Converts receipt and CSV cell formats into the canonical bill representation.
package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// currencySymbols are stripped from monetary cells before parsing.
var currencySymbols = []string{"US$", "R$", "$", "€", "£", "¥", "₹", "USD", "EUR", "GBP"}

// ParseAmount converts a monetary string such as "$1,234.56" into a decimal.
// Thousands separators and a leading currency symbol are stripped.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", common.ErrInvalidAmount)
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = strings.Trim(cleaned, "()")
	}
	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = strings.TrimPrefix(cleaned, "-")
	}

	cleaned = StripCurrency(cleaned)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cleaned)

	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = strings.TrimPrefix(cleaned, "-")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil || cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", common.ErrInvalidAmount, raw)
	}

	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// ParseNonNegativeAmount is ParseAmount restricted to values >= 0.
func ParseNonNegativeAmount(raw string) (decimal.Decimal, error) {
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative value %q", common.ErrInvalidAmount, raw)
	}
	return amount, nil
}

// StripCurrency removes a leading or trailing currency marker.
func StripCurrency(s string) string {
	s = strings.TrimSpace(s)
	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			return strings.TrimSpace(strings.TrimPrefix(s, sym))
		}
		if strings.HasSuffix(s, sym) {
			return strings.TrimSpace(strings.TrimSuffix(s, sym))
		}
	}
	return s
}

// ParseQuantity parses a positive quantity. ok is false when the cell is absent,
// "NA", non-numeric or not positive; callers then default to one.
func ParseQuantity(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || IsNA(raw) {
		return decimal.Zero, false
	}
	qty, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil || !qty.IsPositive() {
		return decimal.Zero, false
	}
	return qty, true
}

// QuantityOrOne applies the default quantity of one.
func QuantityOrOne(raw string) decimal.Decimal {
	if qty, ok := ParseQuantity(raw); ok {
		return qty
	}
	return decimal.NewFromInt(1)
}

// IsNA reports whether a cell holds an explicit not-applicable marker.
func IsNA(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NA", "N/A", "NONE", "NULL":
		return true
	}
	return false
}

// strictDateLayouts is the schema-1 format.
var strictDateLayouts = []string{common.DateLayout}

// lineItemDateLayouts covers MM/DD/YYYY (padded or not), ISO, and two-digit years.
var lineItemDateLayouts = []string{
	"1/2/2006",
	common.DateLayout,
	"1/2/06",
}

// ParseStrictDate parses YYYY-MM-DD only.
func ParseStrictDate(raw string) (time.Time, error) {
	return parseDate(raw, strictDateLayouts)
}

// ParseFlexibleDate accepts MM/DD/YYYY and YYYY-MM-DD and returns a UTC calendar day.
func ParseFlexibleDate(raw string) (time.Time, error) {
	return parseDate(raw, lineItemDateLayouts)
}

func parseDate(raw string, layouts []string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", common.ErrInvalidDate)
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return common.NormalizeDate(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", common.ErrInvalidDate, raw)
}

var spacePattern = regexp.MustCompile(`\s+`)

// CleanName trims a free-text name and collapses internal whitespace.
func CleanName(raw string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
}
