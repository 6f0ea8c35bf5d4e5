package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/normalizer"
)

const (
	shopScanLines  = 10
	totalScanLines = 10
)

var (
	isoDate      = regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})`)
	numericDate  = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)
	textDate     = regexp.MustCompile(`([A-Za-z]{3,9})\.?\s+(\d{1,2}),?\s+(\d{4})`)
	shopKeywords = []string{
		"store", "shop", "mart", "market", "supermarket", "retail", "grocery",
		"costco", "walmart", "target", "safeway", "kroger",
	}
	shopSkipWords = []string{"date", "time", "invoice", "receipt"}
	totalWords    = []string{"total", "due", "balance"}
)

// Header holds the bill-level fields found in receipt text. Zero values mean
// the field was not found.
type Header struct {
	ShopName string
	Date     time.Time
	Total    decimal.Decimal
}

// ParseHeader scans receipt lines for the shop name, purchase date and printed total.
func ParseHeader(lines []string) Header {
	return Header{
		ShopName: findShopName(lines),
		Date:     findDate(lines),
		Total:    findTotal(lines),
	}
}

func findShopName(lines []string) string {
	candidate := ""
	for i, line := range lines {
		if i >= shopScanLines {
			break
		}
		line = normalizer.CleanName(line)
		if len(line) <= 3 || !hasLetter(line) {
			continue
		}
		lower := strings.ToLower(line)
		if containsAny(lower, shopKeywords) {
			return line
		}
		if candidate == "" && len(line) > 5 && !containsAny(lower, shopSkipWords) && !hasAmount(line) {
			candidate = line
		}
	}
	return candidate
}

func findDate(lines []string) time.Time {
	for _, line := range lines {
		if date, ok := parseDateIn(line); ok {
			return date
		}
	}
	return time.Time{}
}

func parseDateIn(line string) (time.Time, bool) {
	if m := isoDate.FindStringSubmatch(line); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}

	if m := numericDate.FindStringSubmatch(line); m != nil {
		first, second, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		// Day-first only when the first part cannot be a month.
		if first > 12 {
			return makeDate(year, second, first)
		}
		return makeDate(year, first, second)
	}

	if m := textDate.FindStringSubmatch(line); m != nil {
		month, ok := monthByName(m[1])
		if !ok {
			return time.Time{}, false
		}
		return makeDate(atoi(m[3]), int(month), atoi(m[2]))
	}

	return time.Time{}, false
}

// makeDate rejects values that time.Date would silently normalize, like Feb 30.
func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func monthByName(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if len(name) >= 3 && strings.HasPrefix(full, name) {
			return m, true
		}
	}
	return 0, false
}

func findTotal(lines []string) decimal.Decimal {
	start := len(lines) - totalScanLines
	if start < 0 {
		start = 0
	}

	for i := len(lines) - 1; i >= start; i-- {
		ws := words(lines[i])
		if !containsWord(ws, totalWords) || containsWord(ws, []string{"subtotal"}) {
			continue
		}
		fields := strings.Fields(lines[i])
		for j := len(fields) - 1; j >= 0; j-- {
			if !amountToken.MatchString(fields[j]) {
				continue
			}
			if total, err := normalizer.ParseAmount(fields[j]); err == nil && total.IsPositive() {
				return total
			}
		}
	}
	return decimal.Zero
}

func hasAmount(line string) bool {
	for _, field := range strings.Fields(line) {
		if amountToken.MatchString(field) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

func containsWord(ws []string, targets []string) bool {
	for _, w := range ws {
		for _, target := range targets {
			if w == target {
				return true
			}
		}
	}
	return false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
