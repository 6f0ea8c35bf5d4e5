// Package sniffer provides detection of the CSV bill formats accepted for import.
// It identifies the delimiter and header row, fingerprints the header, and classifies
// it as one of the known schemas.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// Format tags which parser handles a CSV file.
type Format int

const (
	FormatUnknown Format = iota
	// FormatBillSummary is one row per bill with embedded line items.
	FormatBillSummary
	// FormatLineItem is one row per purchased item.
	FormatLineItem
)

func (f Format) String() string {
	switch f {
	case FormatBillSummary:
		return "bill_summary"
	case FormatLineItem:
		return "line_item"
	default:
		return "unknown"
	}
}

// Column names of the bill-summary schema. The header must be exactly this set.
const (
	ColShopName    = "shop_name"
	ColDate        = "date"
	ColTotalAmount = "total_amount"
	ColLineItems   = "line_items"
)

// Column names of the line-item schema.
const (
	ColItemName    = "Item Name"
	ColItemType    = "Item Type"
	ColItemSubType = "Item Sub Type"
	ColQuantity    = "Quantity"
	ColUnitMeasure = "Unit measure"
	ColCostPerUnit = "Cost per unit"
	ColTotalPaid   = "Total amount paid"
	ColItemDate    = "Date"
	ColShopAddress = "Shop Address"
	ColShopNameAlt = "Shop Name"
)

var (
	billSummaryColumns = []string{ColShopName, ColDate, ColTotalAmount, ColLineItems}
	lineItemRequired   = []string{ColItemName, ColTotalPaid, ColItemDate, ColShopAddress}
)

// FileConfig holds the detected configuration for a CSV file
type FileConfig struct {
	Delimiter   rune     // The field delimiter (',', ';', '\t')
	Headers     []string // Trimmed header names
	Fingerprint string   // SHA256 hash of normalized headers
	Format      Format
}

var ErrNoHeadersFound = errors.New("could not find csv header")

const utf8BOM = "\ufeff"

// DetectConfig reads the header row of a CSV file and classifies it.
func DetectConfig(data []byte) (*FileConfig, error) {
	data = StripBOM(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, common.ErrEmptyFile
	}

	headerLine := firstNonEmptyLine(string(data))
	if headerLine == "" {
		return nil, ErrNoHeadersFound
	}

	delimiter := detectDelimiter(headerLine)

	reader := csv.NewReader(strings.NewReader(headerLine))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	format, err := Detect(headers)
	if err != nil {
		return nil, err
	}

	return &FileConfig{
		Delimiter:   delimiter,
		Headers:     headers,
		Fingerprint: generateFingerprint(headers),
		Format:      format,
	}, nil
}

// Detect classifies a header row. The bill-summary schema needs exactly its four
// columns in any order; the line-item schema needs its required columns and may
// carry extras. Names are compared case-sensitively.
func Detect(header []string) (Format, error) {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = struct{}{}
	}

	if len(present) == len(billSummaryColumns) && len(header) == len(billSummaryColumns) && containsAll(present, billSummaryColumns) {
		return FormatBillSummary, nil
	}

	if containsAll(present, lineItemRequired) {
		return FormatLineItem, nil
	}

	return FormatUnknown, fmt.Errorf("%w: header [%s]", common.ErrUnrecognizedFormat, strings.Join(header, ", "))
}

// StripBOM drops a leading UTF-8 byte order mark.
func StripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte(utf8BOM))
}

func containsAll(set map[string]struct{}, required []string) bool {
	for _, col := range required {
		if _, ok := set[col]; !ok {
			return false
		}
	}
	return true
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

// detectDelimiter picks the candidate that splits the header into the most columns.
func detectDelimiter(line string) rune {
	best := ','
	bestCount := strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if count := strings.Count(line, string(d)); count > bestCount {
			best, bestCount = d, count
		}
	}
	return best
}

// generateFingerprint creates a unique hash from header names
func generateFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
