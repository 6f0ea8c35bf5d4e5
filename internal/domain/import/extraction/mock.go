package extraction

import (
	"context"
	"slices"
)

// mockLines read like a small grocery receipt. They carry no date, so bills built
// from them are dated on the day of the upload.
var mockLines = []string{
	"SAMPLE STORE",
	"123 Market Street",
	"Milk 2L $3.99",
	"2 x Bread $5.00",
	"1.5 x Apple $5.99",
	"SUBTOTAL $14.98",
	"TOTAL $14.98",
}

// Mock always returns the same receipt lines.
type Mock struct{}

var _ TextExtractor = Mock{}

func (Mock) Extract(_ context.Context, _ []byte) ([]string, error) {
	return MockLines(), nil
}

func (Mock) Name() string { return EngineMock }

// MockLines returns a fresh copy of the mock receipt.
func MockLines() []string {
	return append([]string(nil), mockLines...)
}

// IsMockLines reports whether lines are the mock receipt, which is what every
// image yields when no OCR engine is available.
func IsMockLines(lines []string) bool {
	return slices.Equal(lines, mockLines)
}
