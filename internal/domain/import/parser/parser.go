// Package parser turns CSV bill files into canonical bills.
// It uses gocsv for struct-based unmarshaling; each known schema has its own
// tagged row type and parser, selected by the format the sniffer detected.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/sniffer"
)

// Options configures row parsing.
type Options struct {
	FallbackCategory string // Category for items without one
	Delimiter        rune   // Field delimiter (default ',')
}

func (o Options) fallbackCategory() string {
	if o.FallbackCategory == "" {
		return common.DefaultFallbackCategory
	}
	return o.FallbackCategory
}

// Result contains the bills produced from one file and the rows that were skipped.
type Result struct {
	Format    sniffer.Format
	Bills     []*common.Bill
	RowsTotal int
	Skipped   []common.RowError
}

// RowsSkipped returns the number of rows that failed and were left out.
func (r *Result) RowsSkipped() int {
	return len(r.Skipped)
}

// Parse dispatches to the parser for the detected format.
func Parse(data []byte, config *sniffer.FileConfig, opts Options) (*Result, error) {
	if config == nil {
		return nil, errors.New("file config is required")
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = config.Delimiter
	}

	data = sniffer.StripBOM(data)

	switch config.Format {
	case sniffer.FormatBillSummary:
		return ParseBillSummary(bytes.NewReader(data), opts)
	case sniffer.FormatLineItem:
		return ParseLineItems(bytes.NewReader(data), opts)
	default:
		return nil, common.ErrUnrecognizedFormat
	}
}

// unmarshalRows reads every record of r into out, a pointer to a slice of row structs.
func unmarshalRows(r io.Reader, delimiter rune, out any) error {
	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	if err := gocsv.UnmarshalCSV(&headerTrimmer{reader: reader}, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return common.ErrEmptyFile
		}
		return fmt.Errorf("failed to parse csv: %w", err)
	}
	return nil
}

// headerTrimmer trims whitespace around header names so gocsv tags match them.
type headerTrimmer struct {
	reader     *csv.Reader
	headerDone bool
}

func (h *headerTrimmer) Read() ([]string, error) {
	record, err := h.reader.Read()
	if err != nil {
		return nil, err
	}
	if !h.headerDone {
		h.headerDone = true
		for i, col := range record {
			record[i] = strings.TrimSpace(col)
		}
	}
	return record, nil
}

func (h *headerTrimmer) ReadAll() ([][]string, error) {
	var records [][]string
	for {
		record, err := h.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}

// lineNumber maps a data row index to its 1-indexed file line (after the header).
func lineNumber(i int) int {
	return i + 2
}
