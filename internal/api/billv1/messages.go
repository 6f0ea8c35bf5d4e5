// Package billv1 defines the bill.v1.BillService messages, procedures and
// handler wiring. Messages are plain structs carried by the JSON codec.
package billv1

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/analysis"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// File is an uploaded file; Data is base64 in JSON.
type File struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}

type UploadImageRequest struct {
	File File `json:"file"`
}

type UploadImageResponse struct {
	Success bool         `json:"success"`
	Bill    *common.Bill `json:"bill"`
}

type UploadImagesRequest struct {
	Files []File `json:"files"`
}

type ImageOutcome struct {
	FileName string       `json:"file_name"`
	Success  bool         `json:"success"`
	Bill     *common.Bill `json:"bill,omitempty"`
	Error    string       `json:"error,omitempty"`
}

type UploadImagesResponse struct {
	BillsCreated int            `json:"bills_created"`
	Results      []ImageOutcome `json:"results"`
}

type UploadCsvRequest struct {
	File File `json:"file"`
}

// CreatedBill is the short form of a stored bill echoed after a CSV upload.
type CreatedBill struct {
	BillID      uuid.UUID       `json:"bill_id"`
	ShopName    string          `json:"shop_name"`
	Date        string          `json:"date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

type UploadCsvResponse struct {
	Success      bool          `json:"success"`
	BillsCreated int           `json:"bills_created"`
	Bills        []CreatedBill `json:"bills"`
	RowsTotal    int           `json:"rows_total"`
	SkippedRows  int           `json:"skipped_rows"`
	Errors       []string      `json:"errors"`
}

// ListBillsRequest filters by period; zero fields are unset.
type ListBillsRequest struct {
	Month int `json:"month,omitempty"`
	Year  int `json:"year,omitempty"`
}

type ListBillsResponse struct {
	Bills []*common.Bill `json:"bills"`
}

type DeleteBillsRequest struct{}

type DeleteBillsResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	BillsDeleted     int64  `json:"bills_deleted"`
	LineItemsDeleted int64  `json:"line_items_deleted"`
}

type GetMonthlyAnalysisRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

type GetMonthlyAnalysisResponse struct {
	analysis.Result
}

type GetSummaryRequest struct {
	Month int `json:"month,omitempty"`
	Year  int `json:"year,omitempty"`
}

type GetSummaryResponse struct {
	analysis.Summary
}
