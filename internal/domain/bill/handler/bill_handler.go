// Package handler implements the BillService Connect RPC handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"

	billv1 "github.com/FACorreiaa/smart-bill-tracker/internal/api/billv1"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/analysis"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/bill/repository"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	importservice "github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/service"
)

// Importer ingests uploaded files.
type Importer interface {
	ImportImage(ctx context.Context, upload importservice.Upload) (*common.Bill, error)
	ImportImages(ctx context.Context, uploads []importservice.Upload) []importservice.ImageResult
	ImportCSV(ctx context.Context, upload importservice.Upload) (*importservice.ImportResult, error)
}

// BillStore lists and clears stored bills.
type BillStore interface {
	ListBills(ctx context.Context, period common.Period) ([]*common.Bill, error)
	DeleteAll(ctx context.Context) (repository.DeleteResult, error)
}

// Analyzer computes spending aggregates.
type Analyzer interface {
	MonthlyAnalysis(ctx context.Context, period common.Period) (*analysis.Result, error)
	Summary(ctx context.Context, period common.Period) (analysis.Summary, error)
}

// BillHandler implements the BillService Connect handlers.
type BillHandler struct {
	billv1.UnimplementedBillServiceHandler
	importer Importer
	bills    BillStore
	analyzer Analyzer
}

// NewBillHandler constructs a new handler.
func NewBillHandler(importer Importer, bills BillStore, analyzer Analyzer) *BillHandler {
	return &BillHandler{
		importer: importer,
		bills:    bills,
		analyzer: analyzer,
	}
}

// UploadImage runs one receipt image through extraction and stores the bill.
func (h *BillHandler) UploadImage(
	ctx context.Context,
	req *connect.Request[billv1.UploadImageRequest],
) (*connect.Response[billv1.UploadImageResponse], error) {
	if req.Msg.File.FileName == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("no file selected"))
	}

	bill, err := h.importer.ImportImage(ctx, toUpload(req.Msg.File))
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&billv1.UploadImageResponse{
		Success: true,
		Bill:    bill,
	}), nil
}

// UploadImages imports a batch; per-file failures are reported, not raised.
func (h *BillHandler) UploadImages(
	ctx context.Context,
	req *connect.Request[billv1.UploadImagesRequest],
) (*connect.Response[billv1.UploadImagesResponse], error) {
	if len(req.Msg.Files) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("no files selected"))
	}

	uploads := make([]importservice.Upload, 0, len(req.Msg.Files))
	for _, f := range req.Msg.Files {
		uploads = append(uploads, toUpload(f))
	}

	resp := &billv1.UploadImagesResponse{
		Results: make([]billv1.ImageOutcome, 0, len(uploads)),
	}
	for _, r := range h.importer.ImportImages(ctx, uploads) {
		outcome := billv1.ImageOutcome{FileName: r.FileName, Bill: r.Bill, Success: r.Err == nil}
		if r.Err != nil {
			outcome.Error = r.Err.Error()
		} else {
			resp.BillsCreated++
		}
		resp.Results = append(resp.Results, outcome)
	}

	return connect.NewResponse(resp), nil
}

// UploadCsv imports a bill-summary or line-item CSV.
func (h *BillHandler) UploadCsv(
	ctx context.Context,
	req *connect.Request[billv1.UploadCsvRequest],
) (*connect.Response[billv1.UploadCsvResponse], error) {
	if req.Msg.File.FileName == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("no file selected"))
	}

	result, err := h.importer.ImportCSV(ctx, toUpload(req.Msg.File))
	if err != nil {
		return nil, toConnectError(err)
	}

	if result.BillsCreated == 0 && len(result.Errors) > 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New(formatImportErrors(result.Errors)))
	}

	bills := make([]billv1.CreatedBill, 0, len(result.Bills))
	for _, b := range result.Bills {
		bills = append(bills, billv1.CreatedBill{
			BillID:      b.ID,
			ShopName:    b.ShopName,
			Date:        b.DateString(),
			TotalAmount: b.TotalAmount,
			ItemCount:   len(b.LineItems),
		})
	}

	errs := result.Errors
	if errs == nil {
		errs = []string{}
	}

	return connect.NewResponse(&billv1.UploadCsvResponse{
		Success:      true,
		BillsCreated: result.BillsCreated,
		Bills:        bills,
		RowsTotal:    result.RowsTotal,
		SkippedRows:  result.RowsSkipped,
		Errors:       errs,
	}), nil
}

// ListBills returns stored bills, newest first.
func (h *BillHandler) ListBills(
	ctx context.Context,
	req *connect.Request[billv1.ListBillsRequest],
) (*connect.Response[billv1.ListBillsResponse], error) {
	period := common.Period{Year: req.Msg.Year, Month: req.Msg.Month}
	if err := period.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	bills, err := h.bills.ListBills(ctx, period)
	if err != nil {
		return nil, toConnectError(err)
	}
	if bills == nil {
		bills = []*common.Bill{}
	}

	return connect.NewResponse(&billv1.ListBillsResponse{Bills: bills}), nil
}

// DeleteBills wipes every bill and line item.
func (h *BillHandler) DeleteBills(
	ctx context.Context,
	_ *connect.Request[billv1.DeleteBillsRequest],
) (*connect.Response[billv1.DeleteBillsResponse], error) {
	res, err := h.bills.DeleteAll(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&billv1.DeleteBillsResponse{
		Success:          true,
		Message:          fmt.Sprintf("Deleted %d bills and %d line items", res.BillsDeleted, res.ItemsDeleted),
		BillsDeleted:     res.BillsDeleted,
		LineItemsDeleted: res.ItemsDeleted,
	}), nil
}

func (h *BillHandler) GetMonthlyAnalysis(
	ctx context.Context,
	req *connect.Request[billv1.GetMonthlyAnalysisRequest],
) (*connect.Response[billv1.GetMonthlyAnalysisResponse], error) {
	result, err := h.analyzer.MonthlyAnalysis(ctx, common.Period{Year: req.Msg.Year, Month: req.Msg.Month})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&billv1.GetMonthlyAnalysisResponse{Result: *result}), nil
}

func (h *BillHandler) GetSummary(
	ctx context.Context,
	req *connect.Request[billv1.GetSummaryRequest],
) (*connect.Response[billv1.GetSummaryResponse], error) {
	summary, err := h.analyzer.Summary(ctx, common.Period{Year: req.Msg.Year, Month: req.Msg.Month})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&billv1.GetSummaryResponse{Summary: summary}), nil
}

func toUpload(f billv1.File) importservice.Upload {
	return importservice.Upload{
		FileName:    f.FileName,
		ContentType: f.ContentType,
		Data:        f.Data,
	}
}

// toConnectError maps domain errors onto Connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, common.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, common.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, common.ErrFileTooLarge):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, common.ErrBadRequest),
		errors.Is(err, common.ErrEmptyFile),
		errors.Is(err, common.ErrUnsupportedFile),
		errors.Is(err, common.ErrUnrecognizedFormat):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

const maxImportErrorsInResponse = 10

func formatImportErrors(errors []string) string {
	if len(errors) == 0 {
		return "import failed: no valid rows"
	}

	limit := min(len(errors), maxImportErrorsInResponse)

	message := fmt.Sprintf("import failed: %d error(s). ", len(errors))
	message += strings.Join(errors[:limit], "; ")
	if limit < len(errors) {
		message += fmt.Sprintf(" (and %d more)", len(errors)-limit)
	}

	return message
}
