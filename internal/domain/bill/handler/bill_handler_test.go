package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	billv1 "github.com/FACorreiaa/smart-bill-tracker/internal/api/billv1"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/analysis"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/bill/repository"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	importservice "github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/service"
)

type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) ImportImage(ctx context.Context, upload importservice.Upload) (*common.Bill, error) {
	args := m.Called(ctx, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*common.Bill), args.Error(1)
}

func (m *MockImporter) ImportImages(ctx context.Context, uploads []importservice.Upload) []importservice.ImageResult {
	return m.Called(ctx, uploads).Get(0).([]importservice.ImageResult)
}

func (m *MockImporter) ImportCSV(ctx context.Context, upload importservice.Upload) (*importservice.ImportResult, error) {
	args := m.Called(ctx, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importservice.ImportResult), args.Error(1)
}

type MockBillStore struct {
	mock.Mock
}

func (m *MockBillStore) ListBills(ctx context.Context, period common.Period) ([]*common.Bill, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*common.Bill), args.Error(1)
}

func (m *MockBillStore) DeleteAll(ctx context.Context) (repository.DeleteResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(repository.DeleteResult), args.Error(1)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) MonthlyAnalysis(ctx context.Context, period common.Period) (*analysis.Result, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.Result), args.Error(1)
}

func (m *MockAnalyzer) Summary(ctx context.Context, period common.Period) (analysis.Summary, error) {
	args := m.Called(ctx, period)
	return args.Get(0).(analysis.Summary), args.Error(1)
}

func setupHandlerTest() (*BillHandler, *MockImporter, *MockBillStore, *MockAnalyzer) {
	importer := new(MockImporter)
	store := new(MockBillStore)
	analyzer := new(MockAnalyzer)
	return NewBillHandler(importer, store, analyzer), importer, store, analyzer
}

func sampleBill() *common.Bill {
	return &common.Bill{
		ID:          uuid.New(),
		ShopName:    "Costco",
		Date:        time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.RequireFromString("19.98"),
		UploadType:  common.UploadTypeCSV,
		LineItems: []common.LineItem{
			{Name: "Strawberries", Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString("15.98"), Category: "Fruit"},
			{Name: "Bananas", Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString("4.00"), Category: "Fruit"},
		},
	}
}

func TestBillHandler_UploadImage(t *testing.T) {
	t.Run("returns the stored bill", func(t *testing.T) {
		h, importer, _, _ := setupHandlerTest()
		bill := sampleBill()
		upload := importservice.Upload{FileName: "receipt.jpg", Data: []byte("img")}
		importer.On("ImportImage", mock.Anything, upload).Return(bill, nil).Once()

		resp, err := h.UploadImage(context.Background(), connect.NewRequest(&billv1.UploadImageRequest{
			File: billv1.File{FileName: "receipt.jpg", Data: []byte("img")},
		}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.Success)
		assert.Equal(t, bill.ID, resp.Msg.Bill.ID)
		importer.AssertExpectations(t)
	})

	t.Run("requires a file name", func(t *testing.T) {
		h, importer, _, _ := setupHandlerTest()

		_, err := h.UploadImage(context.Background(), connect.NewRequest(&billv1.UploadImageRequest{}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
		importer.AssertNotCalled(t, "ImportImage", mock.Anything, mock.Anything)
	})

	t.Run("maps import errors", func(t *testing.T) {
		cases := []struct {
			err  error
			code connect.Code
		}{
			{fmt.Errorf("%w: Costco on 2025-02-09 with total 19.98", common.ErrDuplicateBill), connect.CodeAlreadyExists},
			{fmt.Errorf("%w: \"notes.txt\"", common.ErrUnsupportedFile), connect.CodeInvalidArgument},
			{common.ErrEmptyFile, connect.CodeInvalidArgument},
			{fmt.Errorf("%w: 20000000 bytes", common.ErrFileTooLarge), connect.CodeResourceExhausted},
			{errors.New("disk full"), connect.CodeInternal},
		}
		for _, tc := range cases {
			h, importer, _, _ := setupHandlerTest()
			importer.On("ImportImage", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			_, err := h.UploadImage(context.Background(), connect.NewRequest(&billv1.UploadImageRequest{
				File: billv1.File{FileName: "receipt.jpg", Data: []byte("img")},
			}))
			assert.Equal(t, tc.code, connect.CodeOf(err), tc.err.Error())
		}
	})
}

func TestBillHandler_UploadImages(t *testing.T) {
	h, importer, _, _ := setupHandlerTest()
	bill := sampleBill()
	importer.On("ImportImages", mock.Anything, mock.MatchedBy(func(u []importservice.Upload) bool {
		return len(u) == 2
	})).Return([]importservice.ImageResult{
		{FileName: "a.jpg", Bill: bill},
		{FileName: "b.txt", Err: common.ErrUnsupportedFile},
	}).Once()

	resp, err := h.UploadImages(context.Background(), connect.NewRequest(&billv1.UploadImagesRequest{
		Files: []billv1.File{{FileName: "a.jpg", Data: []byte("a")}, {FileName: "b.txt", Data: []byte("b")}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Msg.BillsCreated)
	require.Len(t, resp.Msg.Results, 2)
	assert.True(t, resp.Msg.Results[0].Success)
	assert.False(t, resp.Msg.Results[1].Success)
	assert.Equal(t, common.ErrUnsupportedFile.Error(), resp.Msg.Results[1].Error)

	_, err = h.UploadImages(context.Background(), connect.NewRequest(&billv1.UploadImagesRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestBillHandler_UploadCsv(t *testing.T) {
	csvFile := billv1.File{FileName: "bills.csv", Data: []byte("shop,date,total\n")}

	t.Run("echoes created bills and skipped rows", func(t *testing.T) {
		h, importer, _, _ := setupHandlerTest()
		bill := sampleBill()
		importer.On("ImportCSV", mock.Anything, mock.Anything).Return(&importservice.ImportResult{
			BillsCreated: 1,
			Bills:        []*common.Bill{bill},
			RowsTotal:    3,
			RowsSkipped:  1,
			Errors:       []string{"line 3: invalid date"},
		}, nil).Once()

		resp, err := h.UploadCsv(context.Background(), connect.NewRequest(&billv1.UploadCsvRequest{File: csvFile}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.Success)
		assert.Equal(t, 1, resp.Msg.BillsCreated)
		require.Len(t, resp.Msg.Bills, 1)
		assert.Equal(t, "2025-02-09", resp.Msg.Bills[0].Date)
		assert.Equal(t, 2, resp.Msg.Bills[0].ItemCount)
		assert.Equal(t, 1, resp.Msg.SkippedRows)
		assert.Equal(t, []string{"line 3: invalid date"}, resp.Msg.Errors)
	})

	t.Run("fails when every row was rejected", func(t *testing.T) {
		h, importer, _, _ := setupHandlerTest()
		importer.On("ImportCSV", mock.Anything, mock.Anything).Return(&importservice.ImportResult{
			RowsTotal:   2,
			RowsSkipped: 2,
			Errors:      []string{"line 2: invalid date", "line 3: invalid amount"},
		}, nil).Once()

		_, err := h.UploadCsv(context.Background(), connect.NewRequest(&billv1.UploadCsvRequest{File: csvFile}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
		assert.Contains(t, err.Error(), "import failed: 2 error(s)")
	})

	t.Run("unrecognized format", func(t *testing.T) {
		h, importer, _, _ := setupHandlerTest()
		importer.On("ImportCSV", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("failed to analyze file: %w", common.ErrUnrecognizedFormat)).Once()

		_, err := h.UploadCsv(context.Background(), connect.NewRequest(&billv1.UploadCsvRequest{File: csvFile}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestBillHandler_ListBills(t *testing.T) {
	h, _, store, _ := setupHandlerTest()
	store.On("ListBills", mock.Anything, common.Period{Year: 2025, Month: 2}).Return(nil, nil).Once()

	resp, err := h.ListBills(context.Background(), connect.NewRequest(&billv1.ListBillsRequest{Year: 2025, Month: 2}))
	require.NoError(t, err)
	assert.NotNil(t, resp.Msg.Bills)
	assert.Empty(t, resp.Msg.Bills)

	_, err = h.ListBills(context.Background(), connect.NewRequest(&billv1.ListBillsRequest{Month: 13, Year: 2025}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	store.AssertExpectations(t)
}

func TestBillHandler_DeleteBills(t *testing.T) {
	h, _, store, _ := setupHandlerTest()
	store.On("DeleteAll", mock.Anything).Return(repository.DeleteResult{BillsDeleted: 2, ItemsDeleted: 5}, nil).Once()

	resp, err := h.DeleteBills(context.Background(), connect.NewRequest(&billv1.DeleteBillsRequest{}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Msg.BillsDeleted)
	assert.Equal(t, int64(5), resp.Msg.LineItemsDeleted)
	assert.Equal(t, "Deleted 2 bills and 5 line items", resp.Msg.Message)
}

func TestBillHandler_Analysis(t *testing.T) {
	h, _, _, analyzer := setupHandlerTest()
	period := common.Period{Year: 2025, Month: 2}
	analyzer.On("MonthlyAnalysis", mock.Anything, period).Return(&analysis.Result{Month: 2, Year: 2025}, nil).Once()
	analyzer.On("MonthlyAnalysis", mock.Anything, common.Period{Year: 2025}).
		Return(nil, fmt.Errorf("%w: month and year are required", common.ErrBadRequest)).Once()
	analyzer.On("Summary", mock.Anything, common.Period{}).Return(analysis.Summary{TotalBills: 4}, nil).Once()

	resp, err := h.GetMonthlyAnalysis(context.Background(), connect.NewRequest(&billv1.GetMonthlyAnalysisRequest{Year: 2025, Month: 2}))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Msg.Month)

	_, err = h.GetMonthlyAnalysis(context.Background(), connect.NewRequest(&billv1.GetMonthlyAnalysisRequest{Year: 2025}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	summary, err := h.GetSummary(context.Background(), connect.NewRequest(&billv1.GetSummaryRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Msg.TotalBills)
	analyzer.AssertExpectations(t)
}

func TestBillHandler_OverHTTP(t *testing.T) {
	h, _, store, _ := setupHandlerTest()
	bill := sampleBill()
	store.On("ListBills", mock.Anything, common.Period{}).Return([]*common.Bill{bill}, nil).Once()

	mux := http.NewServeMux()
	path, handler := billv1.NewBillServiceHandler(h)
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := billv1.NewBillServiceClient(srv.Client(), srv.URL)
	resp, err := client.ListBills(context.Background(), connect.NewRequest(&billv1.ListBillsRequest{}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Bills, 1)
	assert.Equal(t, "Costco", resp.Msg.Bills[0].ShopName)
	assert.True(t, resp.Msg.Bills[0].TotalAmount.Equal(decimal.RequireFromString("19.98")))

	// Unimplemented procedures are not routed.
	res, err := http.Post(srv.URL+"/bill.v1.BillService/Nope", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestFormatImportErrors(t *testing.T) {
	assert.Equal(t, "import failed: no valid rows", formatImportErrors(nil))

	errs := make([]string, 12)
	for i := range errs {
		errs[i] = fmt.Sprintf("line %d: invalid date", i+2)
	}
	msg := formatImportErrors(errs)
	assert.True(t, strings.HasPrefix(msg, "import failed: 12 error(s). line 2: invalid date"))
	assert.True(t, strings.HasSuffix(msg, "(and 2 more)"))
	assert.NotContains(t, msg, "line 12:")
}
