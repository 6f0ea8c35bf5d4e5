package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billv1 "github.com/FACorreiaa/smart-bill-tracker/internal/api/billv1"
	"github.com/FACorreiaa/smart-bill-tracker/pkg/config"
)

const lineItemsCSV = "Item Name,Item Type,Item Sub Type,Quantity,Total amount paid,Date,Shop Address\n" +
	"Strawberries,Fruit,NA,1,15.98,02/09/2025,Costco\n" +
	"Bananas,Fruit,NA,1,4.00,02/09/2025,Costco\n" +
	"Soap,Household,NA,1,3.00,02/10/2025,Target\n"

func newTestServer(t *testing.T) (*httptest.Server, *billv1.BillServiceClient) {
	t.Helper()

	dir := t.TempDir()
	cfg, err := config.Parse([]string{
		"--store-driver", "bolt",
		"--bolt-path", filepath.Join(dir, "bills.bolt"),
		"--upload-dir", filepath.Join(dir, "uploads"),
		"--ocr-engine", "mock",
		"--rate-limit", "0",
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, err := InitDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(deps.Cleanup)

	srv := httptest.NewServer(SetupRouter(deps))
	t.Cleanup(srv.Close)

	return srv, billv1.NewBillServiceClient(srv.Client(), srv.URL)
}

func TestRouter_BillFlow(t *testing.T) {
	srv, client := newTestServer(t)
	ctx := context.Background()

	csvResp, err := client.UploadCsv(ctx, connect.NewRequest(&billv1.UploadCsvRequest{
		File: billv1.File{FileName: "items.csv", Data: []byte(lineItemsCSV)},
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, csvResp.Msg.BillsCreated)
	assert.NotEmpty(t, csvResp.Header().Get("X-Request-ID"))

	// Same file again: every bill is a duplicate.
	_, err = client.UploadCsv(ctx, connect.NewRequest(&billv1.UploadCsvRequest{
		File: billv1.File{FileName: "items.csv", Data: []byte(lineItemsCSV)},
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	imgResp, err := client.UploadImage(ctx, connect.NewRequest(&billv1.UploadImageRequest{
		File: billv1.File{FileName: "receipt.jpg", Data: []byte("not really a jpeg")},
	}))
	require.NoError(t, err)
	assert.Equal(t, "SAMPLE STORE", imgResp.Msg.Bill.ShopName)

	list, err := client.ListBills(ctx, connect.NewRequest(&billv1.ListBillsRequest{Year: 2025, Month: 2}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Bills, 2)
	assert.Equal(t, "Target", list.Msg.Bills[0].ShopName)

	monthly, err := client.GetMonthlyAnalysis(ctx, connect.NewRequest(&billv1.GetMonthlyAnalysisRequest{Year: 2025, Month: 2}))
	require.NoError(t, err)
	assert.Equal(t, 2, monthly.Msg.Summary.TotalBills)
	assert.True(t, monthly.Msg.Summary.TotalSpent.Equal(decimal.RequireFromString("22.98")))

	summary, err := client.GetSummary(ctx, connect.NewRequest(&billv1.GetSummaryRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Msg.TotalBills)

	del, err := client.DeleteBills(ctx, connect.NewRequest(&billv1.DeleteBillsRequest{}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), del.Msg.BillsDeleted)

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRouter_UtilityRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/ready", "/metrics", "/health/details"} {
		res, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}
}
