package billv1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/FACorreiaa/smart-bill-tracker/pkg/codec"
)

// BillServiceName is the fully-qualified name of the BillService service.
const BillServiceName = "bill.v1.BillService"

// Procedure paths, in the form "/Package.Service/Method".
const (
	BillServiceUploadImageProcedure        = "/bill.v1.BillService/UploadImage"
	BillServiceUploadImagesProcedure       = "/bill.v1.BillService/UploadImages"
	BillServiceUploadCsvProcedure          = "/bill.v1.BillService/UploadCsv"
	BillServiceListBillsProcedure          = "/bill.v1.BillService/ListBills"
	BillServiceDeleteBillsProcedure        = "/bill.v1.BillService/DeleteBills"
	BillServiceGetMonthlyAnalysisProcedure = "/bill.v1.BillService/GetMonthlyAnalysis"
	BillServiceGetSummaryProcedure         = "/bill.v1.BillService/GetSummary"
)

// BillServiceHandler is implemented by the server.
type BillServiceHandler interface {
	UploadImage(context.Context, *connect.Request[UploadImageRequest]) (*connect.Response[UploadImageResponse], error)
	UploadImages(context.Context, *connect.Request[UploadImagesRequest]) (*connect.Response[UploadImagesResponse], error)
	UploadCsv(context.Context, *connect.Request[UploadCsvRequest]) (*connect.Response[UploadCsvResponse], error)
	ListBills(context.Context, *connect.Request[ListBillsRequest]) (*connect.Response[ListBillsResponse], error)
	DeleteBills(context.Context, *connect.Request[DeleteBillsRequest]) (*connect.Response[DeleteBillsResponse], error)
	GetMonthlyAnalysis(context.Context, *connect.Request[GetMonthlyAnalysisRequest]) (*connect.Response[GetMonthlyAnalysisResponse], error)
	GetSummary(context.Context, *connect.Request[GetSummaryRequest]) (*connect.Response[GetSummaryResponse], error)
}

// NewBillServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewBillServiceHandler(svc BillServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(codec.JSON{})}, opts...)

	handlers := map[string]http.Handler{
		BillServiceUploadImageProcedure:        connect.NewUnaryHandler(BillServiceUploadImageProcedure, svc.UploadImage, opts...),
		BillServiceUploadImagesProcedure:       connect.NewUnaryHandler(BillServiceUploadImagesProcedure, svc.UploadImages, opts...),
		BillServiceUploadCsvProcedure:          connect.NewUnaryHandler(BillServiceUploadCsvProcedure, svc.UploadCsv, opts...),
		BillServiceListBillsProcedure:          connect.NewUnaryHandler(BillServiceListBillsProcedure, svc.ListBills, opts...),
		BillServiceDeleteBillsProcedure:        connect.NewUnaryHandler(BillServiceDeleteBillsProcedure, svc.DeleteBills, opts...),
		BillServiceGetMonthlyAnalysisProcedure: connect.NewUnaryHandler(BillServiceGetMonthlyAnalysisProcedure, svc.GetMonthlyAnalysis, opts...),
		BillServiceGetSummaryProcedure:         connect.NewUnaryHandler(BillServiceGetSummaryProcedure, svc.GetSummary, opts...),
	}

	return "/" + BillServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// BillServiceClient calls BillService over Connect.
type BillServiceClient struct {
	uploadImage        *connect.Client[UploadImageRequest, UploadImageResponse]
	uploadImages       *connect.Client[UploadImagesRequest, UploadImagesResponse]
	uploadCsv          *connect.Client[UploadCsvRequest, UploadCsvResponse]
	listBills          *connect.Client[ListBillsRequest, ListBillsResponse]
	deleteBills        *connect.Client[DeleteBillsRequest, DeleteBillsResponse]
	getMonthlyAnalysis *connect.Client[GetMonthlyAnalysisRequest, GetMonthlyAnalysisResponse]
	getSummary         *connect.Client[GetSummaryRequest, GetSummaryResponse]
}

// NewBillServiceClient constructs a client for the service at baseURL.
func NewBillServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BillServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(codec.JSON{})}, opts...)
	return &BillServiceClient{
		uploadImage:        connect.NewClient[UploadImageRequest, UploadImageResponse](httpClient, baseURL+BillServiceUploadImageProcedure, opts...),
		uploadImages:       connect.NewClient[UploadImagesRequest, UploadImagesResponse](httpClient, baseURL+BillServiceUploadImagesProcedure, opts...),
		uploadCsv:          connect.NewClient[UploadCsvRequest, UploadCsvResponse](httpClient, baseURL+BillServiceUploadCsvProcedure, opts...),
		listBills:          connect.NewClient[ListBillsRequest, ListBillsResponse](httpClient, baseURL+BillServiceListBillsProcedure, opts...),
		deleteBills:        connect.NewClient[DeleteBillsRequest, DeleteBillsResponse](httpClient, baseURL+BillServiceDeleteBillsProcedure, opts...),
		getMonthlyAnalysis: connect.NewClient[GetMonthlyAnalysisRequest, GetMonthlyAnalysisResponse](httpClient, baseURL+BillServiceGetMonthlyAnalysisProcedure, opts...),
		getSummary:         connect.NewClient[GetSummaryRequest, GetSummaryResponse](httpClient, baseURL+BillServiceGetSummaryProcedure, opts...),
	}
}

func (c *BillServiceClient) UploadImage(ctx context.Context, req *connect.Request[UploadImageRequest]) (*connect.Response[UploadImageResponse], error) {
	return c.uploadImage.CallUnary(ctx, req)
}

func (c *BillServiceClient) UploadImages(ctx context.Context, req *connect.Request[UploadImagesRequest]) (*connect.Response[UploadImagesResponse], error) {
	return c.uploadImages.CallUnary(ctx, req)
}

func (c *BillServiceClient) UploadCsv(ctx context.Context, req *connect.Request[UploadCsvRequest]) (*connect.Response[UploadCsvResponse], error) {
	return c.uploadCsv.CallUnary(ctx, req)
}

func (c *BillServiceClient) ListBills(ctx context.Context, req *connect.Request[ListBillsRequest]) (*connect.Response[ListBillsResponse], error) {
	return c.listBills.CallUnary(ctx, req)
}

func (c *BillServiceClient) DeleteBills(ctx context.Context, req *connect.Request[DeleteBillsRequest]) (*connect.Response[DeleteBillsResponse], error) {
	return c.deleteBills.CallUnary(ctx, req)
}

func (c *BillServiceClient) GetMonthlyAnalysis(ctx context.Context, req *connect.Request[GetMonthlyAnalysisRequest]) (*connect.Response[GetMonthlyAnalysisResponse], error) {
	return c.getMonthlyAnalysis.CallUnary(ctx, req)
}

func (c *BillServiceClient) GetSummary(ctx context.Context, req *connect.Request[GetSummaryRequest]) (*connect.Response[GetSummaryResponse], error) {
	return c.getSummary.CallUnary(ctx, req)
}

// UnimplementedBillServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedBillServiceHandler struct{}

func (UnimplementedBillServiceHandler) UploadImage(context.Context, *connect.Request[UploadImageRequest]) (*connect.Response[UploadImageResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("bill.v1.BillService.UploadImage is not implemented"))
}

func (UnimplementedBillServiceHandler) UploadImages(context.Context, *connect.Request[UploadImagesRequest]) (*connect.Response[UploadImagesResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("bill.v1.BillService.UploadImages is not implemented"))
}

func (UnimplementedBillServiceHandler) UploadCsv(context.Context, *connect.Request[UploadCsvRequest]) (*connect.Response[UploadCsvResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("bill.v1.BillService.UploadCsv is not implemented"))
}

func (UnimplementedBillServiceHandler) ListBills(context.Context, *connect.Request[ListBillsRequest]) (*connect.Response[ListBillsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("bill.v1.BillService.ListBills is not implemented"))
}

func (UnimplementedBillServiceHandler) DeleteBills(context.Context, *connect.Request[DeleteBillsRequest]) (*connect.Response[DeleteBillsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("bill.v1.BillService.DeleteBills is not implemented"))
}

func (UnimplementedBillServiceHandler) GetMonthlyAnalysis(context.Context, *connect.Request[GetMonthlyAnalysisRequest]) (*connect.Response[GetMonthlyAnalysisResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("bill.v1.BillService.GetMonthlyAnalysis is not implemented"))
}

func (UnimplementedBillServiceHandler) GetSummary(context.Context, *connect.Request[GetSummaryRequest]) (*connect.Response[GetSummaryResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("bill.v1.BillService.GetSummary is not implemented"))
}
