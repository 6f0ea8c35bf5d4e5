package observability

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsInterceptor(t *testing.T) {
	interceptor := NewMetricsInterceptor()
	req := connect.NewRequest(&struct{}{})
	procedure := req.Spec().Procedure

	okBefore := testutil.ToFloat64(RequestsTotal.WithLabelValues(procedure, "ok"))
	notFoundBefore := testutil.ToFloat64(RequestsTotal.WithLabelValues(procedure, connect.CodeNotFound.String()))
	unknownBefore := testutil.ToFloat64(RequestsTotal.WithLabelValues(procedure, "unknown"))

	ok := interceptor(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return connect.NewResponse(&struct{}{}), nil
	})
	_, err := ok(context.Background(), req)
	require.NoError(t, err)

	notFound := interceptor(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("missing"))
	})
	_, err = notFound(context.Background(), req)
	require.Error(t, err)

	plain := interceptor(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, errors.New("boom")
	})
	_, err = plain(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(RequestsTotal.WithLabelValues(procedure, "ok")))
	assert.Equal(t, notFoundBefore+1, testutil.ToFloat64(RequestsTotal.WithLabelValues(procedure, connect.CodeNotFound.String())))
	assert.Equal(t, unknownBefore+1, testutil.ToFloat64(RequestsTotal.WithLabelValues(procedure, "unknown")))
	assert.Equal(t, float64(0), testutil.ToFloat64(ActiveRequests.WithLabelValues(procedure)))
}
