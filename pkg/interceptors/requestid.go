package interceptors

import (
	"context"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// GetRequestIDFromContext returns the request ID set by RequestIDInterceptor.
func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDInterceptor propagates the client's request ID or mints one, and
// echoes it on the response.
type RequestIDInterceptor struct {
	header string
}

func NewRequestIDInterceptor(header string) *RequestIDInterceptor {
	if header == "" {
		header = "X-Request-ID"
	}
	return &RequestIDInterceptor{header: header}
}

func (i *RequestIDInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		id := req.Header().Get(i.header)
		if id == "" {
			id = uuid.NewString()
		}

		resp, err := next(WithRequestID(ctx, id), req)
		if resp != nil {
			resp.Header().Set(i.header, id)
		}
		if connectErr, ok := asConnectError(err); ok {
			connectErr.Meta().Set(i.header, id)
		}
		return resp, err
	}
}

func (i *RequestIDInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *RequestIDInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		id := conn.RequestHeader().Get(i.header)
		if id == "" {
			id = uuid.NewString()
		}
		conn.ResponseHeader().Set(i.header, id)
		return next(WithRequestID(ctx, id), conn)
	}
}
