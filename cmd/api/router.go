package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	c "connectrpc.com/cors"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	billv1 "github.com/FACorreiaa/smart-bill-tracker/internal/api/billv1"
	"github.com/FACorreiaa/smart-bill-tracker/pkg/interceptors"
	"github.com/FACorreiaa/smart-bill-tracker/pkg/observability"
)

// base64 inflates uploads by 4/3; leave room for the envelope.
const requestBodyOverhead = 1 << 20

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	tracer := otel.GetTracerProvider().Tracer("bills/api")

	chain := []connect.Interceptor{
		interceptors.NewRequestIDInterceptor("X-Request-ID"),
		interceptors.NewTracingInterceptor(tracer),
	}
	if deps.Config.Server.RateLimit > 0 && deps.Config.Server.RateBurst > 0 {
		limiter := rate.NewLimiter(rate.Limit(deps.Config.Server.RateLimit), deps.Config.Server.RateBurst)
		chain = append(chain, interceptors.NewRateLimitInterceptor(limiter))
	}
	chain = append(chain,
		interceptors.NewRecoveryInterceptor(deps.Logger),
		interceptors.NewLoggingInterceptor(deps.Logger),
		observability.NewMetricsInterceptor(),
	)

	registerConnectRoutes(mux, deps, connect.WithInterceptors(chain...))
	registerUtilityRoutes(mux, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		AllowedMethods: c.AllowedMethods(),
		AllowedHeaders: append(c.AllowedHeaders(), "X-Request-ID"),
		ExposedHeaders: append(c.ExposedHeaders(), "X-Request-ID"),
		MaxAge:         7200, // Cache preflights for 2 hours
	})

	return corsHandler.Handler(mux)
}

// registerConnectRoutes registers the BillService handlers
func registerConnectRoutes(mux *http.ServeMux, deps *Dependencies, opts connect.HandlerOption) {
	readLimit := deps.Config.Upload.MaxBytes*4/3 + requestBodyOverhead

	billPath, billHandler := billv1.NewBillServiceHandler(
		deps.BillHandler,
		opts,
		connect.WithReadMaxBytes(int(readLimit)),
	)
	mux.Handle(billPath, limitBody(billHandler, readLimit))
	deps.Logger.Info("registered Connect RPC service", "path", billPath)
}

func limitBody(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, writeErr := w.Write([]byte("store unhealthy")); writeErr != nil {
				deps.Logger.Error("failed to write health response", slog.Any("error", writeErr))
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			deps.Logger.Error("failed to write health response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health check", "path", "/health")

	mux.HandleFunc("/health/details", func(w http.ResponseWriter, r *http.Request) {
		type status struct {
			Status string `json:"status"`
			Detail string `json:"detail,omitempty"`
		}
		result := map[string]status{
			"store": {Status: "ok", Detail: deps.Config.Store.Driver},
			"ocr":   {Status: "ok", Detail: deps.Extractor.Name()},
			"ready": {Status: "ok"},
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := deps.Health(ctx); err != nil {
			result["store"] = status{Status: "fail", Detail: err.Error()}
			result["ready"] = status{Status: "fail", Detail: "store unavailable"}
		}
		if deps.Extractor.Name() == "mock" {
			result["ocr"] = status{Status: "warn", Detail: "no OCR engine, serving mock receipts"}
		}
		if deps.DB != nil {
			stats, _ := json.Marshal(deps.DB.Stats())
			result["pool"] = status{Status: "ok", Detail: string(stats)}
		}

		w.Header().Set("Content-Type", "application/json")
		if result["ready"].Status == "fail" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health details", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health details", "path", "/health/details")

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
