package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// BillLister is the slice of the bill repository the analysis needs.
type BillLister interface {
	ListBills(ctx context.Context, period common.Period) ([]*common.Bill, error)
}

// Service loads bills for a period and aggregates them.
type Service struct {
	repo   BillLister
	logger *slog.Logger
}

func NewService(repo BillLister, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// MonthlyAnalysis requires both month and year.
func (s *Service) MonthlyAnalysis(ctx context.Context, period common.Period) (*Result, error) {
	ctx, span := otel.Tracer("AnalysisService").Start(ctx, "MonthlyAnalysis", trace.WithAttributes(
		attribute.Int("period.year", period.Year),
		attribute.Int("period.month", period.Month),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "MonthlyAnalysis"), slog.String("period", period.String()))

	if period.Month == 0 || period.Year == 0 {
		span.SetStatus(codes.Error, "month and year are required")
		return nil, fmt.Errorf("%w: month and year are required", common.ErrBadRequest)
	}
	if err := period.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid period")
		return nil, err
	}

	bills, err := s.repo.ListBills(ctx, period)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load bills", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list bills failed")
		return nil, fmt.Errorf("failed to load bills: %w", err)
	}

	result := Aggregate(bills, period)
	span.SetAttributes(attribute.Int("bills.count", result.Summary.TotalBills))
	l.DebugContext(ctx, "Monthly analysis computed",
		slog.Int("bills", result.Summary.TotalBills),
		slog.Int("shops", len(result.Shops)))

	return result, nil
}

// Summary accepts an empty period for an all-time summary.
func (s *Service) Summary(ctx context.Context, period common.Period) (Summary, error) {
	ctx, span := otel.Tracer("AnalysisService").Start(ctx, "Summary")
	defer span.End()

	if err := period.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid period")
		return Summary{}, err
	}

	bills, err := s.repo.ListBills(ctx, period)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load bills",
			slog.String("method", "Summary"),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list bills failed")
		return Summary{}, fmt.Errorf("failed to load bills: %w", err)
	}

	return Summarize(bills, period), nil
}
