// Package service provides the import orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/bill/events"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/extraction"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/parser"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/receipt"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/sniffer"
	"github.com/FACorreiaa/smart-bill-tracker/pkg/observability"
)

// DefaultMaxUploadBytes mirrors the 16 MiB request limit.
const DefaultMaxUploadBytes = 16 << 20

// DefaultImageExtensions are the image types the decoders understand.
var DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".heic", ".heif"}

// BillStore is the part of the bill repository the import needs.
type BillStore interface {
	CreateBills(ctx context.Context, bills []*common.Bill) error
	BillExists(ctx context.Context, shopName string, date time.Time, total decimal.Decimal) (bool, error)
}

// Upload is one file received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Config holds the upload policy and import behavior.
type Config struct {
	FallbackCategory string
	Categorize       bool   // Run the keyword categorizer over image items
	SkipDuplicates   bool   // Drop bills that match a stored shop, date and total
	UploadDir        string // Raw image uploads are kept here when set
	MaxUploadBytes   int64
	ImageExtensions  []string
	OCRConcurrency   int64 // Concurrent extractions
	BatchConcurrency int   // Concurrent images in ImportImages
}

func (c Config) withDefaults() Config {
	if c.FallbackCategory == "" {
		c.FallbackCategory = common.DefaultFallbackCategory
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(c.ImageExtensions) == 0 {
		c.ImageExtensions = DefaultImageExtensions
	}
	if c.OCRConcurrency <= 0 {
		c.OCRConcurrency = 2
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 4
	}
	return c
}

// ImportResult contains the result of an import operation
type ImportResult struct {
	BillsCreated int
	Bills        []*common.Bill
	RowsTotal    int
	RowsSkipped  int
	Errors       []string
}

// ImageResult is the outcome of one image in a batch.
type ImageResult struct {
	FileName string
	Bill     *common.Bill
	Err      error
}

// ImportService orchestrates file analysis and import operations
type ImportService struct {
	repo        BillStore
	extractor   extraction.TextExtractor
	publisher   events.Publisher
	parser      *receipt.Parser
	categorizer *receipt.Categorizer
	ocr         *semaphore.Weighted
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time
}

// NewImportService creates a new import service
func NewImportService(repo BillStore, extractor extraction.TextExtractor, publisher events.Publisher, cfg Config, logger *slog.Logger) *ImportService {
	cfg = cfg.withDefaults()
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ImportService{
		repo:        repo,
		extractor:   extractor,
		publisher:   publisher,
		parser:      receipt.NewParser(cfg.FallbackCategory),
		categorizer: receipt.NewCategorizer(cfg.FallbackCategory),
		ocr:         semaphore.NewWeighted(cfg.OCRConcurrency),
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// ImportImage turns one receipt image into a stored bill.
func (s *ImportService) ImportImage(ctx context.Context, upload Upload) (*common.Bill, error) {
	ctx, span := otel.Tracer("ImportService").Start(ctx, "ImportImage", trace.WithAttributes(
		attribute.String("file.name", upload.FileName),
		attribute.Int("file.size", len(upload.Data)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ImportImage"), slog.String("file", upload.FileName))

	if err := s.checkImage(upload); err != nil {
		span.SetStatus(codes.Error, "rejected upload")
		return nil, err
	}

	source := upload.FileName
	stored, err := s.storeUpload(upload)
	if err != nil {
		l.ErrorContext(ctx, "Failed to store upload", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store upload failed")
		return nil, err
	}
	if stored != "" {
		source = stored
	}

	lines, err := s.extract(ctx, upload.Data)
	if err != nil {
		s.discard(ctx, stored)
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	bill := s.billFromLines(lines, source)
	span.SetAttributes(
		attribute.String("bill.shop", bill.ShopName),
		attribute.Int("bill.items", len(bill.LineItems)),
	)

	// The mock receipt is identical for every image, so it is never a duplicate.
	exists := false
	if !extraction.IsMockLines(lines) {
		exists, err = s.repo.BillExists(ctx, bill.ShopName, bill.Date, bill.TotalAmount)
	}
	if err != nil {
		s.discard(ctx, stored)
		l.ErrorContext(ctx, "Failed to check duplicates", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "duplicate check failed")
		return nil, fmt.Errorf("failed to check duplicates: %w", err)
	}
	if exists {
		s.discard(ctx, stored)
		l.InfoContext(ctx, "Duplicate bill rejected",
			slog.String("shop", bill.ShopName),
			slog.String("date", bill.DateString()))
		span.SetStatus(codes.Error, "duplicate bill")
		return nil, fmt.Errorf("%w: %s on %s with total %s",
			common.ErrDuplicateBill, bill.ShopName, bill.DateString(), bill.TotalAmount.StringFixed(2))
	}

	if err := s.repo.CreateBills(ctx, []*common.Bill{bill}); err != nil {
		s.discard(ctx, stored)
		l.ErrorContext(ctx, "Failed to store bill", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store bill failed")
		return nil, fmt.Errorf("failed to store bill: %w", err)
	}

	s.ingested(ctx, common.UploadTypeImage, upload.FileName, []*common.Bill{bill})
	l.InfoContext(ctx, "Image imported",
		slog.String("bill_id", bill.ID.String()),
		slog.Int("items", len(bill.LineItems)))
	span.SetStatus(codes.Ok, "Image imported")
	return bill, nil
}

// ImportImages imports a batch with bounded concurrency. Results keep the input
// order and one failing image does not stop the others.
func (s *ImportService) ImportImages(ctx context.Context, uploads []Upload) []ImageResult {
	results := make([]ImageResult, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, upload := range uploads {
		g.Go(func() error {
			bill, err := s.ImportImage(gctx, upload)
			results[i] = ImageResult{FileName: upload.FileName, Bill: bill, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ImportCSV parses a bill CSV, drops duplicates and stores the rest in one call.
func (s *ImportService) ImportCSV(ctx context.Context, upload Upload) (*ImportResult, error) {
	ctx, span := otel.Tracer("ImportService").Start(ctx, "ImportCSV", trace.WithAttributes(
		attribute.String("file.name", upload.FileName),
		attribute.Int("file.size", len(upload.Data)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "ImportCSV"), slog.String("file", upload.FileName))

	if err := s.checkCSV(upload); err != nil {
		span.SetStatus(codes.Error, "rejected upload")
		return nil, err
	}

	config, err := sniffer.DetectConfig(upload.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "format detection failed")
		return nil, fmt.Errorf("failed to analyze file: %w", err)
	}
	span.SetAttributes(attribute.String("csv.format", config.Format.String()))

	parsed, err := parser.Parse(upload.Data, config, parser.Options{FallbackCategory: s.cfg.FallbackCategory})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	sort.SliceStable(parsed.Skipped, func(i, j int) bool {
		return parsed.Skipped[i].Line < parsed.Skipped[j].Line
	})
	errs := make([]string, 0, len(parsed.Skipped))
	for _, rowErr := range parsed.Skipped {
		errs = append(errs, rowErr.Error())
		observability.RowsSkippedTotal.WithLabelValues(skipReason(rowErr.Err)).Inc()
	}

	bills := make([]*common.Bill, 0, len(parsed.Bills))
	seen := make(map[billKey]struct{}, len(parsed.Bills))
	for _, bill := range parsed.Bills {
		bill.SourceFile = upload.FileName
		if s.cfg.SkipDuplicates {
			key := keyOf(bill)
			_, exists := seen[key]
			if !exists {
				stored, err := s.repo.BillExists(ctx, bill.ShopName, bill.Date, bill.TotalAmount)
				if err != nil {
					l.ErrorContext(ctx, "Failed to check duplicates", slog.Any("error", err))
					span.RecordError(err)
					span.SetStatus(codes.Error, "duplicate check failed")
					return nil, fmt.Errorf("failed to check duplicates: %w", err)
				}
				exists = stored
			}
			seen[key] = struct{}{}
			if exists {
				errs = append(errs, fmt.Sprintf("Duplicate bill skipped: %s on %s with total %s",
					bill.ShopName, bill.DateString(), bill.TotalAmount.StringFixed(2)))
				observability.RowsSkippedTotal.WithLabelValues("duplicate").Inc()
				continue
			}
		}
		bills = append(bills, bill)
	}

	if len(bills) > 0 {
		if err := s.repo.CreateBills(ctx, bills); err != nil {
			l.ErrorContext(ctx, "Failed to store bills", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "store bills failed")
			return nil, fmt.Errorf("failed to store bills: %w", err)
		}
		s.ingested(ctx, common.UploadTypeCSV, upload.FileName, bills)
	}

	result := &ImportResult{
		BillsCreated: len(bills),
		Bills:        bills,
		RowsTotal:    parsed.RowsTotal,
		RowsSkipped:  parsed.RowsSkipped(),
		Errors:       errs,
	}

	l.InfoContext(ctx, "CSV imported",
		slog.String("format", config.Format.String()),
		slog.Int("bills", result.BillsCreated),
		slog.Int("rows", result.RowsTotal),
		slog.Int("skipped", result.RowsSkipped))
	span.SetAttributes(attribute.Int("bills.created", result.BillsCreated))
	span.SetStatus(codes.Ok, "CSV imported")
	return result, nil
}

// billKey identifies a bill for duplicate detection within one upload.
type billKey struct {
	shop  string
	date  string
	total string
}

func keyOf(b *common.Bill) billKey {
	return billKey{shop: b.ShopName, date: b.DateString(), total: b.TotalAmount.StringFixed(2)}
}

// billFromLines builds the bill for an image. Missing header fields fall back to
// Unknown Shop, the current day and the sum of the item prices.
func (s *ImportService) billFromLines(lines []string, source string) *common.Bill {
	header := receipt.ParseHeader(lines)
	items := s.parser.Parse(lines)
	if s.cfg.Categorize {
		items = s.categorizer.Apply(items)
	}

	bill := &common.Bill{
		ShopName:    header.ShopName,
		Date:        header.Date,
		TotalAmount: header.Total,
		UploadType:  common.UploadTypeImage,
		SourceFile:  source,
		LineItems:   items,
	}
	if bill.ShopName == "" {
		bill.ShopName = common.UnknownShop
	}
	if bill.Date.IsZero() {
		bill.Date = common.NormalizeDate(s.now())
	}
	if !bill.TotalAmount.IsPositive() {
		bill.TotalAmount = bill.ItemsTotal()
	}
	return bill
}

func (s *ImportService) extract(ctx context.Context, data []byte) ([]string, error) {
	if err := s.ocr.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.ocr.Release(1)

	return s.extractor.Extract(ctx, data)
}

func (s *ImportService) checkImage(upload Upload) error {
	if err := s.checkSize(upload); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(upload.FileName))
	for _, allowed := range s.cfg.ImageExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", common.ErrUnsupportedFile, upload.FileName)
}

func (s *ImportService) checkCSV(upload Upload) error {
	if err := s.checkSize(upload); err != nil {
		return err
	}
	if ext := strings.ToLower(filepath.Ext(upload.FileName)); ext != ".csv" && ext != "" {
		return fmt.Errorf("%w: %q", common.ErrUnsupportedFile, upload.FileName)
	}
	return nil
}

func (s *ImportService) checkSize(upload Upload) error {
	if len(upload.Data) == 0 {
		return common.ErrEmptyFile
	}
	if int64(len(upload.Data)) > s.cfg.MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes", common.ErrFileTooLarge, len(upload.Data))
	}
	return nil
}

// storeUpload writes the raw image under UploadDir and returns its path.
func (s *ImportService) storeUpload(upload Upload) (string, error) {
	if s.cfg.UploadDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	name := uuid.NewString() + "-" + filepath.Base(upload.FileName)
	path := filepath.Join(s.cfg.UploadDir, name)
	if err := os.WriteFile(path, upload.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path, nil
}

func (s *ImportService) discard(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.WarnContext(ctx, "failed to remove upload", slog.String("path", path), slog.Any("error", err))
	}
}

// ingested records metrics and publishes the event. Publishing never fails the import.
func (s *ImportService) ingested(ctx context.Context, uploadType common.UploadType, sourceFile string, bills []*common.Bill) {
	observability.BillsIngestedTotal.WithLabelValues(string(uploadType)).Add(float64(len(bills)))

	ev := events.NewBillsIngested(uploadType, sourceFile, bills)
	if err := s.publisher.PublishBillsIngested(ctx, ev); err != nil {
		observability.EventsPublishFailuresTotal.Inc()
		s.logger.WarnContext(ctx, "failed to publish ingestion event",
			slog.String("event_id", ev.EventID.String()),
			slog.Any("error", err))
	}
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, common.ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, common.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, common.ErrMalformedLineItem):
		return "malformed_line_item"
	default:
		return "other"
	}
}
