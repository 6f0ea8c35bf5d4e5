package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

var _ PgxPool = (*pgxpool.Pool)(nil)

var _ BillRepository = (*PostgresBillRepository)(nil)

var lineItemColumns = []string{"bill_id", "position", "item_name", "quantity", "price", "category"}

// PostgresBillRepository implements BillRepository using PostgreSQL
type PostgresBillRepository struct {
	pgpool PgxPool
	logger *slog.Logger
}

func NewPostgresBillRepository(pgpool PgxPool, logger *slog.Logger) *PostgresBillRepository {
	return &PostgresBillRepository{pgpool: pgpool, logger: logger}
}

func (r *PostgresBillRepository) CreateBills(ctx context.Context, bills []*common.Bill) error {
	ctx, span := otel.Tracer("BillRepo").Start(ctx, "CreateBills", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "bills"),
		attribute.Int("bills.count", len(bills)),
	))
	defer span.End()

	if len(bills) == 0 {
		return nil
	}
	if err := prepareBills(bills, time.Now().UTC()); err != nil {
		span.SetStatus(codes.Error, "invalid bill")
		return err
	}

	l := r.logger.With(slog.String("method", "CreateBills"))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB transaction failed")
		return fmt.Errorf("database error beginning transaction: %w", err)
	}

	rollback := func(cause error, msg string) error {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			l.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", rollbackErr))
		}
		l.ErrorContext(ctx, msg, slog.Any("error", cause))
		span.RecordError(cause)
		span.SetStatus(codes.Error, msg)
		return fmt.Errorf("%s: %w", msg, cause)
	}

	var items [][]any
	for _, bill := range bills {
		_, err := tx.Exec(ctx, insertBillQuery,
			bill.ID, bill.ShopName, bill.Date, bill.TotalAmount,
			string(bill.UploadType), bill.SourceFile, bill.CreatedAt,
		)
		if err != nil {
			return rollback(err, "failed to insert bill")
		}
		for pos, item := range bill.LineItems {
			items = append(items, []any{bill.ID, pos, item.Name, item.Quantity, item.Price, item.Category})
		}
	}

	if len(items) > 0 {
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{"line_items"}, lineItemColumns, pgx.CopyFromRows(items))
		if err != nil {
			return rollback(err, "failed to copy line items")
		}
		if copied != int64(len(items)) {
			return rollback(fmt.Errorf("copied %d of %d rows", copied, len(items)), "failed to copy line items")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		l.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB commit failed")
		return fmt.Errorf("database error committing transaction: %w", err)
	}

	l.DebugContext(ctx, "Bills stored", slog.Int("bills", len(bills)), slog.Int("items", len(items)))
	span.SetStatus(codes.Ok, "Bills stored")
	return nil
}

func (r *PostgresBillRepository) BillExists(ctx context.Context, shopName string, date time.Time, total decimal.Decimal) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx, billExistsQuery, shopName, common.NormalizeDate(date), total).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bill existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresBillRepository) ListBills(ctx context.Context, period common.Period) ([]*common.Bill, error) {
	ctx, span := otel.Tracer("BillRepo").Start(ctx, "ListBills", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "bills"),
		attribute.String("period", period.String()),
	))
	defer span.End()

	var (
		rows pgx.Rows
		err  error
	)
	if from, to, ok := period.Range(); ok {
		rows, err = r.pgpool.Query(ctx, listBillsInRangeQuery, from, to)
	} else {
		rows, err = r.pgpool.Query(ctx, listBillsQuery)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}

	bills := []*common.Bill{}
	index := make(map[uuid.UUID]*common.Bill)
	ids := []uuid.UUID{}
	for rows.Next() {
		var (
			b          common.Bill
			uploadType string
			sourceFile *string
		)
		if err := rows.Scan(&b.ID, &b.ShopName, &b.Date, &b.TotalAmount, &uploadType, &sourceFile, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		b.UploadType = common.UploadType(uploadType)
		if sourceFile != nil {
			b.SourceFile = *sourceFile
		}
		b.Date = common.NormalizeDate(b.Date)
		b.LineItems = []common.LineItem{}
		bills = append(bills, &b)
		index[b.ID] = &b
		ids = append(ids, b.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}

	if len(ids) == 0 {
		return bills, nil
	}

	itemRows, err := r.pgpool.Query(ctx, listLineItemsQuery, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB query failed")
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			billID uuid.UUID
			item   common.LineItem
		)
		if err := itemRows.Scan(&billID, &item.Name, &item.Quantity, &item.Price, &item.Category); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		if b, ok := index[billID]; ok {
			b.LineItems = append(b.LineItems, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate line items: %w", err)
	}

	span.SetAttributes(attribute.Int("bills.count", len(bills)))
	return bills, nil
}

func (r *PostgresBillRepository) DeleteAll(ctx context.Context) (DeleteResult, error) {
	l := r.logger.With(slog.String("method", "DeleteAll"))

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("database error beginning transaction: %w", err)
	}

	items, err := tx.Exec(ctx, deleteLineItemsQuery)
	if err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			l.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", rollbackErr))
		}
		return DeleteResult{}, fmt.Errorf("failed to delete line items: %w", err)
	}

	bills, err := tx.Exec(ctx, deleteBillsQuery)
	if err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			l.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", rollbackErr))
		}
		return DeleteResult{}, fmt.Errorf("failed to delete bills: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return DeleteResult{}, fmt.Errorf("database error committing transaction: %w", err)
	}

	result := DeleteResult{BillsDeleted: bills.RowsAffected(), ItemsDeleted: items.RowsAffected()}
	l.InfoContext(ctx, "All bills deleted",
		slog.Int64("bills", result.BillsDeleted),
		slog.Int64("items", result.ItemsDeleted))
	return result, nil
}

func (r *PostgresBillRepository) Ping(ctx context.Context) error {
	return r.pgpool.Ping(ctx)
}

// Close is a no-op; the pool is owned by pkg/db.
func (r *PostgresBillRepository) Close() error {
	return nil
}

const (
	insertBillQuery = `
		INSERT INTO bills (id, shop_name, bill_date, total_amount, upload_type, source_file, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`

	billExistsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM bills
			WHERE shop_name = $1 AND bill_date = $2 AND total_amount = $3
		)
	`

	listBillsQuery = `
		SELECT id, shop_name, bill_date, total_amount, upload_type, source_file, created_at
		FROM bills
		ORDER BY bill_date DESC, created_at DESC
	`

	listBillsInRangeQuery = `
		SELECT id, shop_name, bill_date, total_amount, upload_type, source_file, created_at
		FROM bills
		WHERE bill_date >= $1 AND bill_date < $2
		ORDER BY bill_date DESC, created_at DESC
	`

	listLineItemsQuery = `
		SELECT bill_id, item_name, quantity, price, category
		FROM line_items
		WHERE bill_id = ANY($1)
		ORDER BY bill_id, position
	`

	deleteLineItemsQuery = `DELETE FROM line_items`
	deleteBillsQuery     = `DELETE FROM bills`
)
