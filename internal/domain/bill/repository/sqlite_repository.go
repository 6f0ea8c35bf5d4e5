package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure Go driver

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	"github.com/FACorreiaa/smart-bill-tracker/pkg/db"
)

var _ BillRepository = (*SQLiteBillRepository)(nil)

// timestampLayout is fixed width so created_at sorts as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteBillRepository stores bills in a single SQLite file. Money is kept as
// decimal text so nothing passes through float64.
type SQLiteBillRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteBillRepository opens path, enables foreign keys and migrates the schema.
func NewSQLiteBillRepository(ctx context.Context, path string, logger *slog.Logger) (*SQLiteBillRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps PRAGMAs and :memory: databases consistent.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := db.MigrateSQLite(ctx, sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteBillRepository{db: sqlDB, logger: logger}, nil
}

func (r *SQLiteBillRepository) CreateBills(ctx context.Context, bills []*common.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	if err := prepareBills(bills, time.Now().UTC()); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	billStmt, err := tx.PrepareContext(ctx, sqliteInsertBillQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare bill insert: %w", err)
	}
	defer billStmt.Close()

	itemStmt, err := tx.PrepareContext(ctx, sqliteInsertItemQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer itemStmt.Close()

	for _, bill := range bills {
		var source any
		if bill.SourceFile != "" {
			source = bill.SourceFile
		}
		_, err := billStmt.ExecContext(ctx,
			bill.ID.String(), bill.ShopName, bill.DateString(), moneyText(bill.TotalAmount),
			string(bill.UploadType), source, bill.CreatedAt.UTC().Format(timestampLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to insert bill: %w", err)
		}
		for pos, item := range bill.LineItems {
			_, err := itemStmt.ExecContext(ctx,
				bill.ID.String(), pos, item.Name, item.Quantity.String(), item.Price.String(), item.Category,
			)
			if err != nil {
				return fmt.Errorf("failed to insert line item: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteBillRepository) BillExists(ctx context.Context, shopName string, date time.Time, total decimal.Decimal) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, sqliteBillExistsQuery,
		shopName, common.NormalizeDate(date).Format(common.DateLayout), moneyText(total),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bill existence: %w", err)
	}
	return exists, nil
}

func (r *SQLiteBillRepository) ListBills(ctx context.Context, period common.Period) ([]*common.Bill, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if from, to, ok := period.Range(); ok {
		rows, err = r.db.QueryContext(ctx, sqliteListBillsInRangeQuery,
			from.Format(common.DateLayout), to.Format(common.DateLayout))
	} else {
		rows, err = r.db.QueryContext(ctx, sqliteListBillsQuery)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}

	bills := []*common.Bill{}
	index := make(map[string]*common.Bill)
	for rows.Next() {
		var (
			id, date, total, uploadType, createdAt string
			source                                 sql.NullString
			b                                      common.Bill
		)
		if err := rows.Scan(&id, &b.ShopName, &date, &total, &uploadType, &source, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		if b.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse bill id %q: %w", id, err)
		}
		if b.Date, err = time.Parse(common.DateLayout, date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse bill date %q: %w", date, err)
		}
		if b.TotalAmount, err = decimal.NewFromString(total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse bill total %q: %w", total, err)
		}
		if b.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
		}
		b.UploadType = common.UploadType(uploadType)
		b.SourceFile = source.String
		b.LineItems = []common.LineItem{}
		bills = append(bills, &b)
		index[id] = &b
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}
	if len(bills) == 0 {
		return bills, nil
	}

	itemRows, err := r.db.QueryContext(ctx, sqliteListItemsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var billID, name, qty, price, category string
		if err := itemRows.Scan(&billID, &name, &qty, &price, &category); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		b, ok := index[billID]
		if !ok {
			continue
		}
		item := common.LineItem{Name: name, Category: category}
		if item.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("failed to parse quantity %q: %w", qty, err)
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse price %q: %w", price, err)
		}
		b.LineItems = append(b.LineItems, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate line items: %w", err)
	}

	return bills, nil
}

func (r *SQLiteBillRepository) DeleteAll(ctx context.Context) (DeleteResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	items, err := tx.ExecContext(ctx, deleteLineItemsQuery)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete line items: %w", err)
	}
	bills, err := tx.ExecContext(ctx, deleteBillsQuery)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete bills: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return DeleteResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	var result DeleteResult
	result.ItemsDeleted, _ = items.RowsAffected()
	result.BillsDeleted, _ = bills.RowsAffected()
	r.logger.InfoContext(ctx, "All bills deleted",
		slog.Int64("bills", result.BillsDeleted),
		slog.Int64("items", result.ItemsDeleted))
	return result, nil
}

func (r *SQLiteBillRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteBillRepository) Close() error {
	return r.db.Close()
}

// moneyText is the stored form of a bill total; the duplicate check compares it as text.
func moneyText(d decimal.Decimal) string {
	return d.StringFixed(2)
}

const (
	sqliteInsertBillQuery = `
		INSERT INTO bills (id, shop_name, bill_date, total_amount, upload_type, source_file, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	sqliteInsertItemQuery = `
		INSERT INTO line_items (bill_id, position, item_name, quantity, price, category)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	sqliteBillExistsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM bills
			WHERE shop_name = ? AND bill_date = ? AND total_amount = ?
		)
	`
	sqliteListBillsQuery = `
		SELECT id, shop_name, bill_date, total_amount, upload_type, source_file, created_at
		FROM bills
		ORDER BY bill_date DESC, created_at DESC
	`
	sqliteListBillsInRangeQuery = `
		SELECT id, shop_name, bill_date, total_amount, upload_type, source_file, created_at
		FROM bills
		WHERE bill_date >= ? AND bill_date < ?
		ORDER BY bill_date DESC, created_at DESC
	`
	sqliteListItemsQuery = `
		SELECT bill_id, item_name, quantity, price, category
		FROM line_items
		ORDER BY bill_id, position
	`
)
