// Package repository persists canonical bills. Postgres is the server store;
// SQLite and Bolt serve single-user and offline deployments.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBolt     = "bolt"
)

// DeleteResult reports how much DeleteAll removed.
type DeleteResult struct {
	BillsDeleted int64
	ItemsDeleted int64
}

// BillRepository defines data access operations for bills
type BillRepository interface {
	// CreateBills stores all bills atomically, assigning ID and CreatedAt where unset.
	CreateBills(ctx context.Context, bills []*common.Bill) error

	// BillExists reports whether a bill with the same shop, date and total is stored.
	BillExists(ctx context.Context, shopName string, date time.Time, total decimal.Decimal) (bool, error)

	// ListBills returns the bills inside period, newest first, items in stored order.
	ListBills(ctx context.Context, period common.Period) ([]*common.Bill, error)

	DeleteAll(ctx context.Context) (DeleteResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// prepareBills fills in IDs and timestamps and rejects bills that cannot be stored.
func prepareBills(bills []*common.Bill, now time.Time) error {
	for i, bill := range bills {
		if bill == nil {
			return fmt.Errorf("%w: bill %d is nil", common.ErrBadRequest, i)
		}
		if strings.TrimSpace(bill.ShopName) == "" {
			return fmt.Errorf("%w: bill %d has no shop name", common.ErrBadRequest, i)
		}
		if bill.TotalAmount.IsNegative() {
			return fmt.Errorf("%w: bill %d has a negative total", common.ErrBadRequest, i)
		}
		if bill.ID == uuid.Nil {
			bill.ID = uuid.New()
		}
		if bill.CreatedAt.IsZero() {
			bill.CreatedAt = now
		}
		bill.Date = common.NormalizeDate(bill.Date)
	}
	return nil
}

// sameBill is the duplicate rule shared by the embedded stores.
func sameBill(b *common.Bill, shopName string, date time.Time, total decimal.Decimal) bool {
	return b.ShopName == shopName &&
		b.Date.Equal(common.NormalizeDate(date)) &&
		b.TotalAmount.Equal(total)
}
