package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

const billsBucket = "bills"

var _ BillRepository = (*BoltBillRepository)(nil)

// BoltBillRepository keeps each bill as a JSON document keyed by its ID.
type BoltBillRepository struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// NewBoltBillRepository opens path and creates the bucket.
func NewBoltBillRepository(path string, logger *slog.Logger) (*BoltBillRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(billsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltBillRepository{db: db, logger: logger}, nil
}

func (r *BoltBillRepository) CreateBills(_ context.Context, bills []*common.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	if err := prepareBills(bills, time.Now().UTC()); err != nil {
		return err
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billsBucket))
		for _, bill := range bills {
			data, err := json.Marshal(bill)
			if err != nil {
				return fmt.Errorf("marshaling bill: %w", err)
			}
			if err := bucket.Put([]byte(bill.ID.String()), data); err != nil {
				return fmt.Errorf("storing bill: %w", err)
			}
		}
		return nil
	})
}

func (r *BoltBillRepository) BillExists(ctx context.Context, shopName string, date time.Time, total decimal.Decimal) (bool, error) {
	found := false
	err := r.each(func(b *common.Bill) bool {
		found = sameBill(b, shopName, date, total)
		return !found
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (r *BoltBillRepository) ListBills(_ context.Context, period common.Period) ([]*common.Bill, error) {
	bills := make([]*common.Bill, 0)
	err := r.each(func(b *common.Bill) bool {
		if period.Contains(b.Date) {
			bills = append(bills, b)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(bills, func(i, j int) bool {
		if !bills[i].Date.Equal(bills[j].Date) {
			return bills[i].Date.After(bills[j].Date)
		}
		return bills[i].CreatedAt.After(bills[j].CreatedAt)
	})
	return bills, nil
}

func (r *BoltBillRepository) DeleteAll(ctx context.Context) (DeleteResult, error) {
	var result DeleteResult
	err := r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billsBucket))
		err := bucket.ForEach(func(_, v []byte) error {
			var bill common.Bill
			if err := json.Unmarshal(v, &bill); err != nil {
				return fmt.Errorf("unmarshaling bill: %w", err)
			}
			result.BillsDeleted++
			result.ItemsDeleted += int64(len(bill.LineItems))
			return nil
		})
		if err != nil {
			return err
		}
		if err := tx.DeleteBucket([]byte(billsBucket)); err != nil {
			return err
		}
		_, err = tx.CreateBucket([]byte(billsBucket))
		return err
	})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("deleting bills: %w", err)
	}

	r.logger.InfoContext(ctx, "All bills deleted",
		slog.Int64("bills", result.BillsDeleted),
		slog.Int64("items", result.ItemsDeleted))
	return result, nil
}

// Ping checks that the bucket is readable.
func (r *BoltBillRepository) Ping(_ context.Context) error {
	return r.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(billsBucket)) == nil {
			return fmt.Errorf("bucket %q missing", billsBucket)
		}
		return nil
	})
}

func (r *BoltBillRepository) Close() error {
	return r.db.Close()
}

// each decodes every stored bill until fn returns false.
func (r *BoltBillRepository) each(fn func(*common.Bill) bool) error {
	return r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(billsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var bill common.Bill
			if err := json.Unmarshal(v, &bill); err != nil {
				return fmt.Errorf("unmarshaling bill %s: %w", k, err)
			}
			if bill.LineItems == nil {
				bill.LineItems = []common.LineItem{}
			}
			if !fn(&bill) {
				return nil
			}
		}
		return nil
	})
}
