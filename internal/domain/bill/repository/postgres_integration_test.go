//go:build integration

package repository

import (
	"context"
	"log"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	"github.com/FACorreiaa/smart-bill-tracker/pkg/db"
)

var testDB *db.DB

func TestMain(m *testing.M) {
	if err := godotenv.Load("../../../../.env.test"); err != nil {
		log.Println("Warning: .env.test file not found for bill repository integration tests.")
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		log.Fatal("TEST_DATABASE_URL environment variable is not set for bill repository integration tests")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	testDB, err = db.New(ctx, db.Config{DSN: dbURL, MaxConns: 5}, logger)
	if err != nil {
		log.Fatalf("Unable to connect to test database: %v\n", err)
	}
	if err := testDB.RunMigrations(ctx); err != nil {
		log.Fatalf("Unable to migrate test database: %v\n", err)
	}

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func TestPostgresBillRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresBillRepository(testDB.Pool, slog.Default())

	_, err := repo.DeleteAll(ctx)
	require.NoError(t, err)

	bill := sampleBill()
	require.NoError(t, repo.CreateBills(ctx, []*common.Bill{bill}))

	exists, err := repo.BillExists(ctx, "Costco", time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("19.98"))
	require.NoError(t, err)
	assert.True(t, exists)

	bills, err := repo.ListBills(ctx, common.Period{Year: 2025, Month: 2})
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, bill.ID, bills[0].ID)
	require.Len(t, bills[0].LineItems, 2)
	assert.Equal(t, "Strawberries", bills[0].LineItems[0].Name)
	assert.True(t, bills[0].LineItems[0].Price.Equal(decimal.RequireFromString("15.98")))

	result, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{BillsDeleted: 1, ItemsDeleted: 2}, result)
}
