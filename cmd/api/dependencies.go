package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/analysis"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/bill/events"
	billhandler "github.com/FACorreiaa/smart-bill-tracker/internal/domain/bill/handler"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/bill/repository"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/extraction"
	importservice "github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/service"

	"github.com/FACorreiaa/smart-bill-tracker/pkg/config"
	"github.com/FACorreiaa/smart-bill-tracker/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB // nil unless the postgres store is selected
	Logger *slog.Logger

	// Repositories
	BillRepo repository.BillRepository

	// Adapters
	Extractor extraction.TextExtractor
	Publisher events.Publisher

	// Services
	ImportService   *importservice.ImportService
	AnalysisService *analysis.Service

	// Handlers
	BillHandler *billhandler.BillHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initRepositories(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initAdapters(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init adapters: %w", err)
	}

	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase opens the Postgres pool and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	dbCfg := d.Config.Database
	database, err := db.New(ctx, db.Config{
		DSN:             dbCfg.DSN(),
		MaxConns:        int32(dbCfg.MaxConns),
		MinConns:        int32(dbCfg.MinConns),
		MaxConnLifetime: dbCfg.MaxConnLifetime,
		MaxConnIdleTime: dbCfg.MaxConnIdleTime,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories opens the bill store selected by config
func (d *Dependencies) initRepositories(ctx context.Context) error {
	switch d.Config.Store.Driver {
	case config.StorePostgres:
		if err := d.initDatabase(ctx); err != nil {
			return fmt.Errorf("failed to init database: %w", err)
		}
		d.BillRepo = repository.NewPostgresBillRepository(d.DB.Pool, d.Logger)
	case config.StoreSQLite:
		repo, err := repository.NewSQLiteBillRepository(ctx, d.Config.Store.SQLitePath, d.Logger)
		if err != nil {
			return err
		}
		d.BillRepo = repo
	case config.StoreBolt:
		repo, err := repository.NewBoltBillRepository(d.Config.Store.BoltPath, d.Logger)
		if err != nil {
			return err
		}
		d.BillRepo = repo
	default:
		return fmt.Errorf("unknown store driver %q", d.Config.Store.Driver)
	}

	d.Logger.Info("repositories initialized", slog.String("store", d.Config.Store.Driver))
	return nil
}

// initAdapters selects the OCR engine and the event publisher
func (d *Dependencies) initAdapters(ctx context.Context) error {
	d.Extractor = extraction.New(ctx, extraction.Config{
		Engine:       d.Config.OCR.Engine,
		Language:     d.Config.OCR.Language,
		GeminiAPIKey: d.Config.OCR.GeminiAPIKey,
		GeminiModel:  d.Config.OCR.GeminiModel,
	}, d.Logger)

	if d.Config.AMQP.URL == "" {
		d.Publisher = events.NoopPublisher{}
		d.Logger.Info("event publishing disabled")
		return nil
	}

	publisher, err := events.NewAMQPPublisher(ctx, events.AMQPConfig{
		URL:      d.Config.AMQP.URL,
		Exchange: d.Config.AMQP.Exchange,
		Queue:    d.Config.AMQP.Queue,
	}, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	d.Publisher = publisher
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	d.ImportService = importservice.NewImportService(d.BillRepo, d.Extractor, d.Publisher, importservice.Config{
		FallbackCategory: d.Config.Import.FallbackCategory,
		Categorize:       d.Config.Import.Categorize,
		SkipDuplicates:   d.Config.Import.SkipDuplicates,
		UploadDir:        d.Config.Upload.Dir,
		MaxUploadBytes:   d.Config.Upload.MaxBytes,
		ImageExtensions:  d.Config.Upload.Extensions,
		OCRConcurrency:   int64(d.Config.OCR.MaxConcurrency),
	}, d.Logger)
	d.AnalysisService = analysis.NewService(d.BillRepo, d.Logger)

	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.BillHandler = billhandler.NewBillHandler(d.ImportService, d.BillRepo, d.AnalysisService)

	d.Logger.Info("handlers initialized")
}

// Health pings the bill store.
func (d *Dependencies) Health(ctx context.Context) error {
	if d.DB != nil {
		return d.DB.Health(ctx)
	}
	return d.BillRepo.Ping(ctx)
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			d.Logger.Warn("failed to close publisher", slog.Any("error", err))
		}
	}
	if d.BillRepo != nil {
		if err := d.BillRepo.Close(); err != nil {
			d.Logger.Warn("failed to close bill store", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
