// Command billctl ingests and analyzes bills against a local SQLite or Bolt store
// without running the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/analysis"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/bill/events"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/bill/repository"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/extraction"
	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/smart-bill-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/smart-bill-tracker/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

type rootConfig struct {
	store      *string
	sqlitePath *string
	boltPath   *string
	ocrEngine  *string
	categorize *bool
	logLevel   *string
	stdout     io.Writer
	stderr     io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootFlags := ff.NewFlagSet("billctl")
	cfg := &rootConfig{
		store:      rootFlags.StringLong("store", repository.DriverSQLite, "bill store: sqlite or bolt"),
		sqlitePath: rootFlags.StringLong("sqlite-path", "data/bills.db", "SQLite database file"),
		boltPath:   rootFlags.StringLong("bolt-path", "data/bills.bolt", "Bolt database file"),
		ocrEngine:  rootFlags.StringLong("ocr-engine", extraction.EngineAuto, "auto, tesseract, gemini or mock"),
		categorize: rootFlags.BoolLongDefault("categorize", true, "categorize receipt items by keyword"),
		logLevel:   rootFlags.StringLong("log-level", "warn", "debug, info, warn or error"),
		stdout:     stdout,
		stderr:     stderr,
	}

	root := &ff.Command{
		Name:      "billctl",
		Usage:     "billctl [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "ingest and analyze bills in a local store",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			ingestCommand(cfg, rootFlags),
			analyzeCommand(cfg, rootFlags),
			exportCommand(cfg, rootFlags),
			resetCommand(cfg, rootFlags),
		},
		Exec: func(context.Context, []string) error {
			return ff.ErrHelp
		},
	}

	err := root.ParseAndRun(ctx, args, ff.WithEnvVarPrefix("BILLCTL"))
	if errors.Is(err, ff.ErrHelp) {
		selected := root.GetSelected()
		if selected == nil {
			selected = root
		}
		fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(selected))
	}
	return err
}

// open returns the configured store; callers close it.
func (c *rootConfig) open(ctx context.Context) (repository.BillRepository, error) {
	log := c.logger()
	switch strings.ToLower(*c.store) {
	case repository.DriverSQLite:
		return repository.NewSQLiteBillRepository(ctx, *c.sqlitePath, log)
	case repository.DriverBolt:
		return repository.NewBoltBillRepository(*c.boltPath, log)
	default:
		return nil, fmt.Errorf("unknown store %q", *c.store)
	}
}

func (c *rootConfig) logger() *slog.Logger {
	return logger.New("text", *c.logLevel, c.stderr)
}

func ingestCommand(cfg *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("ingest").SetParent(parent)
	skipDuplicates := fs.BoolLongDefault("skip-duplicates", true, "skip CSV bills already stored")

	return &ff.Command{
		Name:      "ingest",
		Usage:     "billctl ingest [FLAGS] FILE...",
		ShortHelp: "import CSV exports and receipt images",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("ingest needs at least one file: %w", ff.ErrHelp)
			}

			store, err := cfg.open(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			log := cfg.logger()
			extractor := extraction.New(ctx, extraction.Config{
				Engine:       *cfg.ocrEngine,
				Language:     "eng",
				GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			}, log)
			svc := importservice.NewImportService(store, extractor, events.NoopPublisher{}, importservice.Config{
				Categorize:     *cfg.categorize,
				SkipDuplicates: *skipDuplicates,
			}, log)

			var (
				failures []error
				images   []importservice.Upload
			)
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					failures = append(failures, err)
					continue
				}
				upload := importservice.Upload{FileName: filepath.Base(path), Data: data}
				if strings.EqualFold(filepath.Ext(path), ".csv") {
					if err := ingestCSV(ctx, svc, upload, cfg.stdout); err != nil {
						failures = append(failures, fmt.Errorf("%s: %w", path, err))
					}
					continue
				}
				images = append(images, upload)
			}

			for _, r := range svc.ImportImages(ctx, images) {
				if r.Err != nil {
					fmt.Fprintf(cfg.stdout, "%s: error: %v\n", r.FileName, r.Err)
					failures = append(failures, fmt.Errorf("%s: %w", r.FileName, r.Err))
					continue
				}
				fmt.Fprintf(cfg.stdout, "%s: %s on %s, total %s, %d items\n",
					r.FileName, r.Bill.ShopName, r.Bill.DateString(), r.Bill.TotalAmount.StringFixed(2), len(r.Bill.LineItems))
			}

			return errors.Join(failures...)
		},
	}
}

func ingestCSV(ctx context.Context, svc *importservice.ImportService, upload importservice.Upload, w io.Writer) error {
	result, err := svc.ImportCSV(ctx, upload)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d bills created, %d of %d rows skipped\n",
		upload.FileName, result.BillsCreated, result.RowsSkipped, result.RowsTotal)
	for _, msg := range result.Errors {
		fmt.Fprintf(w, "  %s\n", msg)
	}
	return nil
}

func analyzeCommand(cfg *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("analyze").SetParent(parent)
	month := fs.IntLong("month", 0, "month 1-12; omit for a summary")
	year := fs.IntLong("year", 0, "year; omit with month for an all-time summary")

	return &ff.Command{
		Name:      "analyze",
		Usage:     "billctl analyze [--month M --year Y]",
		ShortHelp: "print the monthly analysis or the summary as JSON",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			store, err := cfg.open(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := analysis.NewService(store, cfg.logger())
			period := common.Period{Year: *year, Month: *month}

			var out any
			if *month != 0 {
				out, err = svc.MonthlyAnalysis(ctx, period)
			} else {
				out, err = svc.Summary(ctx, period)
			}
			if err != nil {
				return err
			}

			body, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cfg.stdout, string(body))
			return err
		},
	}
}

func exportCommand(cfg *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("export").SetParent(parent)
	out := fs.StringLong("out", "-", "output file, - for stdout")
	month := fs.IntLong("month", 0, "month filter")
	year := fs.IntLong("year", 0, "year filter")

	return &ff.Command{
		Name:      "export",
		Usage:     "billctl export [--out FILE] [--month M --year Y]",
		ShortHelp: "write stored bills as a bill-summary CSV",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			period := common.Period{Year: *year, Month: *month}
			if err := period.Validate(); err != nil {
				return err
			}

			store, err := cfg.open(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			bills, err := store.ListBills(ctx, period)
			if err != nil {
				return err
			}

			w := cfg.stdout
			if *out != "-" {
				f, err := os.Create(*out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return parser.WriteBillSummary(w, bills)
		},
	}
}

func resetCommand(cfg *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("reset").SetParent(parent)
	yes := fs.BoolLong("yes", "confirm deleting every bill")

	return &ff.Command{
		Name:      "reset",
		Usage:     "billctl reset --yes",
		ShortHelp: "delete every stored bill",
		Flags:     fs,
		Exec: func(ctx context.Context, _ []string) error {
			if !*yes {
				return errors.New("refusing to delete bills without --yes")
			}

			store, err := cfg.open(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.DeleteAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cfg.stdout, "Deleted %d bills and %d line items\n", res.BillsDeleted, res.ItemsDeleted)
			return nil
		},
	}
}
