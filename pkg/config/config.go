// Package config loads server configuration from flags and environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreBolt     = "bolt"
)

type ServerConfig struct {
	Host           string
	Port           int
	RateLimit      float64 // Requests per second; 0 disables limiting
	RateBurst      int
	AllowedOrigins []string
	ShutdownGrace  time.Duration
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DSN returns URL when set, otherwise a connection string built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type StoreConfig struct {
	Driver     string
	SQLitePath string
	BoltPath   string
}

type UploadConfig struct {
	Dir        string
	MaxBytes   int64
	Extensions []string
}

type OCRConfig struct {
	Engine         string
	Language       string
	GeminiAPIKey   string
	GeminiModel    string
	MaxConcurrency int
}

type ImportConfig struct {
	FallbackCategory string
	Categorize       bool
	SkipDuplicates   bool
}

type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// Config is the full server configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Store         StoreConfig
	Upload        UploadConfig
	OCR           OCRConfig
	Import        ImportConfig
	AMQP          AMQPConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

// Load reads the process arguments and environment.
func Load() (*Config, error) {
	return Parse(os.Args[1:])
}

// EnvPrefix namespaces the environment variables: database-url is read from
// BILLS_DATABASE_URL.
const EnvPrefix = "BILLS"

// Parse reads args, falling back to prefixed environment variables and then to
// defaults.
func Parse(args []string) (*Config, error) {
	fs := ff.NewFlagSet("bill-tracker")
	var (
		host          = fs.StringLong("host", "0.0.0.0", "HTTP listen host")
		port          = fs.IntLong("port", 8080, "HTTP listen port")
		rateLimit     = fs.Float64Long("rate-limit", 20, "requests per second across clients, 0 disables")
		rateBurst     = fs.IntLong("rate-burst", 40, "rate limiter burst")
		origins       = fs.StringLong("allowed-origins", "http://localhost:3000", "comma separated CORS origins")
		shutdownGrace = fs.DurationLong("shutdown-grace", 30*time.Second, "graceful shutdown timeout")

		dbURL      = fs.StringLong("database-url", "", "Postgres connection URL, overrides the db-* parts")
		dbHost     = fs.StringLong("db-host", "localhost", "Postgres host")
		dbPort     = fs.IntLong("db-port", 5432, "Postgres port")
		dbUser     = fs.StringLong("db-user", "postgres", "Postgres user")
		dbPassword = fs.StringLong("db-password", "", "Postgres password")
		dbName     = fs.StringLong("db-name", "bills", "Postgres database")
		dbSSLMode  = fs.StringLong("db-sslmode", "disable", "Postgres sslmode")
		dbMaxConns = fs.IntLong("db-max-conns", 25, "pool max connections")
		dbMinConns = fs.IntLong("db-min-conns", 5, "pool min connections")
		dbLifetime = fs.DurationLong("db-max-conn-lifetime", 5*time.Minute, "pool connection lifetime")
		dbIdle     = fs.DurationLong("db-max-conn-idle-time", 10*time.Minute, "pool connection idle time")

		storeDriver = fs.StringLong("store-driver", StorePostgres, "bill store: postgres, sqlite or bolt")
		sqlitePath  = fs.StringLong("sqlite-path", "data/bills.db", "SQLite database file")
		boltPath    = fs.StringLong("bolt-path", "data/bills.bolt", "Bolt database file")

		uploadDir      = fs.StringLong("upload-dir", "uploads", "directory for raw image uploads, empty disables")
		uploadMaxBytes = fs.IntLong("upload-max-bytes", 16<<20, "maximum upload size in bytes")
		uploadExts     = fs.StringLong("upload-extensions", ".jpg,.jpeg,.png,.gif,.heic,.heif", "comma separated image extensions")

		ocrEngine      = fs.StringLong("ocr-engine", "auto", "text extractor: auto, tesseract, gemini or mock")
		ocrLanguage    = fs.StringLong("ocr-language", "eng", "Tesseract language")
		geminiKey      = fs.StringLong("gemini-api-key", "", "Google Gemini API key")
		geminiModel    = fs.StringLong("gemini-model", "gemini-1.5-flash", "Google Gemini model name")
		ocrConcurrency = fs.IntLong("ocr-max-concurrency", 2, "concurrent extractions")

		fallbackCategory = fs.StringLong("fallback-category", "Uncategorized", "category for items with no category signal")
		categorize       = fs.BoolLongDefault("categorize", true, "categorize receipt items by keyword")
		skipDuplicates   = fs.BoolLongDefault("skip-duplicates", true, "skip CSV bills already stored")

		amqpURL      = fs.StringLong("amqp-url", "", "RabbitMQ URL, empty disables events")
		amqpExchange = fs.StringLong("amqp-exchange", "bills", "RabbitMQ exchange")
		amqpQueue    = fs.StringLong("amqp-queue", "bills.ingested", "RabbitMQ queue")

		metrics   = fs.BoolLongDefault("metrics-enabled", true, "serve /metrics")
		logLevel  = fs.StringLong("log-level", "info", "debug, info, warn or error")
		logFormat = fs.StringLong("log-format", "json", "json or text")

		pprofEnabled = fs.BoolLong("pprof-enabled", "serve pprof on localhost")
		pprofPort    = fs.IntLong("pprof-port", 6060, "pprof port")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if *geminiKey == "" {
		*geminiKey = os.Getenv("GEMINI_API_KEY")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           *host,
			Port:           *port,
			RateLimit:      *rateLimit,
			RateBurst:      *rateBurst,
			AllowedOrigins: splitList(*origins),
			ShutdownGrace:  *shutdownGrace,
		},
		Database: DatabaseConfig{
			URL:             *dbURL,
			Host:            *dbHost,
			Port:            *dbPort,
			User:            *dbUser,
			Password:        *dbPassword,
			Name:            *dbName,
			SSLMode:         *dbSSLMode,
			MaxConns:        *dbMaxConns,
			MinConns:        *dbMinConns,
			MaxConnLifetime: *dbLifetime,
			MaxConnIdleTime: *dbIdle,
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(*storeDriver),
			SQLitePath: *sqlitePath,
			BoltPath:   *boltPath,
		},
		Upload: UploadConfig{
			Dir:        *uploadDir,
			MaxBytes:   int64(*uploadMaxBytes),
			Extensions: splitList(strings.ToLower(*uploadExts)),
		},
		OCR: OCRConfig{
			Engine:         strings.ToLower(*ocrEngine),
			Language:       *ocrLanguage,
			GeminiAPIKey:   *geminiKey,
			GeminiModel:    *geminiModel,
			MaxConcurrency: *ocrConcurrency,
		},
		Import: ImportConfig{
			FallbackCategory: *fallbackCategory,
			Categorize:       *categorize,
			SkipDuplicates:   *skipDuplicates,
		},
		AMQP: AMQPConfig{
			URL:      *amqpURL,
			Exchange: *amqpExchange,
			Queue:    *amqpQueue,
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: *metrics,
			LogLevel:       strings.ToLower(*logLevel),
			LogFormat:      strings.ToLower(*logFormat),
		},
		Profiling: ProfilingConfig{
			Enabled: *pprofEnabled,
			Port:    *pprofPort,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("rate-limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		errs = append(errs, errors.New("rate-burst must be positive when rate limiting"))
	}

	switch c.Store.Driver {
	case StorePostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			errs = append(errs, errors.New("database-url or db-host is required for the postgres store"))
		}
		if c.Database.MinConns > c.Database.MaxConns {
			errs = append(errs, errors.New("db-min-conns exceeds db-max-conns"))
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite-path is required for the sqlite store"))
		}
	case StoreBolt:
		if c.Store.BoltPath == "" {
			errs = append(errs, errors.New("bolt-path is required for the bolt store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store-driver %q", c.Store.Driver))
	}

	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload-max-bytes must be positive"))
	}
	for _, ext := range c.Upload.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("upload extension %q must start with a dot", ext))
		}
	}

	switch c.OCR.Engine {
	case "auto", "tesseract", "mock":
	case "gemini":
		if c.OCR.GeminiAPIKey == "" {
			errs = append(errs, errors.New("gemini-api-key is required for the gemini engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ocr-engine %q", c.OCR.Engine))
	}
	if c.OCR.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("ocr-max-concurrency must be positive"))
	}

	if strings.TrimSpace(c.Import.FallbackCategory) == "" {
		errs = append(errs, errors.New("fallback-category must not be empty"))
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log-level %q", c.Observability.LogLevel))
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log-format %q", c.Observability.LogFormat))
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
