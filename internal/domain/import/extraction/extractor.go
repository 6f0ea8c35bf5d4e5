// Package extraction converts receipt images into raw text lines.
//
// Every extractor returned by New is usable: when no OCR engine is available, or
// a configured engine fails, callers receive a deterministic set of mock receipt
// lines instead of an error.
package extraction

import (
	"context"
	"log/slog"
	"strings"
)

// Engine names accepted by Config.Engine.
const (
	EngineAuto      = "auto"
	EngineTesseract = "tesseract"
	EngineGemini    = "gemini"
	EngineMock      = "mock"
)

// TextExtractor turns image bytes into receipt text lines.
type TextExtractor interface {
	Extract(ctx context.Context, image []byte) ([]string, error)
	Name() string
}

// Config selects and configures the OCR engine.
type Config struct {
	Engine       string // auto, tesseract, gemini or mock
	Language     string // Tesseract language, e.g. "eng"
	GeminiAPIKey string
	GeminiModel  string
}

// New selects the extractor once. Engines are tried in order and the first one
// that initializes is wrapped in a Fallback; if none does, Mock is returned.
func New(ctx context.Context, cfg Config, logger *slog.Logger) TextExtractor {
	l := logger.With(slog.String("component", "extraction"))

	for _, name := range candidates(cfg.Engine) {
		engine, err := newEngine(ctx, name, cfg)
		if err != nil {
			l.WarnContext(ctx, "OCR engine unavailable",
				slog.String("engine", name),
				slog.Any("error", err))
			continue
		}
		l.InfoContext(ctx, "OCR engine selected", slog.String("engine", engine.Name()))
		return NewFallback(engine, logger)
	}

	l.InfoContext(ctx, "No OCR engine available, using mock extractor")
	return Mock{}
}

func candidates(engine string) []string {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case EngineTesseract:
		return []string{EngineTesseract}
	case EngineGemini:
		return []string{EngineGemini}
	case EngineMock:
		return nil
	default:
		return []string{EngineTesseract, EngineGemini}
	}
}

func newEngine(ctx context.Context, name string, cfg Config) (TextExtractor, error) {
	switch name {
	case EngineTesseract:
		return NewTesseract(cfg.Language)
	default:
		gemini, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return gemini, nil
	}
}

// splitLines breaks engine output into trimmed, non-empty lines.
func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
