package extraction

import (
	"context"
	"io"
	"log/slog"
	"time"
	"unicode"

	"github.com/FACorreiaa/smart-bill-tracker/pkg/observability"
)

// minMeaningfulChars is the least non-space output accepted from a real engine.
const minMeaningfulChars = 10

// Fallback wraps a real engine and answers with the mock lines whenever the
// engine fails or reads next to nothing.
type Fallback struct {
	engine TextExtractor
	logger *slog.Logger
}

var _ TextExtractor = (*Fallback)(nil)

func NewFallback(engine TextExtractor, logger *slog.Logger) *Fallback {
	return &Fallback{engine: engine, logger: logger}
}

func (f *Fallback) Name() string { return f.engine.Name() }

// Extract never returns an error.
func (f *Fallback) Extract(ctx context.Context, image []byte) ([]string, error) {
	l := f.logger.With(slog.String("method", "Extract"), slog.String("engine", f.engine.Name()))

	start := time.Now()
	lines, err := f.engine.Extract(ctx, image)
	observability.ExtractionDuration.WithLabelValues(f.engine.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		l.ErrorContext(ctx, "OCR engine failed, using mock lines", slog.Any("error", err))
		observability.OCRFallbacksTotal.WithLabelValues(f.engine.Name(), "error").Inc()
		return MockLines(), nil
	}

	if meaningfulChars(lines) < minMeaningfulChars {
		l.WarnContext(ctx, "OCR engine returned insufficient text, using mock lines",
			slog.Int("lines", len(lines)))
		observability.OCRFallbacksTotal.WithLabelValues(f.engine.Name(), "insufficient_text").Inc()
		return MockLines(), nil
	}

	l.DebugContext(ctx, "Extracted text", slog.Int("lines", len(lines)))
	return lines, nil
}

// Close releases the wrapped engine when it holds resources.
func (f *Fallback) Close() error {
	if c, ok := f.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func meaningfulChars(lines []string) int {
	n := 0
	for _, line := range lines {
		for _, r := range line {
			if !unicode.IsSpace(r) {
				n++
			}
		}
	}
	return n
}
