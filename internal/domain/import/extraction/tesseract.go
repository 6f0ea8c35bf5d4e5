//go:build tesseract

package extraction

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// Tesseract runs the local Tesseract engine through cgo.
type Tesseract struct {
	language string
}

// NewTesseract fails with ErrOCRUnavailable when libtesseract cannot be loaded.
func NewTesseract(language string) (TextExtractor, error) {
	if gosseract.Version() == "" {
		return nil, fmt.Errorf("%w: tesseract library not found", common.ErrOCRUnavailable)
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language}, nil
}

func (t *Tesseract) Name() string { return EngineTesseract }

// Extract uses a client per call; gosseract clients are not safe for concurrent use.
func (t *Tesseract) Extract(ctx context.Context, image []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	png, err := Preprocess(image, "")
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("failed to set tesseract language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract failed: %w", err)
	}
	return splitLines(text), nil
}
