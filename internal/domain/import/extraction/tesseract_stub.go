//go:build !tesseract

package extraction

import (
	"fmt"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// NewTesseract is unavailable in builds without the tesseract tag.
func NewTesseract(string) (TextExtractor, error) {
	return nil, fmt.Errorf("%w: built without the tesseract tag", common.ErrOCRUnavailable)
}
