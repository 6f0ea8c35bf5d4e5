package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

const (
	minWidth    = 1000
	maxWidth    = 2400
	targetWidth = 1600
	contrast    = 20
	sharpen     = 1.0
)

// Preprocess prepares a receipt photo for OCR and returns it as PNG: grayscale,
// width normalized, contrast and sharpness boosted.
func Preprocess(data []byte, contentType string) ([]byte, error) {
	img, err := decodeImage(data, contentType)
	if err != nil {
		return nil, err
	}

	var out image.Image = imaging.Grayscale(img)
	if w := out.Bounds().Dx(); w < minWidth || w > maxWidth {
		out = imaging.Resize(out, targetWidth, 0, imaging.Lanczos)
	}
	out = imaging.AdjustContrast(out, contrast)
	out = imaging.Sharpen(out, sharpen)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode preprocessed image: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeImage(data []byte, contentType string) (image.Image, error) {
	if len(data) == 0 {
		return nil, common.ErrEmptyFile
	}

	if isHEIC(data, contentType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding HEIC image: %v", common.ErrUnsupportedFile, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", common.ErrUnsupportedFile, err)
	}
	return img, nil
}

// isHEIC checks the ftyp box brand, falling back to the declared content type.
func isHEIC(data []byte, contentType string) bool {
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		switch string(data[8:12]) {
		case "heic", "heix", "heif", "mif1", "msf1":
			return true
		}
	}
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "heic") || strings.Contains(contentType, "heif")
}
