// Package ocr extracts text from receipt photos.
package ocr

import (
	"context"

	"ricevute/internal/core"
)

// TextExtractor turns raw image bytes into receipt text.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (core.OCRResult, error)
}
