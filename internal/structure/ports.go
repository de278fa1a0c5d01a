// Package structure turns raw receipt text into a structured receipt.
package structure

import (
	"context"

	"ricevute/internal/core"
)

// Structurer extracts receipt fields from OCR text.
type Structurer interface {
	Structure(ctx context.Context, ocrText string) (core.Receipt, error)
}
