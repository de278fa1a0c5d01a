// Package backend selects the spreadsheet store implementation from
// configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ricevute/internal/sheets"
	"ricevute/internal/sheets/google"
	"ricevute/internal/sheets/memory"
)

// Type names a spreadsheet store implementation.
type Type string

const (
	// SheetsBackend talks to the Google Sheets API using service
	// account credentials from the environment.
	SheetsBackend Type = "sheets"
	// MemoryBackend keeps tabs in process memory. Meant for local
	// development and tests.
	MemoryBackend Type = "memory"
)

func (t Type) IsValid() bool {
	switch t {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// New creates the store for the given backend type.
func New(ctx context.Context, t Type) (sheets.Store, error) {
	switch t {
	case SheetsBackend:
		cli, err := google.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
		}
		slog.Info("Initialized Google Sheets backend")
		return cli, nil
	case MemoryBackend:
		slog.Info("Initialized in-memory sheets backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("invalid backend type: %s", t)
	}
}
