// Package batch implements the bounded-concurrency write path to the
// spreadsheet backend: receipts are grouped by monthly tab, missing tabs
// are provisioned concurrently (with a bounded number of outstanding
// remote calls), each group is appended in a single multi-row call, and
// per-receipt outcomes are reassembled in input order.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ricevute/internal/core"
	"ricevute/internal/sheets"
)

// Config carries the tuning knobs of the writer.
type Config struct {
	// MaxConcurrent caps simultaneously outstanding remote calls.
	MaxConcurrent int
	// RetryAttempts is the per-call attempt ceiling for transient errors.
	RetryAttempts int
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration
}

// DefaultConfig mirrors the documented environment defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  5,
		RetryAttempts:  3,
		RetryBaseDelay: time.Second,
	}
}

// Result is the per-receipt outcome of a batch write.
type Result struct {
	Index     int    `json:"index"`
	Success   bool   `json:"success"`
	SheetName string `json:"destination,omitempty"`
	RowNumber int64  `json:"rowNumber,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Summary aggregates a whole batch. Results always covers every input
// receipt, in input order, mixing successes and failures.
type Summary struct {
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	Total        int      `json:"total"`
	Results      []Result `json:"results"`
}

// Writer coordinates grouped, provisioned, retried appends against a
// sheets.Store. The existence cache is owned by the Writer instance, so a
// fresh Writer (and every test) starts with a cold cache.
type Writer struct {
	store   sheets.Store
	retrier *Retrier
	cache   *existenceCache
	cfg     Config

	// now is swapped out in tests for deterministic month fallback.
	now func() time.Time
}

func NewWriter(store sheets.Store, cfg Config) *Writer {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultConfig().RetryAttempts
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultConfig().RetryBaseDelay
	}
	return &Writer{
		store:   store,
		retrier: NewRetrier(cfg.RetryAttempts, cfg.RetryBaseDelay),
		cache:   newExistenceCache(),
		cfg:     cfg,
		now:     time.Now,
	}
}

// group is the set of receipts bound for one monthly tab, in input order.
type group struct {
	sheetName string
	indices   []int
	err       error // provisioning or append failure covering the group
	startRow  int64
}

// Write appends every receipt to its monthly tab and returns one result
// per receipt, aligned to input order. Receipts missing required fields
// fail validation up front and never consume a remote call. Only an empty
// batch is rejected as a whole.
func (w *Writer) Write(ctx context.Context, records []core.Receipt, spreadsheetID string) (*Summary, error) {
	if len(records) == 0 {
		return nil, core.ErrEmptyBatch
	}

	slog.InfoContext(ctx, "Batch write started",
		"records", len(records),
		"max_concurrent", w.cfg.MaxConcurrent)

	results := make([]Result, len(records))
	now := w.now()

	// Group valid receipts by destination tab, preserving relative order.
	groupIndex := make(map[string]int)
	var groups []*group
	for i, rec := range records {
		results[i].Index = i
		if missing := rec.MissingFields(); len(missing) > 0 {
			results[i].Error = "missing required fields: " + strings.Join(missing, ", ")
			continue
		}
		name := SheetNameForDate(rec.Date, now)
		gi, ok := groupIndex[name]
		if !ok {
			gi = len(groups)
			groupIndex[name] = gi
			groups = append(groups, &group{sheetName: name})
		}
		groups[gi].indices = append(groups[gi].indices, i)
	}

	// Provision every distinct tab, bounded. A failure here only dooms
	// that tab's group; other tabs proceed.
	RunBounded(len(groups), w.cfg.MaxConcurrent, func(gi int) {
		g := groups[gi]
		if err := w.ensureSheet(ctx, spreadsheetID, g.sheetName); err != nil {
			g.err = fmt.Errorf("ensure sheet %s: %w", g.sheetName, err)
		}
	})

	// Append each provisioned group as one multi-row call, bounded.
	RunBounded(len(groups), w.cfg.MaxConcurrent, func(gi int) {
		g := groups[gi]
		if g.err != nil {
			return
		}
		rows := make([][]any, 0, len(g.indices))
		for _, idx := range g.indices {
			rows = append(rows, rowValues(records[idx]))
		}
		err := w.retrier.Do(ctx, "append "+g.sheetName, func() error {
			start, appendErr := w.store.AppendRows(ctx, spreadsheetID, g.sheetName, rows)
			if appendErr != nil {
				return appendErr
			}
			g.startRow = start
			return nil
		})
		if err != nil {
			g.err = fmt.Errorf("append to %s: %w", g.sheetName, err)
		}
	})

	// Reassemble per-receipt outcomes at their original positions.
	summary := &Summary{Total: len(records), Results: results}
	for _, g := range groups {
		for offset, idx := range g.indices {
			if g.err != nil {
				results[idx].Error = g.err.Error()
				continue
			}
			results[idx].Success = true
			results[idx].SheetName = g.sheetName
			results[idx].RowNumber = g.startRow + int64(offset)
		}
		outcome := "ok"
		if g.err != nil {
			outcome = g.err.Error()
		}
		slog.InfoContext(ctx, "Batch write group finished",
			"sheet", g.sheetName,
			"records", len(g.indices),
			"outcome", outcome)
	}
	for i := range results {
		if results[i].Success {
			summary.SuccessCount++
		} else {
			summary.FailureCount++
		}
	}

	slog.InfoContext(ctx, "Batch write finished",
		"total", summary.Total,
		"succeeded", summary.SuccessCount,
		"failed", summary.FailureCount)

	return summary, nil
}

// WriteOne is the single-receipt convenience used by the interactive
// review flow; it shares the batch machinery (and its cache) end to end.
func (w *Writer) WriteOne(ctx context.Context, rec core.Receipt, spreadsheetID string) (Result, error) {
	summary, err := w.Write(ctx, []core.Receipt{rec}, spreadsheetID)
	if err != nil {
		return Result{}, err
	}
	return summary.Results[0], nil
}

// ensureSheet confirms the tab exists, creating it (with the header row)
// when absent. A confirmed tab is cached so later batches skip the remote
// existence check. Failures are not cached: the next call re-runs the
// whole check-and-create sequence, which tolerates at-least-once creation
// since creating an existing tab is rejected idempotently by the backend.
func (w *Writer) ensureSheet(ctx context.Context, spreadsheetID, name string) error {
	key := cacheKey(spreadsheetID, name)
	if w.cache.has(key) {
		return nil
	}

	var titles []string
	err := w.retrier.Do(ctx, "list sheets", func() error {
		var listErr error
		titles, listErr = w.store.SheetTitles(ctx, spreadsheetID)
		return listErr
	})
	if err != nil {
		return err
	}

	exists := false
	for _, t := range titles {
		if t == name {
			exists = true
			break
		}
	}
	if !exists {
		slog.InfoContext(ctx, "Creating monthly sheet", "sheet", name)
		err = w.retrier.Do(ctx, "create sheet "+name, func() error {
			return w.store.CreateSheet(ctx, spreadsheetID, name)
		})
		if err != nil {
			return err
		}
		err = w.retrier.Do(ctx, "write header "+name, func() error {
			return w.store.WriteHeader(ctx, spreadsheetID, name, sheets.HeaderColumns)
		})
		if err != nil {
			return err
		}
	}

	w.cache.add(key)
	return nil
}

// rowValues renders a receipt as one sheet row in the fixed A:K layout.
// Absent optional amounts become empty cells, matching the header width.
func rowValues(r core.Receipt) []any {
	amount := func(m *core.Money) any {
		if m == nil {
			return ""
		}
		return m.Float()
	}
	return []any{
		r.Date,
		r.StoreName,
		r.Payer,
		amount(r.AmountExclTax),
		amount(r.AmountInclTax),
		amount(r.Tax),
		r.PaymentMethod,
		r.ExpenseCategory,
		r.ProjectName,
		r.Notes,
		r.ReceiptImageURL,
	}
}
