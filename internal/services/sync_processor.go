package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ricevute/internal/core"
	"ricevute/internal/sheets/batch"
	"ricevute/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor.
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending receipts (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of receipts to sync per poll cycle (default: 10)
	BatchSize int

	// RequeueInterval is how often errored receipts go back to pending (default: 1h)
	RequeueInterval time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults.
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		RequeueInterval: 1 * time.Hour,
	}
}

// SyncProcessor moves pending receipts from SQLite into the spreadsheet.
// It reacts to queue messages through SyncOne and also polls the pending
// set, so receipts survive a lost message.
type SyncProcessor struct {
	storage       *storage.SQLiteRepository
	writer        *batch.Writer
	spreadsheetID string
	config        SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(
	repo *storage.SQLiteRepository,
	writer *batch.Writer,
	spreadsheetID string,
	config SyncProcessorConfig,
) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	if config.RequeueInterval <= 0 {
		config.RequeueInterval = DefaultSyncProcessorConfig().RequeueInterval
	}
	return &SyncProcessor{
		storage:       repo,
		writer:        writer,
		spreadsheetID: spreadsheetID,
		config:        config,
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning reports whether the processor is currently running.
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	requeueTicker := time.NewTicker(p.config.RequeueInterval)
	defer requeueTicker.Stop()

	// Process immediately on startup
	p.ProcessPending(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessPending(ctx)
		case <-requeueTicker.C:
			if n, err := p.storage.RequeueSyncErrors(ctx); err != nil {
				slog.ErrorContext(ctx, "Failed to requeue errored receipts", "error", err)
			} else if n > 0 {
				slog.InfoContext(ctx, "Requeued errored receipts", "count", n)
			}
		}
	}
}

// ProcessPending syncs one batch of pending receipts. Every receipt gets
// an individual outcome; a failing receipt does not block the others.
func (p *SyncProcessor) ProcessPending(ctx context.Context) {
	pending, err := p.storage.GetPendingSyncReceipts(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to fetch pending receipts", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	records := make([]core.Receipt, len(pending))
	for i, r := range pending {
		records[i] = r.Receipt
	}

	summary, err := p.writer.Write(ctx, records, p.spreadsheetID)
	if err != nil {
		slog.ErrorContext(ctx, "Batch sync failed", "error", err)
		return
	}

	for i, res := range summary.Results {
		id := pending[i].ID
		if res.Success {
			if err := p.storage.MarkSynced(ctx, id); err != nil {
				slog.ErrorContext(ctx, "Failed to mark receipt synced", "id", id, "error", err)
			}
			continue
		}
		if err := p.storage.MarkSyncError(ctx, id, res.Error); err != nil {
			slog.ErrorContext(ctx, "Failed to mark receipt sync error", "id", id, "error", err)
		}
	}

	slog.InfoContext(ctx, "Sync batch processed",
		"total", summary.Total,
		"succeeded", summary.SuccessCount,
		"failed", summary.FailureCount)
}

// SyncOne syncs a single receipt by id, used by the queue consumer. A
// receipt already synced is a no-op so duplicate deliveries are safe.
func (p *SyncProcessor) SyncOne(ctx context.Context, id string) error {
	stored, err := p.storage.GetReceipt(ctx, id)
	if err != nil {
		return fmt.Errorf("get receipt %s: %w", id, err)
	}
	if stored.SyncStatus == storage.SyncStatusSynced {
		slog.InfoContext(ctx, "Receipt already synced, skipping", "id", id)
		return nil
	}

	res, err := p.writer.WriteOne(ctx, stored.Receipt, p.spreadsheetID)
	if err != nil {
		return fmt.Errorf("write receipt %s: %w", id, err)
	}
	if !res.Success {
		if markErr := p.storage.MarkSyncError(ctx, id, res.Error); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark receipt sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("sync receipt %s: %s", id, res.Error)
	}

	if err := p.storage.MarkSynced(ctx, id); err != nil {
		slog.WarnContext(ctx, "Receipt written but not marked synced", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Receipt synced",
		"id", id,
		"sheet", res.SheetName,
		"row", res.RowNumber)

	return nil
}
