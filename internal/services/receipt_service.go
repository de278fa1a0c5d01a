// Package services holds the application workflows sitting between the
// HTTP layer and the storage, queue, and spreadsheet backends.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"ricevute/internal/core"
	"ricevute/internal/storage"
)

// SyncPublisher queues a stored receipt for asynchronous spreadsheet sync.
type SyncPublisher interface {
	PublishReceiptSync(ctx context.Context, id string, version int64) error
}

// ReceiptService persists reviewed receipts and queues them for sync.
type ReceiptService struct {
	repo      *storage.SQLiteRepository
	publisher SyncPublisher
}

// NewReceiptService creates the service. A nil publisher disables queue
// notifications; the worker's poller still picks pending receipts up.
func NewReceiptService(repo *storage.SQLiteRepository, publisher SyncPublisher) *ReceiptService {
	return &ReceiptService{repo: repo, publisher: publisher}
}

// Save validates and stores a reviewed receipt, then notifies the sync
// queue. A failed notification is not an error for the caller since the
// pending-sync poller provides delivery anyway.
func (s *ReceiptService) Save(ctx context.Context, rec core.Receipt, ocrText string) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("validate receipt: %w", err)
	}

	id, err := s.repo.SaveReceipt(ctx, rec, ocrText)
	if err != nil {
		return "", fmt.Errorf("save receipt: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReceiptSync(ctx, id, 1); err != nil {
			slog.WarnContext(ctx, "Failed to publish sync message, relying on poller",
				"id", id,
				"error", err)
		}
	}

	return id, nil
}

// Get returns one stored receipt.
func (s *ReceiptService) Get(ctx context.Context, id string) (*storage.StoredReceipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

var monthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

const (
	historyDefaultLimit = 50
	historyMaxLimit     = 1000
)

// History lists stored receipts for a YYYY-MM month, newest first. The
// limit is clamped to 1..1000 and defaults to 50.
func (s *ReceiptService) History(ctx context.Context, month string, limit int) ([]storage.StoredReceipt, error) {
	if !monthRe.MatchString(month) {
		return nil, fmt.Errorf("month must be YYYY-MM, got %q", month)
	}
	if limit <= 0 {
		limit = historyDefaultLimit
	}
	if limit > historyMaxLimit {
		limit = historyMaxLimit
	}

	receipts, err := s.repo.ListReceiptsByMonth(ctx, month, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return receipts, nil
}
