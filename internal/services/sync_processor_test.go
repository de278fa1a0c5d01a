package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ricevute/internal/core"
	"ricevute/internal/sheets/batch"
	"ricevute/internal/sheets/memory"
	"ricevute/internal/storage"
)

func newTestProcessor(t *testing.T) (*SyncProcessor, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := memory.New()
	writer := batch.NewWriter(store, batch.Config{MaxConcurrent: 2, RetryAttempts: 1, RetryBaseDelay: time.Millisecond})
	return NewSyncProcessor(repo, writer, "test-spreadsheet", DefaultSyncProcessorConfig()), repo, store
}

func saveReceipt(t *testing.T, repo *storage.SQLiteRepository, date string) string {
	t.Helper()
	amount := 500.0
	id, err := repo.SaveReceipt(context.Background(), core.Receipt{
		Date:          date,
		StoreName:     "Store A",
		AmountInclTax: core.MoneyFromFloat(&amount),
	}, "")
	if err != nil {
		t.Fatalf("save receipt: %v", err)
	}
	return id
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.RequeueInterval != 1*time.Hour {
		t.Errorf("expected RequeueInterval 1h, got %v", config.RequeueInterval)
	}
}

func TestProcessPendingSyncsBatch(t *testing.T) {
	p, repo, store := newTestProcessor(t)
	ctx := context.Background()

	ids := []string{
		saveReceipt(t, repo, "2025-01-05"),
		saveReceipt(t, repo, "2025-02-10"),
	}

	p.ProcessPending(ctx)

	for _, id := range ids {
		got, err := repo.GetReceipt(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.SyncStatus != storage.SyncStatusSynced {
			t.Errorf("receipt %s status = %q, want synced", id, got.SyncStatus)
		}
	}

	titles, _ := store.SheetTitles(ctx, "test-spreadsheet")
	if len(titles) != 2 {
		t.Errorf("sheet titles = %v, want one per month", titles)
	}

	pending, _ := repo.GetPendingSyncReceipts(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending after sync = %d, want 0", len(pending))
	}
}

func TestProcessPendingMarksFailures(t *testing.T) {
	p, repo, _ := newTestProcessor(t)
	ctx := context.Background()

	// Empty store name fails validation inside the batch writer.
	amount := 100.0
	badID, err := repo.SaveReceipt(ctx, core.Receipt{
		Date:          "2025-01-05",
		AmountInclTax: core.MoneyFromFloat(&amount),
	}, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	okID := saveReceipt(t, repo, "2025-01-06")

	p.ProcessPending(ctx)

	got, err := repo.GetReceipt(ctx, badID)
	if err != nil || got.SyncStatus != storage.SyncStatusError || got.SyncError == "" {
		t.Errorf("failing receipt = %+v, err=%v", got, err)
	}
	got, err = repo.GetReceipt(ctx, okID)
	if err != nil || got.SyncStatus != storage.SyncStatusSynced {
		t.Errorf("ok receipt = %+v, err=%v", got, err)
	}
}

func TestSyncOne(t *testing.T) {
	p, repo, _ := newTestProcessor(t)
	ctx := context.Background()

	id := saveReceipt(t, repo, "2025-01-05")
	if err := p.SyncOne(ctx, id); err != nil {
		t.Fatalf("sync one: %v", err)
	}

	got, err := repo.GetReceipt(ctx, id)
	if err != nil || got.SyncStatus != storage.SyncStatusSynced {
		t.Fatalf("receipt = %+v, err=%v", got, err)
	}

	// Duplicate delivery is a no-op.
	if err := p.SyncOne(ctx, id); err != nil {
		t.Errorf("second sync: %v", err)
	}
}

func TestSyncOneUnknownReceipt(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	if err := p.SyncOne(context.Background(), "no-such-id"); err == nil {
		t.Error("unknown receipt should fail")
	}
}

func TestSyncProcessorLifecycle(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	ctx := context.Background()

	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}
	if err := p.Stop(ctx); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !p.IsRunning() {
		t.Error("processor should be running after Start")
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}
