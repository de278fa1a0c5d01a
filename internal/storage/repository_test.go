package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ricevute/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleReceipt(date string) core.Receipt {
	incl := 702.0
	tax := 52.0
	return core.Receipt{
		Date:          date,
		StoreName:     "Store A",
		PaymentMethod: "cash",
		AmountInclTax: core.MoneyFromFloat(&incl),
		Tax:           core.MoneyFromFloat(&tax),
	}
}

func TestSaveAndGetReceipt(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.SaveReceipt(ctx, sampleReceipt("2025-01-15"), "raw ocr text")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.GetReceipt(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Receipt.Date != "2025-01-15" || got.Receipt.StoreName != "Store A" {
		t.Errorf("receipt = %+v", got.Receipt)
	}
	if got.Receipt.AmountInclTax == nil || got.Receipt.AmountInclTax.Cents != 70200 {
		t.Errorf("incl tax = %v", got.Receipt.AmountInclTax)
	}
	if got.Receipt.AmountExclTax != nil {
		t.Errorf("excl tax = %v, want nil round trip", got.Receipt.AmountExclTax)
	}
	if got.OCRText != "raw ocr text" {
		t.Errorf("ocr text = %q", got.OCRText)
	}
	if got.SyncStatus != SyncStatusPending {
		t.Errorf("sync status = %q, want pending", got.SyncStatus)
	}
}

func TestGetReceiptNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetReceipt(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListReceiptsByMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, date := range []string{"2025-01-05", "2025-01-20", "2025-02-01"} {
		if _, err := repo.SaveReceipt(ctx, sampleReceipt(date), ""); err != nil {
			t.Fatalf("save %s: %v", date, err)
		}
	}

	got, err := repo.ListReceiptsByMonth(ctx, "2025-01", 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d receipts, want 2", len(got))
	}
	if got[0].Receipt.Date != "2025-01-20" {
		t.Errorf("first = %s, want newest first", got[0].Receipt.Date)
	}

	got, err = repo.ListReceiptsByMonth(ctx, "2025-01", 1)
	if err != nil || len(got) != 1 {
		t.Errorf("limited list: %d receipts, err=%v", len(got), err)
	}
}

func TestSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	okID, err := repo.SaveReceipt(ctx, sampleReceipt("2025-01-05"), "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	badID, err := repo.SaveReceipt(ctx, sampleReceipt("2025-01-06"), "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	pending, err := repo.GetPendingSyncReceipts(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending = %d, err=%v", len(pending), err)
	}
	if pending[0].ID != okID {
		t.Errorf("pending order: got %s first, want oldest %s", pending[0].ID, okID)
	}

	if err := repo.MarkSynced(ctx, okID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, badID, "append failed"); err != nil {
		t.Fatalf("mark error: %v", err)
	}

	pending, err = repo.GetPendingSyncReceipts(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending after marks = %d, err=%v", len(pending), err)
	}

	got, err := repo.GetReceipt(ctx, okID)
	if err != nil || got.SyncStatus != SyncStatusSynced || got.SyncedAt == nil {
		t.Errorf("synced receipt = %+v, err=%v", got, err)
	}
	got, err = repo.GetReceipt(ctx, badID)
	if err != nil || got.SyncStatus != SyncStatusError || got.SyncError != "append failed" {
		t.Errorf("errored receipt = %+v, err=%v", got, err)
	}

	n, err := repo.RequeueSyncErrors(ctx)
	if err != nil || n != 1 {
		t.Fatalf("requeue = %d, err=%v", n, err)
	}
	pending, err = repo.GetPendingSyncReceipts(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != badID {
		t.Errorf("pending after requeue = %+v, err=%v", pending, err)
	}
}

func TestUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.CountUsers(ctx)
	if err != nil || n != 0 {
		t.Fatalf("count = %d, err=%v", n, err)
	}

	id, err := repo.CreateUser(ctx, "admin", "hashed", "admin")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := repo.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.ID != id || u.PasswordHash != "hashed" || u.Role != "admin" {
		t.Errorf("user = %+v", u)
	}

	if _, err := repo.CreateUser(ctx, "admin", "other", "admin"); err == nil {
		t.Error("duplicate username should fail")
	}

	if _, err := repo.GetUserByUsername(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
