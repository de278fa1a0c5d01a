// Package storage persists receipts and users in SQLite. Receipts are
// written here first and synced to the spreadsheet asynchronously.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ricevute/internal/core"
)

const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusError   = "error"
)

var ErrNotFound = errors.New("not found")

// StoredReceipt is a receipt row with its persistence metadata.
type StoredReceipt struct {
	ID         string       `json:"id"`
	Receipt    core.Receipt `json:"receipt"`
	OCRText    string       `json:"-"`
	SyncStatus string       `json:"syncStatus"`
	SyncError  string       `json:"syncError,omitempty"`
	Version    int64        `json:"version"`
	CreatedAt  time.Time    `json:"createdAt"`
	SyncedAt   *time.Time   `json:"syncedAt,omitempty"`
}

// User is an account allowed to use the tool.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// The sqlite driver serializes writes; a single connection avoids
	// database-locked errors and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const receiptColumns = `id, date, store_name, payer, amount_excl_tax_cents,
	amount_incl_tax_cents, tax_cents, payment_method, expense_category,
	project_name, notes, receipt_image_url, ocr_text, sync_status,
	sync_error, version, created_at, synced_at`

// SaveReceipt stores a reviewed receipt as pending sync and returns its id.
func (r *SQLiteRepository) SaveReceipt(ctx context.Context, rec core.Receipt, ocrText string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO receipts (
			id, date, store_name, payer, amount_excl_tax_cents,
			amount_incl_tax_cents, tax_cents, payment_method,
			expense_category, project_name, notes, receipt_image_url, ocr_text
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Date, rec.StoreName, rec.Payer,
		centsOrNull(rec.AmountExclTax), centsOrNull(rec.AmountInclTax), centsOrNull(rec.Tax),
		rec.PaymentMethod, rec.ExpenseCategory, rec.ProjectName,
		rec.Notes, rec.ReceiptImageURL, ocrText)
	if err != nil {
		return "", fmt.Errorf("insert receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt saved",
		"id", id,
		"date", rec.Date,
		"store", rec.StoreName)

	return id, nil
}

// GetReceipt retrieves one receipt by id.
func (r *SQLiteRepository) GetReceipt(ctx context.Context, id string) (*StoredReceipt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)
	rec, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("receipt %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	return rec, nil
}

// ListReceiptsByMonth returns up to limit receipts whose date falls in the
// given YYYY-MM month, newest first.
func (r *SQLiteRepository) ListReceiptsByMonth(ctx context.Context, month string, limit int) ([]StoredReceipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts
		 WHERE date LIKE ? ORDER BY date DESC, created_at DESC LIMIT ?`,
		month+"-%", limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts by month: %w", err)
	}
	defer rows.Close()
	return collectReceipts(rows)
}

// GetPendingSyncReceipts returns receipts awaiting spreadsheet sync,
// oldest first.
func (r *SQLiteRepository) GetPendingSyncReceipts(ctx context.Context, limit int) ([]StoredReceipt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts
		 WHERE sync_status = ? ORDER BY created_at ASC, rowid ASC LIMIT ?`,
		SyncStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync receipts: %w", err)
	}
	defer rows.Close()
	return collectReceipts(rows)
}

// MarkSynced marks a receipt as successfully written to the spreadsheet.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE receipts
		SET sync_status = ?, sync_error = '', synced_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		SyncStatusSynced, id)
	if err != nil {
		return fmt.Errorf("mark receipt synced: %w", err)
	}
	slog.InfoContext(ctx, "Receipt marked as synced", "id", id)
	return nil
}

// MarkSyncError records a sync failure so the receipt can be retried or
// inspected later.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE receipts SET sync_status = ?, sync_error = ? WHERE id = ?`,
		SyncStatusError, message, id)
	if err != nil {
		return fmt.Errorf("mark receipt sync error: %w", err)
	}
	slog.WarnContext(ctx, "Receipt marked with sync error", "id", id, "sync_error", message)
	return nil
}

// RequeueSyncErrors flips errored receipts back to pending for a retry.
func (r *SQLiteRepository) RequeueSyncErrors(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE receipts SET sync_status = ? WHERE sync_status = ?`,
		SyncStatusPending, SyncStatusError)
	if err != nil {
		return 0, fmt.Errorf("requeue sync errors: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue sync errors: %w", err)
	}
	return n, nil
}

// CreateUser inserts a user with an already-hashed password.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash, role string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role) VALUES (?, ?, ?, ?)`,
		id, username, passwordHash, role)
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// GetUserByUsername retrieves a user for login.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CountUsers reports how many users exist, used by the admin bootstrap.
func (r *SQLiteRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*StoredReceipt, error) {
	var (
		rec      StoredReceipt
		excl     sql.NullInt64
		incl     sql.NullInt64
		tax      sql.NullInt64
		syncedAt sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.Receipt.Date, &rec.Receipt.StoreName, &rec.Receipt.Payer,
		&excl, &incl, &tax,
		&rec.Receipt.PaymentMethod, &rec.Receipt.ExpenseCategory,
		&rec.Receipt.ProjectName, &rec.Receipt.Notes, &rec.Receipt.ReceiptImageURL,
		&rec.OCRText, &rec.SyncStatus, &rec.SyncError, &rec.Version,
		&rec.CreatedAt, &syncedAt)
	if err != nil {
		return nil, err
	}
	rec.Receipt.AmountExclTax = moneyFromNull(excl)
	rec.Receipt.AmountInclTax = moneyFromNull(incl)
	rec.Receipt.Tax = moneyFromNull(tax)
	if syncedAt.Valid {
		t := syncedAt.Time
		rec.SyncedAt = &t
	}
	return &rec, nil
}

func collectReceipts(rows *sql.Rows) ([]StoredReceipt, error) {
	var out []StoredReceipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return out, nil
}

func centsOrNull(m *core.Money) any {
	if m == nil {
		return nil
	}
	return m.Cents
}

func moneyFromNull(v sql.NullInt64) *core.Money {
	if !v.Valid {
		return nil
	}
	return &core.Money{Cents: v.Int64}
}
