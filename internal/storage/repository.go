package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"paytrack/internal/core"
	"paytrack/internal/ledger"

	_ "modernc.org/sqlite"
)

// Ensure SQLiteRepository implements ledger.PaymentStore
var _ ledger.PaymentStore = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
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

// Create inserts a payment and returns the id assigned by SQLite.
func (r *SQLiteRepository) Create(ctx context.Context, p core.Payment) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO payments (amount, recipient, date, notes, receipt) VALUES (?, ?, ?, ?, ?)",
		p.Amount, p.Recipient, p.Date.ISO(), p.Notes, p.Receipt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved to SQLite",
		"id", id,
		"recipient", p.Recipient,
		"amount", p.Amount,
		"date", p.Date.ISO())

	return id, nil
}

// Get retrieves a single payment by id.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, amount, recipient, date, notes, receipt FROM payments WHERE id = ?", id)

	p, err := scanPayment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("get payment %d: %w", id, err)
	}
	return p, nil
}

// Update overwrites all mutable fields of an existing payment.
func (r *SQLiteRepository) Update(ctx context.Context, p core.Payment) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE payments SET amount = ?, recipient = ?, date = ?, notes = ?, receipt = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		p.Amount, p.Recipient, p.Date.ISO(), p.Notes, p.Receipt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment %d: %w", p.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment %d: rows affected: %w", p.ID, err)
	}
	if affected == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// Delete removes a payment row. The caller is responsible for the receipt file.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete payment %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payment %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return ledger.ErrNotFound
	}

	slog.InfoContext(ctx, "Payment deleted from SQLite", "id", id)
	return nil
}

// List returns every payment, newest date first, ties broken by newest id.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Payment, error) {
	var payments []core.Payment
	err := r.ForEach(ctx, func(p core.Payment) error {
		payments = append(payments, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ForEach streams payments in list order, one row at a time.
func (r *SQLiteRepository) ForEach(ctx context.Context, fn func(core.Payment) error) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, amount, recipient, date, notes, receipt FROM payments ORDER BY date DESC, id DESC")
	if err != nil {
		return fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate payments: %w", err)
	}
	return nil
}

func scanPayment(scan func(dest ...any) error) (core.Payment, error) {
	var (
		p       core.Payment
		dateStr string
	)
	if err := scan(&p.ID, &p.Amount, &p.Recipient, &dateStr, &p.Notes, &p.Receipt); err != nil {
		return core.Payment{}, err
	}

	date, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Payment{}, fmt.Errorf("stored date %q: %w", dateStr, err)
	}
	p.Date = date
	return p, nil
}
