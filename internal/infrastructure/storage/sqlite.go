package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for the ledger.
// It implements the Repository interface.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	return NewStorageWithLogger(dbPath, nil)
}

// NewStorageWithLogger is NewStorage with an explicit logger for migration output
func NewStorageWithLogger(dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	s := &Storage{db: db, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Run all pending migrations
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// dsn enables foreign keys and WAL, and takes the write lock at BEGIN so
// concurrent transactions wait on busy_timeout instead of failing on upgrade.
func dsn(path string) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + params.Encode()
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests and tooling
func (s *Storage) DB() *sql.DB {
	return s.db
}

// withTx runs fn inside a transaction, rolling back on error
func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LedgerSnapshot reads bills, payments and payees in one transaction so a
// concurrent sync cannot produce a torn view
func (s *Storage) LedgerSnapshot(ctx context.Context) (*LedgerData, error) {
	data := &LedgerData{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if data.Bills, err = listBills(ctx, tx); err != nil {
			return err
		}
		if data.Payments, err = listPayments(ctx, tx, PaymentFilter{}); err != nil {
			return err
		}
		data.Payees, err = listPayees(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WipeLedger deletes all payments then all bills in one transaction
func (s *Storage) WipeLedger(ctx context.Context) (*WipeResult, error) {
	result := &WipeResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM payments`)
		if err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		result.PaymentsDeleted, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `DELETE FROM bills`)
		if err != nil {
			return fmt.Errorf("delete bills: %w", err)
		}
		result.BillsDeleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// isForeignKeyViolation reports whether err is a SQLite FOREIGN KEY failure
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// requireAffected maps "no rows updated" to ErrNotFound
func requireAffected(res sql.Result, what string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
