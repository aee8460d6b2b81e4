package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/daybook/daybook/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
//
// The pool holds a single connection: SQLite accepts one writer at a time,
// and a single connection keeps ":memory:" databases shared across calls.
type SQLiteStore struct {
	db     *sql.DB
	closed bool
	repos
}

// Options configures NewSQLiteStore.
type Options struct {
	// SkipMigrations opens the database without applying pending migrations.
	SkipMigrations bool
}

// NewSQLiteStore creates a new SQLite-backed store.
// The dsn can be a file path or ":memory:" for in-memory database.
func NewSQLiteStore(ctx context.Context, dsn string, opts Options) (*SQLiteStore, error) {
	connStr := dsn
	if !strings.Contains(dsn, "?") {
		connStr += "?"
	} else {
		connStr += "&"
	}
	connStr += "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_synchronous=NORMAL"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if !opts.SkipMigrations {
		if _, err := RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &SQLiteStore{db: db, repos: newRepos(db)}, nil
}

// DB exposes the underlying handle for maintenance commands.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// WithTx executes a function within a transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(TxStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(newRepos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// dbExecutor is an interface for database operations that works with both *sql.DB and *sql.Tx
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repos implements TxStore over one executor.
type repos struct {
	templates   *sqliteTemplateRepository
	recurrences *sqliteRecurrenceRepository
	links       *sqliteLinkRepository
	tasks       *sqliteTaskRepository
	timeBlocks  *sqliteTimeBlockRepository
	schedules   *sqliteScheduleRepository
	outbox      *sqliteOutboxRepository
}

func newRepos(ex dbExecutor) repos {
	return repos{
		templates:   &sqliteTemplateRepository{ex: ex},
		recurrences: &sqliteRecurrenceRepository{ex: ex},
		links:       &sqliteLinkRepository{ex: ex},
		tasks:       &sqliteTaskRepository{ex: ex},
		timeBlocks:  &sqliteTimeBlockRepository{ex: ex},
		schedules:   &sqliteScheduleRepository{ex: ex},
		outbox:      &sqliteOutboxRepository{ex: ex},
	}
}

func (r repos) Templates() TemplateRepository { return r.templates }
func (r repos) Recurrences() RecurrenceRepository { return r.recurrences }
func (r repos) Links() LinkRepository { return r.links }
func (r repos) Tasks() TaskRepository { return r.tasks }
func (r repos) TimeBlocks() TimeBlockRepository { return r.timeBlocks }
func (r repos) Schedules() ScheduleRepository { return r.schedules }
func (r repos) Outbox() OutboxRepository { return r.outbox }

// ============================================================================
// Column helpers
// ============================================================================

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDatePtr(ns sql.NullString) (*domain.Date, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := domain.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func encodeChecklist(items []domain.ChecklistItem) (string, error) {
	if items == nil {
		items = []domain.ChecklistItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode checklist: %w", err)
	}
	return string(b), nil
}

func decodeChecklist(s string) ([]domain.ChecklistItem, error) {
	var items []domain.ChecklistItem
	if s == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("failed to decode checklist: %w", err)
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// requireAffected turns an UPDATE that touched no row into ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
