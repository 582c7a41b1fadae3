package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

// SQLiteStore implements Store on a single SQLite table holding each entry as a JSON document.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex // serialises writers
	logger *slog.Logger
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logger.Info("opened entry store", "path", dbPath)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		body TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(type);
	CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(status);
	`
	_, err := db.Exec(schema)
	return err
}

// Put inserts or replaces an entry, enforcing version monotonicity inside a transaction.
func (s *SQLiteStore) Put(ctx context.Context, entry models.Entry) error {
	if err := entry.Check(); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("put: marshaling entry %s: %w", entry.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put: beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := getTx(ctx, tx, entry.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("put: %w", err)
	}
	if err := CheckReplace(stored, &entry); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (id, type, status, version, body, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   type = excluded.type,
		   status = excluded.status,
		   version = excluded.version,
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		entry.ID, string(entry.Type), string(entry.Status), entry.Version, string(body), entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put: writing entry %s: %w", entry.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put: committing entry %s: %w", entry.ID, err)
	}
	s.logger.Debug("stored entry", "id", entry.ID, "version", entry.Version, "status", entry.Status)
	return nil
}

func getTx(ctx context.Context, tx *sql.Tx, id string) (*models.Entry, error) {
	var body string
	err := tx.QueryRowContext(ctx, `SELECT body FROM entries WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", id, err)
	}
	return decodeBody(id, body)
}

// Get retrieves a single entry by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Entry, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM entries WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", id, err)
	}
	return decodeBody(id, body)
}

// List returns entries matching filters with cursor-based pagination.
// Type and status are narrowed in SQL; the remaining filters run in memory.
func (s *SQLiteStore) List(ctx context.Context, filters *Filters, limit uint64, cursor string) ([]models.Entry, string, error) {
	var (
		where []string
		args  []any
	)
	if filters != nil && filters.Type != nil {
		where = append(where, "type = ?")
		args = append(args, string(*filters.Type))
	}
	if filters != nil && filters.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filters.Status))
	}
	query := `SELECT id, body FROM entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	all, err := s.scan(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("list: %w", err)
	}

	matched := all[:0]
	for i := range all {
		if filters.Match(&all[i]) {
			matched = append(matched, all[i])
		}
	}
	page, next := Paginate(matched, limit, cursor)
	return page, next, nil
}

// All returns every stored entry, deprecated ones included, ordered by ID.
func (s *SQLiteStore) All(ctx context.Context) ([]models.Entry, error) {
	return s.scan(ctx, `SELECT id, body FROM entries ORDER BY id`)
}

func (s *SQLiteStore) scan(ctx context.Context, query string, args ...any) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Entry
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e, err := decodeBody(id, body)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stats returns corpus statistics computed over every stored entry.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.CorpusStats, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	stats := NewStats()
	for i := range all {
		AddToStats(stats, &all[i])
	}
	return stats, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decodeBody(id, body string) (*models.Entry, error) {
	var e models.Entry
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return nil, fmt.Errorf("decoding entry %s: %w", id, err)
	}
	return &e, nil
}
