package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultSQLiteTable = "seen_entries"

// SQLiteStore persists seen entry keys per feed so scheduled runs only emit
// new entries.
type SQLiteStore struct {
	db    *sql.DB
	table string
	ttl   time.Duration
}

func NewSQLiteStore(dsn string, table string, ttl time.Duration) (*SQLiteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("sqlite ttl must be >= 0")
	}
	if table == "" {
		table = defaultSQLiteTable
	}
	if !sqliteIdentifierPattern.MatchString(table) {
		return nil, fmt.Errorf("sqlite table name %q must match %s", table, sqliteIdentifierPattern.String())
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db, table: table, ttl: ttl}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) HasSeen(ctx context.Context, feedURL, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	var seenAt time.Time
	query := fmt.Sprintf(`SELECT seen_at FROM "%s" WHERE feed_url = ? AND entry_key = ?`, s.table)
	err := s.db.QueryRowContext(ctx, query, feedURL, key).Scan(&seenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen entry: %w", err)
	}
	if s.ttl > 0 && seenAt.Before(time.Now().UTC().Add(-s.ttl)) {
		return false, nil
	}
	return true, nil
}

// MarkSeen records keys in one transaction and prunes rows older than the
// ttl.
func (s *SQLiteStore) MarkSeen(ctx context.Context, feedURL string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO "%s" (feed_url, entry_key, seen_at) VALUES (?, ?, ?)
		ON CONFLICT(feed_url, entry_key) DO UPDATE SET seen_at = excluded.seen_at`, s.table))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, feedURL, key, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("mark seen entry: %w", err)
		}
	}
	if s.ttl > 0 {
		prune := fmt.Sprintf(`DELETE FROM "%s" WHERE seen_at < ?`, s.table)
		if _, err := tx.ExecContext(ctx, prune, now.Add(-s.ttl)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("prune seen entries: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (
		feed_url TEXT NOT NULL,
		entry_key TEXT NOT NULL,
		seen_at TIMESTAMP NOT NULL,
		PRIMARY KEY (feed_url, entry_key)
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sqlite table: %w", err)
	}
	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_seen_at_idx" ON "%s" (seen_at)`, s.table, s.table)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create sqlite index: %w", err)
	}
	return nil
}

func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") {
		dsn = strings.TrimPrefix(dsn, "file:")
		if idx := strings.IndexRune(dsn, '?'); idx >= 0 {
			dsn = dsn[:idx]
		}
	}
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var sqliteIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
