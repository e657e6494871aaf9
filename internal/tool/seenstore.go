package tool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SeenStore is a durable key-set recording article ids the RSS tool has
// already returned, so each execution reports only unseen stories.
type SeenStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSeenStore(dbPath string, logger *slog.Logger) (*SeenStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create data directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open seen store: %w", err)
	}

	// Single connection: concurrent tool executions serialize here, so
	// the read-modify-write of the seen set cannot race.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SeenStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seen store migration failed: %w", err)
	}

	return store, nil
}

func (s *SeenStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_articles (
		id          TEXT PRIMARY KEY,
		first_seen  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Contains reports whether an article id has been returned before.
func (s *SeenStore) Contains(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_articles WHERE id = ?`, id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkSeen records article ids in one transaction. Already-recorded ids
// are ignored.
func (s *SeenStore) MarkSeen(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO seen_articles (id, first_seen) VALUES (?, ?)`, id, now,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SeenStore) Close() error {
	return s.db.Close()
}
