// Package localstore persists the latest known Document snapshot and a small
// set of client-side key/value state (session token, edit flag, active tab)
// in a SQLite database inside the data directory. Writes are synchronous and
// durable; the store survives process restarts.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/tonimelisma/dashsync/internal/document"
)

// DBFile is the database file name inside the data directory.
const DBFile = "dashsync.db"

// dirPerms restricts the data directory to the owner.
const dirPerms = 0o700

const (
	sqlLoadSnapshot = `SELECT body, version FROM snapshot WHERE id = 1`

	sqlUpsertSnapshot = `INSERT INTO snapshot (id, body, version, saved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		 body = excluded.body,
		 version = excluded.version,
		 saved_at = excluded.saved_at`

	sqlDeleteSnapshot = `DELETE FROM snapshot`
)

// Store is the client-side persistence for one data directory. Safe for
// concurrent use; the underlying pool holds a single connection so writes
// serialize.
type Store struct {
	db      *sql.DB
	path    string
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if needed) the store in dataDir and applies pending
// migrations.
func Open(ctx context.Context, dataDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dataDir, dirPerms); err != nil {
		return nil, fmt.Errorf("localstore: creating data directory %s: %w", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, DBFile)

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("localstore: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("local store opened", slog.String("db_path", dbPath))

	return &Store{
		db:      db,
		path:    dbPath,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Save stamps doc with a fresh version and persists it as the current
// snapshot. The new version is returned and also left in doc.Version.
func (s *Store) Save(ctx context.Context, doc *document.Document) (string, error) {
	if doc == nil {
		return "", errors.New("localstore: cannot save nil document")
	}

	now := s.nowFunc()
	version := document.Stamp(doc, now)

	body, err := document.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("localstore: encoding snapshot: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlUpsertSnapshot, string(body), version, now.UnixMilli()); err != nil {
		return "", fmt.Errorf("localstore: saving snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		slog.String("version", version),
		slog.Int("bytes", len(body)),
	)

	return version, nil
}

// Load returns the persisted snapshot. It returns (nil, nil) both when no
// snapshot exists and when the stored content cannot be decoded; callers
// treat either as "no local data". Only database failures are errors.
func (s *Store) Load(ctx context.Context) (*document.Document, error) {
	var body, version string

	err := s.db.QueryRowContext(ctx, sqlLoadSnapshot).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil document = no local data
	}

	if err != nil {
		return nil, fmt.Errorf("localstore: loading snapshot: %w", err)
	}

	doc, err := document.Unmarshal([]byte(body))
	if err != nil {
		s.logger.Warn("discarding malformed local snapshot",
			slog.String("version", version),
			slog.String("error", err.Error()),
		)

		return nil, nil //nolint:nilnil // malformed snapshot degrades to no local data
	}

	if doc.Version == "" {
		doc.Version = version
	}

	return doc, nil
}

// Clear removes the persisted snapshot.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqlDeleteSnapshot); err != nil {
		return fmt.Errorf("localstore: clearing snapshot: %w", err)
	}

	return nil
}
