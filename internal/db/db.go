package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/sideclip/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// FileName is the SQLite file created under the base directory.
const FileName = "sideclip.db"

// InboxDir is the subdirectory the image watcher ingests from.
const InboxDir = "inbox"

// Init initializes the SQLite database at baseDir/sideclip.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.sideclip.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	inbox := filepath.Join(baseDir, InboxDir)
	if err := os.MkdirAll(inbox, 0700); err != nil {
		return nil, fmt.Errorf("failed to create inbox directory: %w", err)
	}
	_ = os.Chmod(inbox, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: ledger and blob store.
	// The two tables are independent; entries.payload_ref is deliberately not a foreign key.
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS entries (
		  seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		  id           TEXT NOT NULL UNIQUE,
		  kind         TEXT NOT NULL CHECK (kind IN ('text', 'image')),
		  created_at   INTEGER NOT NULL,
		  preview      TEXT NOT NULL,
		  payload_ref  TEXT,
		  raw_text     TEXT,
		  size_bytes   INTEGER NOT NULL DEFAULT 0,
		  mime_type    TEXT,
		  source_url   TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_entries_raw_text
		ON entries(raw_text)
		WHERE kind = 'text';

		CREATE INDEX IF NOT EXISTS idx_entries_payload_ref
		ON entries(payload_ref)
		WHERE payload_ref IS NOT NULL;

		CREATE TABLE IF NOT EXISTS images (
		  seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		  id           TEXT NOT NULL UNIQUE,
		  bytes        BLOB NOT NULL,
		  size_bytes   INTEGER NOT NULL,
		  mime_type    TEXT NOT NULL,
		  source_url   TEXT NOT NULL DEFAULT '',
		  created_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_images_created
		ON images(created_at, seq);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: ledger high-water mark and change generation.
	// Single row; last_created_at survives removal of the newest entry.
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS ledger_state (
		  id               INTEGER PRIMARY KEY CHECK (id = 1),
		  last_created_at  INTEGER NOT NULL,
		  generation       INTEGER NOT NULL
		);

		INSERT OR IGNORE INTO ledger_state (id, last_created_at, generation)
		SELECT 1, COALESCE(MAX(created_at), 0), 0 FROM entries;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 3 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
