package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"omniterm/config"
)

// Store is the sqlite-backed repository for conversation transcripts,
// rolling summaries, the contact/group directory, world books, and small
// settings blobs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database under dataDir and applies the
// schema.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "omniterm.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Transcript appends come from concurrent pipelines; serialize writers
	// at the driver level.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[storage] opened database at %s", dbPath)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		sender_id TEXT NOT NULL DEFAULT '',
		sender_name TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages(conversation_id, seq);

	CREATE TABLE IF NOT EXISTS summaries (
		conversation_id TEXT PRIMARY KEY,
		content TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		personality TEXT NOT NULL DEFAULT '',
		level INTEGER NOT NULL DEFAULT 1,
		language TEXT NOT NULL DEFAULT 'auto'
	);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		notice TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL DEFAULT '',
		members TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS worlds (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
