// Package state keeps small pieces of runtime state in a sqlite database,
// currently the prompt input history used by the composer.
package state

import (
	"database/sql"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const dbFilename = "history.db"

type DB struct {
	conn *sql.DB
}

// Open connects to <dataDir>/history.db, creating the schema on first use.
func Open(dataDir string) (*DB, error) {
	return Connect(filepath.Join(dataDir, dbFilename))
}

func Connect(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrate(conn); err != nil {
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS input_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER,
		content TEXT,
		created_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_input_history_chat ON input_history (chat_id, id);`
	_, err := db.Exec(schema)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}
