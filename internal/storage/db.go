package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	conn *sql.DB
	path string
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, path: path}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  kind TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  errorText TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_createdAt ON runs(createdAt);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  taskNumber TEXT NOT NULL,
  docType TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  startDate TEXT,
  endDate TEXT,
  totalAmount REAL NOT NULL DEFAULT 0,
  servicesJson TEXT NOT NULL,
  filePath TEXT,
  notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_documents_taskNumber ON documents(taskNumber);
CREATE INDEX IF NOT EXISTS idx_documents_createdAt ON documents(createdAt);

CREATE TABLE IF NOT EXISTS document_services (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId INTEGER NOT NULL,
  code INTEGER NOT NULL,
  description TEXT,
  amount REAL NOT NULL,
  FOREIGN KEY(documentId) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS mails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  taskNumber TEXT NOT NULL,
  template TEXT NOT NULL,
  subject TEXT,
  provider TEXT NOT NULL,
  ref TEXT NOT NULL,
  hash TEXT NOT NULL,
  rawPath TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, hash)
);
`

	_, err := d.conn.Exec(schema)
	return err
}

type RunRecord struct {
	ID        int64
	TraceID   string
	Kind      string
	Timings   map[string]float64
	Counts    map[string]int
	Error     string
	CreatedAt string
}

func NewTraceID() string {
	return uuid.NewString()
}

func (d *DB) InsertRun(traceID, kind string, timings map[string]float64, counts map[string]int, runErr error) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	var errText *string
	if runErr != nil {
		msg := runErr.Error()
		errText = &msg
	}
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, kind, timingsJson, countsJson, errorText) VALUES (?, ?, ?, ?, ?)`,
		traceID, kind, string(timingsJSON), string(countsJSON), errText)
	return err
}

func (d *DB) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, kind, timingsJson, countsJson, COALESCE(errorText, ''), createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var timingsJSON, countsJSON string
		if err := rows.Scan(&r.ID, &r.TraceID, &r.Kind, &timingsJSON, &countsJSON, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(timingsJSON), &r.Timings)
		_ = json.Unmarshal([]byte(countsJSON), &r.Counts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// Backup writes a consistent copy of the database to dest.
func (d *DB) Backup(dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		return os.ErrExist
	}
	_, err := d.conn.Exec(`VACUUM INTO ?`, dest)
	return err
}
