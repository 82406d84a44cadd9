package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed Recorder. Events are appended to a single
// events table; cost and performance tooling reads them from there.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// OpenStore opens (or creates) the telemetry database at the given path.
// WAL mode is enabled so external readers do not block the dispatcher.
func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(schemaEvents); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

const schemaEvents = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	task_id TEXT NOT NULL,
	capability TEXT NOT NULL,
	success INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	tokens_used INTEGER NOT NULL,
	error TEXT,
	metadata TEXT,
	created_at DATETIME NOT NULL
)`

// Record implements Recorder. Insert failures are logged, not returned;
// telemetry must never fail a dispatch.
func (s *Store) Record(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var metadata []byte
	if len(event.Metadata) > 0 {
		metadata, _ = json.Marshal(event.Metadata)
	}

	_, err := s.conn.Exec(`
		INSERT INTO events (kind, task_id, capability, success, duration_ms, tokens_used, error, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(event.Kind), event.TaskID, event.Capability, boolToInt(event.Success),
		event.Duration.Milliseconds(), event.TokensUsed, event.Error, string(metadata), ts.UTC(),
	)
	if err != nil {
		log.Printf("[telemetry] record event failed: %v", err)
	}
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(`
		SELECT kind, task_id, capability, success, duration_ms, tokens_used, error, metadata, created_at
		FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e          Event
			kind       string
			success    int
			durationMS int64
			errMsg     sql.NullString
			metadata   sql.NullString
		)
		if err := rows.Scan(&kind, &e.TaskID, &e.Capability, &success, &durationMS, &e.TokensUsed, &errMsg, &metadata, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		e.Success = success != 0
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.Error = errMsg.String
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &e.Metadata)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountsByCapability returns event counts grouped by capability kind.
func (s *Store) CountsByCapability() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(`SELECT capability, COUNT(*) FROM events GROUP BY capability`)
	if err != nil {
		return nil, fmt.Errorf("query capability counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var capability string
		var n int
		if err := rows.Scan(&capability, &n); err != nil {
			return nil, fmt.Errorf("scan capability count: %w", err)
		}
		counts[capability] = n
	}
	return counts, rows.Err()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the telemetry database file.
func (s *Store) Path() string {
	return s.path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Verify Store implements Recorder at compile time.
var _ Recorder = (*Store)(nil)
