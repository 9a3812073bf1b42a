// Package journal keeps a SQLite history of generations and session-state
// snapshots.
package journal

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"llamactx/internal/common/fsutil"
	"llamactx/internal/engine"
	"llamactx/pkg/types"
)

// SchemaVersion is the current on-disk layout.
const SchemaVersion = "1"

// Snapshot operations.
const (
	OpPersist = "persist"
	OpRestore = "restore"
)

// CompletionRecord describes one finished generation.
type CompletionRecord struct {
	RequestID string
	ContextID int
	Model     string
	Prompt    string
	Result    engine.CompletionResult
	Err       string
	Duration  time.Duration
	CreatedAt time.Time
}

// StateRecord describes one persist or restore of session state.
type StateRecord struct {
	ContextID int
	Model     string
	Op        string
	Path      string
	Tokens    int
	CreatedAt time.Time
}

// Journal is a SQLite-backed history store.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the journal at path. A leading '~' is expanded and
// missing parent directories are created; ":memory:" opens a private
// in-memory journal.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		p, err := fsutil.ExpandHome(path)
		if err != nil {
			return nil, err
		}
		if err := fsutil.EnsureParentDir(p); err != nil {
			return nil, err
		}
		path = p
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS completions (
			request_id TEXT PRIMARY KEY,
			context_id INTEGER NOT NULL,
			model TEXT NOT NULL,
			prompt_hash TEXT NOT NULL,
			tokens_predicted INTEGER NOT NULL,
			tokens_evaluated INTEGER NOT NULL,
			stopped_early INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL,
			created_unix INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS states (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			context_id INTEGER NOT NULL,
			model TEXT NOT NULL,
			op TEXT NOT NULL,
			path TEXT NOT NULL,
			tokens INTEGER NOT NULL,
			created_unix INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{db: db}
	version, err := j.metadata("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}
	switch version {
	case "":
		if err := j.setMetadata("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}
	return j, nil
}

func (j *Journal) metadata(key string) (string, error) {
	var value string
	err := j.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (j *Journal) setMetadata(key, value string) error {
	_, err := j.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// PromptHash returns the hex SHA-256 of the NFC-normalised prompt, so
// canonically equal prompts hash identically.
func PromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(norm.NFC.String(prompt)))
	return hex.EncodeToString(sum[:])
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RecordCompletion stores rec. Prompts are kept only as a hash.
func (j *Journal) RecordCompletion(rec CompletionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := j.db.Exec(`
		INSERT INTO completions (request_id, context_id, model, prompt_hash, tokens_predicted,
			tokens_evaluated, stopped_early, error, duration_ms, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RequestID, rec.ContextID, rec.Model, PromptHash(rec.Prompt), rec.Result.TokensPredicted,
		rec.Result.TokensEvaluated, boolInt(rec.Result.StoppedEarly), rec.Err, rec.Duration.Milliseconds(),
		rec.CreatedAt.Unix())
	return err
}

// RecordState stores a session-state snapshot.
func (j *Journal) RecordState(rec StateRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := j.db.Exec(`
		INSERT INTO states (context_id, model, op, path, tokens, created_unix)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ContextID, rec.Model, rec.Op, rec.Path, rec.Tokens, rec.CreatedAt.Unix())
	return err
}

// Completions returns up to limit entries, newest first. limit <= 0 means 50.
func (j *Journal) Completions(limit int) ([]types.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.Query(`
		SELECT request_id, context_id, model, prompt_hash, tokens_predicted, tokens_evaluated,
			stopped_early, error, duration_ms, created_unix
		FROM completions ORDER BY created_unix DESC, request_id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.HistoryEntry
	for rows.Next() {
		var (
			e       types.HistoryEntry
			stopped int
		)
		if err := rows.Scan(&e.RequestID, &e.ContextID, &e.Model, &e.PromptHash, &e.TokensPredicted,
			&e.TokensEvaluated, &stopped, &e.Error, &e.DurationMS, &e.CreatedUnix); err != nil {
			return nil, err
		}
		e.StoppedEarly = stopped != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// States returns up to limit snapshots, newest first. limit <= 0 means 50.
func (j *Journal) States(limit int) ([]StateRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.Query(`
		SELECT context_id, model, op, path, tokens, created_unix
		FROM states ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StateRecord
	for rows.Next() {
		var (
			r  StateRecord
			ts int64
		)
		if err := rows.Scan(&r.ContextID, &r.Model, &r.Op, &r.Path, &r.Tokens, &ts); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(ts, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.db.Close()
}
