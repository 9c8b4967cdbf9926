// Package store persists finished reports in a local SQLite database.
//
// The store is write-once per report: a row is inserted when a scan
// completes and never updated afterward. Report bodies are serialized to
// JSON and compressed at rest; the verdict columns are duplicated out of
// the body so history queries never have to inflate it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/pubguard/engine/pkg/compress"
	"github.com/pubguard/engine/pkg/report"
)

// ErrNotFound is returned when no report exists under the requested id.
var ErrNotFound = errors.New("report not found")

// Config configures a store.
type Config struct {
	// Path is the database file. Parent directories are created.
	Path string

	// Algorithm selects the body compression (default gzip).
	Algorithm compress.Algorithm
}

// Store is a SQLite-backed report archive. Safe for concurrent use.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	codec *compress.Codec
}

// Open opens (creating if needed) the report database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("store: empty database path")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = compress.AlgorithmGzip
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{db: db, codec: compress.NewCodec(cfg.Algorithm)}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		host TEXT NOT NULL,
		score INTEGER NOT NULL,
		light TEXT NOT NULL,
		hash TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		algorithm TEXT NOT NULL,
		body BLOB NOT NULL,
		body_size INTEGER NOT NULL,
		stored_size INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reports_target ON reports(owner, name);
	CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON reports(generated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save archives a finished report and returns its id. Reports are
// immutable; saving the same id twice is an error.
func (s *Store) Save(ctx context.Context, rep *report.PubGuardReport) (string, error) {
	if rep == nil || rep.ID == "" {
		return "", errors.New("store: nil or unidentified report")
	}
	if rep.Target == nil {
		return "", errors.New("store: report has no target")
	}

	body, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	stored, algo, err := s.codec.Encode(body)
	if err != nil {
		return "", fmt.Errorf("compress report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (
			id, owner, name, host, score, light, hash,
			generated_at, algorithm, body, body_size, stored_size
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rep.ID, rep.Target.Owner, rep.Target.Name, string(rep.Target.Host),
		rep.OverallScore, string(rep.TrafficLight), rep.Hash,
		rep.GeneratedAt, string(algo), stored, len(body), len(stored),
	)
	if err != nil {
		return "", fmt.Errorf("save report %s: %w", rep.ID, err)
	}
	return rep.ID, nil
}

// Get loads a report by id. Returns ErrNotFound when no row exists.
func (s *Store) Get(ctx context.Context, id string) (*report.PubGuardReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		algo string
		data []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT algorithm, body FROM reports WHERE id = ?
	`, id).Scan(&algo, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", id, err)
	}

	body, err := s.codec.Decode(data, compress.Algorithm(algo))
	if err != nil {
		return nil, fmt.Errorf("decompress report %s: %w", id, err)
	}

	var rep report.PubGuardReport
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &rep, nil
}

// Summary is one history row: the verdict without the body.
type Summary struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	Score       int       `json:"score"`
	Light       string    `json:"light"`
	Hash        string    `json:"hash"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// History returns past verdicts for a target, newest first.
func (s *Store) History(ctx context.Context, owner, name string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, name, score, light, hash, generated_at
		FROM reports
		WHERE owner = ? AND name = ?
		ORDER BY generated_at DESC
		LIMIT ?
	`, owner, name, limit)
	if err != nil {
		return nil, fmt.Errorf("report history: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Owner, &sum.Name, &sum.Score,
			&sum.Light, &sum.Hash, &sum.GeneratedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Prune deletes reports generated before the retention window and
// returns the number removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM reports WHERE generated_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
