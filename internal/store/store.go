// Package store implements the reference SQLite evidence store.
// It backs the full-text, vector, and graph candidate generators with
// one database: an evidence table with metadata columns, an FTS5 index
// over content, a JSON-encoded embedding table, and an edge table for
// graph traversal.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"contextkit/internal/logging"
)

// Record is one stored evidence unit.
type Record struct {
	ID          string
	Content     string
	Source      string
	CreatedAt   time.Time
	AccessCount int
	Importance  float64
	Trust       float64
	Sensitivity string
}

// Edge links two evidence records in the graph table.
type Edge struct {
	From     string
	To       string
	Relation string
}

// Store wraps the SQLite database. Safe for concurrent use; the
// connection pool is capped at one writer per the WAL setup below.
type Store struct {
	db   *sql.DB
	path string
	log  *zap.Logger
}

// Open initializes the database at path, creating the schema if
// needed. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.Get(logging.CategoryStore).Debug("pragma failed",
				zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, path: path, log: logging.Get(logging.CategoryStore)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS evidence (
			id           TEXT PRIMARY KEY,
			content      TEXT NOT NULL,
			source       TEXT NOT NULL,
			created_at   INTEGER NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0,
			importance   REAL NOT NULL DEFAULT 0.5,
			trust        REAL NOT NULL DEFAULT 0.5,
			sensitivity  TEXT NOT NULL DEFAULT 'internal'
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS evidence_fts USING fts5(
			id UNINDEXED, content
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			id     TEXT PRIMARY KEY REFERENCES evidence(id),
			vector TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			src      TEXT NOT NULL,
			dst      TEXT NOT NULL,
			relation TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (src, dst, relation)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_source ON evidence(source)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces an evidence record and its FTS row.
func (s *Store) Put(ctx context.Context, rec Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO evidence
		 (id, content, source, created_at, access_count, importance, trust, sensitivity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Content, rec.Source, rec.CreatedAt.UnixMilli(),
		rec.AccessCount, rec.Importance, rec.Trust, rec.Sensitivity,
	); err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM evidence_fts WHERE id = ?`, rec.ID); err != nil {
		return fmt.Errorf("refresh fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO evidence_fts (id, content) VALUES (?, ?)`,
		rec.ID, rec.Content); err != nil {
		return fmt.Errorf("index fts: %w", err)
	}
	return tx.Commit()
}

// PutEmbedding stores the embedding vector for an evidence record as a
// JSON float array.
func (s *Store) PutEmbedding(ctx context.Context, id string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (id, vector) VALUES (?, ?)`,
		id, string(data))
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

// PutEdge records a directed relation between two evidence records.
func (s *Store) PutEdge(ctx context.Context, e Edge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO edges (src, dst, relation) VALUES (?, ?, ?)`,
		e.From, e.To, e.Relation)
	if err != nil {
		return fmt.Errorf("store edge: %w", err)
	}
	return nil
}

// SearchText runs an FTS5 match over evidence content, best matches
// first.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]Record, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.content, e.source, e.created_at, e.access_count,
		        e.importance, e.trust, e.sensitivity
		 FROM evidence_fts f
		 JOIN evidence e ON e.id = f.id
		 WHERE evidence_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`, ftsQuote(query), limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SearchVector ranks all stored embeddings by cosine similarity to the
// query vector and returns the top records. The scan is linear; the
// reference store is not meant for million-row corpora.
func (s *Store) SearchVector(ctx context.Context, query []float32, limit int) ([]Record, error) {
	if len(query) == 0 || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	type scored struct {
		id  string
		sim float64
	}
	var matches []scored
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			s.log.Warn("skipping malformed embedding", zap.String("id", id))
			continue
		}
		if sim, ok := cosineSimilarity(query, vec); ok {
			matches = append(matches, scored{id: id, sim: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].sim > matches[j].sim })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]Record, 0, len(matches))
	for _, m := range matches {
		rec, err := s.Get(ctx, m.id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Neighbors walks the edge table breadth-first from the seed IDs up to
// the given depth and returns the reached records, seeds excluded.
func (s *Store) Neighbors(ctx context.Context, seeds []string, depth, limit int) ([]Record, error) {
	if len(seeds) == 0 || depth <= 0 || limit <= 0 {
		return nil, nil
	}

	visited := make(map[string]bool, len(seeds))
	for _, id := range seeds {
		visited[id] = true
	}

	frontier := append([]string(nil), seeds...)
	var reached []string
	for d := 0; d < depth && len(frontier) > 0 && len(reached) < limit; d++ {
		var next []string
		for _, id := range frontier {
			rows, err := s.db.QueryContext(ctx,
				`SELECT dst FROM edges WHERE src = ?
				 UNION SELECT src FROM edges WHERE dst = ?`, id, id)
			if err != nil {
				return nil, fmt.Errorf("walk edges: %w", err)
			}
			for rows.Next() {
				var n string
				if err := rows.Scan(&n); err != nil {
					rows.Close()
					return nil, err
				}
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
					reached = append(reached, n)
				}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			rows.Close()
		}
		frontier = next
	}

	if len(reached) > limit {
		reached = reached[:limit]
	}
	out := make([]Record, 0, len(reached))
	for _, id := range reached {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Get returns one record by ID, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, source, created_at, access_count,
		        importance, trust, sensitivity
		 FROM evidence WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return &rec, nil
}

// TouchAccess increments the access counter used by the frequency
// signal.
func (s *Store) TouchAccess(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE evidence SET access_count = access_count + 1 WHERE id = ?`, id)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var createdMilli int64
	err := row.Scan(&rec.ID, &rec.Content, &rec.Source, &createdMilli,
		&rec.AccessCount, &rec.Importance, &rec.Trust, &rec.Sensitivity)
	if err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.UnixMilli(createdMilli).UTC()
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ftsQuote wraps each query term in double quotes so FTS5 treats user
// input as plain terms rather than match syntax.
func ftsQuote(query string) string {
	terms := ""
	for _, f := range splitTerms(query) {
		if terms != "" {
			terms += " "
		}
		terms += `"` + f + `"`
	}
	return terms
}

func splitTerms(s string) []string {
	var terms []string
	cur := make([]rune, 0, 16)
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '"' || r == '\'' {
			if len(cur) > 0 {
				terms = append(terms, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		terms = append(terms, string(cur))
	}
	return terms
}

// cosineSimilarity returns similarity in [-1,1]; ok is false when the
// dimensions differ or either vector is zero.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
