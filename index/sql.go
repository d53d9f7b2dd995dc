package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

// SQL is an Index backed by a relational database. The sqlite dialect keeps
// everything local (vectors stored as JSON, similarity computed in-process);
// the postgres dialect uses the pgvector extension and ranks matches in the
// database.
type SQL struct {
	db      *sql.DB
	dialect string
	dim     int
}

// NewSQLite opens (or creates) a local SQLite-backed index at dsn.
func NewSQLite(dsn string) (*SQL, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "versobot-index.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}
	s := &SQL{db: db, dialect: dialectSQLite}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres opens a Postgres-backed index. The target database must have
// the pgvector extension available; dim is the embedding dimensionality of
// the vector column.
func NewPostgres(dsn string, dim int) (*SQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres index: %w", err)
	}
	s := &SQL{db: db, dialect: dialectPostgres, dim: dim}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) init() error {
	var schema string
	switch s.dialect {
	case dialectSQLite:
		schema = `
CREATE TABLE IF NOT EXISTS kb_pairs (
	id TEXT PRIMARY KEY,
	vector TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '',
	response TEXT NOT NULL DEFAULT ''
);`
	case dialectPostgres:
		schema = fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS kb_pairs (
	id TEXT PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	context TEXT NOT NULL DEFAULT '',
	response TEXT NOT NULL DEFAULT ''
);`, s.dim)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate index schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQL) Close() error {
	return s.db.Close()
}

// pgVectorLiteral renders a vector in pgvector's input syntax: [1,2,3].
func pgVectorLiteral(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Upsert writes records, replacing existing rows with the same ID.
func (s *SQL) Upsert(ctx context.Context, records []Record) error {
	for _, r := range records {
		var err error
		switch s.dialect {
		case dialectSQLite:
			var encoded []byte
			encoded, err = json.Marshal(r.Values)
			if err != nil {
				return fmt.Errorf("encode vector: %w", err)
			}
			_, err = s.db.ExecContext(ctx,
				`INSERT OR REPLACE INTO kb_pairs (id, vector, context, response) VALUES (?, ?, ?, ?)`,
				r.ID, string(encoded), r.Metadata["context"], r.Metadata["response"])
		case dialectPostgres:
			_, err = s.db.ExecContext(ctx,
				`INSERT INTO kb_pairs (id, embedding, context, response) VALUES ($1, $2::vector, $3, $4)
				 ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding,
				   context = EXCLUDED.context, response = EXCLUDED.response`,
				r.ID, pgVectorLiteral(r.Values), r.Metadata["context"], r.Metadata["response"])
		}
		if err != nil {
			return fmt.Errorf("upsert record %s: %w", r.ID, err)
		}
	}
	return nil
}

// Query returns the topK most similar records by cosine similarity.
func (s *SQL) Query(ctx context.Context, vector []float64, topK int) ([]Match, error) {
	switch s.dialect {
	case dialectPostgres:
		return s.queryPostgres(ctx, vector, topK)
	default:
		return s.querySQLite(ctx, vector, topK)
	}
}

func (s *SQL) queryPostgres(ctx context.Context, vector []float64, topK int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, context, response, 1 - (embedding <=> $1::vector) AS score
		 FROM kb_pairs ORDER BY embedding <=> $1::vector LIMIT $2`,
		pgVectorLiteral(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		var m Match
		var contextText, responseText string
		if err := rows.Scan(&m.ID, &contextText, &responseText, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Metadata = map[string]string{"context": contextText, "response": responseText}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *SQL) querySQLite(ctx context.Context, vector []float64, topK int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, vector, context, response FROM kb_pairs`)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		var id, encoded, contextText, responseText string
		if err := rows.Scan(&id, &encoded, &contextText, &responseText); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var stored []float64
		if err := json.Unmarshal([]byte(encoded), &stored); err != nil {
			continue // skip rows with an unreadable vector
		}
		matches = append(matches, Match{
			ID:       id,
			Score:    CosineSimilarity(vector, stored),
			Metadata: map[string]string{"context": contextText, "response": responseText},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is empty, zero, or of mismatched length.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
