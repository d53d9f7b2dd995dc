// Package index defines the knowledge-index contract the agent syncs
// conversation pairs into and retrieves exemplars from, along with three
// backends: a Pinecone REST client, a local SQLite index, and a
// Postgres/pgvector index.
//
// The agent treats every backend as best-effort: upserts may partially
// fail and queries may return nothing, and neither aborts a turn.
package index

import "context"

// Record is one upsert-able vector with its retrievable metadata.
type Record struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// Match is one query result.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// Index is the vector-index collaborator contract.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float64, topK int) ([]Match, error)
}
