// Package signature derives a compact, stable fingerprint of the recent
// conversation tail and the retrieved exemplar set. The fingerprint is half
// of the response-cache key: the same user input under a different
// conversation context must not collide with a prior cached reply.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Turn is one conversation message considered by the fingerprint.
type Turn struct {
	Role    string
	Content string
}

// Exemplar is one retrieved (context, response) pair considered by the
// fingerprint.
type Exemplar struct {
	Context  string
	Response string
}

const (
	historyTail  = 4
	exemplarHead = 3
	turnTruncate = 120
	pairTruncate = 80
)

// payload is serialized with json.Marshal, which emits struct fields in
// declaration order. That gives the deterministic field ordering the
// fingerprint requires.
type payload struct {
	H [][2]string `json:"h"`
	R [][2]string `json:"r"`
}

// truncate limits s to n runes. Rune-based so multi-byte text (the corpus
// is Hinglish with emoji) truncates at character boundaries.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Compute returns the fixed-width hex fingerprint of the last four history
// turns and the first three exemplars, truncated as specified. Pure
// function: identical truncated inputs always yield identical output.
func Compute(history []Turn, exemplars []Exemplar) string {
	if len(history) > historyTail {
		history = history[len(history)-historyTail:]
	}
	if len(exemplars) > exemplarHead {
		exemplars = exemplars[:exemplarHead]
	}

	p := payload{
		H: make([][2]string, 0, len(history)),
		R: make([][2]string, 0, len(exemplars)),
	}
	for _, t := range history {
		role := t.Role
		if role == "" {
			role = "?"
		}
		p.H = append(p.H, [2]string{role, truncate(t.Content, turnTruncate)})
	}
	for _, e := range exemplars {
		p.R = append(p.R, [2]string{truncate(e.Context, pairTruncate), truncate(e.Response, pairTruncate)})
	}

	data, _ := json.Marshal(p)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
