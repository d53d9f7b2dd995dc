// Package buffer implements the knowledge-base sync pipeline: newly
// generated (context, response) pairs accumulate in memory and are flushed
// to the vector index in batches. Flushing is best-effort by design — a
// failed embed or upsert drains the buffer just like a successful one, so
// the pipeline can never wedge the conversation loop behind a dead index.
package buffer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/verso-labs/versobot/index"
	"github.com/verso-labs/versobot/internal/logging"
	"github.com/verso-labs/versobot/internal/metrics"
	"github.com/verso-labs/versobot/providers"
)

// PassagePrefix marks stored passages for asymmetric embedding models,
// distinguishing them from query-side embeddings.
const PassagePrefix = "passage: "

// upsertChunkSize is the number of records sent per index upsert call.
const upsertChunkSize = 50

// DefaultClosingPhrases is the built-in vocabulary of conversation-ending
// phrases that force an early flush.
var DefaultClosingPhrases = []string{
	"bye", "goodbye", "see you", "good night", "gn", "take care",
	"ok", "okay", "okk", "okies", "thik hai", "tik hai", "achha", "acha",
	"thanks", "thank you", "thx", "ok bye", "ok thanks",
}

// Pair is one not-yet-synced conversation turn.
type Pair struct {
	Context  string
	Response string
}

// Pipeline accumulates pairs and flushes them in batches. Append and Flush
// are mutually exclusive, so a flush never races a concurrent append.
type Pipeline struct {
	mu        sync.Mutex
	pending   []Pair
	batchSize int
	closings  []string
	embedder  providers.Embedder
}

// New creates a Pipeline. embedder may be nil; flushes then discard their
// pairs with a warning. closingPhrases defaults to DefaultClosingPhrases
// when empty.
func New(embedder providers.Embedder, batchSize int, closingPhrases []string) *Pipeline {
	if batchSize < 1 {
		batchSize = 10
	}
	if len(closingPhrases) == 0 {
		closingPhrases = DefaultClosingPhrases
	}
	lowered := make([]string, len(closingPhrases))
	for i, phrase := range closingPhrases {
		lowered[i] = strings.ToLower(phrase)
	}
	return &Pipeline{
		batchSize: batchSize,
		closings:  lowered,
		embedder:  embedder,
	}
}

// Append queues one pair for the next flush.
func (p *Pipeline) Append(pair Pair) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, pair)
}

// Len returns the number of queued pairs.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// ShouldFlush reports whether a flush should run now: the buffer reached
// the batch threshold, or the user turn contains a closing phrase
// (case-insensitive substring match). Closing turns flush early so short
// final exchanges aren't stranded below the threshold.
func (p *Pipeline) ShouldFlush(userInput string) bool {
	p.mu.Lock()
	pending := len(p.pending)
	p.mu.Unlock()

	if pending >= p.batchSize {
		return true
	}
	lowered := strings.ToLower(userInput)
	for _, phrase := range p.closings {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// recordID derives a content-based identifier so re-upserting the same
// pair overwrites rather than duplicates.
func recordID(pair Pair) string {
	sum := sha256.Sum256([]byte(pair.Context + "::" + pair.Response))
	return hex.EncodeToString(sum[:])
}

// Flush embeds and upserts every pending pair, then clears the buffer
// regardless of outcome. A nil index or empty buffer is a no-op (still
// clears). Embedding failure discards the whole batch; a failed upsert
// chunk is skipped while the remaining chunks still attempt submission.
func (p *Pipeline) Flush(ctx context.Context, idx index.Index) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.pending
	p.pending = nil
	if len(pending) == 0 || idx == nil {
		return
	}

	log := logging.FromContext(ctx)
	if p.embedder == nil {
		log.Warn("embedder unavailable, skipping knowledge-base flush", "discarded", len(pending))
		return
	}

	texts := make([]string, len(pending))
	for i, pair := range pending {
		texts[i] = PassagePrefix + pair.Context
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(pending) {
		log.Warn("embedding failed, discarding pending pairs", "discarded", len(pending), "error", err)
		return
	}

	records := make([]index.Record, len(pending))
	for i, pair := range pending {
		records[i] = index.Record{
			ID:     recordID(pair),
			Values: vectors[i],
			Metadata: map[string]string{
				"context":  pair.Context,
				"response": pair.Response,
			},
		}
	}

	flushed := 0
	for start := 0; start < len(records); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		if err := idx.Upsert(ctx, chunk); err != nil {
			metrics.ChunksFailed.Inc()
			log.Warn("upsert chunk failed", "size", len(chunk), "error", err)
			continue
		}
		flushed += len(chunk)
	}
	metrics.PairsFlushed.Add(float64(flushed))
	log.Info("flushed pairs to knowledge index", "flushed", flushed, "total", len(records))
}
