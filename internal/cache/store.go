// Package cache implements the response cache: a bounded in-memory LRU map
// from (normalized user input, context signature) to reply text, with
// hit/miss accounting and periodic persistence to a single durable file.
//
// Persistence is decoupled from mutation: the store only writes to disk
// after persistEvery Set calls, so a crash loses at most that many recent
// writes. Durable writes go to a temp file first and are atomically renamed
// into place.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/verso-labs/versobot/internal/logging"
	"github.com/verso-labs/versobot/internal/metrics"
)

type entry struct {
	key      string
	response string
}

// Stats is the read-only view of cache accounting returned by Stats and
// serialized by ExportStats.
type Stats struct {
	TotalEntries int     `json:"total_entries"`
	Hits         uint64  `json:"cache_hits"`
	Misses       uint64  `json:"cache_misses"`
	HitRate      float64 `json:"hit_rate"`
}

// LoadResult reports how the store was initialised from its durable file,
// so callers (and tests) can observe the warning path explicitly.
type LoadResult struct {
	Entries int
	Warning error
}

// Store is a bounded LRU response cache with deferred disk persistence.
// Safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	path         string
	maxSize      int
	persistEvery int

	items     map[string]*list.Element
	evictList *list.List // front = most recently used

	hits        uint64
	misses      uint64
	dirtyWrites int

	loadResult LoadResult
}

// persisted is the gob schema of the durable file. Pairs are stored in
// least- to most-recently-used order so a reload preserves recency.
type persisted struct {
	Pairs []persistedPair
}

type persistedPair struct {
	Key      string
	Response string
}

// New creates a Store backed by the durable file at path. An existing file
// is loaded best-effort: a missing, unreadable, or corrupt file yields an
// empty store and a logged warning, never an error.
func New(path string, maxSize, persistEvery int) *Store {
	if maxSize < 1 {
		maxSize = 1
	}
	if persistEvery < 1 {
		persistEvery = 1
	}
	s := &Store{
		path:         path,
		maxSize:      maxSize,
		persistEvery: persistEvery,
		items:        make(map[string]*list.Element),
		evictList:    list.New(),
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	s.loadResult = s.load()
	return s
}

// LoadResult returns how the store was initialised from disk.
func (s *Store) LoadResult() LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadResult
}

func (s *Store) load() LoadResult {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return LoadResult{}
		}
		logging.Logger.Warn("failed to load cache, starting empty", "path", s.path, "error", err)
		return LoadResult{Warning: err}
	}
	defer func() { _ = f.Close() }()

	var data persisted
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		logging.Logger.Warn("cache file unreadable, starting empty", "path", s.path, "error", err)
		return LoadResult{Warning: fmt.Errorf("decode cache file: %w", err)}
	}
	for _, p := range data.Pairs {
		elem := s.evictList.PushFront(&entry{key: p.Key, response: p.Response})
		s.items[p.Key] = elem
	}
	logging.Logger.Info("loaded cached responses", "count", len(data.Pairs), "path", s.path)
	return LoadResult{Entries: len(data.Pairs)}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cacheKey(userInput, contextHash string) string {
	sum := sha256.Sum256([]byte(normalize(userInput) + ":" + contextHash))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached reply for (userInput, contextHash) and whether it
// was present. A hit promotes the entry to most-recently-used. Never touches
// the durable file.
func (s *Store) Get(userInput, contextHash string) (string, bool) {
	key := cacheKey(userInput, contextHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[key]
	if !ok {
		s.misses++
		metrics.CacheMisses.Inc()
		return "", false
	}
	s.hits++
	metrics.CacheHits.Inc()
	s.evictList.MoveToFront(elem)
	return elem.Value.(*entry).response, true
}

// Set stores a reply under (userInput, contextHash). Last write wins and the
// entry becomes most-recently-used. When the store exceeds maxSize the
// least-recently-used ~20% of entries are evicted in one batch. Every
// persistEvery-th write flushes the store to disk.
func (s *Store) Set(userInput, contextHash, response string) {
	key := cacheKey(userInput, contextHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[key]; ok {
		s.evictList.Remove(elem)
		delete(s.items, key)
	}
	elem := s.evictList.PushFront(&entry{key: key, response: response})
	s.items[key] = elem

	if s.evictList.Len() > s.maxSize {
		removed := s.evictOldest()
		logging.Logger.Info("cache cleaned", "removed", removed)
	}

	s.dirtyWrites++
	if s.dirtyWrites >= s.persistEvery {
		s.save()
		s.dirtyWrites = 0
	}
}

// evictOldest removes ceil(maxSize * 0.2) entries (at least one) from the
// LRU end. Batch eviction amortises bookkeeping instead of evicting one
// entry per over-capacity insert. Caller holds s.mu.
func (s *Store) evictOldest() int {
	n := int(math.Ceil(float64(s.maxSize) * 0.2))
	if n < 1 {
		n = 1
	}
	removed := 0
	for i := 0; i < n; i++ {
		elem := s.evictList.Back()
		if elem == nil {
			break
		}
		s.evictList.Remove(elem)
		delete(s.items, elem.Value.(*entry).key)
		removed++
	}
	metrics.CacheEvictions.Add(float64(removed))
	return removed
}

// save writes the store to the durable file via temp-then-rename so a
// concurrent reader never observes a partial file. Failures are logged and
// swallowed. Caller holds s.mu.
func (s *Store) save() {
	data := persisted{Pairs: make([]persistedPair, 0, s.evictList.Len())}
	for elem := s.evictList.Back(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*entry)
		data.Pairs = append(data.Pairs, persistedPair{Key: e.key, Response: e.response})
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		logging.Logger.Error("failed to save cache", "path", s.path, "error", err)
		return
	}
	if err := gob.NewEncoder(f).Encode(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		logging.Logger.Error("failed to save cache", "path", s.path, "error", err)
		return
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		logging.Logger.Error("failed to save cache", "path", s.path, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		logging.Logger.Error("failed to save cache", "path", s.path, "error", err)
	}
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictList.Len()
}

// Stats returns current cache accounting. HitRate is 0 when no requests
// have been served yet.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.hits + s.misses
	var rate float64
	if total > 0 {
		rate = float64(s.hits) / float64(total)
	}
	return Stats{
		TotalEntries: s.evictList.Len(),
		Hits:         s.hits,
		Misses:       s.misses,
		HitRate:      rate,
	}
}

// Clear empties the store, resets the hit/miss counters, and best-effort
// deletes the durable file. Never fails visibly.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element)
	s.evictList.Init()
	s.hits = 0
	s.misses = 0
	s.dirtyWrites = 0
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		logging.Logger.Warn("failed to remove cache file", "path", s.path, "error", err)
	}
	logging.Logger.Info("cache cleared")
}

// exportedStats is Stats plus the export timestamp.
type exportedStats struct {
	Stats
	ExportedAt string `json:"exported_at"`
}

// ExportStats serialises current stats plus an export timestamp as JSON at
// the given path. Failures are logged, not returned.
func (s *Store) ExportStats(path string) {
	out := exportedStats{Stats: s.Stats(), ExportedAt: time.Now().Format(time.RFC3339)}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logging.Logger.Error("failed to export cache stats", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.Logger.Error("failed to export cache stats", "path", path, "error", err)
		return
	}
	logging.Logger.Info("cache stats exported", "path", path)
}
