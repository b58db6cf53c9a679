package translate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// CacheEntry is the persisted-state shape for the disk-backed cache: a
// flat list of {source_text, translated_text, source_lang, target_lang,
// timestamp, hit_count}.
type CacheEntry struct {
	SourceText     string    `json:"source_text"`
	TranslatedText string    `json:"translated_text"`
	SourceLang     string    `json:"source_lang"`
	TargetLang     string    `json:"target_lang"`
	Timestamp      time.Time `json:"timestamp"`
	HitCount       int64     `json:"hit_count"`
}

func cacheKey(sourceText, sourceLang, targetLang string) string {
	return sourceLang + "|" + targetLang + "|" + strings.ToLower(strings.TrimSpace(sourceText))
}

// Cache short-circuits exact-match translation queries. It is backed by
// ristretto/v2, a concurrent cache with cost-based eviction and per-entry
// TTL, used here in place of a hand-rolled LRU map+mutex. Because
// ristretto exposes no "iterate all live keys" primitive, the persisted
// snapshot is kept as a parallel plain map updated on the same put/get path
// that feeds the cache, so Dump/Load never needs to walk ristretto's
// internal shards.
type Cache struct {
	rist *ristretto.Cache[string, CacheEntry]
	ttl  time.Duration

	mu       sync.Mutex
	snapshot map[string]CacheEntry
}

// NewCache builds a cache with room for roughly maxEntries live entries. A
// zero ttl disables expiry.
func NewCache(maxEntries int, ttl time.Duration) (*Cache, error) {
	rist, err := ristretto.NewCache(&ristretto.Config[string, CacheEntry]{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{rist: rist, ttl: ttl, snapshot: make(map[string]CacheEntry)}, nil
}

// Get returns a cached translation for an exact (source text, source lang,
// target lang) match, if present and unexpired.
func (c *Cache) Get(sourceText, sourceLang, targetLang string) (CacheEntry, bool) {
	key := cacheKey(sourceText, sourceLang, targetLang)
	entry, ok := c.rist.Get(key)
	if !ok {
		return CacheEntry{}, false
	}

	entry.HitCount++
	c.mu.Lock()
	c.snapshot[key] = entry
	c.mu.Unlock()

	if c.ttl > 0 {
		c.rist.SetWithTTL(key, entry, 1, c.ttl)
	} else {
		c.rist.Set(key, entry, 1)
	}
	return entry, true
}

// Put stores a translation result. Idempotent for the same key modulo
// timestamp and hit count.
func (c *Cache) Put(sourceText, translatedText, sourceLang, targetLang string) {
	key := cacheKey(sourceText, sourceLang, targetLang)
	entry := CacheEntry{
		SourceText:     sourceText,
		TranslatedText: translatedText,
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
		Timestamp:      time.Now(),
	}

	if existing, ok := c.rist.Get(key); ok {
		entry.HitCount = existing.HitCount
	}

	if c.ttl > 0 {
		c.rist.SetWithTTL(key, entry, 1, c.ttl)
	} else {
		c.rist.Set(key, entry, 1)
	}
	c.rist.Wait()

	c.mu.Lock()
	c.snapshot[key] = entry
	c.mu.Unlock()
}

// Dump returns every entry observed via Put/Get since construction or Load,
// for persistence to translation_cache.json. Entries evicted from
// ristretto's working set remain in the snapshot until the process exits;
// this trades a slightly stale disk dump for never touching ristretto's
// internals.
func (c *Cache) Dump() []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CacheEntry, 0, len(c.snapshot))
	for _, e := range c.snapshot {
		out = append(out, e)
	}
	return out
}

// SaveToFile writes the cache snapshot as translation_cache.json under dir.
func (c *Cache) SaveToFile(dir string) error {
	path := filepath.Join(dir, "translation_cache.json")
	data, err := json.MarshalIndent(c.Dump(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFromFile reads translation_cache.json under dir, if present, and
// repopulates both the live cache and the snapshot.
func (c *Cache) LoadFromFile(dir string) error {
	path := filepath.Join(dir, "translation_cache.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var entries []CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	for _, e := range entries {
		key := cacheKey(e.SourceText, e.SourceLang, e.TargetLang)
		if c.ttl > 0 {
			c.rist.SetWithTTL(key, e, 1, c.ttl)
		} else {
			c.rist.Set(key, e, 1)
		}
		c.mu.Lock()
		c.snapshot[key] = e
		c.mu.Unlock()
	}
	c.rist.Wait()
	return nil
}

// Close releases ristretto's background goroutines.
func (c *Cache) Close() {
	c.rist.Close()
}
