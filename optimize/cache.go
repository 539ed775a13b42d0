package optimize

import (
	"container/list"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// DefaultCacheBudget bounds the payload bytes a Cache keeps.
const DefaultCacheBudget = 64 << 20

// Cache memoizes recompression outcomes by content fingerprint and
// settings. It only saves work: a run with or without a cache produces the
// same output. A Cache is safe for concurrent use and may be shared across
// runs.
type Cache struct {
	mu     sync.Mutex
	budget int64
	size   int64
	ll     *list.List
	items  map[string]*list.Element

	hits, misses int
}

type cacheEntry struct {
	key     string
	outcome Outcome
}

// Outcome is what the cache remembers about one image: the winning payload
// and enough of the analysis to rebuild its FileResult.
type Outcome struct {
	Data   []byte // nil when no candidate beat the original
	Format string

	Class         Class
	Width, Height int
	Skipped       string
}

// NewCache returns an LRU cache holding at most budget payload bytes. A
// budget of zero or less uses DefaultCacheBudget.
func NewCache(budget int64) *Cache {
	if budget <= 0 {
		budget = DefaultCacheBudget
	}
	return &Cache{budget: budget, ll: list.New(), items: make(map[string]*list.Element)}
}

// Get returns the recorded outcome for key.
func (c *Cache) Get(key string) (Outcome, bool) {
	if c == nil {
		return Outcome{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return Outcome{}, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).outcome, true
}

// Put records an outcome, evicting least recently used entries to stay
// within budget. Payloads larger than the whole budget are not kept.
func (c *Cache) Put(key string, o Outcome) {
	if c == nil || int64(len(o.Data)) > c.budget {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*cacheEntry)
		c.size += int64(len(o.Data) - len(e.outcome.Data))
		e.outcome = o
		c.ll.MoveToFront(el)
	} else {
		c.items[key] = c.ll.PushFront(&cacheEntry{key: key, outcome: o})
		c.size += int64(len(o.Data))
	}
	for c.size > c.budget {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		e := c.ll.Remove(oldest).(*cacheEntry)
		delete(c.items, e.key)
		c.size -= int64(len(e.outcome.Data))
	}
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Size returns the payload bytes held.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns lookup hits and misses.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

const (
	fullHashLimit = 4 << 20
	sampleWindow  = 4 << 10
	sampleCount   = 32
)

// Fingerprint hashes data with BLAKE2b-256. Payloads up to 4MiB are hashed
// whole; larger ones are sampled: the length, the head, the tail and evenly
// spaced windows in between.
func Fingerprint(data []byte) string {
	h, _ := blake2b.New256(nil)
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(data)))
	h.Write(n[:])
	if len(data) <= fullHashLimit {
		h.Write(data)
		return hex.EncodeToString(h.Sum(nil))
	}
	h.Write(data[:sampleWindow])
	step := (len(data) - sampleWindow) / sampleCount
	for i := 1; i < sampleCount; i++ {
		off := i * step
		h.Write(data[off : off+sampleWindow])
	}
	h.Write(data[len(data)-sampleWindow:])
	return hex.EncodeToString(h.Sum(nil))
}
