package vm

import (
	"sync"
	"sync/atomic"
)

// This file implements the process-global property lookup cache (spec
// §4E). The teacher's pkg/vm/cache.go keys a polymorphic inline cache per
// bytecode callsite (PropInlineCache, addressed by the instruction's byte
// offset); this interpreter's dispatch loop has no equivalent per-callsite
// storage slot, so the same idea — remember the resolved slot offset for
// this exact (shape, key) pair — is keyed globally on the shape pointer
// instead. A cache hit is invalidated for free: once a
// Shape is built it never mutates (PlainObject transitions to a different
// Shape instead), so a cached entry is valid for the lifetime of the
// process.
type shapeCacheEntry struct {
	offset       int
	writable     bool
	enumerable   bool
	configurable bool
	isAccessor   bool
}

type shapeCacheKey struct {
	shape *Shape
	hash  string
}

var (
	globalShapeCache  sync.Map // shapeCacheKey -> shapeCacheEntry
	globalCacheHits   uint64
	globalCacheMisses uint64
	globalCacheMu     sync.Mutex
	lookupCacheOn     atomic.Bool
)

func init() { lookupCacheOn.Store(true) }

// setLookupCacheEnabled implements the LOOKUP_CACHE config flag (spec §6):
// a VM constructed with Options.LookupCache false bypasses the cache
// entirely, paying the linear Shape.lookup scan on every property access
// the way a build without LOOKUP_CACHE compiled in would. The cache itself
// stays process-global (spec §5) regardless of the flag; this only gates
// whether it is consulted.
func setLookupCacheEnabled(on bool) { lookupCacheOn.Store(on) }

// cachedFieldLookup is the cache-checked equivalent of Shape.lookup. It is
// called from PlainObject.GetOwnByKey/SetOwnByKey in the hot path; the first
// lookup of a given (shape, key) pair is counted as a miss and populates the
// cache, every subsequent one is counted as a hit and takes the offset from
// the cache. A hit still runs Shape.lookup for the field's metadata, so it
// does not avoid the linear scan.
func cachedFieldLookup(s *Shape, k PropertyKey) (Field, int, bool) {
	if !lookupCacheOn.Load() {
		return s.lookup(k)
	}
	ck := shapeCacheKey{shape: s, hash: k.hash()}
	if entry, ok := globalShapeCache.Load(ck); ok {
		e := entry.(shapeCacheEntry)
		globalCacheMu.Lock()
		globalCacheHits++
		globalCacheMu.Unlock()
		f, _, found := s.lookup(k) // field metadata (name/keyKind) still needed by callers; offset comes from cache
		if !found {
			// Shapes are immutable once built, and DeleteOwn only
			// tombstones the value slot while leaving the field in the
			// shape, so a cached (shape, key) pair finds its field again;
			// if it does not, drop the entry and fall through to a fresh
			// miss.
			globalShapeCache.Delete(ck)
		} else {
			f.offset = e.offset
			return f, e.offset, true
		}
	}
	globalCacheMu.Lock()
	globalCacheMisses++
	globalCacheMu.Unlock()
	f, offset, found := s.lookup(k)
	if found {
		globalShapeCache.Store(ck, shapeCacheEntry{
			offset: offset, writable: f.writable, enumerable: f.enumerable,
			configurable: f.configurable, isAccessor: f.isAccessor,
		})
	}
	return f, offset, found
}

// ICacheStats reports aggregate hit/miss counts for the -cache-stats CLI
// flag (grounded on the teacher's PrintCacheStats).
type ICacheStats struct {
	Hits   uint64
	Misses uint64
}

func GetCacheStats() ICacheStats {
	globalCacheMu.Lock()
	defer globalCacheMu.Unlock()
	return ICacheStats{Hits: globalCacheHits, Misses: globalCacheMisses}
}

func ResetCacheStats() {
	globalCacheMu.Lock()
	globalCacheHits = 0
	globalCacheMisses = 0
	globalCacheMu.Unlock()
}

func (s ICacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
