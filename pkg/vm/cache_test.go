package vm

import "testing"

func TestCachedFieldLookupHitsAfterFirstMiss(t *testing.T) {
	ResetCacheStats()
	o := NewPlainObject(Undefined)
	o.SetOwn("x", NewInteger(1))

	before := GetCacheStats()
	if _, _, ok := cachedFieldLookup(o.shape, keyFromString("x")); !ok {
		t.Fatalf("expected x to be found")
	}
	afterFirst := GetCacheStats()
	if afterFirst.Misses != before.Misses+1 {
		t.Fatalf("first lookup of a (shape,key) pair should miss: before=%+v after=%+v", before, afterFirst)
	}

	if _, _, ok := cachedFieldLookup(o.shape, keyFromString("x")); !ok {
		t.Fatalf("expected x to be found on second lookup")
	}
	afterSecond := GetCacheStats()
	if afterSecond.Hits != afterFirst.Hits+1 {
		t.Fatalf("second lookup of the same (shape,key) pair should hit the cache: %+v", afterSecond)
	}
}

func TestCachedFieldLookupKeepsFieldAfterTombstone(t *testing.T) {
	ResetCacheStats()
	o := NewPlainObject(Undefined)
	o.SetOwn("y", NewInteger(1))
	if _, _, ok := cachedFieldLookup(o.shape, keyFromString("y")); !ok {
		t.Fatalf("expected y to be found")
	}

	if !o.DeleteOwn(keyFromString("y")) {
		t.Fatalf("delete of a configurable own property should succeed")
	}
	if _, _, ok := cachedFieldLookup(o.shape, keyFromString("y")); !ok {
		t.Fatalf("Shape.lookup still reports the field present after a tombstone; only the stored value is cleared")
	}
	if v, ok := o.GetOwn("y"); ok {
		t.Fatalf("tombstoned property must read back as absent, got %+v", v)
	}
}

func TestICacheStatsHitRate(t *testing.T) {
	stats := ICacheStats{Hits: 3, Misses: 1}
	if got := stats.HitRate(); got != 0.75 {
		t.Fatalf("HitRate() = %v, want 0.75", got)
	}
	if (ICacheStats{}).HitRate() != 0 {
		t.Fatalf("HitRate of an empty stats struct must be 0, not NaN")
	}
}
