package cache_test

import (
	"math"
	"testing"

	"github.com/jrife/flock/kvs/cache"
)

func TestTStatTracksMinMaxMeanStddev(t *testing.T) {
	var ts cache.TStat

	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		ts.Push(v)
	}

	if ts.Count() != 8 {
		t.Fatalf("expected count 8, got %d", ts.Count())
	}

	if ts.Min() != 2 || ts.Max() != 9 {
		t.Fatalf("expected min/max 2/9, got %v/%v", ts.Min(), ts.Max())
	}

	if ts.Mean() != 5 {
		t.Fatalf("expected mean 5, got %v", ts.Mean())
	}

	if math.Abs(ts.Stddev()-2) > 1e-9 {
		t.Fatalf("expected stddev 2, got %v", ts.Stddev())
	}
}

func TestTStatEmptyIsZeroValued(t *testing.T) {
	var ts cache.TStat

	if ts.Count() != 0 || ts.Min() != 0 || ts.Max() != 0 || ts.Mean() != 0 || ts.Stddev() != 0 {
		t.Fatal("expected a fresh TStat to report all zeros")
	}
}

func TestGetStatsCountsDirtyIncompleteAndSize(t *testing.T) {
	c := cache.New()

	valid := cache.NewEntry(1)
	valid.SetValue("decoded-0123456789")
	valid.SetEncoded([]byte("0123456789"))
	c.Insert("valid", valid)

	dirty := cache.NewEntry(1)
	dirty.SetValue("decoded-abc")
	dirty.SetEncoded([]byte("abc"))
	dirty.SetDirty(true)
	c.Insert("dirty", dirty)

	incomplete := cache.NewEntry(1)
	c.Insert("incomplete", incomplete)

	stats := c.GetStats()

	if stats.Count != 3 {
		t.Fatalf("expected count 3, got %d", stats.Count)
	}

	if stats.Dirty != 1 {
		t.Fatalf("expected dirty 1, got %d", stats.Dirty)
	}

	if stats.Incomplete != 1 {
		t.Fatalf("expected incomplete 1, got %d", stats.Incomplete)
	}

	if stats.TotalSize != 13 {
		t.Fatalf("expected total size 13, got %d", stats.TotalSize)
	}

	if stats.ObjSize.Count() != 2 {
		t.Fatalf("expected 2 sized samples (incomplete entries excluded), got %d", stats.ObjSize.Count())
	}
}
