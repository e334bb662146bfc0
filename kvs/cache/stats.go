package cache

import (
	"math"

	"github.com/jrife/flock/utils/sortedwindow"
)

// Stats summarizes the cache's current state, matching spec.md §4.2's
// get_stats: entry count, dirty count, incomplete count, total encoded
// size, a size distribution of encoded values, and the running min/mean/
// stddev/max object-size statistic the original reports as "obj size".
type Stats struct {
	Count       int
	Dirty       int
	Incomplete  int
	TotalSize   int
	ObjSize     TStat
	SizeBuckets []SizeBucket
}

// TStat is a running count/min/max/mean/stddev accumulator built by
// pushing samples with Push, grounded on kvs.c's tstat_t/tstat_push. It
// uses Welford's online algorithm so a single pass over encoded sizes
// yields the mean and variance without buffering every sample.
type TStat struct {
	count int
	min   float64
	max   float64
	mean  float64
	m2    float64
}

// Push folds one sample into the running statistic.
func (t *TStat) Push(v float64) {
	if t.count == 0 {
		t.min, t.max = v, v
	} else {
		if v < t.min {
			t.min = v
		}
		if v > t.max {
			t.max = v
		}
	}

	t.count++
	delta := v - t.mean
	t.mean += delta / float64(t.count)
	t.m2 += delta * (v - t.mean)
}

// Count returns the number of samples pushed.
func (t *TStat) Count() int { return t.count }

// Min returns the smallest sample pushed, or 0 if none have been.
func (t *TStat) Min() float64 { return t.min }

// Max returns the largest sample pushed, or 0 if none have been.
func (t *TStat) Max() float64 { return t.max }

// Mean returns the running mean, or 0 if no samples have been pushed.
func (t *TStat) Mean() float64 { return t.mean }

// Stddev returns the population standard deviation of the samples pushed
// so far, or 0 if fewer than two have been.
func (t *TStat) Stddev() float64 {
	if t.count < 2 {
		return 0
	}

	variance := t.m2 / float64(t.count)
	if variance < 0 {
		return 0
	}

	return math.Sqrt(variance)
}

// SizeBucket counts entries whose encoded size falls in [Lo, Hi). The last
// bucket has Hi == -1 and no upper bound.
type SizeBucket struct {
	Lo    int
	Hi    int
	Count int
}

// bucketBoundaries are power-of-two byte-size buckets, grounded on the
// original kvs.c cache_get_stats histogram of blob sizes.
var bucketBoundaries = []int{0, 64, 256, 1024, 4096, 16384, 65536, 262144}

// GetStats computes a snapshot of the cache's current composition. It uses
// a sortedwindow.SortedMinWindow to sort the stream of encoded sizes before
// bucketing, the same streaming-sort idiom utils/sortedwindow was built
// for, rather than sorting a slice in place.
func (c *Cache) GetStats() Stats {
	var stats Stats

	sizes := sortedwindow.New(func(a, b interface{}) int {
		x, y := a.(int), b.(int)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	})

	stats.Count = len(c.entries)

	for _, e := range c.entries {
		if e.dirty {
			stats.Dirty++
		}

		if !e.valid {
			stats.Incomplete++
			continue
		}

		size := e.encodedSize()
		stats.TotalSize += size
		stats.ObjSize.Push(float64(size))
		sizes.Insert(size)
	}

	stats.SizeBuckets = bucketize(sizes)

	return stats
}

func bucketize(sizes *sortedwindow.SortedMinWindow) []SizeBucket {
	buckets := make([]SizeBucket, len(bucketBoundaries))

	for i, lo := range bucketBoundaries {
		hi := -1
		if i+1 < len(bucketBoundaries) {
			hi = bucketBoundaries[i+1]
		}

		buckets[i] = SizeBucket{Lo: lo, Hi: hi}
	}

	iter := sizes.Iterator()

	for iter.Next() {
		size := iter.Value().(int)

		idx := len(buckets) - 1
		for i := len(bucketBoundaries) - 1; i >= 0; i-- {
			if size >= bucketBoundaries[i] {
				idx = i
				break
			}
		}

		buckets[idx].Count++
	}

	return buckets
}
