package lazy

import (
	"math"
	"sync/atomic"
	"time"
)

// Stats is a snapshot of an evaluator's running counters.
type Stats struct {
	AverageTime  time.Duration `json:"averageTimeNanos"`
	MinTime      time.Duration `json:"minTimeNanos"`
	MaxTime      time.Duration `json:"maxTimeNanos"`
	TotalQueries int64         `json:"totalQueries"`
	// CacheHits counts calls answered from the result cache.
	CacheHits int64 `json:"cacheHits"`
	// CacheSize is the number of cached sections and results.
	CacheSize  int        `json:"cacheSize"`
	CacheStats CacheStats `json:"cacheStats"`
}

type CacheStats struct {
	SectionEntries int   `json:"sectionEntries"`
	ResultEntries  int   `json:"resultEntries"`
	SectionHits    int64 `json:"sectionHits"`
	SectionMisses  int64 `json:"sectionMisses"`
	ResultHits     int64 `json:"resultHits"`
	ResultMisses   int64 `json:"resultMisses"`
}

type counters struct {
	queries       atomic.Int64
	total         atomic.Int64
	min           atomic.Int64
	max           atomic.Int64
	resultHits    atomic.Int64
	resultMisses  atomic.Int64
	sectionHits   atomic.Int64
	sectionMisses atomic.Int64
}

func newCounters() *counters {
	c := &counters{}
	c.reset()
	return c
}

func (c *counters) reset() {
	c.queries.Store(0)
	c.total.Store(0)
	c.min.Store(math.MaxInt64)
	c.max.Store(0)
	c.resultHits.Store(0)
	c.resultMisses.Store(0)
	c.sectionHits.Store(0)
	c.sectionMisses.Store(0)
}

func (c *counters) record(d time.Duration) {
	n := int64(d)
	c.queries.Add(1)
	c.total.Add(n)
	for {
		cur := c.min.Load()
		if n >= cur || c.min.CompareAndSwap(cur, n) {
			break
		}
	}
	for {
		cur := c.max.Load()
		if n <= cur || c.max.CompareAndSwap(cur, n) {
			break
		}
	}
}

func (c *counters) snapshot() Stats {
	s := Stats{TotalQueries: c.queries.Load()}
	if s.TotalQueries > 0 {
		s.AverageTime = time.Duration(c.total.Load() / s.TotalQueries)
		s.MinTime = time.Duration(c.min.Load())
		s.MaxTime = time.Duration(c.max.Load())
	}
	s.CacheStats = CacheStats{
		SectionHits:   c.sectionHits.Load(),
		SectionMisses: c.sectionMisses.Load(),
		ResultHits:    c.resultHits.Load(),
		ResultMisses:  c.resultMisses.Load(),
	}
	s.CacheHits = s.CacheStats.ResultHits
	return s
}
