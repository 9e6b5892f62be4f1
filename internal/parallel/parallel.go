// Package parallel provides data-parallel execution over index ranges.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled    bool // Whether parallel execution is enabled.
	NumWorkers int  // Number of worker goroutines to use.
	MinGrain   int  // Minimum elements per shard to avoid goroutine overhead.
}

// DefaultConfig returns sensible defaults based on available parallelism.
func DefaultConfig() Config {
	n := runtime.GOMAXPROCS(0)
	return Config{
		Enabled:    n > 1,
		NumWorkers: n,
		MinGrain:   64, // Typical cache line aware chunk.
	}
}

// For splits [begin, end) into shards and calls body(shardBegin, shardEnd)
// for each, concurrently when the range is large enough. A shard never holds
// fewer than grain elements except the final remainder; grain <= 0 selects
// cfg.MinGrain. Falls back to a single body call covering the whole range
// when parallelism is disabled or not worthwhile.
//
// body must be safe to run concurrently on disjoint shards.
func For(begin, end, grain int, body func(begin, end int), cfg Config) {
	n := end - begin
	if n <= 0 {
		return
	}
	if grain <= 0 {
		grain = cfg.MinGrain
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n <= grain {
		body(begin, end)
		return
	}

	var wg sync.WaitGroup
	shard := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, grain)

	for start := begin; start < end; start += shard {
		stop := min(start+shard, end)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			body(s, e)
		}(start, stop)
	}
	wg.Wait()
}
