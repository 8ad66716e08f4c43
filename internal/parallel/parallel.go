// Package parallel provides the parallel-for primitive used by kiln's layer kernels.
//
// Every call fans f(i) out over [0, n) and returns once all iterations are
// done. Callers must make iterations write disjoint memory; the package does
// no synchronization beyond the final wait.
package parallel

import (
	"runtime"
	"sync"
)

// Backend selects how For executes its iterations.
type Backend int

const (
	// Pool splits the range into chunks run on worker goroutines.
	Pool Backend = iota
	// Serial runs every iteration on the calling goroutine in order.
	// Use it for deterministic tests and single-core environments.
	Serial
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case Pool:
		return "pool"
	case Serial:
		return "serial"
	default:
		return "unknown"
	}
}

// Config controls parallel execution behavior.
type Config struct {
	Backend  Backend // Execution backend.
	Workers  int     // Number of worker goroutines to use.
	MinChunk int     // Minimum iterations per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	backend := Pool
	if n == 1 {
		backend = Serial
	}
	return Config{
		Backend:  backend,
		Workers:  n,
		MinChunk: 1,
	}
}

// SerialConfig returns a Config that runs everything on the caller's goroutine.
func SerialConfig() Config {
	return Config{Backend: Serial, Workers: 1, MinChunk: 1}
}

// NumWorkers returns the effective worker count (at least 1).
func (c Config) NumWorkers() int {
	if c.Backend == Serial || c.Workers < 1 {
		return 1
	}
	return c.Workers
}

// For executes f(i) for i in [0, n).
// Falls back to sequential execution for the Serial backend or when n is
// too small to split.
func For(n int, f func(i int), cfg Config) {
	workers := cfg.NumWorkers()
	minChunk := max(cfg.MinChunk, 1)
	if workers == 1 || n < 2*minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+workers-1)/workers, minChunk)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch iterates over every (batch, channel) pair.
// Common in CNN kernels like Conv2D and MaxPool2D.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	n := batch * channels
	For(n, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
