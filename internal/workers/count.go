package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns a worker count derived from the CPUs actually available to
// the process (GOMAXPROCS reflects container CPU limits on Go 1.19+).
//
// The multiplier adjusts for the workload: 1.0 for CPU-bound work, 2.0 for
// I/O-bound work. limit caps the result; 0 means no cap. The POOL_WORKERS
// environment variable overrides the calculation.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("POOL_WORKERS"); override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			if limit > 0 && n > limit {
				return limit
			}
			return n
		}
	}

	available := runtime.GOMAXPROCS(0)

	n := int(float64(available) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU returns a worker count for CPU-bound work (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns a worker count for I/O-bound work (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}
