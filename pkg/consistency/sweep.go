// Package consistency runs the two housekeeping checks an embedder calls
// around an Index's lifecycle: a sweep of chunk directories orphaned by a
// pipeline run that never finished, and a read-only walk verifying the
// index's six data-model invariants still hold.
package consistency

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/milli-core/pkg/apperr"
)

// OrphanDirPattern matches the spill directories pkg/pipeline creates for
// one run's chunk files. A directory matching this pattern found outside
// of an in-flight pipeline.Run means the process that created it was
// killed before its deferred cleanup ran.
const OrphanDirPattern = "milli-pipeline-*"

// DefaultMinOrphanAge is how old a matching directory must be before
// Sweep removes it, so a sibling process's still-running pipeline.Run —
// on the same host, against a different index — is never raced.
const DefaultMinOrphanAge = time.Hour

// SweepResult reports what Sweep found.
type SweepResult struct {
	Removed []string
	Skipped []string
}

// Sweep removes orphaned pipeline spill directories from os.TempDir()
// older than minAge (DefaultMinOrphanAge if zero). Call it once on
// environment open, and optionally again on a ticker for a long-lived
// process.
func Sweep(minAge time.Duration) (SweepResult, error) {
	if minAge <= 0 {
		minAge = DefaultMinOrphanAge
	}
	var result SweepResult
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), OrphanDirPattern))
	if err != nil {
		return result, apperr.Internal(err, "consistency: glob orphan spill directories")
	}
	now := time.Now()
	for _, dir := range matches {
		info, err := os.Stat(dir)
		if err != nil {
			// Removed by a concurrent sweep or the owning process's own
			// cleanup between Glob and Stat; not an error.
			continue
		}
		if now.Sub(info.ModTime()) < minAge {
			result.Skipped = append(result.Skipped, dir)
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return result, apperr.Internal(err, "consistency: remove orphan spill directory %q", dir)
		}
		result.Removed = append(result.Removed, dir)
	}
	return result, nil
}
