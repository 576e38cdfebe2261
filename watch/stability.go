package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Canonical returns the absolute, symlink-resolved form of a path. It is the
// key used in the processed ledger so the same file never maps to two
// entries.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// Stable reports whether the file size stays unchanged across a sampling
// interval of window/3 (at least one second). It is a heuristic that the
// recorder stopped appending; callers must already have checked that the
// file's age exceeds the window. A file that disappears mid-check is
// reported as not stable.
func Stable(ctx context.Context, path string, window time.Duration) (bool, error) {
	first, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	interval := window / 3
	if interval < time.Second {
		interval = time.Second
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(interval):
	}

	second, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return first.Size() == second.Size(), nil
}
