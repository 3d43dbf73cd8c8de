package health

import (
	"context"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeSQL CheckType = "sql"
	CheckTypeTCP CheckType = "tcp"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// Evaluate runs every named check and reports whether all of them passed.
// Checks run sequentially; readiness probing is rare enough that fan-out
// is not worth the bookkeeping.
func Evaluate(ctx context.Context, checks map[string]Checker) (bool, map[string]Result) {
	healthy := true
	results := make(map[string]Result, len(checks))
	for name, check := range checks {
		result := check.Check(ctx)
		results[name] = result
		if !result.Healthy {
			healthy = false
		}
	}
	return healthy, results
}
