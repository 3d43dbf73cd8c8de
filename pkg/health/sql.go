package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger is the slice of a database handle the SQL checker needs.
// Both *sql.DB and the fleet stores satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SQLChecker verifies a database handle answers a ping
type SQLChecker struct {
	// Name identifies the database in check messages (e.g. "livestore")
	Name string

	// DB is the handle to ping
	DB Pinger

	// Timeout bounds the ping (default: 5 seconds)
	Timeout time.Duration
}

// NewSQLChecker creates a new SQL health checker
func NewSQLChecker(name string, db Pinger) *SQLChecker {
	return &SQLChecker{
		Name:    name,
		DB:      db,
		Timeout: 5 * time.Second,
	}
}

// Check performs the SQL health check
func (s *SQLChecker) Check(ctx context.Context) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.DB.Ping(ctx); err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("ping %s failed: %v", s.Name, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("%s reachable", s.Name),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (s *SQLChecker) Type() CheckType {
	return CheckTypeSQL
}

// WithTimeout sets the ping timeout
func (s *SQLChecker) WithTimeout(timeout time.Duration) *SQLChecker {
	s.Timeout = timeout
	return s
}
