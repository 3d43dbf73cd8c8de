package health

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

// fakePinger satisfies Pinger with a canned answer
type fakePinger struct {
	err   error
	delay time.Duration
}

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func TestSQLChecker_Healthy(t *testing.T) {
	checker := NewSQLChecker("livestore", &fakePinger{})

	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}
	if result.Duration < 0 {
		t.Error("Expected non-negative duration")
	}
}

func TestSQLChecker_Unhealthy(t *testing.T) {
	checker := NewSQLChecker("livestore", &fakePinger{err: errors.New("connection refused")})

	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("Expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestSQLChecker_Timeout(t *testing.T) {
	checker := NewSQLChecker("livestore", &fakePinger{delay: 200 * time.Millisecond}).
		WithTimeout(20 * time.Millisecond)

	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("Expected unhealthy due to timeout, got healthy: %s", result.Message)
	}
}

func TestSQLChecker_Type(t *testing.T) {
	checker := NewSQLChecker("livestore", &fakePinger{})
	if checker.Type() != CheckTypeSQL {
		t.Errorf("Expected type %s, got %s", CheckTypeSQL, checker.Type())
	}
}

func TestTCPChecker_Healthy(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer listener.Close()

	checker := NewTCPChecker(listener.Addr().String())

	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}
}

func TestTCPChecker_Refused(t *testing.T) {
	// Grab a free port, then close the listener so the dial is refused
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	checker := NewTCPChecker(addr).WithTimeout(500 * time.Millisecond)

	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("Expected unhealthy for closed port, got healthy: %s", result.Message)
	}
}

func TestTCPChecker_Type(t *testing.T) {
	checker := NewTCPChecker("127.0.0.1:1883")
	if checker.Type() != CheckTypeTCP {
		t.Errorf("Expected type %s, got %s", CheckTypeTCP, checker.Type())
	}
}

func TestEvaluate(t *testing.T) {
	checks := map[string]Checker{
		"good": NewSQLChecker("good", &fakePinger{}),
		"bad":  NewSQLChecker("bad", &fakePinger{err: errors.New("down")}),
	}

	healthy, results := Evaluate(context.Background(), checks)

	if healthy {
		t.Error("Expected aggregate unhealthy when one check fails")
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if !results["good"].Healthy {
		t.Errorf("Expected good check healthy: %s", results["good"].Message)
	}
	if results["bad"].Healthy {
		t.Error("Expected bad check unhealthy")
	}
}

func TestEvaluate_AllHealthy(t *testing.T) {
	checks := map[string]Checker{
		"livestore": NewSQLChecker("livestore", &fakePinger{}),
	}

	healthy, _ := Evaluate(context.Background(), checks)

	if !healthy {
		t.Error("Expected aggregate healthy")
	}
}
