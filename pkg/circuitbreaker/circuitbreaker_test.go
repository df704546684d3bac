package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend failure")

func testConfig() Config {
	return Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             50 * time.Millisecond,
		MaxRequestsHalfOpen: 1,
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errBackend })
	}

	if cb.GetState() != StateOpen {
		t.Errorf("expected open state after threshold, got %s", cb.GetState())
	}

	// Requests are rejected while open.
	err := cb.Execute(ctx, func() error { return nil })
	if err == nil {
		t.Error("expected rejection while circuit is open")
	}
}

func TestCircuitBreaker_ClosesAfterRecovery(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errBackend })
	}

	time.Sleep(60 * time.Millisecond)

	// First request after the timeout probes through half-open.
	if err := cb.Execute(ctx, func() error { return nil }); err != nil {
		t.Fatalf("expected probe request to pass, got: %v", err)
	}

	if cb.GetState() != StateClosed {
		t.Errorf("expected closed state after successful probe, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return errBackend })
	}

	time.Sleep(60 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errBackend })

	if cb.GetState() != StateOpen {
		t.Errorf("expected reopen after half-open failure, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := New(testConfig())

	calls := 0
	err := cb.Execute(context.Background(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected function to run once, got %d", calls)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("expected closed state, got %s", cb.GetState())
	}
}
