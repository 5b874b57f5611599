package resilience

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_Doubles(t *testing.T) {
	base := 100 * time.Millisecond
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := Backoff(base, tt.attempt); got != tt.want {
			t.Errorf("Backoff(%v, %d) = %v, want %v", base, tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_ClampsAttemptFloor(t *testing.T) {
	base := 50 * time.Millisecond
	if got := Backoff(base, 0); got != base {
		t.Errorf("Backoff(base, 0) = %v, want %v", got, base)
	}
	if got := Backoff(base, -3); got != base {
		t.Errorf("Backoff(base, -3) = %v, want %v", got, base)
	}
}

func TestJitter_WithinBounds(t *testing.T) {
	d := time.Second
	for i := 0; i < 100; i++ {
		got := Jitter(d, 0.2)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("Jitter(%v, 0.2) = %v, outside [0.8s, 1.2s]", d, got)
		}
	}
}

func TestJitter_ZeroFraction(t *testing.T) {
	if got := Jitter(time.Second, 0); got != time.Second {
		t.Errorf("Jitter with zero fraction = %v, want 1s", got)
	}
}

func TestSleep_Completes(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSleep_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep did not return promptly on cancellation: %v", elapsed)
	}
}

func TestSleep_NonPositiveDuration(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
