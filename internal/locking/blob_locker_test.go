package locking

import (
	"testing"
	"time"
)

func TestLockIsStale(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name         string
		lastModified time.Time
		stale        bool
	}{
		{"just touched", now, false},
		{"one heartbeat ago", now.Add(-renewLockInterval), false},
		{"one missed heartbeat", now.Add(-2 * renewLockInterval), false},
		{"at the threshold", now.Add(-staleLockAge), false},
		{"past the threshold", now.Add(-staleLockAge - time.Second), true},
		{"long abandoned", now.Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lockIsStale(tt.lastModified, now); got != tt.stale {
				t.Errorf("lockIsStale(%v old) = %v, want %v", now.Sub(tt.lastModified), got, tt.stale)
			}
		})
	}
}

// A holder renewing on schedule must never look abandoned, even if it
// misses a renewal. Without this margin a second run would break a live
// run's lease and both would write baselines concurrently.
func TestHeartbeatOutpacesStaleness(t *testing.T) {
	if staleLockAge < 3*renewLockInterval {
		t.Fatalf("staleLockAge %v leaves no margin over renewal interval %v", staleLockAge, renewLockInterval)
	}
	now := time.Now()
	if lockIsStale(now.Add(-2*renewLockInterval), now) {
		t.Error("a holder that missed one renewal must not read as stale")
	}
}

func TestRunLockName(t *testing.T) {
	if got := RunLockName("DWHSQL01"); got != "dwhsql01/run.lock" {
		t.Errorf("RunLockName = %s", got)
	}
}
