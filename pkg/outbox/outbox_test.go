package outbox

import (
	"testing"
	"time"
)

func TestSecureRandomFloat64Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := SecureRandomFloat64()
		if v < 0 || v >= 1 {
			t.Fatalf("SecureRandomFloat64() = %v, want in [0,1)", v)
		}
	}
}

func TestBackoffDurationGrowsAndCaps(t *testing.T) {
	base := 100 * time.Millisecond
	maxBackoff := 2 * time.Second

	first := BackoffDuration(1, base, maxBackoff)
	if first < base/2 || first > base {
		t.Errorf("attempt 1 backoff %v out of expected [%v,%v]", first, base/2, base)
	}

	late := BackoffDuration(20, base, maxBackoff)
	if late > maxBackoff {
		t.Errorf("attempt 20 backoff %v exceeds cap %v", late, maxBackoff)
	}
}

func TestExceedsAttemptsCap(t *testing.T) {
	if ExceedsAttemptsCap(Row{Attempts: 11}) {
		t.Errorf("11 attempts should not yet exceed the cap")
	}
	if !ExceedsAttemptsCap(Row{Attempts: 12}) {
		t.Errorf("12 attempts should exceed the cap")
	}
}
