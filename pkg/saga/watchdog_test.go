package saga

import (
	"sync"
	"testing"
	"time"
)

func TestWatchdogFiresWhenNotCancelled(t *testing.T) {
	var mu sync.Mutex
	fired := false

	w := NewWatchdog(func(sagaID, state string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	defer w.Stop()

	w.Arm("saga-1", "AWAITING_PAYMENT", 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !fired {
		t.Fatalf("expected watchdog to fire")
	}
}

func TestWatchdogCancelPreventsFiring(t *testing.T) {
	var mu sync.Mutex
	fired := false

	w := NewWatchdog(func(sagaID, state string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	defer w.Stop()

	w.Arm("saga-2", "AWAITING_PAYMENT", 20*time.Millisecond)
	w.Cancel("saga-2")

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Fatalf("expected cancelled watchdog not to fire")
	}
}
