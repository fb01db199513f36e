package saga

import (
	"sync"
	"time"
)

// Watchdog schedules a per-saga timeout callback via time.AfterFunc,
// matching the cooperative-goroutine idiom used throughout this codebase
// rather than a reactive/event-loop framework. Cancel(sagaID) must be
// called as soon as the saga advances past the state the watchdog was
// armed for.
type Watchdog struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	onFired func(sagaID string, state string)
}

// NewWatchdog builds a Watchdog that invokes onFired when a saga's timer
// expires before being cancelled.
func NewWatchdog(onFired func(sagaID string, state string)) *Watchdog {
	return &Watchdog{
		timers:  make(map[string]*time.Timer),
		onFired: onFired,
	}
}

// Arm schedules (or re-schedules) a watchdog for sagaID in state, firing
// after d unless Cancel is called first.
func (w *Watchdog) Arm(sagaID, state string, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.timers[sagaID]; ok {
		existing.Stop()
	}

	w.timers[sagaID] = time.AfterFunc(d, func() {
		w.mu.Lock()
		delete(w.timers, sagaID)
		w.mu.Unlock()

		w.onFired(sagaID, state)
	})
}

// Cancel stops sagaID's pending watchdog, if any. Safe to call even if no
// watchdog is armed.
func (w *Watchdog) Cancel(sagaID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.timers[sagaID]; ok {
		existing.Stop()
		delete(w.timers, sagaID)
	}
}

// Stop cancels every pending watchdog, for graceful shutdown.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for sagaID, timer := range w.timers {
		timer.Stop()
		delete(w.timers, sagaID)
	}
}
