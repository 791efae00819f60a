package resource

import "sync"

// LeakChecker observes an arena and records handles that were created but
// never released. It exists because there is no finalizer backstop: callers
// that drop a handle without freeing it leak engine memory, and tests assert
// Outstanding() is empty.
type LeakChecker struct {
	live map[Handle]Kind
	mu   sync.Mutex
}

func NewLeakChecker() *LeakChecker {
	return &LeakChecker{live: make(map[Handle]Kind)}
}

func (lc *LeakChecker) OnHandleEvent(e Event) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	switch e.Type {
	case EventCreated:
		lc.live[e.Handle] = e.Kind
	case EventReleased:
		delete(lc.live, e.Handle)
	}
}

// Outstanding returns the handles still live, keyed by handle.
func (lc *LeakChecker) Outstanding() map[Handle]Kind {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	out := make(map[Handle]Kind, len(lc.live))
	for h, k := range lc.live {
		out[h] = k
	}
	return out
}
