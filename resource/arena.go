package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed = errors.New("resource arena closed")
)

// Handle is an opaque reference to an engine-owned object.
// Handle 0 is reserved and always invalid.
type Handle uint64

// Kind tags what an arena entry refers to.
type Kind uint32

const (
	KindPermissions Kind = iota + 1
	KindEntries
	KindEntryActions
)

func (k Kind) String() string {
	switch k {
	case KindPermissions:
		return "permissions"
	case KindEntries:
		return "entries"
	case KindEntryActions:
		return "entry_actions"
	default:
		return "unknown"
	}
}

// Event types for handle lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
)

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup on release.
type Dropper interface {
	Drop()
}

// Arena is the in-memory handle table: slice-backed storage with a free list
// so released slots are reused.
type Arena struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	closed    bool
}

type entry struct {
	value any
	kind  Kind
	valid bool
}

// NewArena creates an empty handle arena.
func NewArena() *Arena {
	return &Arena{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Create stores a value and returns its handle.
func (a *Arena) Create(kind Kind, value any) (Handle, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return 0, ErrClosed
	}

	e := entry{
		kind:  kind,
		value: value,
		valid: true,
	}

	var handle Handle
	if len(a.freeList) > 0 {
		handle = a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		a.entries[handle-1] = e
	} else {
		a.entries = append(a.entries, e)
		handle = Handle(len(a.entries))
	}
	a.mu.Unlock()

	a.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Kind:   kind,
		Value:  value,
	})
	return handle, nil
}

// Get retrieves a value by handle.
func (a *Arena) Get(handle Handle) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.lookup(handle)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// GetTyped retrieves a value only if it matches the expected kind.
func (a *Arena) GetTyped(handle Handle, kind Kind) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.lookup(handle)
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.value, true
}

// KindOf returns the kind tag for a handle.
func (a *Arena) KindOf(handle Handle) (Kind, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.lookup(handle)
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// lookup must be called with the mutex held.
func (a *Arena) lookup(handle Handle) (*entry, bool) {
	if handle == 0 || int(handle) > len(a.entries) {
		return nil, false
	}
	e := &a.entries[handle-1]
	if !e.valid {
		return nil, false
	}
	return e, true
}

// Release drops a handle and returns (value, true) if it was live. The slot
// is recycled; operating on a released handle fails from then on.
func (a *Arena) Release(handle Handle) (any, bool) {
	a.mu.Lock()
	e, ok := a.lookup(handle)
	if !ok {
		a.mu.Unlock()
		return nil, false
	}

	value := e.value
	kind := e.kind
	e.valid = false
	e.value = nil
	a.freeList = append(a.freeList, handle)
	a.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	a.notify(Event{
		Type:   EventReleased,
		Handle: handle,
		Kind:   kind,
		Value:  value,
	})
	return value, true
}

// Subscribe adds an observer for lifecycle events.
func (a *Arena) Subscribe(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// Unsubscribe removes an observer.
func (a *Arena) Unsubscribe(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, obs := range a.observers {
		if obs == o {
			a.observers = append(a.observers[:i], a.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := 0
	for _, e := range a.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live handles.
func (a *Arena) Each(fn func(Handle, Kind, any) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for i, e := range a.entries {
		if e.valid {
			if !fn(Handle(i+1), e.kind, e.value) {
				break
			}
		}
	}
}

// Close releases every live handle and stops accepting operations.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	for i := range a.entries {
		if a.entries[i].valid {
			if d, ok := a.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			a.entries[i].valid = false
			a.entries[i].value = nil
		}
	}

	a.entries = nil
	a.freeList = nil
	return nil
}

func (a *Arena) notify(e Event) {
	a.mu.RLock()
	obs := a.observers
	a.mu.RUnlock()
	for _, o := range obs {
		o.OnHandleEvent(e)
	}
}
