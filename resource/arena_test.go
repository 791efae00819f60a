package resource

import (
	"testing"
)

func TestArenaCreateGet(t *testing.T) {
	a := NewArena()

	h, err := a.Create(KindEntries, "payload")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if h == 0 {
		t.Fatal("handle 0 is reserved")
	}

	v, ok := a.Get(h)
	if !ok || v.(string) != "payload" {
		t.Fatalf("get = (%v, %v)", v, ok)
	}

	if _, ok := a.Get(0); ok {
		t.Error("handle 0 resolved")
	}
	if _, ok := a.Get(h + 100); ok {
		t.Error("out-of-range handle resolved")
	}
}

func TestArenaGetTyped(t *testing.T) {
	a := NewArena()

	h, _ := a.Create(KindPermissions, 42)
	if _, ok := a.GetTyped(h, KindPermissions); !ok {
		t.Error("matching kind rejected")
	}
	if _, ok := a.GetTyped(h, KindEntryActions); ok {
		t.Error("mismatched kind accepted")
	}

	k, ok := a.KindOf(h)
	if !ok || k != KindPermissions {
		t.Errorf("KindOf = (%v, %v)", k, ok)
	}
}

func TestArenaReleaseAndReuse(t *testing.T) {
	a := NewArena()

	h1, _ := a.Create(KindEntries, "first")
	v, ok := a.Release(h1)
	if !ok || v.(string) != "first" {
		t.Fatalf("release = (%v, %v)", v, ok)
	}

	if _, ok := a.Get(h1); ok {
		t.Error("released handle still resolves")
	}
	if _, ok := a.Release(h1); ok {
		t.Error("double release succeeded")
	}

	// Released slot is recycled.
	h2, _ := a.Create(KindEntryActions, "second")
	if h2 != h1 {
		t.Errorf("slot not reused: got %d, want %d", h2, h1)
	}
	if k, _ := a.KindOf(h2); k != KindEntryActions {
		t.Errorf("recycled slot kept stale kind %v", k)
	}
}

type dropRecorder struct {
	dropped bool
}

func (d *dropRecorder) Drop() { d.dropped = true }

func TestArenaDropperOnRelease(t *testing.T) {
	a := NewArena()
	d := &dropRecorder{}
	h, _ := a.Create(KindEntries, d)

	a.Release(h)
	if !d.dropped {
		t.Error("Drop not called on release")
	}
}

func TestArenaClose(t *testing.T) {
	a := NewArena()
	d := &dropRecorder{}
	h, _ := a.Create(KindEntries, d)

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !d.dropped {
		t.Error("Drop not called on close")
	}
	if _, ok := a.Get(h); ok {
		t.Error("handle resolves after close")
	}
	if _, err := a.Create(KindEntries, "late"); err != ErrClosed {
		t.Errorf("create after close: %v, want ErrClosed", err)
	}
}

func TestArenaLenAndEach(t *testing.T) {
	a := NewArena()
	h1, _ := a.Create(KindEntries, 1)
	a.Create(KindPermissions, 2)
	a.Release(h1)

	if n := a.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}

	seen := 0
	a.Each(func(h Handle, k Kind, v any) bool {
		seen++
		return true
	})
	if seen != 1 {
		t.Errorf("Each visited %d, want 1", seen)
	}
}

func TestLeakChecker(t *testing.T) {
	a := NewArena()
	lc := NewLeakChecker()
	a.Subscribe(lc)

	h1, _ := a.Create(KindEntries, "kept")
	h2, _ := a.Create(KindPermissions, "freed")
	a.Release(h2)

	out := lc.Outstanding()
	if len(out) != 1 {
		t.Fatalf("outstanding = %v, want exactly one", out)
	}
	if out[h1] != KindEntries {
		t.Errorf("outstanding[%d] = %v, want %v", h1, out[h1], KindEntries)
	}

	a.Release(h1)
	if len(lc.Outstanding()) != 0 {
		t.Error("outstanding not empty after full release")
	}

	a.Unsubscribe(lc)
	h3, _ := a.Create(KindEntries, "unobserved")
	if _, tracked := lc.Outstanding()[h3]; tracked {
		t.Error("unsubscribed checker still receiving events")
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindPermissions, "permissions"},
		{KindEntries, "entries"},
		{KindEntryActions, "entry_actions"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
