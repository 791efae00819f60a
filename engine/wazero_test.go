package engine

import (
	"context"
	"testing"
	"time"

	"github.com/tetratelabs/wazero/api"

	mdataffi "github.com/safeclient/mdata-ffi"
)

// Completion callbacks read result payloads out of the module's linear
// memory, so the next call must not enter the module until the callback
// has returned.
func TestWazeroCompletionDeliveredUnderCallLock(t *testing.T) {
	d := &WazeroDispatcher{funcs: make([]api.Function, mdataffi.FuncCount())}

	held := make(chan bool, 1)
	d.Invoke(context.Background(), mdataffi.FnGetValue, nil, func(c mdataffi.Completion) {
		if c.Code != CodeNoSuchFunction {
			t.Errorf("code = %d, want %d", c.Code, CodeNoSuchFunction)
		}
		free := d.callMu.TryLock()
		if free {
			d.callMu.Unlock()
		}
		held <- !free
	})

	select {
	case lockHeld := <-held:
		if !lockHeld {
			t.Fatal("completion delivered without the call lock held")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("completion never delivered")
	}
}

func TestWazeroUnknownFunction(t *testing.T) {
	d := &WazeroDispatcher{funcs: make([]api.Function, mdataffi.FuncCount())}

	done := make(chan mdataffi.Completion, 1)
	d.Invoke(context.Background(), mdataffi.FuncID(mdataffi.FuncCount()+7), nil, func(c mdataffi.Completion) {
		done <- c
	})

	select {
	case c := <-done:
		if c.Code != CodeNoSuchFunction {
			t.Errorf("code = %d, want %d", c.Code, CodeNoSuchFunction)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("completion never delivered")
	}
}
