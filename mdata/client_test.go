package mdata

import (
	"bytes"
	"context"
	"sync"
	"testing"

	mdataffi "github.com/safeclient/mdata-ffi"
	"github.com/safeclient/mdata-ffi/engine"
	"github.com/safeclient/mdata-ffi/errors"
	"github.com/safeclient/mdata-ffi/wire"
)

// countingDispatcher wraps a dispatcher and tallies invocations per function.
type countingDispatcher struct {
	mdataffi.Dispatcher
	mu    sync.Mutex
	calls map[mdataffi.FuncID]int
}

func newCountingDispatcher(d mdataffi.Dispatcher) *countingDispatcher {
	return &countingDispatcher{Dispatcher: d, calls: make(map[mdataffi.FuncID]int)}
}

func (d *countingDispatcher) Invoke(ctx context.Context, fn mdataffi.FuncID, args []uint64, done func(mdataffi.Completion)) {
	d.mu.Lock()
	d.calls[fn]++
	d.mu.Unlock()
	d.Dispatcher.Invoke(ctx, fn, args, done)
}

func (d *countingDispatcher) count(fn mdataffi.FuncID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[fn]
}

func testInfo(tag uint64) wire.Info {
	var info wire.Info
	for i := range info.Name {
		info.Name[i] = byte(i)
	}
	info.TypeTag = tag
	return info
}

// newTestClient returns a client over a fresh local engine.
func newTestClient(t *testing.T) (*Client, *engine.LocalDispatcher) {
	t.Helper()
	d := engine.NewLocalDispatcher()
	t.Cleanup(func() { d.Close(context.Background()) })
	return NewClient(d), d
}

func putObject(t *testing.T, ctx context.Context, c *Client, info wire.Info, seed map[string]string) {
	t.Helper()
	perms, err := c.NewPermissions(ctx)
	if err != nil {
		t.Fatalf("new permissions: %v", err)
	}
	if err := perms.Insert(ctx, 1, wire.PermissionSet{
		Read: true, Insert: true, Update: true, Delete: true, ManagePermissions: true,
	}); err != nil {
		t.Fatalf("insert permission: %v", err)
	}
	entries, err := c.NewEntries(ctx)
	if err != nil {
		t.Fatalf("new entries: %v", err)
	}
	for k, v := range seed {
		if err := entries.Insert(ctx, []byte(k), []byte(v)); err != nil {
			t.Fatalf("seed entry %q: %v", k, err)
		}
	}
	if err := c.Put(ctx, info, perms, entries); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := perms.Free(ctx); err != nil {
		t.Fatalf("free permissions: %v", err)
	}
	if err := entries.Free(ctx); err != nil {
		t.Fatalf("free entries: %v", err)
	}
}

func TestClientPutAndRead(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	info := testInfo(15000)

	putObject(t, ctx, c, info, map[string]string{
		"alpha": "one",
		"beta":  "two",
	})

	val, err := c.GetValue(ctx, info, []byte("alpha"))
	if err != nil {
		t.Fatalf("get value: %v", err)
	}
	if !bytes.Equal(val.Content, []byte("one")) || val.Version != 0 {
		t.Errorf("value = %+v", val)
	}

	entries, err := c.ListEntries(ctx, info)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}

	keys, err := c.ListKeys(ctx, info)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	values, err := c.ListValues(ctx, info)
	if err != nil {
		t.Fatalf("list values: %v", err)
	}
	if len(keys) != 2 || len(values) != 2 {
		t.Errorf("keys/values = %d/%d, want 2/2", len(keys), len(values))
	}

	size, err := c.SerialisedSize(ctx, info)
	if err != nil {
		t.Fatalf("serialised size: %v", err)
	}
	if size == 0 {
		t.Error("serialised size is 0")
	}
}

func TestClientGetValueMissingKey(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	info := testInfo(1)
	putObject(t, ctx, c, info, nil)

	_, err := c.GetValue(ctx, info, []byte("nope"))
	if !errors.IsNative(err) {
		t.Fatalf("got %v, want native failure", err)
	}
	if code := errors.NativeCode(err); code != engine.CodeNoSuchEntry {
		t.Errorf("code = %d, want %d", code, engine.CodeNoSuchEntry)
	}
}

func TestClientEmptyKeyRejectedBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	base, _ := newTestClient(t)
	d := newCountingDispatcher(base.Dispatcher())
	c := NewClient(d)

	_, err := c.GetValue(ctx, testInfo(1), nil)
	if !errors.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}
	if n := d.count(mdataffi.FnGetValue); n != 0 {
		t.Errorf("dispatcher invoked %d times, want 0", n)
	}
}

func TestClientMutateBatchSingleCall(t *testing.T) {
	ctx := context.Background()
	base, _ := newTestClient(t)
	d := newCountingDispatcher(base.Dispatcher())
	c := NewClient(d)

	info := testInfo(2)
	putObject(t, ctx, c, info, map[string]string{"a": "0", "b": "0"})

	actions, err := c.NewEntryActions(ctx)
	if err != nil {
		t.Fatalf("new actions: %v", err)
	}
	if err := actions.Insert(ctx, []byte("c"), []byte("new")); err != nil {
		t.Fatalf("stage insert: %v", err)
	}
	if err := actions.Update(ctx, []byte("a"), []byte("updated"), 1); err != nil {
		t.Fatalf("stage update: %v", err)
	}
	if err := actions.Delete(ctx, []byte("b"), 1); err != nil {
		t.Fatalf("stage delete: %v", err)
	}

	if err := c.MutateEntries(ctx, info, actions); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if err := actions.Free(ctx); err != nil {
		t.Fatalf("free actions: %v", err)
	}

	// Three staged actions, one application.
	if n := d.count(mdataffi.FnMutateEntries); n != 1 {
		t.Errorf("mutate dispatched %d times, want 1", n)
	}

	val, err := c.GetValue(ctx, info, []byte("a"))
	if err != nil {
		t.Fatalf("get updated: %v", err)
	}
	if !bytes.Equal(val.Content, []byte("updated")) || val.Version != 1 {
		t.Errorf("updated value = %+v", val)
	}
	val, err = c.GetValue(ctx, info, []byte("b"))
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if len(val.Content) != 0 || val.Version != 1 {
		t.Errorf("deleted value = %+v, want empty tombstone at version 1", val)
	}
}

func TestClientMutateVersionConflict(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	info := testInfo(3)
	putObject(t, ctx, c, info, map[string]string{"k": "v"})

	actions, err := c.NewEntryActions(ctx)
	if err != nil {
		t.Fatalf("new actions: %v", err)
	}
	defer actions.Free(ctx)

	if err := actions.Update(ctx, []byte("k"), []byte("stale"), 9); err != nil {
		t.Fatalf("stage update: %v", err)
	}
	err = c.MutateEntries(ctx, info, actions)
	if code := errors.NativeCode(err); code != engine.CodeVersionMismatch {
		t.Fatalf("got %v (code %d), want version mismatch", err, code)
	}

	// The failed batch must not have touched the entry.
	val, err := c.GetValue(ctx, info, []byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(val.Content, []byte("v")) || val.Version != 0 {
		t.Errorf("entry changed by failed batch: %+v", val)
	}
}

func TestClientPermissions(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	info := testInfo(4)
	putObject(t, ctx, c, info, nil)

	v, err := c.GetVersion(ctx, info)
	if err != nil || v != 0 {
		t.Fatalf("fresh version = (%d, %v), want 0", v, err)
	}

	grant := wire.PermissionSet{Read: true, Insert: true}
	if err := c.SetUserPermissions(ctx, info, 2, grant, 1); err != nil {
		t.Fatalf("set permissions: %v", err)
	}

	got, err := c.ListUserPermissions(ctx, info, 2)
	if err != nil {
		t.Fatalf("list user permissions: %v", err)
	}
	if got != grant {
		t.Errorf("got %+v, want %+v", got, grant)
	}

	perms, err := c.ListPermissions(ctx, info)
	if err != nil {
		t.Fatalf("list permissions: %v", err)
	}
	sets, err := perms.ListSets(ctx)
	if err != nil {
		t.Fatalf("list sets: %v", err)
	}
	if len(sets) != 2 {
		t.Errorf("got %d sets, want 2", len(sets))
	}
	n, err := perms.Len(ctx)
	if err != nil || n != 2 {
		t.Errorf("len = (%d, %v), want 2", n, err)
	}
	single, err := perms.Get(ctx, 2)
	if err != nil || single != grant {
		t.Errorf("get = (%+v, %v), want %+v", single, err, grant)
	}
	if err := perms.Free(ctx); err != nil {
		t.Fatalf("free: %v", err)
	}

	if err := c.DelUserPermissions(ctx, info, 2, 2); err != nil {
		t.Fatalf("del permissions: %v", err)
	}
	_, err = c.ListUserPermissions(ctx, info, 2)
	if code := errors.NativeCode(err); code != engine.CodeNoSuchKey {
		t.Errorf("revoked lookup: got %v (code %d)", err, code)
	}
}

func TestClientUseAfterFree(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	entries, err := c.NewEntries(ctx)
	if err != nil {
		t.Fatalf("new entries: %v", err)
	}
	if err := entries.Free(ctx); err != nil {
		t.Fatalf("free: %v", err)
	}

	if err := entries.Insert(ctx, []byte("k"), []byte("v")); !errors.IsValidation(err) {
		t.Errorf("insert after free: %v, want validation error", err)
	}
	if _, err := entries.Len(ctx); !errors.IsValidation(err) {
		t.Errorf("len after free: %v, want validation error", err)
	}
	if err := entries.Free(ctx); !errors.IsValidation(err) {
		t.Errorf("double free: %v, want validation error", err)
	}

	actions, err := c.NewEntryActions(ctx)
	if err != nil {
		t.Fatalf("new actions: %v", err)
	}
	if err := actions.Free(ctx); err != nil {
		t.Fatalf("free actions: %v", err)
	}
	if err := c.MutateEntries(ctx, testInfo(1), actions); !errors.IsValidation(err) {
		t.Errorf("mutate with freed actions: %v, want validation error", err)
	}
}

func TestClientFreedHandlesRejectedBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	base, _ := newTestClient(t)
	d := newCountingDispatcher(base.Dispatcher())
	c := NewClient(d)

	perms, err := c.NewPermissions(ctx)
	if err != nil {
		t.Fatalf("new permissions: %v", err)
	}
	if err := perms.Free(ctx); err != nil {
		t.Fatalf("free: %v", err)
	}

	before := d.count(mdataffi.FnPermissionsLen)
	if _, err := perms.Len(ctx); err == nil {
		t.Fatal("freed handle accepted")
	}
	if d.count(mdataffi.FnPermissionsLen) != before {
		t.Error("freed handle reached the dispatcher")
	}
}

func TestClientArgumentBuffersFreed(t *testing.T) {
	ctx := context.Background()
	c, d := newTestClient(t)
	info := testInfo(5)

	// Only calls without output payloads, so every allocation is an
	// argument buffer the frame must free.
	putObject(t, ctx, c, info, map[string]string{"k": "v"})

	outstanding, ok := d.Allocator().(interface{ Outstanding() int })
	if !ok {
		t.Fatal("local allocator does not report outstanding allocations")
	}
	if n := outstanding.Outstanding(); n != 0 {
		t.Errorf("%d argument buffers leaked", n)
	}
}

func TestClientInfoSerialiseRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	want := testInfo(42)
	want.HasEncInfo = true
	for i := range want.EncNonce {
		want.EncNonce[i] = byte(i)
	}

	blob, err := c.InfoSerialise(ctx, want)
	if err != nil {
		t.Fatalf("serialise: %v", err)
	}
	got, err := c.InfoDeserialise(ctx, blob)
	if err != nil {
		t.Fatalf("deserialise: %v", err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}

	if _, err := c.InfoDeserialise(ctx, nil); !errors.IsValidation(err) {
		t.Errorf("empty blob: %v, want validation error", err)
	}
}

func TestClientEncodeMetadata(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	blob, err := c.EncodeMetadata(ctx, wire.Metadata{Name: "album", Description: "holiday"})
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	if len(blob) == 0 {
		t.Error("encoded metadata is empty")
	}
}

// faultOnceDispatcher fails the first invocation of one function with a
// native fault, then delegates.
type faultOnceDispatcher struct {
	mdataffi.Dispatcher
	fn     mdataffi.FuncID
	failed bool
}

func (d *faultOnceDispatcher) Invoke(ctx context.Context, fn mdataffi.FuncID, args []uint64, done func(mdataffi.Completion)) {
	if fn == d.fn && !d.failed {
		d.failed = true
		go done(mdataffi.Completion{Code: engine.CodeBadArguments, Desc: "transient engine fault"})
		return
	}
	d.Dispatcher.Invoke(ctx, fn, args, done)
}

func TestClientFreeRetriesAfterEngineFault(t *testing.T) {
	ctx := context.Background()
	base, _ := newTestClient(t)
	d := &faultOnceDispatcher{Dispatcher: base.Dispatcher(), fn: mdataffi.FnEntriesFree}
	c := NewClient(d)

	entries, err := c.NewEntries(ctx)
	if err != nil {
		t.Fatalf("new entries: %v", err)
	}

	if err := entries.Free(ctx); !errors.IsNative(err) {
		t.Fatalf("first free: %v, want native failure", err)
	}

	// The engine still holds the handle, so the wrapper must stay live.
	if _, err := entries.Len(ctx); err != nil {
		t.Errorf("len after failed free: %v", err)
	}
	if err := entries.Free(ctx); err != nil {
		t.Fatalf("retried free: %v", err)
	}
	if err := entries.Free(ctx); !errors.IsValidation(err) {
		t.Errorf("free after successful free: %v, want validation error", err)
	}
}
