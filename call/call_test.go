package call

import (
	"context"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	mdataffi "github.com/safeclient/mdata-ffi"
	"github.com/safeclient/mdata-ffi/errors"
)

// fakeMemory is a flat buffer with a counting bump allocator.
type fakeMemory struct {
	buf    []byte
	next   uint32
	allocs int
	frees  int
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{buf: make([]byte, 1<<16), next: 16}
}

func (m *fakeMemory) Read(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(len(m.buf)) {
		return nil, fmt.Errorf("read out of bounds")
	}
	return m.buf[offset : offset+length], nil
}

func (m *fakeMemory) Write(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > uint64(len(m.buf)) {
		return fmt.Errorf("write out of bounds")
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *fakeMemory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *fakeMemory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *fakeMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *fakeMemory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *fakeMemory) WriteU8(offset uint32, v uint8) error { return m.Write(offset, []byte{v}) }
func (m *fakeMemory) WriteU16(offset uint32, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return m.Write(offset, b[:])
}
func (m *fakeMemory) WriteU32(offset uint32, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.Write(offset, b[:])
}
func (m *fakeMemory) WriteU64(offset uint32, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return m.Write(offset, b[:])
}

func (m *fakeMemory) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	m.allocs++
	ptr := (m.next + align - 1) &^ (align - 1)
	m.next = ptr + size
	return ptr, nil
}

func (m *fakeMemory) Free(ptr, size, align uint32) { m.frees++ }

// fakeDispatcher completes every call with a canned completion, possibly
// more than once to exercise the exactly-once guarantee.
type fakeDispatcher struct {
	mem        *fakeMemory
	completion mdataffi.Completion
	invoked    int
	doubleFire bool
}

func newFakeDispatcher(c mdataffi.Completion) *fakeDispatcher {
	return &fakeDispatcher{mem: newFakeMemory(), completion: c}
}

func (d *fakeDispatcher) Invoke(ctx context.Context, fn mdataffi.FuncID, args []uint64, done func(mdataffi.Completion)) {
	d.invoked++
	go func() {
		done(d.completion)
		if d.doubleFire {
			done(mdataffi.Completion{Code: -999, Desc: "second completion"})
		}
	}()
}

func (d *fakeDispatcher) Memory() mdataffi.Memory         { return d.mem }
func (d *fakeDispatcher) Allocator() mdataffi.Allocator   { return d.mem }
func (d *fakeDispatcher) Close(ctx context.Context) error { return nil }

var echoOp = Op[uint64, uint64]{
	Fn: mdataffi.FnGetVersion,
	Encode: func(f *Frame, in uint64) ([]uint64, error) {
		return []uint64{in}, nil
	},
	Decode: func(_ *Frame, c mdataffi.Completion) (uint64, error) {
		out, err := Outs(c, 1)
		if err != nil {
			return 0, err
		}
		return out[0], nil
	},
}

func TestOpSuccess(t *testing.T) {
	d := newFakeDispatcher(mdataffi.Completion{Out: []uint64{42}})

	got, err := echoOp.Start(context.Background(), d, 7).Await(context.Background())
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if d.invoked != 1 {
		t.Errorf("dispatcher invoked %d times, want 1", d.invoked)
	}
}

func TestOpNativeFailure(t *testing.T) {
	d := newFakeDispatcher(mdataffi.Completion{Code: -108, Desc: "version mismatch"})

	_, err := echoOp.Start(context.Background(), d, 7).Await(context.Background())
	if err == nil {
		t.Fatal("expected native failure")
	}
	if !errors.IsNative(err) {
		t.Fatalf("got %v, want native failure", err)
	}
	if code := errors.NativeCode(err); code != -108 {
		t.Errorf("code = %d, want -108", code)
	}
}

func TestOpValidationShortCircuits(t *testing.T) {
	d := newFakeDispatcher(mdataffi.Completion{})
	op := Op[uint64, uint64]{
		Fn: mdataffi.FnGetVersion,
		Encode: func(_ *Frame, _ uint64) ([]uint64, error) {
			return nil, errors.InvalidInput([]string{"key"}, "empty")
		},
	}

	_, err := op.Start(context.Background(), d, 0).Await(context.Background())
	if !errors.IsValidation(err) {
		t.Fatalf("got %v, want validation error", err)
	}
	if d.invoked != 0 {
		t.Errorf("dispatcher invoked %d times after validation failure, want 0", d.invoked)
	}
}

func TestOpSettlesExactlyOnce(t *testing.T) {
	d := newFakeDispatcher(mdataffi.Completion{Out: []uint64{1}})
	d.doubleFire = true

	p := echoOp.Start(context.Background(), d, 0)
	got, err := p.Await(context.Background())
	if err != nil || got != 1 {
		t.Fatalf("first completion lost: (%d, %v)", got, err)
	}

	// The second completion must be dropped, not buffered.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Await(ctx); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second await got %v, want deadline exceeded", err)
	}
}

func TestOpFreesFrameOnEveryPath(t *testing.T) {
	tests := []struct {
		name       string
		completion mdataffi.Completion
	}{
		{"success", mdataffi.Completion{Out: []uint64{1}}},
		{"native failure", mdataffi.Completion{Code: -100, Desc: "access denied"}},
	}

	allocOp := Op[[]byte, uint64]{
		Fn: mdataffi.FnGetValue,
		Encode: func(f *Frame, in []byte) ([]uint64, error) {
			ptr, length, err := f.Enc.EncodeBytes(in)
			if err != nil {
				return nil, err
			}
			return []uint64{uint64(ptr), uint64(length)}, nil
		},
		Decode: func(_ *Frame, c mdataffi.Completion) (uint64, error) {
			out, err := Outs(c, 1)
			if err != nil {
				return 0, err
			}
			return out[0], nil
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDispatcher(tt.completion)
			_, _ = allocOp.Start(context.Background(), d, []byte("argument")).Await(context.Background())
			if d.mem.frees != d.mem.allocs {
				t.Errorf("freed %d of %d argument buffers", d.mem.frees, d.mem.allocs)
			}
		})
	}
}

func TestOpNilDecodeDiscardsOutput(t *testing.T) {
	d := newFakeDispatcher(mdataffi.Completion{Out: []uint64{9, 9, 9}})
	op := Op[uint64, struct{}]{
		Fn: mdataffi.FnPut,
		Encode: func(_ *Frame, in uint64) ([]uint64, error) {
			return []uint64{in}, nil
		},
	}

	if _, err := op.Start(context.Background(), d, 1).Await(context.Background()); err != nil {
		t.Fatalf("await: %v", err)
	}
}

func TestAwaitContextCancelled(t *testing.T) {
	p := newPending[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Await(ctx); !stderrors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	// The settlement must survive an abandoned Await.
	p.settle(5, nil)
	got, err := p.Await(context.Background())
	if err != nil || got != 5 {
		t.Errorf("settlement lost after cancelled await: (%d, %v)", got, err)
	}
}

func TestFailed(t *testing.T) {
	want := errors.HandleReleased("entries")
	p := Failed[int](want)
	_, err := p.Await(context.Background())
	if err != want {
		t.Errorf("got %v, want %v", err, want)
	}
}

func TestOutsGuard(t *testing.T) {
	if _, err := Outs(mdataffi.Completion{Out: []uint64{1}}, 2); err == nil {
		t.Error("short output accepted")
	}
	out, err := Outs(mdataffi.Completion{Out: []uint64{1, 2}}, 2)
	if err != nil || len(out) != 2 {
		t.Errorf("exact output rejected: (%v, %v)", out, err)
	}
}

func TestPendingIDsDistinct(t *testing.T) {
	a, b := newPending[int](), newPending[int]()
	if a.ID() == b.ID() {
		t.Error("correlation ids collide")
	}
}
