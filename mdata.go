package mdataffi

import "context"

// Memory represents engine-owned memory. All offsets are 32-bit addresses
// and all multi-byte accessors are little-endian.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// Allocator allocates buffers inside engine memory.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Completion is the engine's one-shot report for a dispatched call.
// Code 0 means success; any other value is an engine-detected fault and
// Desc carries the engine-supplied diagnostic text. Out holds the raw
// output words (pointers, lengths, handles, scalars) declared by the
// operation's native signature.
type Completion struct {
	Desc string
	Out  []uint64
	Code int32
}

// OK reports whether the completion carries a success code.
func (c Completion) OK() bool { return c.Code == 0 }

// Dispatcher is the seam through which every native call is issued.
//
// Invoke returns immediately; done is called exactly once when the engine
// completes the call, possibly on a goroutine other than the caller's.
// There is no way to abort a dispatched call.
type Dispatcher interface {
	Invoke(ctx context.Context, fn FuncID, args []uint64, done func(Completion))

	// Memory returns the engine memory that encoded arguments are written
	// into and results are read from.
	Memory() Memory

	// Allocator returns the engine-side allocator for argument buffers.
	Allocator() Allocator

	Close(ctx context.Context) error
}
