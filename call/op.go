package call

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	mdataffi "github.com/safeclient/mdata-ffi"
	"github.com/safeclient/mdata-ffi/errors"
	"github.com/safeclient/mdata-ffi/wire"
)

// Frame carries the per-call encode/decode state. The encoder tracks the
// argument buffers it allocates; frames are freed on every exit path:
// validation failure, native failure, decode failure, success.
type Frame struct {
	Enc *wire.Encoder
	Dec *wire.Decoder
}

func newFrame(d mdataffi.Dispatcher) *Frame {
	mem := d.Memory()
	return &Frame{
		Enc: wire.NewEncoder(mem, d.Allocator()),
		Dec: wire.NewDecoder(mem),
	}
}

func (f *Frame) free() {
	f.Enc.FreeAll()
}

// Op binds one native function to its {input transform, native signature,
// output transform} triple. A nil Encode means the call takes no encoded
// arguments; a nil Decode means the output is discarded and the zero Out is
// returned. Every native operation in the layer is expressed as an Op.
type Op[In, Out any] struct {
	Encode func(*Frame, In) ([]uint64, error)
	Decode func(*Frame, mdataffi.Completion) (Out, error)
	Fn     mdataffi.FuncID
}

// Start encodes in, dispatches the native call, and returns its Pending.
//
// A validation or encode error settles the Pending immediately and the
// dispatcher is never invoked. Otherwise the completion settles it exactly
// once: a non-zero result code becomes a native failure carrying the code
// and engine diagnostic, a zero code runs Decode and settles with its result.
func (op Op[In, Out]) Start(ctx context.Context, d mdataffi.Dispatcher, in In) *Pending[Out] {
	p := newPending[Out]()
	frame := newFrame(d)

	var args []uint64
	if op.Encode != nil {
		var err error
		args, err = op.Encode(frame, in)
		if err != nil {
			frame.free()
			var zero Out
			p.settle(zero, err)
			return p
		}
	}

	logger().Debug("dispatching native call",
		zap.Stringer("fn", op.Fn),
		zap.String("call_id", p.id.String()))

	d.Invoke(ctx, op.Fn, args, func(c mdataffi.Completion) {
		var zero Out
		if !c.OK() {
			frame.free()
			p.settle(zero, errors.Native(c.Code, c.Desc))
			return
		}
		if op.Decode == nil {
			frame.free()
			p.settle(zero, nil)
			return
		}
		out, err := op.Decode(frame, c)
		frame.free()
		p.settle(out, err)
	})
	return p
}

// Outs guards against completions delivering fewer output words than the
// operation's declared signature.
func Outs(c mdataffi.Completion, n int) ([]uint64, error) {
	if len(c.Out) < n {
		return nil, errors.InvalidOutput(nil,
			fmt.Sprintf("expected %d output words, got %d", n, len(c.Out)))
	}
	return c.Out, nil
}
