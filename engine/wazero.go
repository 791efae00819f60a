package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	mdataffi "github.com/safeclient/mdata-ffi"
)

// Names of the engine module's allocator exports.
const (
	allocExport = "mdata_alloc"
	freeExport  = "mdata_free"
	errorExport = "mdata_error_message"
)

// Config holds configuration for dispatcher creation.
type Config struct {
	// MemoryLimitPages sets the maximum engine memory in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// WazeroDispatcher drives an engine built as a wasm32 module. Each native
// operation is an exported function taking the flat argument words and
// returning (code i32, out_ptr i32, out_count i32); out_ptr addresses an
// array of u64 output words in the module's linear memory.
//
// Calls into one module instance are serialized, and the serialization
// window covers completion delivery: the next call cannot enter the module
// until the previous completion callback has finished reading its results
// out of linear memory. Completions are delivered from the dispatch
// goroutine, never the caller's.
type WazeroDispatcher struct {
	runtime wazero.Runtime
	module  api.Module
	mem     *wazeroMemory
	alloc   *wazeroAllocator
	errFn   api.Function
	funcs   []api.Function
	callMu  sync.Mutex
}

// NewWazeroDispatcher compiles and instantiates the engine module.
func NewWazeroDispatcher(ctx context.Context, engineWasm []byte) (*WazeroDispatcher, error) {
	return NewWazeroDispatcherWithConfig(ctx, engineWasm, nil)
}

// NewWazeroDispatcherWithConfig creates a dispatcher with custom configuration.
func NewWazeroDispatcherWithConfig(ctx context.Context, engineWasm []byte, cfg *Config) (*WazeroDispatcher, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := r.CompileModule(ctx, engineWasm)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("compile engine module: %w", err)
	}

	module, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("mdata-engine"))
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate engine module: %w", err)
	}

	if module.Memory() == nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("engine module exports no memory")
	}

	allocFn := module.ExportedFunction(allocExport)
	if allocFn == nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("engine module missing %s export", allocExport)
	}

	d := &WazeroDispatcher{
		runtime: r,
		module:  module,
		mem:     &wazeroMemory{mem: module.Memory()},
		errFn:   module.ExportedFunction(errorExport),
		funcs:   make([]api.Function, mdataffi.FuncCount()),
	}
	d.alloc = &wazeroAllocator{
		allocFn:  allocFn,
		freeFn:   module.ExportedFunction(freeExport),
		stackBuf: make([]uint64, 8),
	}

	// Cache every declared operation export up front so a missing symbol
	// surfaces as a fault on first use, not a nil dereference.
	for id := mdataffi.FuncID(0); int(id) < mdataffi.FuncCount(); id++ {
		d.funcs[id] = module.ExportedFunction(id.String())
	}

	return d, nil
}

// Memory returns the engine's linear memory.
func (d *WazeroDispatcher) Memory() mdataffi.Memory { return d.mem }

// Allocator returns the engine's exported allocator.
func (d *WazeroDispatcher) Allocator() mdataffi.Allocator { return d.alloc }

// Invoke dispatches fn on a fresh goroutine and delivers its completion
// exactly once. The call lock is held until done returns: the completion
// carries pointers into the module's linear memory, and a later call could
// reuse or grow that memory while the caller is still reading them.
func (d *WazeroDispatcher) Invoke(ctx context.Context, fn mdataffi.FuncID, args []uint64, done func(mdataffi.Completion)) {
	go func() {
		d.callMu.Lock()
		defer d.callMu.Unlock()
		done(d.dispatch(ctx, fn, args))
	}()
}

// dispatch runs one exported operation. Must be called with callMu held.
func (d *WazeroDispatcher) dispatch(ctx context.Context, fn mdataffi.FuncID, args []uint64) mdataffi.Completion {
	var f api.Function
	if int(fn) < len(d.funcs) {
		f = d.funcs[fn]
	}
	if f == nil {
		return mdataffi.Completion{
			Code: CodeNoSuchFunction,
			Desc: fmt.Sprintf("engine does not export %s", fn),
		}
	}

	d.alloc.setContext(ctx)
	results, err := f.Call(ctx, args...)
	if err != nil {
		Logger().Warn("engine call trapped",
			zap.Stringer("fn", fn),
			zap.Error(err))
		return mdataffi.Completion{Code: CodeBadArguments, Desc: err.Error()}
	}
	if len(results) < 3 {
		return mdataffi.Completion{
			Code: CodeBadArguments,
			Desc: fmt.Sprintf("%s returned %d results, want 3", fn, len(results)),
		}
	}

	code := int32(uint32(results[0]))
	outPtr := uint32(results[1])
	outCount := uint32(results[2])

	if code != 0 {
		return mdataffi.Completion{Code: code, Desc: d.errorMessage(ctx, code)}
	}

	out := make([]uint64, 0, outCount)
	for i := uint32(0); i < outCount; i++ {
		word, err := d.mem.ReadU64(outPtr + i*8)
		if err != nil {
			return mdataffi.Completion{
				Code: CodeBadArguments,
				Desc: fmt.Sprintf("%s output array out of bounds", fn),
			}
		}
		out = append(out, word)
	}
	return mdataffi.Completion{Out: out}
}

// errorMessage asks the engine for the diagnostic text behind a fault code.
// Must be called with callMu held.
func (d *WazeroDispatcher) errorMessage(ctx context.Context, code int32) string {
	if d.errFn == nil {
		return ""
	}
	results, err := d.errFn.Call(ctx, uint64(uint32(code)))
	if err != nil || len(results) < 2 {
		return ""
	}
	ptr := uint32(results[0])
	length := uint32(results[1])
	if ptr == 0 || length == 0 {
		return ""
	}
	data, err := d.mem.Read(ptr, length)
	if err != nil {
		return ""
	}
	return string(data)
}

// Close tears the engine module down.
func (d *WazeroDispatcher) Close(ctx context.Context) error {
	return d.runtime.Close(ctx)
}

// wazeroMemory wraps wazero memory to implement mdataffi.Memory.
type wazeroMemory struct {
	mem api.Memory
}

func (m *wazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *wazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *wazeroMemory) ReadU8(offset uint32) (uint8, error) {
	data, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *wazeroMemory) ReadU16(offset uint32) (uint16, error) {
	data, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return uint16(data[0]) | uint16(data[1])<<8, nil
}

func (m *wazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *wazeroMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *wazeroMemory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *wazeroMemory) WriteU16(offset uint32, value uint16) error {
	return m.Write(offset, []byte{byte(value), byte(value >> 8)})
}

func (m *wazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

func (m *wazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

// wazeroAllocator implements mdataffi.Allocator using the engine's exported
// alloc/free pair.
type wazeroAllocator struct {
	allocFn    api.Function
	freeFn     api.Function
	currentCtx context.Context
	stackBuf   []uint64
	stackMutex sync.Mutex
}

func (a *wazeroAllocator) setContext(ctx context.Context) {
	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()
	a.currentCtx = ctx
}

func (a *wazeroAllocator) Alloc(size, align uint32) (uint32, error) {
	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	ctx := a.currentCtx
	if ctx == nil {
		ctx = context.Background()
	}

	a.stackBuf[0] = uint64(size)
	a.stackBuf[1] = uint64(align)
	if err := a.allocFn.CallWithStack(ctx, a.stackBuf[:2]); err != nil {
		return 0, err
	}
	ptr := uint32(a.stackBuf[0])
	if ptr == 0 {
		return 0, fmt.Errorf("engine allocator returned null for %d bytes", size)
	}
	return ptr, nil
}

func (a *wazeroAllocator) Free(ptr, size, align uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}
	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	ctx := a.currentCtx
	if ctx == nil {
		ctx = context.Background()
	}

	a.stackBuf[0] = uint64(ptr)
	a.stackBuf[1] = uint64(size)
	a.stackBuf[2] = uint64(align)
	if err := a.freeFn.CallWithStack(ctx, a.stackBuf[:3]); err != nil {
		Logger().Warn("engine free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}
