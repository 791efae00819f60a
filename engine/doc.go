// Package engine provides the dispatchers that carry native calls to the
// mutable-data storage engine.
//
// Two implementations of mdataffi.Dispatcher live here:
//
//   - WazeroDispatcher drives an engine compiled to a wasm32 module. The
//     module's linear memory is the engine-owned memory, its exported
//     mdata_alloc/mdata_free pair is the allocator, and each operation is an
//     exported function returning (code, out_ptr, out_count). A non-zero
//     code is expanded into a diagnostic via the mdata_error_message export.
//
//   - LocalDispatcher is an in-process reference engine backed by a byte
//     arena. It implements enough mutable-data semantics (versioned entries,
//     optimistic mutation batches, per-key permissions) to exercise every
//     operation end-to-end, and delivers completions on a separate goroutine
//     so callers exercise real completion bridging.
//
// Both deliver each completion exactly once. Neither supports cancelling a
// dispatched call.
package engine
