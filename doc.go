// Package mdataffi is the marshalling layer between Go value objects and the
// native mutable-data storage engine's C-style ABI.
//
// The engine is opaque: it owns the memory that wire structures live in, it
// owns every handle it hands out, and it reports results through one-shot
// completion callbacks. This library lays data out bit-for-bit the way the
// engine expects, copies engine-owned memory back into Go values before the
// engine reclaims it, and turns the callback contract into a uniform
// async-result contract.
//
// # Architecture Overview
//
//	mdataffi/            Root package with the ABI seam: Memory, Allocator,
//	                     FuncID, Completion and Dispatcher
//	├── wire/            Fixed layouts plus encode/decode for every wire struct
//	├── call/            Callback-to-future adaptation with exactly-once settle
//	├── engine/          Dispatchers: wazero-backed engine and local testbed
//	├── mdata/           Operation table and the high-level client surface
//	├── resource/        Engine-side handle arena with leak accounting
//	└── errors/          Structured error types shared by every phase
//
// # Memory Model
//
// All addresses crossing the boundary are 32-bit offsets into engine memory,
// all multi-byte fields are little-endian, and pointers and lengths are u32,
// the layout of a 32-bit C ABI. Buffers allocated for a call are freed on
// every exit path; decoded values never retain engine pointers.
//
// # Handles
//
// Permissions, entries and entry-action objects live inside the engine and
// are referenced by integer handles. Handles must be released explicitly with
// their matching free operation; there is no finalizer backstop. The resource
// package provides a LeakChecker for tests and debug builds.
//
// # Concurrency
//
// No call blocks the calling goroutine. Completions may arrive on any
// goroutine; the call package bridges them into the caller's context via
// Pending.Await. Once dispatched a call cannot be cancelled: context
// cancellation abandons the wait, not the call.
package mdataffi
