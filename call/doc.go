// Package call adapts the engine's callback-based native calls into one-shot
// futures with exactly-once settlement.
//
// An Op binds a native function to its input transform and output transform;
// Start encodes the arguments into engine memory, dispatches, and returns a
// Pending that settles when the completion callback fires: success with the
// transformed output, or failure carrying the engine's result code. Input
// validation failures settle the Pending without ever touching the engine.
//
// This package performs no retries and imposes no timeouts; both are the
// caller's concern. Context cancellation abandons Await, never the
// dispatched call.
package call
