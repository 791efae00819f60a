// Package mdata is the client surface for mutable-data objects. A Client
// wraps a dispatcher and exposes one method per native operation; every
// method encodes its arguments into engine memory, dispatches exactly one
// native call, and frees the argument buffers whatever the outcome.
//
// Engine-owned collections (permission sets, entry seeds, action batches)
// are represented by handle wrappers. Each wrapper must be freed explicitly;
// using one after Free fails validation before any call is dispatched.
package mdata
