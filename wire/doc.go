// Package wire declares the exact memory layout of every structure crossing
// the engine boundary and converts between those layouts and Go value objects.
//
// Field order and per-field byte widths in layout.go mirror the engine's
// repr(C) structs bit-for-bit; changing them breaks wire compatibility.
// Encoding is pure and synchronous. Decoding copies every variable-length
// payload out of engine memory, so decoded values never alias engine-owned
// buffers.
package wire
