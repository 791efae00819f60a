// Package errors provides the structured error type shared by every phase of
// the marshalling layer.
//
// Every failure carries a Phase (where in processing it occurred) and a Kind
// (what went wrong). The three caller-visible families map onto phases:
//
//   - validation failures (PhaseValidate) fire synchronously, before any
//     native call is dispatched
//   - native failures (PhaseCall, KindNativeFailure) carry the engine's
//     result code and diagnostic text
//   - decoding failures (PhaseDecode) signal a boundary-contract violation
//     in engine output, distinct from domain faults the engine reports
package errors
