// Package resource implements the arena of engine-owned handles.
//
// A Handle is a strongly typed integer identifier with no implicit lifetime:
// objects are created by a *_new-class call and must be released by the
// matching *_free-class call. Nothing here ties cleanup to garbage
// collection; finalizer timing is unsuitable for a resource shared across a
// process boundary. The LeakChecker observer is the explicit backstop:
// it reports handles that were created but never released.
package resource
