package mdata

import (
	"context"
	"sync/atomic"

	"github.com/safeclient/mdata-ffi/errors"
	"github.com/safeclient/mdata-ffi/resource"
	"github.com/safeclient/mdata-ffi/wire"
)

// Permissions is a client-side wrapper around an engine-owned permission
// collection. It must be freed exactly once; every method on a freed wrapper
// fails validation without dispatching.
type Permissions struct {
	c        *Client
	h        resource.Handle
	released atomic.Bool
}

func (p *Permissions) handle() (resource.Handle, error) {
	if p == nil || p.released.Load() {
		return 0, errors.HandleReleased("permissions")
	}
	return p.h, nil
}

// Handle exposes the raw handle, mainly for diagnostics.
func (p *Permissions) Handle() resource.Handle { return p.h }

// Len reports the number of (user, permission set) pairs in the collection.
func (p *Permissions) Len(ctx context.Context) (uint64, error) {
	h, err := p.handle()
	if err != nil {
		return 0, err
	}
	return opPermissionsLen.Start(ctx, p.c.d, h).Await(ctx)
}

// Get fetches the capabilities granted to one signing key.
func (p *Permissions) Get(ctx context.Context, user wire.SignKeyHandle) (wire.PermissionSet, error) {
	h, err := p.handle()
	if err != nil {
		return wire.PermissionSet{}, err
	}
	return opPermissionsGet.Start(ctx, p.c.d, handleUserIn{h: h, user: user}).Await(ctx)
}

// Insert grants capabilities to a signing key, replacing any prior grant.
func (p *Permissions) Insert(ctx context.Context, user wire.SignKeyHandle, perms wire.PermissionSet) error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	_, err = opPermissionsInsert.Start(ctx, p.c.d, handleUserPermsIn{h: h, user: user, perms: perms}).Await(ctx)
	return err
}

// ListSets fetches every (user, permission set) pair in the collection.
func (p *Permissions) ListSets(ctx context.Context) ([]wire.UserPermissionSet, error) {
	h, err := p.handle()
	if err != nil {
		return nil, err
	}
	return opListPermissionSets.Start(ctx, p.c.d, h).Await(ctx)
}

// Free releases the engine-owned collection. A second Free fails with a
// handle-released error and never reaches the engine. If the engine rejects
// the free, the wrapper stays live so the release can be retried.
func (p *Permissions) Free(ctx context.Context) error {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return errors.HandleReleased("permissions")
	}
	if _, err := opPermissionsFree.Start(ctx, p.c.d, p.h).Await(ctx); err != nil {
		p.released.Store(false)
		return err
	}
	return nil
}

// Entries wraps an engine-owned entry collection used to seed a Put.
type Entries struct {
	c        *Client
	h        resource.Handle
	released atomic.Bool
}

func (e *Entries) handle() (resource.Handle, error) {
	if e == nil || e.released.Load() {
		return 0, errors.HandleReleased("entries")
	}
	return e.h, nil
}

// Handle exposes the raw handle, mainly for diagnostics.
func (e *Entries) Handle() resource.Handle { return e.h }

// Insert adds a key/value pair. Inserting a key twice fails with the
// engine's entry-exists code.
func (e *Entries) Insert(ctx context.Context, key, content []byte) error {
	h, err := e.handle()
	if err != nil {
		return err
	}
	_, err = opEntriesInsert.Start(ctx, e.c.d, handleEntryIn{h: h, key: key, content: content}).Await(ctx)
	return err
}

// Len reports the number of entries in the collection.
func (e *Entries) Len(ctx context.Context) (uint64, error) {
	h, err := e.handle()
	if err != nil {
		return 0, err
	}
	return opEntriesLen.Start(ctx, e.c.d, h).Await(ctx)
}

// Get fetches one entry's content and version from the collection.
func (e *Entries) Get(ctx context.Context, key []byte) (wire.Value, error) {
	h, err := e.handle()
	if err != nil {
		return wire.Value{}, err
	}
	return opEntriesGet.Start(ctx, e.c.d, handleKeyIn{h: h, key: key}).Await(ctx)
}

// Free releases the engine-owned collection. If the engine rejects the free,
// the wrapper stays live so the release can be retried.
func (e *Entries) Free(ctx context.Context) error {
	if e == nil || !e.released.CompareAndSwap(false, true) {
		return errors.HandleReleased("entries")
	}
	if _, err := opEntriesFree.Start(ctx, e.c.d, e.h).Await(ctx); err != nil {
		e.released.Store(false)
		return err
	}
	return nil
}
