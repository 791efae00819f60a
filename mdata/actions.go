package mdata

import (
	"context"
	"sync/atomic"

	"github.com/safeclient/mdata-ffi/errors"
	"github.com/safeclient/mdata-ffi/resource"
)

// EntryActions wraps an engine-owned mutation batch. Actions accumulate in
// the engine and are applied atomically by Client.MutateEntries: the batch
// validates as a whole before any entry changes, so a version conflict on
// one action leaves every entry untouched.
type EntryActions struct {
	c        *Client
	h        resource.Handle
	released atomic.Bool
}

func (a *EntryActions) handle() (resource.Handle, error) {
	if a == nil || a.released.Load() {
		return 0, errors.HandleReleased("entry actions")
	}
	return a.h, nil
}

// Handle exposes the raw handle, mainly for diagnostics.
func (a *EntryActions) Handle() resource.Handle { return a.h }

// Insert stages a new entry. Fails at mutate time if the key already exists.
func (a *EntryActions) Insert(ctx context.Context, key, content []byte) error {
	h, err := a.handle()
	if err != nil {
		return err
	}
	_, err = opEntryActionsInsert.Start(ctx, a.c.d, handleEntryIn{h: h, key: key, content: content}).Await(ctx)
	return err
}

// Update stages a content replacement. version must be the entry's current
// version plus one; a mismatch fails the whole batch at mutate time.
func (a *EntryActions) Update(ctx context.Context, key, content []byte, version uint64) error {
	h, err := a.handle()
	if err != nil {
		return err
	}
	_, err = opEntryActionsUpdate.Start(ctx, a.c.d, handleVersionedEntryIn{
		h:       h,
		key:     key,
		content: content,
		version: version,
	}).Await(ctx)
	return err
}

// Delete stages an entry removal. version must be the entry's current
// version plus one.
func (a *EntryActions) Delete(ctx context.Context, key []byte, version uint64) error {
	h, err := a.handle()
	if err != nil {
		return err
	}
	_, err = opEntryActionsDelete.Start(ctx, a.c.d, handleDeleteIn{h: h, key: key, version: version}).Await(ctx)
	return err
}

// Free releases the engine-owned batch. If the engine rejects the free, the
// wrapper stays live so the release can be retried.
func (a *EntryActions) Free(ctx context.Context) error {
	if a == nil || !a.released.CompareAndSwap(false, true) {
		return errors.HandleReleased("entry actions")
	}
	if _, err := opEntryActionsFree.Start(ctx, a.c.d, a.h).Await(ctx); err != nil {
		a.released.Store(false)
		return err
	}
	return nil
}
