package mdata

import (
	"context"

	mdataffi "github.com/safeclient/mdata-ffi"
	"github.com/safeclient/mdata-ffi/wire"
)

// Client issues mutable-data operations over a dispatcher. Methods block
// until the native call completes (or ctx expires); cancelling ctx abandons
// the wait but never the call itself.
//
// A Client is safe for concurrent use when its dispatcher is.
type Client struct {
	d mdataffi.Dispatcher
}

// NewClient wraps a dispatcher.
func NewClient(d mdataffi.Dispatcher) *Client {
	return &Client{d: d}
}

// Dispatcher returns the underlying dispatcher.
func (c *Client) Dispatcher() mdataffi.Dispatcher { return c.d }

// InfoSerialise renders info into the engine's portable byte form, suitable
// for sharing with another app.
func (c *Client) InfoSerialise(ctx context.Context, info wire.Info) ([]byte, error) {
	return opInfoSerialise.Start(ctx, c.d, info).Await(ctx)
}

// InfoDeserialise reconstructs an Info from its portable byte form.
func (c *Client) InfoDeserialise(ctx context.Context, data []byte) (wire.Info, error) {
	return opInfoDeserialise.Start(ctx, c.d, data).Await(ctx)
}

// Put stores a new mutable-data object with the given initial permissions
// and entries. The handles stay live; the caller still frees them.
func (c *Client) Put(ctx context.Context, info wire.Info, perms *Permissions, entries *Entries) error {
	ph, err := perms.handle()
	if err != nil {
		return err
	}
	eh, err := entries.handle()
	if err != nil {
		return err
	}
	_, err = opPut.Start(ctx, c.d, putIn{info: info, perms: ph, entries: eh}).Await(ctx)
	return err
}

// GetVersion fetches the object's shell version, bumped by permission
// changes.
func (c *Client) GetVersion(ctx context.Context, info wire.Info) (uint64, error) {
	return opGetVersion.Start(ctx, c.d, info).Await(ctx)
}

// SerialisedSize reports the object's size in its stored serialised form.
func (c *Client) SerialisedSize(ctx context.Context, info wire.Info) (uint64, error) {
	return opSerialisedSize.Start(ctx, c.d, info).Await(ctx)
}

// GetValue fetches one entry's content and version.
func (c *Client) GetValue(ctx context.Context, info wire.Info, key []byte) (wire.Value, error) {
	return opGetValue.Start(ctx, c.d, infoKeyIn{info: info, key: key}).Await(ctx)
}

// ListEntries fetches every entry of the object.
func (c *Client) ListEntries(ctx context.Context, info wire.Info) ([]wire.Entry, error) {
	return opListEntries.Start(ctx, c.d, info).Await(ctx)
}

// ListKeys fetches every entry key of the object.
func (c *Client) ListKeys(ctx context.Context, info wire.Info) ([][]byte, error) {
	return opListKeys.Start(ctx, c.d, info).Await(ctx)
}

// ListValues fetches every entry value of the object.
func (c *Client) ListValues(ctx context.Context, info wire.Info) ([]wire.Value, error) {
	return opListValues.Start(ctx, c.d, info).Await(ctx)
}

// MutateEntries applies an action batch to the object in a single native
// call. The whole batch succeeds or fails together. The actions handle stays
// live; the caller still frees it.
func (c *Client) MutateEntries(ctx context.Context, info wire.Info, actions *EntryActions) error {
	ah, err := actions.handle()
	if err != nil {
		return err
	}
	_, err = opMutateEntries.Start(ctx, c.d, mutateIn{info: info, actions: ah}).Await(ctx)
	return err
}

// ListPermissions fetches the object's full permission table as a new
// engine-owned collection. The caller owns the returned handle.
func (c *Client) ListPermissions(ctx context.Context, info wire.Info) (*Permissions, error) {
	h, err := opListPermissions.Start(ctx, c.d, info).Await(ctx)
	if err != nil {
		return nil, err
	}
	return &Permissions{c: c, h: h}, nil
}

// ListUserPermissions fetches the capabilities granted to one signing key.
func (c *Client) ListUserPermissions(ctx context.Context, info wire.Info, user wire.SignKeyHandle) (wire.PermissionSet, error) {
	return opListUserPermissions.Start(ctx, c.d, infoUserIn{info: info, user: user}).Await(ctx)
}

// SetUserPermissions grants or replaces one signing key's capabilities.
// version must be the current shell version plus one.
func (c *Client) SetUserPermissions(ctx context.Context, info wire.Info, user wire.SignKeyHandle, perms wire.PermissionSet, version uint64) error {
	_, err := opSetUserPermissions.Start(ctx, c.d, setPermsIn{
		info:    info,
		user:    user,
		perms:   perms,
		version: version,
	}).Await(ctx)
	return err
}

// DelUserPermissions revokes one signing key's capabilities. version must be
// the current shell version plus one.
func (c *Client) DelUserPermissions(ctx context.Context, info wire.Info, user wire.SignKeyHandle, version uint64) error {
	_, err := opDelUserPermissions.Start(ctx, c.d, delPermsIn{
		info:    info,
		user:    user,
		version: version,
	}).Await(ctx)
	return err
}

// NewPermissions creates an empty engine-owned permission collection.
func (c *Client) NewPermissions(ctx context.Context) (*Permissions, error) {
	h, err := opPermissionsNew.Start(ctx, c.d, none{}).Await(ctx)
	if err != nil {
		return nil, err
	}
	return &Permissions{c: c, h: h}, nil
}

// NewEntries creates an empty engine-owned entry collection for seeding a
// Put.
func (c *Client) NewEntries(ctx context.Context) (*Entries, error) {
	h, err := opEntriesNew.Start(ctx, c.d, none{}).Await(ctx)
	if err != nil {
		return nil, err
	}
	return &Entries{c: c, h: h}, nil
}

// NewEntryActions creates an empty engine-owned action batch.
func (c *Client) NewEntryActions(ctx context.Context) (*EntryActions, error) {
	h, err := opEntryActionsNew.Start(ctx, c.d, none{}).Await(ctx)
	if err != nil {
		return nil, err
	}
	return &EntryActions{c: c, h: h}, nil
}

// EncodeMetadata renders an opaque name/description pair into the engine's
// canonical byte form.
func (c *Client) EncodeMetadata(ctx context.Context, md wire.Metadata) ([]byte, error) {
	return opEncodeMetadata.Start(ctx, c.d, md).Await(ctx)
}
