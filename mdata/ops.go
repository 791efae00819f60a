package mdata

import (
	mdataffi "github.com/safeclient/mdata-ffi"
	"github.com/safeclient/mdata-ffi/call"
	"github.com/safeclient/mdata-ffi/errors"
	"github.com/safeclient/mdata-ffi/resource"
	"github.com/safeclient/mdata-ffi/wire"
)

// The operation table. Each var binds one native function to its encode and
// decode transforms; client methods only pick an op and await it, so the
// native signatures live in exactly one place.

type putIn struct {
	info    wire.Info
	perms   resource.Handle
	entries resource.Handle
}

type infoKeyIn struct {
	info wire.Info
	key  []byte
}

type infoUserIn struct {
	info wire.Info
	user wire.SignKeyHandle
}

type setPermsIn struct {
	info    wire.Info
	user    wire.SignKeyHandle
	perms   wire.PermissionSet
	version uint64
}

type delPermsIn struct {
	info    wire.Info
	user    wire.SignKeyHandle
	version uint64
}

type mutateIn struct {
	info    wire.Info
	actions resource.Handle
}

type handleUserIn struct {
	h    resource.Handle
	user wire.SignKeyHandle
}

type handleUserPermsIn struct {
	h     resource.Handle
	user  wire.SignKeyHandle
	perms wire.PermissionSet
}

type handleKeyIn struct {
	h   resource.Handle
	key []byte
}

type handleEntryIn struct {
	h       resource.Handle
	key     []byte
	content []byte
}

type handleVersionedEntryIn struct {
	h       resource.Handle
	key     []byte
	content []byte
	version uint64
}

type handleDeleteIn struct {
	h       resource.Handle
	key     []byte
	version uint64
}

type none struct{}

func encodeInfoOnly(f *call.Frame, info wire.Info) ([]uint64, error) {
	ptr, err := f.Enc.EncodeInfo(info)
	if err != nil {
		return nil, err
	}
	return []uint64{uint64(ptr)}, nil
}

func encodeKey(f *call.Frame, key []byte) (uint32, uint32, error) {
	if len(key) == 0 {
		return 0, 0, errors.InvalidInput([]string{"key"}, "entry key must not be empty")
	}
	return f.Enc.EncodeBytes(key)
}

func decodeBytesOut(f *call.Frame, c mdataffi.Completion) ([]byte, error) {
	out, err := call.Outs(c, 2)
	if err != nil {
		return nil, err
	}
	return f.Dec.DecodeBytes(uint32(out[0]), uint32(out[1]))
}

func decodeWord(_ *call.Frame, c mdataffi.Completion) (uint64, error) {
	out, err := call.Outs(c, 1)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

func decodeHandle(_ *call.Frame, c mdataffi.Completion) (resource.Handle, error) {
	out, err := call.Outs(c, 1)
	if err != nil {
		return 0, err
	}
	if out[0] == 0 {
		return 0, errors.InvalidOutput([]string{"handle"}, "engine returned null handle")
	}
	return resource.Handle(out[0]), nil
}

func decodeValueOut(f *call.Frame, c mdataffi.Completion) (wire.Value, error) {
	out, err := call.Outs(c, 3)
	if err != nil {
		return wire.Value{}, err
	}
	content, err := f.Dec.DecodeBytes(uint32(out[0]), uint32(out[1]))
	if err != nil {
		return wire.Value{}, err
	}
	return wire.Value{Content: content, Version: out[2]}, nil
}

func decodePermissionSetOut(f *call.Frame, c mdataffi.Completion) (wire.PermissionSet, error) {
	out, err := call.Outs(c, 1)
	if err != nil {
		return wire.PermissionSet{}, err
	}
	return f.Dec.DecodePermissionSet(uint32(out[0]))
}

var opInfoSerialise = call.Op[wire.Info, []byte]{
	Fn:     mdataffi.FnInfoSerialise,
	Encode: encodeInfoOnly,
	Decode: decodeBytesOut,
}

var opInfoDeserialise = call.Op[[]byte, wire.Info]{
	Fn: mdataffi.FnInfoDeserialise,
	Encode: func(f *call.Frame, data []byte) ([]uint64, error) {
		if len(data) == 0 {
			return nil, errors.InvalidInput([]string{"serialised_info"}, "serialised info must not be empty")
		}
		ptr, length, err := f.Enc.EncodeBytes(data)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr), uint64(length)}, nil
	},
	Decode: func(f *call.Frame, c mdataffi.Completion) (wire.Info, error) {
		out, err := call.Outs(c, 1)
		if err != nil {
			return wire.Info{}, err
		}
		return f.Dec.DecodeInfo(uint32(out[0]))
	},
}

var opPut = call.Op[putIn, none]{
	Fn: mdataffi.FnPut,
	Encode: func(f *call.Frame, in putIn) ([]uint64, error) {
		ptr, err := f.Enc.EncodeInfo(in.info)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr), uint64(in.perms), uint64(in.entries)}, nil
	},
}

var opGetVersion = call.Op[wire.Info, uint64]{
	Fn:     mdataffi.FnGetVersion,
	Encode: encodeInfoOnly,
	Decode: decodeWord,
}

var opSerialisedSize = call.Op[wire.Info, uint64]{
	Fn:     mdataffi.FnSerialisedSize,
	Encode: encodeInfoOnly,
	Decode: decodeWord,
}

var opGetValue = call.Op[infoKeyIn, wire.Value]{
	Fn: mdataffi.FnGetValue,
	Encode: func(f *call.Frame, in infoKeyIn) ([]uint64, error) {
		infoPtr, err := f.Enc.EncodeInfo(in.info)
		if err != nil {
			return nil, err
		}
		keyPtr, keyLen, err := encodeKey(f, in.key)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(infoPtr), uint64(keyPtr), uint64(keyLen)}, nil
	},
	Decode: decodeValueOut,
}

var opListEntries = call.Op[wire.Info, []wire.Entry]{
	Fn:     mdataffi.FnListEntries,
	Encode: encodeInfoOnly,
	Decode: func(f *call.Frame, c mdataffi.Completion) ([]wire.Entry, error) {
		out, err := call.Outs(c, 2)
		if err != nil {
			return nil, err
		}
		return f.Dec.DecodeEntries(uint32(out[0]), uint32(out[1]))
	},
}

var opListKeys = call.Op[wire.Info, [][]byte]{
	Fn:     mdataffi.FnListKeys,
	Encode: encodeInfoOnly,
	Decode: func(f *call.Frame, c mdataffi.Completion) ([][]byte, error) {
		out, err := call.Outs(c, 2)
		if err != nil {
			return nil, err
		}
		return f.Dec.DecodeKeys(uint32(out[0]), uint32(out[1]))
	},
}

var opListValues = call.Op[wire.Info, []wire.Value]{
	Fn:     mdataffi.FnListValues,
	Encode: encodeInfoOnly,
	Decode: func(f *call.Frame, c mdataffi.Completion) ([]wire.Value, error) {
		out, err := call.Outs(c, 2)
		if err != nil {
			return nil, err
		}
		return f.Dec.DecodeValues(uint32(out[0]), uint32(out[1]))
	},
}

var opMutateEntries = call.Op[mutateIn, none]{
	Fn: mdataffi.FnMutateEntries,
	Encode: func(f *call.Frame, in mutateIn) ([]uint64, error) {
		ptr, err := f.Enc.EncodeInfo(in.info)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr), uint64(in.actions)}, nil
	},
}

var opListPermissions = call.Op[wire.Info, resource.Handle]{
	Fn:     mdataffi.FnListPermissions,
	Encode: encodeInfoOnly,
	Decode: decodeHandle,
}

var opListPermissionSets = call.Op[resource.Handle, []wire.UserPermissionSet]{
	Fn: mdataffi.FnListPermissionSets,
	Encode: func(_ *call.Frame, h resource.Handle) ([]uint64, error) {
		return []uint64{uint64(h)}, nil
	},
	Decode: func(f *call.Frame, c mdataffi.Completion) ([]wire.UserPermissionSet, error) {
		out, err := call.Outs(c, 2)
		if err != nil {
			return nil, err
		}
		return f.Dec.DecodeUserPermissionSets(uint32(out[0]), uint32(out[1]))
	},
}

var opListUserPermissions = call.Op[infoUserIn, wire.PermissionSet]{
	Fn: mdataffi.FnListUserPermissions,
	Encode: func(f *call.Frame, in infoUserIn) ([]uint64, error) {
		ptr, err := f.Enc.EncodeInfo(in.info)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr), uint64(in.user)}, nil
	},
	Decode: decodePermissionSetOut,
}

var opSetUserPermissions = call.Op[setPermsIn, none]{
	Fn: mdataffi.FnSetUserPermissions,
	Encode: func(f *call.Frame, in setPermsIn) ([]uint64, error) {
		infoPtr, err := f.Enc.EncodeInfo(in.info)
		if err != nil {
			return nil, err
		}
		psPtr, err := f.Enc.EncodePermissionSet(in.perms)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(infoPtr), uint64(in.user), uint64(psPtr), in.version}, nil
	},
}

var opDelUserPermissions = call.Op[delPermsIn, none]{
	Fn: mdataffi.FnDelUserPermissions,
	Encode: func(f *call.Frame, in delPermsIn) ([]uint64, error) {
		ptr, err := f.Enc.EncodeInfo(in.info)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr), uint64(in.user), in.version}, nil
	},
}

var opPermissionsNew = call.Op[none, resource.Handle]{
	Fn:     mdataffi.FnPermissionsNew,
	Decode: decodeHandle,
}

var opPermissionsLen = call.Op[resource.Handle, uint64]{
	Fn: mdataffi.FnPermissionsLen,
	Encode: func(_ *call.Frame, h resource.Handle) ([]uint64, error) {
		return []uint64{uint64(h)}, nil
	},
	Decode: decodeWord,
}

var opPermissionsGet = call.Op[handleUserIn, wire.PermissionSet]{
	Fn: mdataffi.FnPermissionsGet,
	Encode: func(_ *call.Frame, in handleUserIn) ([]uint64, error) {
		return []uint64{uint64(in.h), uint64(in.user)}, nil
	},
	Decode: decodePermissionSetOut,
}

var opPermissionsInsert = call.Op[handleUserPermsIn, none]{
	Fn: mdataffi.FnPermissionsInsert,
	Encode: func(f *call.Frame, in handleUserPermsIn) ([]uint64, error) {
		psPtr, err := f.Enc.EncodePermissionSet(in.perms)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(in.h), uint64(in.user), uint64(psPtr)}, nil
	},
}

var opPermissionsFree = call.Op[resource.Handle, none]{
	Fn: mdataffi.FnPermissionsFree,
	Encode: func(_ *call.Frame, h resource.Handle) ([]uint64, error) {
		return []uint64{uint64(h)}, nil
	},
}

var opEntriesNew = call.Op[none, resource.Handle]{
	Fn:     mdataffi.FnEntriesNew,
	Decode: decodeHandle,
}

var opEntriesInsert = call.Op[handleEntryIn, none]{
	Fn: mdataffi.FnEntriesInsert,
	Encode: func(f *call.Frame, in handleEntryIn) ([]uint64, error) {
		keyPtr, keyLen, err := encodeKey(f, in.key)
		if err != nil {
			return nil, err
		}
		valPtr, valLen, err := f.Enc.EncodeBytes(in.content)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(in.h), uint64(keyPtr), uint64(keyLen), uint64(valPtr), uint64(valLen)}, nil
	},
}

var opEntriesLen = call.Op[resource.Handle, uint64]{
	Fn: mdataffi.FnEntriesLen,
	Encode: func(_ *call.Frame, h resource.Handle) ([]uint64, error) {
		return []uint64{uint64(h)}, nil
	},
	Decode: decodeWord,
}

var opEntriesGet = call.Op[handleKeyIn, wire.Value]{
	Fn: mdataffi.FnEntriesGet,
	Encode: func(f *call.Frame, in handleKeyIn) ([]uint64, error) {
		keyPtr, keyLen, err := encodeKey(f, in.key)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(in.h), uint64(keyPtr), uint64(keyLen)}, nil
	},
	Decode: decodeValueOut,
}

var opEntriesFree = call.Op[resource.Handle, none]{
	Fn: mdataffi.FnEntriesFree,
	Encode: func(_ *call.Frame, h resource.Handle) ([]uint64, error) {
		return []uint64{uint64(h)}, nil
	},
}

var opEntryActionsNew = call.Op[none, resource.Handle]{
	Fn:     mdataffi.FnEntryActionsNew,
	Decode: decodeHandle,
}

var opEntryActionsInsert = call.Op[handleEntryIn, none]{
	Fn: mdataffi.FnEntryActionsInsert,
	Encode: func(f *call.Frame, in handleEntryIn) ([]uint64, error) {
		keyPtr, keyLen, err := encodeKey(f, in.key)
		if err != nil {
			return nil, err
		}
		valPtr, valLen, err := f.Enc.EncodeBytes(in.content)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(in.h), uint64(keyPtr), uint64(keyLen), uint64(valPtr), uint64(valLen)}, nil
	},
}

var opEntryActionsUpdate = call.Op[handleVersionedEntryIn, none]{
	Fn: mdataffi.FnEntryActionsUpdate,
	Encode: func(f *call.Frame, in handleVersionedEntryIn) ([]uint64, error) {
		keyPtr, keyLen, err := encodeKey(f, in.key)
		if err != nil {
			return nil, err
		}
		valPtr, valLen, err := f.Enc.EncodeBytes(in.content)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(in.h), uint64(keyPtr), uint64(keyLen), uint64(valPtr), uint64(valLen), in.version}, nil
	},
}

var opEntryActionsDelete = call.Op[handleDeleteIn, none]{
	Fn: mdataffi.FnEntryActionsDelete,
	Encode: func(f *call.Frame, in handleDeleteIn) ([]uint64, error) {
		keyPtr, keyLen, err := encodeKey(f, in.key)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(in.h), uint64(keyPtr), uint64(keyLen), in.version}, nil
	},
}

var opEntryActionsFree = call.Op[resource.Handle, none]{
	Fn: mdataffi.FnEntryActionsFree,
	Encode: func(_ *call.Frame, h resource.Handle) ([]uint64, error) {
		return []uint64{uint64(h)}, nil
	},
}

var opEncodeMetadata = call.Op[wire.Metadata, []byte]{
	Fn: mdataffi.FnEncodeMetadata,
	Encode: func(f *call.Frame, md wire.Metadata) ([]uint64, error) {
		ptr, err := f.Enc.EncodeMetadata(md)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr)}, nil
	},
	Decode: decodeBytesOut,
}
