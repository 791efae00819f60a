package wire

import (
	"encoding/binary"

	mdataffi "github.com/safeclient/mdata-ffi"
	"github.com/safeclient/mdata-ffi/errors"
)

// Encoder lays value objects out in engine memory. It records every buffer
// it allocates so FreeAll can return them all on any exit path; a failed
// encode therefore never leaks engine buffers and never leaves a partially
// visible argument (each struct is staged locally and committed with a single
// write). An Encoder belongs to one call and is not safe for concurrent use.
type Encoder struct {
	mem   mdataffi.Memory
	alloc mdataffi.Allocator
	bufs  []engineBuf
}

// engineBuf is one allocation made while encoding a call's arguments.
type engineBuf struct {
	ptr   uint32
	size  uint32
	align uint32
}

func NewEncoder(mem mdataffi.Memory, alloc mdataffi.Allocator) *Encoder {
	return &Encoder{mem: mem, alloc: alloc}
}

func (e *Encoder) allocTracked(size, align uint32) (uint32, error) {
	ptr, err := e.alloc.Alloc(size, align)
	if err != nil {
		return 0, errors.AllocationFailed(size, align, err)
	}
	e.bufs = append(e.bufs, engineBuf{ptr: ptr, size: size, align: align})
	return ptr, nil
}

// FreeAll returns every buffer this encoder allocated back to the engine and
// forgets them. Call it once the native call no longer needs the arguments,
// on success and failure alike.
func (e *Encoder) FreeAll() {
	if e.alloc == nil {
		return
	}
	for _, b := range e.bufs {
		e.alloc.Free(b.ptr, b.size, b.align)
	}
	e.bufs = e.bufs[:0]
}

// Tracked reports how many engine buffers the encoder currently holds.
func (e *Encoder) Tracked() int {
	return len(e.bufs)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// EncodeInfo writes an Info struct and returns its address. Key/nonce fields
// whose presence flag is false are written as zero-filled buffers of their
// declared width; the wire layout is fixed-size regardless of logical
// presence.
func (e *Encoder) EncodeInfo(info Info) (uint32, error) {
	addr, err := e.allocTracked(InfoSize, InfoAlign)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, InfoSize)
	copy(buf[InfoNameOff:], info.Name[:])
	binary.LittleEndian.PutUint64(buf[InfoTypeTagOff:], info.TypeTag)
	buf[InfoHasEncOff] = boolByte(info.HasEncInfo)
	if info.HasEncInfo {
		copy(buf[InfoEncKeyOff:], info.EncKey[:])
		copy(buf[InfoEncNonceOff:], info.EncNonce[:])
	}
	buf[InfoHasNewEncOff] = boolByte(info.HasNewEncInfo)
	if info.HasNewEncInfo {
		copy(buf[InfoNewEncKeyOff:], info.NewEncKey[:])
		copy(buf[InfoNewEncNonceOff:], info.NewEncNonce[:])
	}

	if err := e.mem.Write(addr, buf); err != nil {
		return 0, err
	}
	return addr, nil
}

func permissionSetBytes(ps PermissionSet) [PermSetSize]byte {
	var b [PermSetSize]byte
	b[PermReadOff] = boolByte(ps.Read)
	b[PermInsertOff] = boolByte(ps.Insert)
	b[PermUpdateOff] = boolByte(ps.Update)
	b[PermDeleteOff] = boolByte(ps.Delete)
	b[PermManageOff] = boolByte(ps.ManagePermissions)
	return b
}

// EncodePermissionSet writes the five capabilities field-for-field.
// Capabilities left false encode as 0 rather than causing an error.
func (e *Encoder) EncodePermissionSet(ps PermissionSet) (uint32, error) {
	addr, err := e.allocTracked(PermSetSize, PermSetAlign)
	if err != nil {
		return 0, err
	}
	b := permissionSetBytes(ps)
	if err := e.mem.Write(addr, b[:]); err != nil {
		return 0, err
	}
	return addr, nil
}

// EncodeBytes writes a variable-length payload and returns its ptr+len pair.
// An empty payload encodes as ptr=0, len=0 with no allocation.
func (e *Encoder) EncodeBytes(b []byte) (uint32, uint32, error) {
	if len(b) == 0 {
		return 0, 0, nil
	}
	if len(b) > MaxPayloadSize {
		return 0, 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("payload size %d exceeds maximum %d", len(b), MaxPayloadSize).
			Build()
	}
	addr, err := e.allocTracked(uint32(len(b)), 1)
	if err != nil {
		return 0, 0, err
	}
	if err := e.mem.Write(addr, b); err != nil {
		return 0, 0, err
	}
	return addr, uint32(len(b)), nil
}

// EncodeMetadata writes the opaque name/description pair. The strings pass
// through byte-for-byte; the layer attaches no meaning to them.
func (e *Encoder) EncodeMetadata(md Metadata) (uint32, error) {
	namePtr, nameLen, err := e.EncodeBytes([]byte(md.Name))
	if err != nil {
		return 0, err
	}
	descPtr, descLen, err := e.EncodeBytes([]byte(md.Description))
	if err != nil {
		return 0, err
	}

	addr, err := e.allocTracked(MetaSize, MetaAlign)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, MetaSize)
	binary.LittleEndian.PutUint32(buf[MetaNamePtrOff:], namePtr)
	binary.LittleEndian.PutUint32(buf[MetaNameLenOff:], nameLen)
	binary.LittleEndian.PutUint32(buf[MetaDescPtrOff:], descPtr)
	binary.LittleEndian.PutUint32(buf[MetaDescLenOff:], descLen)
	if err := e.mem.Write(addr, buf); err != nil {
		return 0, err
	}
	return addr, nil
}

// EncodeEntries writes a fixed-stride array of Entry records and returns its
// base address and record count. An empty slice encodes as ptr=0, count=0.
func (e *Encoder) EncodeEntries(entries []Entry) (uint32, uint32, error) {
	if len(entries) == 0 {
		return 0, 0, nil
	}
	base, err := e.allocTracked(uint32(len(entries))*EntrySize, EntryAlign)
	if err != nil {
		return 0, 0, err
	}
	buf := make([]byte, uint32(len(entries))*EntrySize)
	for i, entry := range entries {
		keyPtr, keyLen, err := e.EncodeBytes(entry.Key)
		if err != nil {
			return 0, 0, err
		}
		valPtr, valLen, err := e.EncodeBytes(entry.Value.Content)
		if err != nil {
			return 0, 0, err
		}
		rec := buf[uint32(i)*EntrySize:]
		binary.LittleEndian.PutUint32(rec[EntryKeyOff+KeyPtrOff:], keyPtr)
		binary.LittleEndian.PutUint32(rec[EntryKeyOff+KeyLenOff:], keyLen)
		binary.LittleEndian.PutUint32(rec[EntryValueOff+ValuePtrOff:], valPtr)
		binary.LittleEndian.PutUint32(rec[EntryValueOff+ValueLenOff:], valLen)
		binary.LittleEndian.PutUint64(rec[EntryValueOff+ValueVersionOff:], entry.Value.Version)
	}
	if err := e.mem.Write(base, buf); err != nil {
		return 0, 0, err
	}
	return base, uint32(len(entries)), nil
}

// EncodeKeys writes a fixed-stride array of Key records.
func (e *Encoder) EncodeKeys(keys [][]byte) (uint32, uint32, error) {
	if len(keys) == 0 {
		return 0, 0, nil
	}
	base, err := e.allocTracked(uint32(len(keys))*KeySize, KeyAlign)
	if err != nil {
		return 0, 0, err
	}
	buf := make([]byte, uint32(len(keys))*KeySize)
	for i, key := range keys {
		keyPtr, keyLen, err := e.EncodeBytes(key)
		if err != nil {
			return 0, 0, err
		}
		rec := buf[uint32(i)*KeySize:]
		binary.LittleEndian.PutUint32(rec[KeyPtrOff:], keyPtr)
		binary.LittleEndian.PutUint32(rec[KeyLenOff:], keyLen)
	}
	if err := e.mem.Write(base, buf); err != nil {
		return 0, 0, err
	}
	return base, uint32(len(keys)), nil
}

// EncodeValues writes a fixed-stride array of Value records.
func (e *Encoder) EncodeValues(values []Value) (uint32, uint32, error) {
	if len(values) == 0 {
		return 0, 0, nil
	}
	base, err := e.allocTracked(uint32(len(values))*ValueSize, ValueAlign)
	if err != nil {
		return 0, 0, err
	}
	buf := make([]byte, uint32(len(values))*ValueSize)
	for i, val := range values {
		valPtr, valLen, err := e.EncodeBytes(val.Content)
		if err != nil {
			return 0, 0, err
		}
		rec := buf[uint32(i)*ValueSize:]
		binary.LittleEndian.PutUint32(rec[ValuePtrOff:], valPtr)
		binary.LittleEndian.PutUint32(rec[ValueLenOff:], valLen)
		binary.LittleEndian.PutUint64(rec[ValueVersionOff:], val.Version)
	}
	if err := e.mem.Write(base, buf); err != nil {
		return 0, 0, err
	}
	return base, uint32(len(values)), nil
}

// EncodeUserPermissionSets writes a fixed-stride array of UserPermissionSet
// records.
func (e *Encoder) EncodeUserPermissionSets(perms []UserPermissionSet) (uint32, uint32, error) {
	if len(perms) == 0 {
		return 0, 0, nil
	}
	base, err := e.allocTracked(uint32(len(perms))*UserPermSize, UserPermAlign)
	if err != nil {
		return 0, 0, err
	}
	buf := make([]byte, uint32(len(perms))*UserPermSize)
	for i, up := range perms {
		rec := buf[uint32(i)*UserPermSize:]
		binary.LittleEndian.PutUint64(rec[UserPermUserOff:], uint64(up.User))
		psb := permissionSetBytes(up.Perms)
		copy(rec[UserPermPermsOff:], psb[:])
	}
	if err := e.mem.Write(base, buf); err != nil {
		return 0, 0, err
	}
	return base, uint32(len(perms)), nil
}
