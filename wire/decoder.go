package wire

import (
	"encoding/binary"
	"strconv"

	mdataffi "github.com/safeclient/mdata-ffi"
	"github.com/safeclient/mdata-ffi/errors"
)

// Decoder reconstructs value objects from engine memory. It assumes no
// ownership of that memory beyond the decode call: every variable-length
// payload is copied into Go-owned buffers before returning.
type Decoder struct {
	mem mdataffi.Memory
}

func NewDecoder(mem mdataffi.Memory) *Decoder {
	return &Decoder{mem: mem}
}

// DecodeBytes copies a ptr+len payload out of engine memory. A zero length
// yields an empty slice without dereferencing the pointer; a null pointer
// with a non-zero length is a boundary-contract violation.
func (d *Decoder) DecodeBytes(ptr, length uint32) ([]byte, error) {
	return d.decodeBytes(ptr, length, nil)
}

func (d *Decoder) decodeBytes(ptr, length uint32, path []string) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if ptr == 0 {
		return nil, errors.NullResult(path)
	}
	if length > MaxPayloadSize {
		return nil, errors.OutOfBounds(path,
			"payload length "+strconv.FormatUint(uint64(length), 10)+" exceeds maximum")
	}
	data, err := d.mem.Read(ptr, length)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "read payload")
	}
	// Read may return a view into engine memory; copy before it is reclaimed.
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

// DecodeInfo reads an Info struct. Presence of encryption material is taken
// from the transported flags, never inferred from zero-ness of the key bytes.
func (d *Decoder) DecodeInfo(ptr uint32) (Info, error) {
	var info Info
	if ptr == 0 {
		return info, errors.NullResult([]string{"info"})
	}
	buf, err := d.mem.Read(ptr, InfoSize)
	if err != nil {
		return info, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "read info struct")
	}
	copy(info.Name[:], buf[InfoNameOff:])
	info.TypeTag = binary.LittleEndian.Uint64(buf[InfoTypeTagOff:])
	info.HasEncInfo = buf[InfoHasEncOff] != 0
	copy(info.EncKey[:], buf[InfoEncKeyOff:])
	copy(info.EncNonce[:], buf[InfoEncNonceOff:])
	info.HasNewEncInfo = buf[InfoHasNewEncOff] != 0
	copy(info.NewEncKey[:], buf[InfoNewEncKeyOff:])
	copy(info.NewEncNonce[:], buf[InfoNewEncNonceOff:])
	return info, nil
}

func decodePermissionSetBytes(b []byte) PermissionSet {
	return PermissionSet{
		Read:              b[PermReadOff] != 0,
		Insert:            b[PermInsertOff] != 0,
		Update:            b[PermUpdateOff] != 0,
		Delete:            b[PermDeleteOff] != 0,
		ManagePermissions: b[PermManageOff] != 0,
	}
}

// DecodePermissionSet reads a PermissionSet struct.
func (d *Decoder) DecodePermissionSet(ptr uint32) (PermissionSet, error) {
	if ptr == 0 {
		return PermissionSet{}, errors.NullResult([]string{"permission_set"})
	}
	buf, err := d.mem.Read(ptr, PermSetSize)
	if err != nil {
		return PermissionSet{}, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "read permission set")
	}
	return decodePermissionSetBytes(buf), nil
}

// DecodeMetadata reads a Metadata struct and copies both strings out.
func (d *Decoder) DecodeMetadata(ptr uint32) (Metadata, error) {
	var md Metadata
	if ptr == 0 {
		return md, errors.NullResult([]string{"metadata"})
	}
	buf, err := d.mem.Read(ptr, MetaSize)
	if err != nil {
		return md, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "read metadata struct")
	}
	name, err := d.decodeBytes(
		binary.LittleEndian.Uint32(buf[MetaNamePtrOff:]),
		binary.LittleEndian.Uint32(buf[MetaNameLenOff:]),
		[]string{"metadata", "name"})
	if err != nil {
		return md, err
	}
	desc, err := d.decodeBytes(
		binary.LittleEndian.Uint32(buf[MetaDescPtrOff:]),
		binary.LittleEndian.Uint32(buf[MetaDescLenOff:]),
		[]string{"metadata", "description"})
	if err != nil {
		return md, err
	}
	md.Name = string(name)
	md.Description = string(desc)
	return md, nil
}

func (d *Decoder) checkArray(ptr, count, stride uint32, path []string) ([]byte, error) {
	if ptr == 0 {
		return nil, errors.NullResult(path)
	}
	if count > MaxRecordCount {
		return nil, errors.OutOfBounds(path,
			"record count "+strconv.FormatUint(uint64(count), 10)+" exceeds maximum")
	}
	buf, err := d.mem.Read(ptr, count*stride)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "read record array")
	}
	return buf, nil
}

// DecodeEntries reinterprets engine memory as a fixed-stride array of Entry
// records. A count of 0 yields an empty slice and never touches the pointer.
func (d *Decoder) DecodeEntries(ptr, count uint32) ([]Entry, error) {
	entries := make([]Entry, 0, count)
	if count == 0 {
		return entries, nil
	}
	buf, err := d.checkArray(ptr, count, EntrySize, []string{"entries"})
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		rec := buf[i*EntrySize:]
		path := []string{"entries", "[" + strconv.FormatUint(uint64(i), 10) + "]"}
		key, err := d.decodeBytes(
			binary.LittleEndian.Uint32(rec[EntryKeyOff+KeyPtrOff:]),
			binary.LittleEndian.Uint32(rec[EntryKeyOff+KeyLenOff:]),
			append(path, "key"))
		if err != nil {
			return nil, err
		}
		content, err := d.decodeBytes(
			binary.LittleEndian.Uint32(rec[EntryValueOff+ValuePtrOff:]),
			binary.LittleEndian.Uint32(rec[EntryValueOff+ValueLenOff:]),
			append(path, "value"))
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Key: key,
			Value: Value{
				Content: content,
				Version: binary.LittleEndian.Uint64(rec[EntryValueOff+ValueVersionOff:]),
			},
		})
	}
	return entries, nil
}

// DecodeKeys reinterprets engine memory as a fixed-stride array of Key
// records.
func (d *Decoder) DecodeKeys(ptr, count uint32) ([][]byte, error) {
	keys := make([][]byte, 0, count)
	if count == 0 {
		return keys, nil
	}
	buf, err := d.checkArray(ptr, count, KeySize, []string{"keys"})
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		rec := buf[i*KeySize:]
		key, err := d.decodeBytes(
			binary.LittleEndian.Uint32(rec[KeyPtrOff:]),
			binary.LittleEndian.Uint32(rec[KeyLenOff:]),
			[]string{"keys", "[" + strconv.FormatUint(uint64(i), 10) + "]"})
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// DecodeValues reinterprets engine memory as a fixed-stride array of Value
// records.
func (d *Decoder) DecodeValues(ptr, count uint32) ([]Value, error) {
	values := make([]Value, 0, count)
	if count == 0 {
		return values, nil
	}
	buf, err := d.checkArray(ptr, count, ValueSize, []string{"values"})
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		rec := buf[i*ValueSize:]
		content, err := d.decodeBytes(
			binary.LittleEndian.Uint32(rec[ValuePtrOff:]),
			binary.LittleEndian.Uint32(rec[ValueLenOff:]),
			[]string{"values", "[" + strconv.FormatUint(uint64(i), 10) + "]"})
		if err != nil {
			return nil, err
		}
		values = append(values, Value{
			Content: content,
			Version: binary.LittleEndian.Uint64(rec[ValueVersionOff:]),
		})
	}
	return values, nil
}

// DecodeUserPermissionSets reinterprets engine memory as a fixed-stride array
// of UserPermissionSet records.
func (d *Decoder) DecodeUserPermissionSets(ptr, count uint32) ([]UserPermissionSet, error) {
	perms := make([]UserPermissionSet, 0, count)
	if count == 0 {
		return perms, nil
	}
	buf, err := d.checkArray(ptr, count, UserPermSize, []string{"user_permission_sets"})
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		rec := buf[i*UserPermSize:]
		perms = append(perms, UserPermissionSet{
			User:  SignKeyHandle(binary.LittleEndian.Uint64(rec[UserPermUserOff:])),
			Perms: decodePermissionSetBytes(rec[UserPermPermsOff:]),
		})
	}
	return perms, nil
}
