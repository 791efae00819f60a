package wire

// Wire layouts for the 32-bit little-endian engine ABI. Offsets and sizes
// must match the engine's struct declarations exactly: fixed-width integers,
// declared field order, no reordering. Pointers and lengths are u32.

// Fixed-size identifier and key material widths.
const (
	XorNameLen  = 32
	SymKeyLen   = 32
	SymNonceLen = 24
)

// Info: the mutable-data reference shared between apps.
//
//	name              [32]u8
//	type_tag          u64
//	has_enc_info      u8 (bool)
//	enc_key           [32]u8
//	enc_nonce         [24]u8
//	has_new_enc_info  u8 (bool)
//	new_enc_key       [32]u8
//	new_enc_nonce     [24]u8
//
// Key/nonce fields are always present on the wire; when the corresponding
// flag is false they are zero-filled, never omitted. Trailing bytes pad the
// struct to its 8-byte alignment.
const (
	InfoNameOff        = 0
	InfoTypeTagOff     = 32
	InfoHasEncOff      = 40
	InfoEncKeyOff      = 41
	InfoEncNonceOff    = 73
	InfoHasNewEncOff   = 97
	InfoNewEncKeyOff   = 98
	InfoNewEncNonceOff = 130
	InfoEnd            = 154
	InfoSize           = 160
	InfoAlign          = 8
)

// PermissionSet: five independent boolean capabilities, one u8 each.
const (
	PermReadOff   = 0
	PermInsertOff = 1
	PermUpdateOff = 2
	PermDeleteOff = 3
	PermManageOff = 4
	PermSetSize   = 5
	PermSetAlign  = 1
)

// UserPermissionSet: signing-key handle paired with a PermissionSet.
// Returned only in fixed-stride arrays.
const (
	UserPermUserOff  = 0
	UserPermPermsOff = 8
	UserPermSize     = 16
	UserPermAlign    = 8
)

// Key: ptr+len pair referencing key bytes in engine memory.
const (
	KeyPtrOff = 0
	KeyLenOff = 4
	KeySize   = 8
	KeyAlign  = 4
)

// Value: ptr+len pair for content plus the entry version counter.
const (
	ValuePtrOff     = 0
	ValueLenOff     = 4
	ValueVersionOff = 8
	ValueSize       = 16
	ValueAlign      = 8
)

// Entry: a Key record followed by a Value record.
const (
	EntryKeyOff   = 0
	EntryValueOff = 8
	EntrySize     = 24
	EntryAlign    = 8
)

// Metadata: two ptr+len string fields (name, description), passed through
// opaquely.
const (
	MetaNamePtrOff = 0
	MetaNameLenOff = 4
	MetaDescPtrOff = 8
	MetaDescLenOff = 12
	MetaSize       = 16
	MetaAlign      = 4
)

// Safety limits for decoding engine output.
const (
	MaxPayloadSize = 16 << 20 // bytes per key/value payload
	MaxRecordCount = 1 << 20  // records per array result
)
