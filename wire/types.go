package wire

import (
	"github.com/safeclient/mdata-ffi/errors"
)

// XorName is the fixed 32-byte content/location identifier of a mutable-data
// object.
type XorName [XorNameLen]byte

// NewXorName converts an arbitrary byte sequence into an XorName. The input
// must be exactly XorNameLen bytes; anything else is rejected before any
// native call is issued.
func NewXorName(b []byte) (XorName, error) {
	var n XorName
	if len(b) != XorNameLen {
		return n, errors.SizeMismatch([]string{"xor_name"}, XorNameLen, len(b))
	}
	copy(n[:], b)
	return n, nil
}

// SymKey is a fixed-size symmetric encryption key.
type SymKey [SymKeyLen]byte

// NewSymKey validates length and converts.
func NewSymKey(b []byte) (SymKey, error) {
	var k SymKey
	if len(b) != SymKeyLen {
		return k, errors.SizeMismatch([]string{"sym_key"}, SymKeyLen, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// SymNonce is a fixed-size symmetric encryption nonce.
type SymNonce [SymNonceLen]byte

// NewSymNonce validates length and converts.
func NewSymNonce(b []byte) (SymNonce, error) {
	var n SymNonce
	if len(b) != SymNonceLen {
		return n, errors.SizeMismatch([]string{"sym_nonce"}, SymNonceLen, len(b))
	}
	copy(n[:], b)
	return n, nil
}

// SignKeyHandle references a signing key living in engine memory.
type SignKeyHandle uint64

// Info identifies a mutable-data object and carries its encryption state.
// The New* pair exists for two-phase re-encryption: during a key rotation
// window both the old and new key material are valid simultaneously.
//
// When HasEncInfo (or HasNewEncInfo) is false the corresponding key/nonce
// still occupy their full wire width as zeroes; logical absence is carried
// by the flag alone.
type Info struct {
	Name          XorName
	TypeTag       uint64
	HasEncInfo    bool
	EncKey        SymKey
	EncNonce      SymNonce
	HasNewEncInfo bool
	NewEncKey     SymKey
	NewEncNonce   SymNonce
}

// PermissionSet is the five-capability boolean bundle grantable per signing
// key. The zero value grants nothing.
type PermissionSet struct {
	Read              bool
	Insert            bool
	Update            bool
	Delete            bool
	ManagePermissions bool
}

// UserPermissionSet pairs a signing-key handle with its granted capabilities.
// It appears only in list results and is never mutated in place.
type UserPermissionSet struct {
	User  SignKeyHandle
	Perms PermissionSet
}

// Value is one entry's content together with its version counter. The
// version is enforced by the engine; this layer only transports it.
type Value struct {
	Content []byte
	Version uint64
}

// Entry is one key/value pair of a mutable-data object.
type Entry struct {
	Key   []byte
	Value Value
}

// Metadata is the opaque name/description pair attached to stored content.
type Metadata struct {
	Name        string
	Description string
}
