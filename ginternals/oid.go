// Package ginternals contains the core value types shared by every layer
// of the library: object ids, reference names, and the common sentinel
// errors
package ginternals

import (
	"encoding/hex"
	"errors"

	"github.com/pjbgf/sha1cd"
)

const (
	// OidSize is the length of an oid, in bytes
	OidSize = 20
	// OidHexSize is the length of an oid in its hexadecimal form
	OidHexSize = OidSize * 2
	// ShortOidSize is the number of hex chars used to display an
	// abbreviated oid at user boundaries
	ShortOidSize = 7
)

var (
	// ErrInvalidOid is returned when data cannot be parsed as an oid
	ErrInvalidOid = errors.New("invalid oid")
)

// Oid represents an object id: the SHA-1 of an object's canonical
// serialization. Oids are stored raw (20 bytes) in packs and in the
// index, and hex encoded (40 chars) everywhere a human might see them.
type Oid [OidSize]byte

// NullOid is the zero value of an Oid. On the wire it shows up as
// 40 '0' chars and denotes ref creation or deletion
var NullOid = Oid{}

// NewOidFromContent returns the oid of the given content, which is the
// content hashed with SHA-1
func NewOidFromContent(content []byte) Oid {
	h := sha1cd.New()
	h.Write(content) //nolint:errcheck // never fails
	var oid Oid
	copy(oid[:], h.Sum(nil))
	return oid
}

// NewOidFromBytes returns an Oid from the given raw 20 bytes
func NewOidFromBytes(b []byte) (Oid, error) {
	if len(b) < OidSize {
		return NullOid, ErrInvalidOid
	}
	var oid Oid
	copy(oid[:], b)
	return oid, nil
}

// NewOidFromStr returns an Oid from its 40 chars hexadecimal
// representation
func NewOidFromStr(s string) (Oid, error) {
	if len(s) != OidHexSize {
		return NullOid, ErrInvalidOid
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return NullOid, ErrInvalidOid
	}
	return NewOidFromBytes(b)
}

// NewOidFromChars returns an Oid from its hexadecimal representation
// provided as raw chars
func NewOidFromChars(b []byte) (Oid, error) {
	return NewOidFromStr(string(b))
}

// String returns the hexadecimal representation of the Oid
func (o Oid) String() string {
	return hex.EncodeToString(o[:])
}

// Short returns the abbreviated hexadecimal representation of the Oid
func (o Oid) Short() string {
	return o.String()[:ShortOidSize]
}

// Bytes returns the raw bytes of the Oid
func (o Oid) Bytes() []byte {
	return o[:]
}

// IsZero returns whether the Oid is the zero value
func (o Oid) IsZero() bool {
	return o == NullOid
}
