// Package packfile contains methods and structs to read and write
// packfiles and their companion index files
//
// A packfile contains a header, a list of records, and a footer.
// Header: 12 bytes
//         The first 4 bytes contain the magic ('P', 'A', 'C', 'K')
//         The next 4 bytes contain the version (0, 0, 0, 2)
//         The last 4 bytes contain the number of objects in the packfile
// Records: Variable size
//         Each record starts with a variable-length header encoding the
//         object type (3 bits) and its inflated size, followed for
//         deltas by a reference to the base (a negative offset or a raw
//         oid), followed by the zlib compressed payload
// Footer: 20 bytes
//         Contains the SHA-1 sum of everything before it
//
// https://git-scm.com/docs/pack-format
package packfile

import "errors"

const (
	// headerSize is the size of a packfile's header: 4 bytes of
	// magic, 4 bytes of version, 4 bytes of object count
	headerSize = 12

	// Version is the only packfile version we support
	Version = 2

	// maxCopySize is the biggest chunk a single delta Copy
	// instruction can cover
	maxCopySize = 0xFFFFFF
	// maxInsertSize is the biggest chunk a single delta Insert
	// instruction can carry
	maxInsertSize = 0x7F

	// idxSignature is the magic of a version 2 pack index file
	idxSignature = 0xFF744F63
	// idxMaxOffset is the first offset that doesn't fit in the 4 byte
	// offset table of an index file and overflows into the large
	// offset table
	idxMaxOffset = 0x80000000

	// ExtPackfile is the extension of a packfile
	ExtPackfile = ".pack"
	// ExtIndex is the extension of a packfile index
	ExtIndex = ".idx"
)

func packfileMagic() []byte {
	return []byte{'P', 'A', 'C', 'K'}
}

var (
	// ErrInvalidMagic is returned when a file doesn't have the
	// expected magic
	ErrInvalidMagic = errors.New("invalid magic")
	// ErrInvalidVersion is returned when a file has an unsupported
	// version
	ErrInvalidVersion = errors.New("invalid version")
	// ErrInvalidPack is returned when a packfile cannot be parsed:
	// truncation, corrupt zlib stream, bad record type, or checksum
	// mismatch
	ErrInvalidPack = errors.New("invalid pack")
	// ErrIntOverflow is returned when a variable-length integer
	// doesn't fit in 64 bits
	ErrIntOverflow = errors.New("int64 overflow")
)
