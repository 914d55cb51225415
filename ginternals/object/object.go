// Package object contains methods and objects to work with git objects
package object

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"strconv"

	"github.com/legit-vcs/legit/ginternals"
	"golang.org/x/xerrors"
)

var (
	// ErrObjectUnknown is returned when encountering an unknown
	// object type
	ErrObjectUnknown = errors.New("invalid object type")

	// ErrObjectInvalid is returned when an object contains unexpected
	// data or when the wrong object is provided to a method
	ErrObjectInvalid = errors.New("invalid object")

	// ErrTreeInvalid is returned when parsing an invalid tree object
	ErrTreeInvalid = errors.New("invalid tree")

	// ErrCommitInvalid is returned when parsing an invalid commit
	// object
	ErrCommitInvalid = errors.New("invalid commit")
)

// Type represents the type of an object as stored in a packfile
type Type int8

// List of all the possible object types
const (
	TypeCommit Type = 1
	TypeTree   Type = 2
	TypeBlob   Type = 3
	// 4 is tag, 5 is reserved for future use
	TypeDeltaOFS Type = 6
	TypeDeltaRef Type = 7
)

func (t Type) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeDeltaOFS:
		return "ofs-delta"
	case TypeDeltaRef:
		return "ref-delta"
	default:
		panic(fmt.Sprintf("unknown object type %d", t))
	}
}

// IsValid checks if the object type is an existing type
func (t Type) IsValid() bool {
	switch t {
	case TypeCommit, TypeTree, TypeBlob, TypeDeltaOFS, TypeDeltaRef:
		return true
	default:
		return false
	}
}

// IsBase checks whether the type is a full object (and not a delta)
func (t Type) IsBase() bool {
	switch t {
	case TypeCommit, TypeTree, TypeBlob:
		return true
	default:
		return false
	}
}

// NewTypeFromString returns a Type from its string representation
func NewTypeFromString(t string) (Type, error) {
	switch t {
	case "commit":
		return TypeCommit, nil
	case "tree":
		return TypeTree, nil
	case "blob":
		return TypeBlob, nil
	default:
		return 0, ErrObjectUnknown
	}
}

// Object represents a git object. An object can be of multiple types
// but they all share similarities (same storage system, same header,
// etc.).
// Objects are stored in .git/objects, either zlib compressed in their
// own file (loose) or bundled with others in a packfile
type Object struct {
	id      ginternals.Oid
	typ     Type
	content []byte
}

// New creates a new git object of the given type
func New(typ Type, content []byte) *Object {
	o := &Object{
		typ:     typ,
		content: content,
	}
	o.id = ginternals.NewOidFromContent(o.header())
	return o
}

// NewWithID creates a new git object with a known id. The id is
// trusted and not recomputed from the content
func NewWithID(id ginternals.Oid, typ Type, content []byte) *Object {
	return &Object{
		id:      id,
		typ:     typ,
		content: content,
	}
}

// ID returns the ID of the object
func (o *Object) ID() ginternals.Oid {
	if o.id.IsZero() {
		o.id = ginternals.NewOidFromContent(o.header())
	}
	return o.id
}

// Size returns the size of the object
func (o *Object) Size() int {
	return len(o.content)
}

// Type returns the Type of this object
func (o *Object) Type() Type {
	return o.typ
}

// Bytes returns the object's contents
func (o *Object) Bytes() []byte {
	return o.content
}

// header returns the canonical serialization of the object:
// [type] [size][NULL][content]
// The type in ascii, followed by a space, followed by the size in
// ascii, followed by a null character (0), followed by the object data
func (o *Object) header() []byte {
	// Quick reminder that the Write* methods on bytes.Buffer never
	// fail, the error returned is always nil
	w := new(bytes.Buffer)
	w.WriteString(o.typ.String())
	w.WriteRune(' ')
	w.WriteString(strconv.Itoa(o.Size()))
	w.WriteByte(0)
	w.Write(o.content)
	return w.Bytes()
}

// Serialize returns the canonical serialization of the object, the
// bytes that get hashed and stored on disk
func (o *Object) Serialize() []byte {
	return o.header()
}

// Compress returns the object's canonical serialization zlib
// compressed at the given level
func (o *Object) Compress(level int) (data []byte, err error) {
	out := new(bytes.Buffer)
	zw, err := zlib.NewWriterLevel(out, level)
	if err != nil {
		return nil, xerrors.Errorf("could not create zlib writer: %w", err)
	}
	if _, err = zw.Write(o.header()); err != nil {
		zw.Close() //nolint:errcheck // it already failed
		return nil, xerrors.Errorf("could not zlib the object: %w", err)
	}
	if err = zw.Close(); err != nil {
		return nil, xerrors.Errorf("could not finish compressing the object: %w", err)
	}
	return out.Bytes(), nil
}
