package object

import "github.com/legit-vcs/legit/ginternals"

// Blob represents a blob object: opaque file content
type Blob struct {
	rawObject *Object
}

// NewBlob creates a blob from an object
func NewBlob(o *Object) *Blob {
	return &Blob{rawObject: o}
}

// NewBlobFromContent creates a blob from raw file content
func NewBlobFromContent(data []byte) *Blob {
	return &Blob{rawObject: New(TypeBlob, data)}
}

// ID returns the blob's oid
func (b *Blob) ID() ginternals.Oid {
	return b.rawObject.ID()
}

// Size returns the blob's size
func (b *Blob) Size() int {
	return b.rawObject.Size()
}

// Bytes returns the blob's content
func (b *Blob) Bytes() []byte {
	return b.rawObject.Bytes()
}

// ToObject returns the underlying Object
func (b *Blob) ToObject() *Object {
	return b.rawObject
}
