package packfile

import (
	"bytes"

	"golang.org/x/xerrors"
)

// A delta stream starts with the size of the source and the size of
// the target (both VarIntLE), followed by Copy and Insert
// instructions.
//
// Copy has its marker bit (0x80) set; the low 7 bits of its header
// byte are the PackedInt56LE bitmap for a value holding the copy size
// in its upper 24 bits and the source offset in its lower 32 bits.
// Insert has a length byte between 1 and 127 followed by that many
// literal bytes

// CopyOp copies size bytes from the given offset of the base
type CopyOp struct {
	Offset uint64
	Size   uint64
}

// Bytes returns the encoded instruction
func (c CopyOp) Bytes() []byte {
	value := (c.Size << 32) | c.Offset
	parts := PackedInt56LE{}.Write(value)
	parts[0] |= 0x80
	return parts
}

// InsertOp inserts literal bytes into the target
type InsertOp struct {
	Data []byte
}

// Bytes returns the encoded instruction
func (ins InsertOp) Bytes() []byte {
	out := make([]byte, 0, len(ins.Data)+1)
	out = append(out, byte(len(ins.Data)))
	return append(out, ins.Data...)
}

// DeltaOp is a single delta instruction
type DeltaOp interface {
	Bytes() []byte
}

func parseCopy(r *bytes.Reader, header byte) (CopyOp, error) {
	value, err := PackedInt56LE{}.Read(r, header)
	if err != nil {
		return CopyOp{}, err
	}
	return CopyOp{
		Offset: value & 0xFFFFFFFF,
		Size:   value >> 32,
	}, nil
}

// DeltaSizes parses the header of a delta stream and returns the
// expected source and target sizes
func DeltaSizes(delta []byte) (sourceSize, targetSize uint64, err error) {
	r := bytes.NewReader(delta)
	if _, sourceSize, err = (VarIntLE{}).Read(r, 7); err != nil {
		return 0, 0, xerrors.Errorf("could not read the source size of the delta: %w", err)
	}
	if _, targetSize, err = (VarIntLE{}).Read(r, 7); err != nil {
		return 0, 0, xerrors.Errorf("could not read the target size of the delta: %w", err)
	}
	return sourceSize, targetSize, nil
}

// ExpandDelta applies the instructions of the delta stream to the
// source and returns the reconstructed target. The source and target
// sizes recorded in the stream are verified
func ExpandDelta(source, delta []byte) ([]byte, error) {
	r := bytes.NewReader(delta)

	_, sourceSize, err := VarIntLE{}.Read(r, 7)
	if err != nil {
		return nil, xerrors.Errorf("could not read the source size of the delta: %w", err)
	}
	if sourceSize != uint64(len(source)) {
		return nil, xerrors.Errorf("delta source size %d doesn't match base size %d: %w", sourceSize, len(source), ErrInvalidPack)
	}
	_, targetSize, err := VarIntLE{}.Read(r, 7)
	if err != nil {
		return nil, xerrors.Errorf("could not read the target size of the delta: %w", err)
	}

	target := make([]byte, 0, targetSize)
	for {
		header, err := r.ReadByte()
		if err != nil {
			break
		}

		if header < 0x80 { // INSERT
			if header == 0 {
				return nil, xerrors.Errorf("insert instruction with size 0: %w", ErrInvalidPack)
			}
			data := make([]byte, header)
			if _, err := r.Read(data); err != nil {
				return nil, xerrors.Errorf("could not read insert data: %w", err)
			}
			target = append(target, data...)
			continue
		}

		// COPY
		op, err := parseCopy(r, header)
		if err != nil {
			return nil, xerrors.Errorf("could not read copy instruction: %w", err)
		}
		if op.Offset+op.Size > uint64(len(source)) {
			return nil, xerrors.Errorf("copy instruction out of bounds: %w", ErrInvalidPack)
		}
		target = append(target, source[op.Offset:op.Offset+op.Size]...)
	}

	if uint64(len(target)) != targetSize {
		return nil, xerrors.Errorf("expanded to %d bytes, expected %d: %w", len(target), targetSize, ErrInvalidPack)
	}
	return target, nil
}
