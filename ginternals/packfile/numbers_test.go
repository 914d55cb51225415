package packfile_test

import (
	"bytes"
	"testing"

	"github.com/legit-vcs/legit/ginternals/packfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarIntLE(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc  string
		value uint64
		shift uint
	}{
		{desc: "zero", value: 0, shift: 4},
		{desc: "fits the first byte", value: 14, shift: 4},
		{desc: "needs a second byte", value: 300, shift: 4},
		{desc: "large value", value: 0x12345678, shift: 4},
		{desc: "delta size header", value: 523, shift: 7},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			encoded := packfile.VarIntLE{}.Write(tc.value, tc.shift)
			_, value, err := packfile.VarIntLE{}.Read(bytes.NewReader(encoded), tc.shift)
			require.NoError(t, err)
			assert.Equal(t, tc.value, value)
		})
	}

	t.Run("first byte is returned raw for the type bits", func(t *testing.T) {
		t.Parallel()

		encoded := packfile.VarIntLE{}.Write(5, 4)
		encoded[0] |= 0b0011_0000 // blob type in a record header

		first, value, err := packfile.VarIntLE{}.Read(bytes.NewReader(encoded), 4)
		require.NoError(t, err)
		assert.Equal(t, byte(0b0011_0101), first)
		assert.Equal(t, uint64(5), value)
	})
}

func TestVarIntBE(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc  string
		value uint64
	}{
		{desc: "zero", value: 0},
		{desc: "single byte", value: 127},
		{desc: "smallest two byte value", value: 128},
		{desc: "typical delta offset", value: 4242},
		{desc: "large offset", value: 0x89ABCDEF},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			encoded := packfile.VarIntBE{}.Write(tc.value)
			value, err := packfile.VarIntBE{}.Read(bytes.NewReader(encoded))
			require.NoError(t, err)
			assert.Equal(t, tc.value, value)
		})
	}

	t.Run("encoding is unambiguous for consecutive values", func(t *testing.T) {
		t.Parallel()

		// the off-by-one encoding means 128 and 0 must not collide
		a := packfile.VarIntBE{}.Write(128)
		b := packfile.VarIntBE{}.Write(0)
		assert.NotEqual(t, a, b)
	})
}

func TestPackedInt56LE(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc  string
		value uint64
	}{
		{desc: "zero", value: 0},
		{desc: "single low byte", value: 0x7F},
		{desc: "sparse bytes", value: 0x00FF00FF},
		{desc: "copy op with offset and size", value: (uint64(523) << 32) | 1024},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			encoded := packfile.PackedInt56LE{}.Write(tc.value)
			value, err := packfile.PackedInt56LE{}.Read(bytes.NewReader(encoded[1:]), encoded[0])
			require.NoError(t, err)
			assert.Equal(t, tc.value, value)
		})
	}
}
