package packfile_test

import (
	"bytes"
	"testing"

	"github.com/legit-vcs/legit/ginternals/packfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDelta(t *testing.T, source, target []byte) []byte {
	t.Helper()

	var delta []byte
	delta = append(delta, packfile.VarIntLE{}.Write(uint64(len(source)), 7)...)
	delta = append(delta, packfile.VarIntLE{}.Write(uint64(len(target)), 7)...)
	for _, op := range packfile.NewXDeltaIndex(source).Compress(target) {
		delta = append(delta, op.Bytes()...)
	}
	return delta
}

func TestXDeltaRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc   string
		source []byte
		target []byte
	}{
		{
			desc:   "target extends source",
			source: bytes.Repeat([]byte("abcdefgh"), 64),                            // 512 bytes
			target: append(bytes.Repeat([]byte("abcdefgh"), 64), "extra bytes"...), // 523 bytes
		},
		{
			desc:   "target truncates source",
			source: bytes.Repeat([]byte("0123456789abcdef"), 32),
			target: bytes.Repeat([]byte("0123456789abcdef"), 16),
		},
		{
			desc:   "completely different content",
			source: bytes.Repeat([]byte("aaaaaaaaaaaaaaaa"), 8),
			target: bytes.Repeat([]byte("zzzzzzzzzzzzzzzz"), 8),
		},
		{
			desc:   "change in the middle",
			source: []byte("the quick brown fox jumps over the lazy dog, the quick brown fox jumps over the lazy dog"),
			target: []byte("the quick brown cat jumps over the lazy dog, the quick brown fox jumps over the lazy dog"),
		},
		{
			desc:   "empty target",
			source: []byte("something"),
			target: []byte{},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			delta := buildDelta(t, tc.source, tc.target)
			expanded, err := packfile.ExpandDelta(tc.source, delta)
			require.NoError(t, err)
			assert.Equal(t, tc.target, expanded)
		})
	}
}

func TestXDeltaUsesCopies(t *testing.T) {
	t.Parallel()

	source := bytes.Repeat([]byte("abcdefgh"), 64)
	target := append(append([]byte{}, source...), "0123456789a"...)

	delta := buildDelta(t, source, target)

	// a delta that copies the shared prefix must be much smaller than
	// the target it reconstructs
	assert.Less(t, len(delta), len(target)/4)
}

func TestDeltaSizes(t *testing.T) {
	t.Parallel()

	source := []byte("some source data for the delta")
	target := []byte("some target data")

	delta := buildDelta(t, source, target)

	sourceSize, targetSize, err := packfile.DeltaSizes(delta)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(source)), sourceSize)
	assert.Equal(t, uint64(len(target)), targetSize)
}

func TestExpandDeltaVerifiesSizes(t *testing.T) {
	t.Parallel()

	source := []byte("some source data for the delta")
	delta := buildDelta(t, source, []byte("some target data"))

	// expanding against the wrong base must be rejected
	_, err := packfile.ExpandDelta([]byte("wrong base"), delta)
	require.Error(t, err)
	assert.ErrorIs(t, err, packfile.ErrInvalidPack)
}
