package hashio_test

import (
	"bytes"
	"testing"

	"github.com/legit-vcs/legit/internal/hashio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumRoundTrip(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	w := hashio.NewWriter(&out)
	_, err := w.Write([]byte("some file content"))
	require.NoError(t, err)
	require.NoError(t, w.WriteChecksum())

	r := hashio.NewReader(&out)
	data, err := r.ReadN(len("some file content"))
	require.NoError(t, err)
	assert.Equal(t, "some file content", string(data))
	require.NoError(t, r.VerifyChecksum())
}

func TestChecksumMismatch(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	w := hashio.NewWriter(&out)
	_, err := w.Write([]byte("some file content"))
	require.NoError(t, err)
	require.NoError(t, w.WriteChecksum())

	// corrupt one content byte
	out.Bytes()[0] ^= 0xFF

	r := hashio.NewReader(&out)
	_, err = r.ReadN(len("some file content"))
	require.NoError(t, err)

	err = r.VerifyChecksum()
	require.Error(t, err)
	assert.ErrorIs(t, err, hashio.ErrChecksumMismatch)
}
