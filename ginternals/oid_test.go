package ginternals_test

import (
	"testing"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOidFromStr(t *testing.T) {
	t.Parallel()

	t.Run("should work with a valid oid", func(t *testing.T) {
		t.Parallel()

		oid, err := ginternals.NewOidFromStr("ce013625030ba8dba906f756967f9e9ca394464a")
		require.NoError(t, err)
		assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", oid.String())
		assert.Equal(t, "ce01362", oid.Short())
		assert.False(t, oid.IsZero())
	})

	t.Run("should fail with a short string", func(t *testing.T) {
		t.Parallel()

		_, err := ginternals.NewOidFromStr("ce0136")
		require.Error(t, err)
		assert.ErrorIs(t, err, ginternals.ErrInvalidOid)
	})

	t.Run("should fail with non-hex chars", func(t *testing.T) {
		t.Parallel()

		_, err := ginternals.NewOidFromStr("zz013625030ba8dba906f756967f9e9ca394464a")
		require.Error(t, err)
	})
}

func TestNewOidFromContent(t *testing.T) {
	t.Parallel()

	// the canonical hash of git's empty blob
	oid := ginternals.NewOidFromContent([]byte("blob 0\x00"))
	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", oid.String())
}

func TestOidRoundTrip(t *testing.T) {
	t.Parallel()

	oid, err := ginternals.NewOidFromStr("ce013625030ba8dba906f756967f9e9ca394464a")
	require.NoError(t, err)

	back, err := ginternals.NewOidFromBytes(oid.Bytes())
	require.NoError(t, err)
	assert.Equal(t, oid, back)
}

func TestIsRefNameValid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc    string
		name    string
		isValid bool
	}{
		{desc: "regular branch name", name: "refs/heads/master", isValid: true},
		{desc: "nested branch name", name: "refs/heads/ml/feat/save", isValid: true},
		{desc: "empty name", name: "", isValid: false},
		{desc: "leading dot", name: ".hidden", isValid: false},
		{desc: "double dots", name: "a..b", isValid: false},
		{desc: "trailing slash", name: "refs/heads/", isValid: false},
		{desc: "lock suffix", name: "refs/heads/master.lock", isValid: false},
		{desc: "at-brace", name: "branch@{1}", isValid: false},
		{desc: "space", name: "my branch", isValid: false},
		{desc: "tilde", name: "branch~1", isValid: false},
		{desc: "caret", name: "branch^2", isValid: false},
		{desc: "control char", name: "bra\tnch", isValid: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.isValid, ginternals.IsRefNameValid(tc.name))
		})
	}
}
