package protocol_test

import (
	"bytes"
	"testing"

	"github.com/legit-vcs/legit/ginternals/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnPacketFraming(t *testing.T) {
	t.Parallel()

	t.Run("packets are length prefixed", func(t *testing.T) {
		t.Parallel()

		var wire bytes.Buffer
		sender := protocol.NewConn("receive-pack", new(bytes.Buffer), &wire, nil)
		require.NoError(t, sender.SendPacket("unpack ok"))
		require.NoError(t, sender.SendFlush())

		// 4 hex digits + payload + newline
		assert.Equal(t, "000eunpack ok\n0000", wire.String())
	})

	t.Run("the receiver gets the payload back", func(t *testing.T) {
		t.Parallel()

		var wire bytes.Buffer
		sender := protocol.NewConn("receive-pack", new(bytes.Buffer), &wire, nil)
		require.NoError(t, sender.SendPacket("unpack ok"))
		require.NoError(t, sender.SendFlush())

		receiver := protocol.NewConn("receive-pack", &wire, new(bytes.Buffer), nil)
		line, ok, err := receiver.RecvPacket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "unpack ok", line)

		_, ok, err = receiver.RecvPacket()
		require.NoError(t, err)
		assert.False(t, ok, "a flush ends the sequence")
	})

	t.Run("non-hex heads are returned raw", func(t *testing.T) {
		t.Parallel()

		wire := bytes.NewBufferString("PACK....")
		receiver := protocol.NewConn("fetch", wire, new(bytes.Buffer), nil)

		line, ok, err := receiver.RecvPacket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "PACK", line)
	})

	t.Run("EOF reads as a flush", func(t *testing.T) {
		t.Parallel()

		receiver := protocol.NewConn("fetch", new(bytes.Buffer), new(bytes.Buffer), nil)
		_, ok, err := receiver.RecvPacket()
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestConnCapabilities(t *testing.T) {
	t.Parallel()

	t.Run("receive side separates caps with NUL", func(t *testing.T) {
		t.Parallel()

		var wire bytes.Buffer
		server := protocol.NewConn("receive-pack", new(bytes.Buffer), &wire,
			[]string{protocol.CapReportStatus, protocol.CapDeleteRefs})
		require.NoError(t, server.SendPacket("0000000000000000000000000000000000000000 refs/heads/master"))

		client := protocol.NewConn("push", &wire, new(bytes.Buffer), []string{protocol.CapReportStatus})
		line, ok, err := client.RecvPacket()
		require.NoError(t, err)
		require.True(t, ok)

		assert.Equal(t, "0000000000000000000000000000000000000000 refs/heads/master", line)
		assert.True(t, client.Capable(protocol.CapReportStatus))
		assert.True(t, client.Capable(protocol.CapDeleteRefs))
		assert.False(t, client.Capable(protocol.CapOfsDelta))
	})

	t.Run("caps are only sent on the first packet", func(t *testing.T) {
		t.Parallel()

		var wire bytes.Buffer
		server := protocol.NewConn("receive-pack", new(bytes.Buffer), &wire, []string{protocol.CapReportStatus})
		require.NoError(t, server.SendPacket("first"))
		require.NoError(t, server.SendPacket("second"))

		client := protocol.NewConn("push", &wire, new(bytes.Buffer), nil)
		_, _, err := client.RecvPacket()
		require.NoError(t, err)

		line, ok, err := client.RecvPacket()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "second", line)
	})

	t.Run("upload-pack parses caps from want lines", func(t *testing.T) {
		t.Parallel()

		var wire bytes.Buffer
		client := protocol.NewConn("fetch", new(bytes.Buffer), &wire, []string{protocol.CapOfsDelta})
		require.NoError(t, client.SendPacket("want ce013625030ba8dba906f756967f9e9ca394464a"))

		server := protocol.NewConn("upload-pack", &wire, new(bytes.Buffer), nil)
		line, ok, err := server.RecvPacket()
		require.NoError(t, err)
		require.True(t, ok)

		assert.Equal(t, "want ce013625030ba8dba906f756967f9e9ca394464a", line)
		assert.True(t, server.Capable(protocol.CapOfsDelta))
	})
}

func TestRecvUntil(t *testing.T) {
	t.Parallel()

	var wire bytes.Buffer
	sender := protocol.NewConn("receive-pack", new(bytes.Buffer), &wire, nil)
	require.NoError(t, sender.SendPacket("have aaa"))
	require.NoError(t, sender.SendPacket("have bbb"))
	require.NoError(t, sender.SendPacket("done"))

	receiver := protocol.NewConn("receive-pack", &wire, new(bytes.Buffer), nil)
	var lines []string
	require.NoError(t, receiver.RecvUntil("done", func(line string) error {
		lines = append(lines, line)
		return nil
	}))
	assert.Equal(t, []string{"have aaa", "have bbb"}, lines)
}

func TestParseRefspec(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc   string
		spec   string
		source string
		target string
		forced bool
	}{
		{
			desc:   "wildcard fetch spec",
			spec:   "+refs/heads/*:refs/remotes/origin/*",
			source: "refs/heads/*",
			target: "refs/remotes/origin/*",
			forced: true,
		},
		{
			desc:   "bare branch names get expanded",
			spec:   "master:master",
			source: "refs/heads/master",
			target: "refs/heads/master",
		},
		{
			desc:   "source only",
			spec:   "topic",
			source: "refs/heads/topic",
			target: "refs/heads/topic",
		},
		{
			desc:   "deletion",
			spec:   ":refs/heads/topic",
			source: "",
			target: "refs/heads/topic",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			rs, err := protocol.ParseRefspec(tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.source, rs.Source)
			assert.Equal(t, tc.target, rs.Target)
			assert.Equal(t, tc.forced, rs.Forced)
		})
	}
}

func TestExpandRefspecs(t *testing.T) {
	t.Parallel()

	refs := []string{"refs/heads/master", "refs/heads/topic", "refs/heads/ml/feature"}

	mappings, err := protocol.ExpandRefspecs([]string{"+refs/heads/*:refs/remotes/origin/*"}, refs)
	require.NoError(t, err)

	require.Len(t, mappings, 3)
	assert.Equal(t, protocol.Mapping{Source: "refs/heads/master", Forced: true}, mappings["refs/remotes/origin/master"])
	assert.Equal(t, protocol.Mapping{Source: "refs/heads/ml/feature", Forced: true}, mappings["refs/remotes/origin/ml/feature"])
}

func TestInvertRefspecs(t *testing.T) {
	t.Parallel()

	// mapping a remote-tracking ref back through the fetch spec
	// yields the branch it came from
	local, err := protocol.InvertRefspecs(
		[]string{"+refs/heads/*:refs/remotes/origin/*"},
		"refs/remotes/origin/master",
	)
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/master", local)
}
