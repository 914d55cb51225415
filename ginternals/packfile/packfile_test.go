package packfile_test

import (
	"bytes"
	"compress/zlib"
	"os"
	"path/filepath"
	"testing"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/ginternals/packfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is a map-backed object database for pack tests
type memoryStore struct {
	objects map[ginternals.Oid]*object.Object
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[ginternals.Oid]*object.Object{}}
}

func (s *memoryStore) add(typ object.Type, data []byte) ginternals.Oid {
	o := object.New(typ, data)
	s.objects[o.ID()] = o
	return o.ID()
}

func (s *memoryStore) LoadInfo(oid ginternals.Oid) (object.Type, uint64, error) {
	o, ok := s.objects[oid]
	if !ok {
		return 0, 0, ginternals.ErrObjectNotFound
	}
	return o.Type(), uint64(o.Size()), nil
}

func (s *memoryStore) LoadRaw(oid ginternals.Oid) (object.Type, []byte, error) {
	o, ok := s.objects[oid]
	if !ok {
		return 0, nil, ginternals.ErrObjectNotFound
	}
	return o.Type(), o.Bytes(), nil
}

func (s *memoryStore) StoreRaw(typ object.Type, data []byte) (ginternals.Oid, error) {
	return s.add(typ, data), nil
}

func writeTestPack(t *testing.T, db *memoryStore, oids []ginternals.Oid, allowOfs bool) []byte {
	t.Helper()

	items := make([]packfile.Item, 0, len(oids))
	for _, oid := range oids {
		items = append(items, packfile.Item{Oid: oid, Path: "data.bin"})
	}

	var out bytes.Buffer
	writer := packfile.NewWriter(&out, db, packfile.WriterOptions{
		Compression: zlib.DefaultCompression,
		AllowOfs:    allowOfs,
	})
	require.NoError(t, writer.WriteObjects(items))
	return out.Bytes()
}

func TestPackRoundTripWithDelta(t *testing.T) {
	t.Parallel()

	// two blobs where the second extends the first by 11 bytes, big
	// enough for the compressor to deltify
	first := bytes.Repeat([]byte("abcdefgh"), 64)
	second := append(append([]byte{}, first...), "extra bytes"...)

	db := newMemoryStore()
	firstOid := db.add(object.TypeBlob, first)
	secondOid := db.add(object.TypeBlob, second)

	pack := writeTestPack(t, db, []ginternals.Oid{firstOid, secondOid}, true)

	// read it back into a fresh database through the unpacker
	fresh := newMemoryStore()
	stream := packfile.NewStream(bytes.NewReader(pack), nil)
	reader := packfile.NewReader(stream)
	require.NoError(t, reader.ReadHeader())
	assert.Equal(t, uint32(2), reader.Count())

	require.NoError(t, packfile.NewUnpacker(fresh, reader, stream).ProcessPack())

	typ, data, err := fresh.LoadRaw(firstOid)
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, typ)
	assert.Equal(t, first, data)

	typ, data, err = fresh.LoadRaw(secondOid)
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, typ)
	assert.Equal(t, second, data)

	typ, size, err := fresh.LoadInfo(firstOid)
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, typ)
	assert.Equal(t, uint64(512), size)

	typ, size, err = fresh.LoadInfo(secondOid)
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, typ)
	assert.Equal(t, uint64(523), size)
}

func TestPackDeterminism(t *testing.T) {
	t.Parallel()

	first := bytes.Repeat([]byte("abcdefgh"), 64)
	second := append(append([]byte{}, first...), "extra bytes"...)

	db := newMemoryStore()
	firstOid := db.add(object.TypeBlob, first)
	secondOid := db.add(object.TypeBlob, second)

	packA := writeTestPack(t, db, []ginternals.Oid{firstOid, secondOid}, true)
	packB := writeTestPack(t, db, []ginternals.Oid{firstOid, secondOid}, true)

	assert.Equal(t, packA, packB, "the same input order and compression level must reproduce the pack")
}

func TestPackChecksumVerification(t *testing.T) {
	t.Parallel()

	db := newMemoryStore()
	oid := db.add(object.TypeBlob, []byte("some content"))

	pack := writeTestPack(t, db, []ginternals.Oid{oid}, false)

	// corrupt one byte of the trailer
	pack[len(pack)-1] ^= 0xFF

	fresh := newMemoryStore()
	stream := packfile.NewStream(bytes.NewReader(pack), nil)
	reader := packfile.NewReader(stream)
	require.NoError(t, reader.ReadHeader())

	err := packfile.NewUnpacker(fresh, reader, stream).ProcessPack()
	require.Error(t, err)
	assert.ErrorIs(t, err, packfile.ErrInvalidPack)
}

func TestIndexerRoundTrip(t *testing.T) {
	t.Parallel()

	first := bytes.Repeat([]byte("abcdefgh"), 64)
	second := append(append([]byte{}, first...), "extra bytes"...)

	db := newMemoryStore()
	firstOid := db.add(object.TypeBlob, first)
	secondOid := db.add(object.TypeBlob, second)
	commitData := []byte("tree " + firstOid.String() + "\nauthor J <j@d> 1566115917 +0000\ncommitter J <j@d> 1566115917 +0000\n\nmsg\n")
	commitOid := db.add(object.TypeCommit, commitData)

	pack := writeTestPack(t, db, []ginternals.Oid{commitOid, firstOid, secondOid}, true)

	packDir := filepath.Join(t.TempDir(), "pack")
	stream := packfile.NewStream(bytes.NewReader(pack), nil)
	reader := packfile.NewReader(stream)
	require.NoError(t, reader.ReadHeader())

	indexer, err := packfile.NewIndexer(packDir, reader, stream)
	require.NoError(t, err)
	require.NoError(t, indexer.ProcessPack())

	// the pack and its index must land next to each other
	entries, err := os.ReadDir(packDir)
	require.NoError(t, err)
	var packPath string
	extensions := map[string]int{}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		extensions[ext]++
		if ext == ".pack" {
			packPath = filepath.Join(packDir, entry.Name())
		}
	}
	assert.Equal(t, 1, extensions[".pack"])
	assert.Equal(t, 1, extensions[".idx"])

	// and the pair must serve every object back
	p, err := packfile.NewPackFromFile(packPath)
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck // test cleanup

	for oid, o := range db.objects {
		assert.True(t, p.HasOid(oid))

		typ, data, err := p.LoadRaw(oid)
		require.NoError(t, err)
		assert.Equal(t, o.Type(), typ)
		assert.Equal(t, o.Bytes(), data)

		typ, size, err := p.LoadInfo(oid)
		require.NoError(t, err)
		assert.Equal(t, o.Type(), typ)
		assert.Equal(t, uint64(o.Size()), size)
	}

	// prefix match finds objects by their abbreviated oid
	matches := p.PrefixMatch(firstOid.String()[:10])
	require.Len(t, matches, 1)
	assert.Equal(t, firstOid, matches[0])
}
