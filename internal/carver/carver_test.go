package carver

import (
	"bytes"
	"encoding/binary"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protomaps/drawing-salvage/internal/chunkstream"
)

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func buildLocal(name string, modTime, modDate uint16, payload []byte) []byte {
	var b bytes.Buffer
	b.Write(LocalFileSig[:])
	b.Write(le16(20))               // version needed
	b.Write(le16(0))                // flags
	b.Write(le16(0))                // compression method
	b.Write(le16(modTime))          // offset 10-11
	b.Write(le16(modDate))          // offset 12-13
	b.Write(le32(0))                // crc32
	b.Write(le32(uint32(len(payload)))) // compressed size, offset 18-21
	b.Write(le32(uint32(len(payload)))) // uncompressed size
	b.Write(le16(uint16(len(name)))) // name len, offset 26-27
	b.Write(le16(0))                // extra len, offset 28-29
	b.WriteString(name)
	b.Write(payload)
	return b.Bytes()
}

func buildCentral(name string, modTime, modDate uint16, compSize uint32, relOffset uint32) []byte {
	var b bytes.Buffer
	b.Write(CentralDirSig[:])
	b.Write(le16(0)) // version made by
	b.Write(le16(20))
	b.Write(le16(0)) // flags
	b.Write(le16(0)) // compression method
	b.Write(le16(modTime))  // offset 12-13
	b.Write(le16(modDate))  // offset 14-15
	b.Write(le32(0))        // crc32
	b.Write(le32(compSize)) // offset 20-23
	b.Write(le32(compSize)) // uncompressed size
	b.Write(le16(uint16(len(name)))) // offset 28-29
	b.Write(le16(0))                 // extra len, offset 30-31
	b.Write(le16(0))                 // comment len, offset 32-33
	b.Write(le16(0))                 // disk number start
	b.Write(le16(0))                 // internal attrs
	b.Write(le32(0))                 // external attrs
	b.Write(le32(relOffset))         // offset 42-45
	b.WriteString(name)
	return b.Bytes()
}

func buildEOCD(totalEntries uint16, dirSize, dirOffset uint32) []byte {
	var b bytes.Buffer
	b.Write(EOCDSig[:])
	b.Write(le16(0)) // disk number
	b.Write(le16(0)) // disk with central dir
	b.Write(le16(totalEntries)) // entries this disk
	b.Write(le16(totalEntries)) // offset 10-11
	b.Write(le32(dirSize))      // offset 12-15
	b.Write(le32(dirOffset))    // offset 16-19
	b.Write(le16(0))            // comment len, offset 20-21
	return b.Bytes()
}

func writeChunk(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CHUNK0000.BIN"), data, 0o644))
	return dir
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestCarveWellFormedArchive(t *testing.T) {
	local := buildLocal("hello.txt", 0x1234, 0x5678, []byte{1, 2, 3, 4})
	central := buildCentral("hello.txt", 0x1234, 0x5678, 4, 0)
	eocd := buildEOCD(1, uint32(len(central)), uint32(len(local)))

	var all bytes.Buffer
	all.Write(local)
	all.Write(central)
	all.Write(eocd)

	dir := writeChunk(t, all.Bytes())
	cs, err := chunkstream.Open(dir)
	require.NoError(t, err)
	defer cs.Close()

	archives, unknown, err := New(cs, testLogger()).Run()
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Empty(t, unknown)

	a := archives[0]
	assert.True(t, a.Valid)
	require.Len(t, a.Files, 1)
	require.Len(t, a.Dirs, 1)
	assert.Equal(t, "hello.txt", a.Files[0].Name)
	assert.Equal(t, "hello.txt", a.Dirs[0].Name)
	require.NotNil(t, a.EOCD)
	assert.EqualValues(t, 1, a.EOCD.DeclaredCount)
}

func TestCarveDeclaredCountMismatchIsInvalid(t *testing.T) {
	local := buildLocal("a.txt", 1, 1, []byte{9})
	central := buildCentral("a.txt", 1, 1, 1, 0)
	eocd := buildEOCD(5, uint32(len(central)), uint32(len(local))) // declares 5, only 1 present

	var all bytes.Buffer
	all.Write(local)
	all.Write(central)
	all.Write(eocd)

	dir := writeChunk(t, all.Bytes())
	cs, err := chunkstream.Open(dir)
	require.NoError(t, err)
	defer cs.Close()

	archives, _, err := New(cs, testLogger()).Run()
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.False(t, archives[0].Valid)
}

func TestCarveCentralDirOnlyNoLocalEntriesIsInvalid(t *testing.T) {
	central := buildCentral("orphan.txt", 1, 1, 1, 0)
	eocd := buildEOCD(1, uint32(len(central)), 0)

	var all bytes.Buffer
	all.Write(central)
	all.Write(eocd)

	dir := writeChunk(t, all.Bytes())
	cs, err := chunkstream.Open(dir)
	require.NoError(t, err)
	defer cs.Close()

	archives, _, err := New(cs, testLogger()).Run()
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.False(t, archives[0].Valid)
	assert.Empty(t, archives[0].Files)
	require.Len(t, archives[0].Dirs, 1)
}

func TestCarveLocalSignatureTruncatedAtStreamEnd(t *testing.T) {
	junk := bytes.Repeat([]byte{0x11}, 50)
	var all bytes.Buffer
	all.Write(junk)
	all.Write(LocalFileSig[:]) // signature with nothing following it

	dir := writeChunk(t, all.Bytes())
	cs, err := chunkstream.Open(dir)
	require.NoError(t, err)
	defer cs.Close()

	archives, _, err := New(cs, testLogger()).Run()
	require.NoError(t, err)
	require.Len(t, archives, 1)
	a := archives[0]
	assert.False(t, a.Valid)
	require.Len(t, a.Files, 1)
	size := cs.Size()
	assert.Equal(t, size, a.Files[0].End)
	assert.Equal(t, size, a.Files[0].Corrupt)
}

func TestCarveUnknownBytesSurroundingArchive(t *testing.T) {
	junk := bytes.Repeat([]byte{0xAB}, 20)
	local := buildLocal("x.bin", 1, 1, []byte{7, 7})
	central := buildCentral("x.bin", 1, 1, 2, uint32(len(junk)))
	eocd := buildEOCD(1, uint32(len(central)), uint32(len(junk)+len(local)))

	var all bytes.Buffer
	all.Write(junk)
	all.Write(local)
	all.Write(central)
	all.Write(eocd)
	all.Write(bytes.Repeat([]byte{0xCD}, 10))

	dir := writeChunk(t, all.Bytes())
	cs, err := chunkstream.Open(dir)
	require.NoError(t, err)
	defer cs.Close()

	archives, unknown, err := New(cs, testLogger()).Run()
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.True(t, archives[0].Valid)
	require.Len(t, unknown, 2)
	assert.Equal(t, int64(0), unknown[0].Start)
	assert.Equal(t, int64(len(junk)), unknown[0].End)
}

// TestCarveRollsBackAndRediscoversSwallowedEntry covers the abandon path: an
// outer local-file record declares a compressed size that swallows only the
// first two bytes of a real, complete archive immediately following it.
// Parsing the outer entry succeeds, but the next four bytes (starting at the
// third byte of the swallowed entry's own signature) form no signature while
// still in FILE state, so the carver must abandon as soon as its window has
// filled and rewind to one byte past the outer entry's own signature, not
// past wherever the unknown bytes were seen, so the embedded archive is fully
// re-swept and recovered on the second pass.
func TestCarveRollsBackAndRediscoversSwallowedEntry(t *testing.T) {
	embeddedLocal := buildLocal("inner.bin", 1, 1, []byte{9, 9})
	embeddedCentral := buildCentral("inner.bin", 1, 1, 2, 0)
	embeddedEOCD := buildEOCD(1, uint32(len(embeddedCentral)), uint32(len(embeddedLocal)))
	var embedded bytes.Buffer
	embedded.Write(embeddedLocal)
	embedded.Write(embeddedCentral)
	embedded.Write(embeddedEOCD)
	embeddedBytes := embedded.Bytes()

	// outer declares its entire "body" as just the embedded entry's first
	// two signature bytes, so the rest of the embedded entry lands
	// immediately after outer's declared end.
	outerLocal := buildLocal("outer.bin", 2, 2, embeddedBytes[:2])

	var all bytes.Buffer
	all.Write(outerLocal)
	all.Write(embeddedBytes[2:])

	dir := writeChunk(t, all.Bytes())
	cs, err := chunkstream.Open(dir)
	require.NoError(t, err)
	defer cs.Close()

	archives, _, err := New(cs, testLogger()).Run()
	require.NoError(t, err)
	require.Len(t, archives, 2)

	outer := archives[0]
	assert.False(t, outer.Valid)
	require.Len(t, outer.Files, 1)
	assert.Equal(t, "outer.bin", outer.Files[0].Name)

	inner := archives[1]
	assert.True(t, inner.Valid)
	require.Len(t, inner.Files, 1)
	assert.Equal(t, "inner.bin", inner.Files[0].Name)
}
