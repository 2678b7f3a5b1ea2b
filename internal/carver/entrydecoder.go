package carver

import (
	"encoding/binary"
	"fmt"

	"github.com/protomaps/drawing-salvage/internal/chunkstream"
)

// Signature is a 4-byte PK record marker.
type Signature [4]byte

var (
	LocalFileSig  = Signature{0x50, 0x4B, 0x03, 0x04}
	CentralDirSig = Signature{0x50, 0x4B, 0x01, 0x02}
	EOCDSig       = Signature{0x50, 0x4B, 0x05, 0x06}
)

// truncReader reads from a ChunkStream, latching the first point at which a
// read returned fewer bytes than requested. ChunkStream.Read never errors on
// running out of data (spec §4.1), so a short read here means the record was
// truncated by the end of the recovered stream, not a decode failure — that
// case is reported through `truncated`/`at`, never through `ioErr`. `ioErr`
// is reserved for a genuine I/O failure from the backing file, which should
// still terminate the pipeline step per §7.
type truncReader struct {
	cs        *chunkstream.ChunkStream
	truncated bool
	at        int64
	ioErr     error
}

func (t *truncReader) read(n int) []byte {
	if t.truncated || t.ioErr != nil || n <= 0 {
		return nil
	}
	b, err := t.cs.Read(n)
	if err != nil {
		t.ioErr = err
		return b
	}
	if len(b) < n {
		t.truncated = true
		t.at = t.cs.Offset()
	}
	return b
}

// DecodeLocalFile decodes a local-file-header record. cs must be positioned
// immediately after the 4-byte signature. A record truncated by end of
// stream is reported via FileEntryFragment.Corrupt rather than an error.
func DecodeLocalFile(cs *chunkstream.ChunkStream) (FileEntryFragment, error) {
	start := cs.Offset() - 4
	t := truncReader{cs: cs}

	// Record offsets 4..29 inclusive (26 bytes), up to the filename.
	fixed := t.read(26)
	if t.ioErr != nil {
		return FileEntryFragment{}, t.ioErr
	}
	if t.truncated {
		return FileEntryFragment{Start: start, End: t.at, Corrupt: t.at}, nil
	}
	modTime := binary.LittleEndian.Uint16(fixed[10-4 : 12-4])
	modDate := binary.LittleEndian.Uint16(fixed[12-4 : 14-4])
	compSize := binary.LittleEndian.Uint32(fixed[18-4 : 22-4])
	nameLen := binary.LittleEndian.Uint16(fixed[26-4 : 28-4])
	extraLen := binary.LittleEndian.Uint16(fixed[28-4 : 30-4])

	nameBytes := t.read(int(nameLen))
	if t.ioErr != nil {
		return FileEntryFragment{}, t.ioErr
	}
	if t.truncated {
		return FileEntryFragment{Start: start, End: t.at, Name: string(nameBytes), Corrupt: t.at}, nil
	}
	name := string(nameBytes)

	t.read(int(extraLen))
	if t.ioErr != nil {
		return FileEntryFragment{}, t.ioErr
	}
	if t.truncated {
		return FileEntryFragment{Start: start, End: t.at, Name: name, Corrupt: t.at}, nil
	}

	t.read(int(compSize))
	if t.ioErr != nil {
		return FileEntryFragment{}, t.ioErr
	}
	if t.truncated {
		return FileEntryFragment{Start: start, End: t.at, Name: name, Corrupt: t.at}, nil
	}

	return FileEntryFragment{
		Start:   start,
		End:     cs.Offset(),
		Name:    name,
		ModDate: modDate,
		ModTime: modTime,
		Corrupt: -1,
	}, nil
}

// DecodeCentralDir decodes a central-directory-header record. cs must be
// positioned immediately after the 4-byte signature.
func DecodeCentralDir(cs *chunkstream.ChunkStream) (DirEntryFragment, error) {
	start := cs.Offset() - 4
	t := truncReader{cs: cs}

	// Record offsets 4..45 inclusive (42 bytes), up to the filename.
	fixed := t.read(42)
	if t.ioErr != nil {
		return DirEntryFragment{}, t.ioErr
	}
	if t.truncated {
		return DirEntryFragment{Start: start, End: t.at, Corrupt: t.at}, nil
	}
	modTime := binary.LittleEndian.Uint16(fixed[12-4 : 14-4])
	modDate := binary.LittleEndian.Uint16(fixed[14-4 : 16-4])
	compSize := binary.LittleEndian.Uint32(fixed[20-4 : 24-4])
	nameLen := binary.LittleEndian.Uint16(fixed[28-4 : 30-4])
	extraLen := binary.LittleEndian.Uint16(fixed[30-4 : 32-4])
	commentLen := binary.LittleEndian.Uint16(fixed[32-4 : 34-4])
	relOffset := binary.LittleEndian.Uint32(fixed[42-4 : 46-4])

	nameBytes := t.read(int(nameLen))
	if t.ioErr != nil {
		return DirEntryFragment{}, t.ioErr
	}
	if t.truncated {
		return DirEntryFragment{Start: start, End: t.at, Name: string(nameBytes), Corrupt: t.at}, nil
	}
	name := string(nameBytes)

	t.read(int(extraLen))
	if t.ioErr != nil {
		return DirEntryFragment{}, t.ioErr
	}
	if t.truncated {
		return DirEntryFragment{Start: start, End: t.at, Name: name, Corrupt: t.at}, nil
	}

	t.read(int(commentLen))
	if t.ioErr != nil {
		return DirEntryFragment{}, t.ioErr
	}
	if t.truncated {
		return DirEntryFragment{Start: start, End: t.at, Name: name, Corrupt: t.at}, nil
	}

	return DirEntryFragment{
		Start:    start,
		End:      cs.Offset(),
		Name:     name,
		ModDate:  modDate,
		ModTime:  modTime,
		RefStart: int64(relOffset),
		RefEnd:   int64(relOffset) + int64(compSize),
		Corrupt:  -1,
	}, nil
}

// DecodeEOCD decodes an end-of-central-directory record. cs must be
// positioned immediately after the 4-byte signature. Unlike the local-file
// and central-directory records, a truncated fixed header carries no usable
// data and is reported as an error: the carver abandons the parse rather
// than emitting a half-populated summary.
func DecodeEOCD(cs *chunkstream.ChunkStream) (EOCDSummary, error) {
	sigOffset := cs.Offset() - 4
	t := truncReader{cs: cs}

	// Record offsets 4..21 inclusive (18 bytes).
	fixed := t.read(18)
	if t.ioErr != nil {
		return EOCDSummary{}, t.ioErr
	}
	if t.truncated {
		return EOCDSummary{}, fmt.Errorf("end-of-central-directory record truncated at offset %d", t.at)
	}
	totalEntries := binary.LittleEndian.Uint16(fixed[10-4 : 12-4])
	dirSize := binary.LittleEndian.Uint32(fixed[12-4 : 16-4])
	dirOffset := binary.LittleEndian.Uint32(fixed[16-4 : 20-4])
	commentLen := binary.LittleEndian.Uint16(fixed[20-4 : 22-4])

	t.read(int(commentLen)) // trailing comment is not retained; truncation here is harmless

	dirStart := sigOffset - int64(dirSize)
	return EOCDSummary{
		DeclaredCount: totalEntries,
		DirSize:       dirSize,
		DirOffset:     dirOffset,
		DirStart:      dirStart,
		ArchiveStart:  dirStart - int64(dirOffset),
	}, nil
}
