// Package tiles renders raster layers from recovered archive tile chunks:
// inflating file-entry payloads, decompressing the LZO1X tile codec,
// inferring grid geometry by trial decompression, and painting the result
// onto an RGBA canvas.
package tiles

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"

	"github.com/protomaps/drawing-salvage/internal/chunkstream"
	"github.com/protomaps/drawing-salvage/internal/salvageerr"
)

// Mode selects how a decode failure is reported.
type Mode int

const (
	// Lenient converts a failure into an empty/omitted result. The *Mode
	// wrappers return (nil, nil) without logging; LayerAssembler logs each
	// tile it omits.
	Lenient Mode = iota
	// Strict propagates the first failure.
	Strict
)

// InflateEntry decompresses the payload of a local file entry occupying
// [start, end) in cs. Per spec §4.5 the payload is raw DEFLATE with no
// zlib/gzip wrapper and no checksum.
func InflateEntry(cs *chunkstream.ChunkStream, start, end int64) ([]byte, error) {
	if _, err := cs.Seek(start+26, chunkstream.FromStart); err != nil {
		return nil, &salvageerr.InflateError{Offset: start, Cause: err}
	}
	lenBytes, err := cs.Read(4)
	if err != nil {
		return nil, &salvageerr.InflateError{Offset: start, Cause: err}
	}
	if len(lenBytes) < 4 {
		return nil, &salvageerr.InflateError{Offset: start, Cause: io.ErrUnexpectedEOF}
	}
	nameLen := binary.LittleEndian.Uint16(lenBytes[0:2])
	extraLen := binary.LittleEndian.Uint16(lenBytes[2:4])

	if _, err := cs.Seek(int64(nameLen)+int64(extraLen), chunkstream.FromCurrent); err != nil {
		return nil, &salvageerr.InflateError{Offset: start, Cause: err}
	}

	payloadLen := end - cs.Offset()
	if payloadLen < 0 {
		return nil, &salvageerr.InflateError{Offset: start, Cause: io.ErrUnexpectedEOF}
	}
	raw, err := cs.Read(int(payloadLen))
	if err != nil {
		return nil, &salvageerr.InflateError{Offset: start, Cause: err}
	}

	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &salvageerr.InflateError{Offset: start, Cause: err}
	}
	return out, nil
}

// InflateEntryMode wraps InflateEntry with the lenient/strict posture: in
// Lenient mode a failure yields (nil, nil) rather than propagating.
func InflateEntryMode(cs *chunkstream.ChunkStream, start, end int64, mode Mode) ([]byte, error) {
	out, err := InflateEntry(cs, start, end)
	if err != nil && mode == Lenient {
		return nil, nil
	}
	return out, err
}
