// Package salvageerr defines the typed error kinds shared across the
// salvage pipeline (spec §7). The kinds tied to a stream position carry the
// absolute offset the failure occurred at; GeometryUnknown carries a layer
// name and MissingResource a UUID instead.
package salvageerr

import "fmt"

// StreamBoundsError reports a seek or read outside [0, size] attempted in
// strict mode. ChunkStream itself never returns this — it silently closes
// per spec §4.1 — and no other package constructs it either: InflateEntry
// reports a short read as an InflateError wrapping io.ErrUnexpectedEOF, and
// the EntryDecoder reports truncation through a fragment's Corrupt offset.
type StreamBoundsError struct {
	Offset int64
	Size   int64
}

func (e *StreamBoundsError) Error() string {
	return fmt.Sprintf("stream bounds: offset %d outside [0, %d]", e.Offset, e.Size)
}

// InflateError reports a failed raw-DEFLATE decode of a file entry payload.
type InflateError struct {
	Offset int64
	Cause  error
}

func (e *InflateError) Error() string {
	return fmt.Sprintf("inflate error at offset %d: %v", e.Offset, e.Cause)
}

func (e *InflateError) Unwrap() error { return e.Cause }

// TileDecodeError reports a failed LZO-variant tile decode.
type TileDecodeError struct {
	Offset   int64
	Expected int
	Cause    error
}

func (e *TileDecodeError) Error() string {
	return fmt.Sprintf("tile decode error at offset %d (expected %d bytes): %v", e.Offset, e.Expected, e.Cause)
}

func (e *TileDecodeError) Unwrap() error { return e.Cause }

// GeometryUnknown reports that all four tile groups failed to yield a tile
// edge length during geometry inference.
type GeometryUnknown struct {
	Layer string
}

func (e *GeometryUnknown) Error() string {
	return fmt.Sprintf("geometry unknown for layer %q: no tile in any group decoded cleanly", e.Layer)
}

// MissingResource reports a UUID referenced by a document's property list
// with no matching archive file entry.
type MissingResource struct {
	UUID string
}

func (e *MissingResource) Error() string {
	return fmt.Sprintf("missing resource: no archive entry matches UUID %q", e.UUID)
}

// CorruptArchiveFragment reports a carver state-machine transition that did
// not match the expected sequence (e.g. a central-directory record seen
// before any local-file record).
type CorruptArchiveFragment struct {
	Offset int64
	Reason string
}

func (e *CorruptArchiveFragment) Error() string {
	return fmt.Sprintf("corrupt archive fragment at offset %d: %s", e.Offset, e.Reason)
}
