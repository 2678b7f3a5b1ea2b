package tiles

import (
	"bytes"
	"fmt"
	"io"

	lzo "github.com/rasky/go-lzo"

	"github.com/protomaps/drawing-salvage/internal/salvageerr"
)

// UpperBoundProbe is the generous decompression ceiling used while the
// geometry is still unknown (spec §6 constants): 512*512*4.
const UpperBoundProbe = 512 * 512 * 4

// lzoDecompress1X is the raw LZO1X entry point, isolated behind a var so
// tests can drive decodeTileLZO/probeTileLZO through the library's
// documented success/failure contract without constructing real
// LZO1X-compressed fixtures.
var lzoDecompress1X = func(src io.Reader, srcLen, dstLen int) ([]byte, error) {
	return lzo.Decompress1X(src, srcLen, dstLen)
}

// decodeTileFn and probeTileFn are the indirections geometry.go and
// assembler.go call through; tests substitute deterministic stand-ins there
// so geometry inference and canvas assembly can be exercised without real
// LZO1X-compressed fixtures either.
var (
	decodeTileFn = decodeTileLZO
	probeTileFn  = probeTileLZO
)

// DecodeTile decompresses one tile payload. Procreate's layer chunks are
// headerless LZO1X streams, the same format python-lzo's decompress(data,
// False, finalsize) reads (layer_writer.py), with the expected decompressed
// size supplied out of band rather than carried in the stream. The caller
// supplies that exact expected size (spec §4.6); a stream that fails to
// decode, or decodes to a different length than expected, fails with a
// TileDecodeError.
func DecodeTile(payload []byte, offset int64, expected int) ([]byte, error) {
	return decodeTileFn(payload, offset, expected)
}

func decodeTileLZO(payload []byte, offset int64, expected int) ([]byte, error) {
	out, err := lzoDecompress1X(bytes.NewReader(payload), len(payload), expected)
	if err != nil {
		return nil, &salvageerr.TileDecodeError{Offset: offset, Expected: expected, Cause: err}
	}
	if len(out) != expected {
		return nil, &salvageerr.TileDecodeError{
			Offset:   offset,
			Expected: expected,
			Cause:    fmt.Errorf("lzo1x: decompressed %d bytes, wanted %d", len(out), expected),
		}
	}
	return out, nil
}

// ProbeTile decompresses payload without knowing the true target size ahead
// of time, used by the geometry solver's trial decompression (spec §4.7): it
// decodes up to UpperBoundProbe bytes and, unlike DecodeTile, treats a
// truncated or unparseable stream as simply yielding whatever it managed to
// produce rather than as an error — the geometry solver only needs a byte
// count, and a partial one is still informative.
func ProbeTile(payload []byte) (int, error) {
	return probeTileFn(payload)
}

func probeTileLZO(payload []byte) (int, error) {
	out, err := lzoDecompress1X(bytes.NewReader(payload), len(payload), UpperBoundProbe)
	n := len(out)
	if err != nil && n == 0 {
		return 0, nil
	}
	if n > UpperBoundProbe {
		n = UpperBoundProbe
	}
	return n, nil
}

// DecodeTileMode wraps DecodeTile with the lenient/strict posture.
func DecodeTileMode(payload []byte, offset int64, expected int, mode Mode) ([]byte, error) {
	out, err := DecodeTile(payload, offset, expected)
	if err != nil && mode == Lenient {
		return nil, nil
	}
	return out, err
}

// ExpectedTileSize computes the expected decompressed byte count for a tile
// at (col, row) in a grid of the given geometry, per spec §4.6.
func ExpectedTileSize(col, row, cols, rows, tileEdge, edgeW, edgeH int) int {
	lastCol := col == cols-1
	lastRow := row == rows-1
	w, h := tileEdge, tileEdge
	if lastCol {
		w = edgeW
	}
	if lastRow {
		h = edgeH
	}
	return w * h * 4
}
