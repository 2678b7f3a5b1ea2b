package tiles

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protomaps/drawing-salvage/internal/salvageerr"
)

var errFakeTileSize = errors.New("fake tile codec: payload length does not match expected size")

// useFakeTileCodec replaces decodeTileFn/probeTileFn with stand-ins that
// treat a payload as already-decompressed bytes, so geometry inference and
// canvas assembly can be tested by pixel count alone, without needing real
// LZO1X-compressed fixtures.
func useFakeTileCodec(t *testing.T) {
	t.Helper()
	origDecode, origProbe := decodeTileFn, probeTileFn
	decodeTileFn = func(payload []byte, offset int64, expected int) ([]byte, error) {
		if len(payload) != expected {
			return nil, &salvageerr.TileDecodeError{Offset: offset, Expected: expected, Cause: errFakeTileSize}
		}
		return payload, nil
	}
	probeTileFn = func(payload []byte) (int, error) {
		return len(payload), nil
	}
	t.Cleanup(func() { decodeTileFn, probeTileFn = origDecode, origProbe })
}

func fillPayload(n int, b byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestSolveGeometryFromMidSideBaseCorner(t *testing.T) {
	useFakeTileCodec(t)
	// 3x3 grid: T=4, W=3 (last column), H=2 (last row).
	refs := []TileRef{
		{Col: 0, Row: 0, Payload: fillPayload(4*4*4, 1)}, // mid
		{Col: 2, Row: 0, Payload: fillPayload(3*4*4, 2)}, // side (last col)
		{Col: 0, Row: 2, Payload: fillPayload(4*2*4, 3)}, // base (last row)
		{Col: 2, Row: 2, Payload: fillPayload(3*2*4, 4)}, // corner
	}

	geo, err := SolveGeometry(nil, refs)
	require.NoError(t, err)
	assert.Equal(t, 3, geo.Cols)
	assert.Equal(t, 3, geo.Rows)
	assert.Equal(t, 4, geo.TileEdge)
	assert.Equal(t, 3, geo.EdgeW)
	assert.Equal(t, 2, geo.EdgeH)
}

func TestSolveGeometryFallsBackWhenMidMissing(t *testing.T) {
	useFakeTileCodec(t)
	refs := []TileRef{
		{Col: 2, Row: 0, Payload: fillPayload(3*4*4, 2)}, // lone tile: last column and last row, so the corner group
	}
	geo, err := SolveGeometry(nil, refs)
	require.NoError(t, err)
	assert.Equal(t, 3, geo.TileEdge) // floor(sqrt(48/4)) from the corner sample, mid/side/base being empty
}

func TestSolveGeometryDefaultsWhenAllGroupsFail(t *testing.T) {
	useFakeTileCodec(t)
	refs := []TileRef{
		{Col: 0, Row: 0, Payload: nil},
	}
	geo, err := SolveGeometry(nil, refs)
	require.NoError(t, err)
	assert.Equal(t, DefaultTileEdge, geo.TileEdge)
}

func TestSolveGeometryEmptyRefsIsUnknown(t *testing.T) {
	_, err := SolveGeometry(nil, nil)
	require.Error(t, err)
}

// threeByTwoGrid builds the exact byte counts from the seed scenario in
// spec §8: mid tiles decompress to 65536 bytes, side to 32768, base to
// 49152, corner to 24576 — yielding T=128, W=64, H=96.
func threeByTwoGrid(includeMid bool) []TileRef {
	var refs []TileRef
	if includeMid {
		refs = append(refs,
			TileRef{Col: 0, Row: 0, Payload: fillPayload(65536, 1)},
			TileRef{Col: 1, Row: 0, Payload: fillPayload(65536, 1)},
		)
	}
	refs = append(refs,
		TileRef{Col: 2, Row: 0, Payload: fillPayload(32768, 2)}, // side
		TileRef{Col: 0, Row: 1, Payload: fillPayload(49152, 3)}, // base
		TileRef{Col: 1, Row: 1, Payload: fillPayload(49152, 3)}, // base
		TileRef{Col: 2, Row: 1, Payload: fillPayload(24576, 4)}, // corner
	)
	return refs
}

func TestSolveGeometrySeedScenarioThree(t *testing.T) {
	useFakeTileCodec(t)
	geo, err := SolveGeometry(nil, threeByTwoGrid(true))
	require.NoError(t, err)
	assert.Equal(t, 3, geo.Cols)
	assert.Equal(t, 2, geo.Rows)
	assert.Equal(t, 128, geo.TileEdge)
	assert.Equal(t, 64, geo.EdgeW)
	assert.Equal(t, 96, geo.EdgeH)
}

func TestSolveGeometrySeedScenarioFourFallsBackToSide(t *testing.T) {
	useFakeTileCodec(t)
	// mid tiles corrupted (nil payload), side and base intact.
	refs := threeByTwoGrid(false)
	refs = append(refs,
		TileRef{Col: 0, Row: 0, Payload: nil},
		TileRef{Col: 1, Row: 0, Payload: nil},
	)
	geo, err := SolveGeometry(nil, refs)
	require.NoError(t, err)
	assert.Equal(t, 128, geo.TileEdge)
	assert.Equal(t, 64, geo.EdgeW)
	assert.Equal(t, 96, geo.EdgeH)
}
