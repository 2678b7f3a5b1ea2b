package tiles

import (
	"log"
	"math"

	"github.com/protomaps/drawing-salvage/internal/salvageerr"
)

// DefaultTileEdge is used when every inference group fails to yield a usable
// sample (spec §11): T=256 with a logged warning rather than a hard failure.
const DefaultTileEdge = 256

// TileRef locates one recovered tile's inflated (post-DEFLATE) byte payload
// at a grid position; SolveGeometry derives the tile's group from Col/Row.
type TileRef struct {
	Col, Row int
	Payload  []byte
}

// Geometry is the inferred tile grid for one layer.
type Geometry struct {
	Cols, Rows int
	TileEdge   int // T
	EdgeW      int // W, width of the last column's tiles
	EdgeH      int // H, height of the last row's tiles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// groupOf classifies a tile position against the grid's last column/row.
func groupOf(col, row, cols, rows int) (isLastCol, isLastRow bool) {
	return col == cols-1, row == rows-1
}

// SolveGeometry infers T, W and H per spec §4.7: columns/rows come from the
// maximum observed column/row index plus one; T is learned from an interior
// ("mid") tile's decompressed pixel count, falling back to the side, base
// then corner groups in turn when mid tiles are unavailable or fail to
// decode; W is learned from a side tile, H from a base tile; the corner
// tile, when W or H is still unknown, supplies the missing one of the two.
func SolveGeometry(logger *log.Logger, refs []TileRef) (Geometry, error) {
	if len(refs) == 0 {
		return Geometry{}, &salvageerr.GeometryUnknown{Layer: ""}
	}

	cols, rows := 0, 0
	for _, r := range refs {
		cols = maxInt(cols, r.Col+1)
		rows = maxInt(rows, r.Row+1)
	}

	var mid, side, base, corner []TileRef
	for _, r := range refs {
		lastCol, lastRow := groupOf(r.Col, r.Row, cols, rows)
		switch {
		case lastCol && lastRow:
			corner = append(corner, r)
		case lastCol:
			side = append(side, r)
		case lastRow:
			base = append(base, r)
		default:
			mid = append(mid, r)
		}
	}

	t, tOK := inferSquareEdge(mid)
	if !tOK {
		if logger != nil {
			logger.Printf("carver: no interior tile sample available, falling back to side group for tile edge")
		}
		t, tOK = inferSquareEdge(side)
	}
	if !tOK {
		if logger != nil {
			logger.Printf("carver: side group unusable, falling back to base group for tile edge")
		}
		t, tOK = inferSquareEdge(base)
	}
	if !tOK {
		if logger != nil {
			logger.Printf("carver: base group unusable, falling back to corner group for tile edge")
		}
		t, tOK = inferSquareEdge(corner)
	}
	if !tOK {
		if logger != nil {
			logger.Printf("carver: all tile-edge inference groups exhausted, defaulting T=%d", DefaultTileEdge)
		}
		t = DefaultTileEdge
	}

	w, wOK := inferOtherEdge(side, t)
	h, hOK := inferOtherEdge(base, t)

	if !wOK || !hOK {
		if cw, ch, ok := inferCornerEdges(corner, t, wOK, hOK, w, h); ok {
			if !wOK {
				w = cw
				wOK = true
			}
			if !hOK {
				h = ch
				hOK = true
			}
		}
	}
	if !wOK {
		w = t
	}
	if !hOK {
		h = t
	}

	return Geometry{Cols: cols, Rows: rows, TileEdge: t, EdgeW: w, EdgeH: h}, nil
}

// inferSquareEdge probes the first decodable tile in group and returns
// floor(sqrt(pixel_count)), per the mid-tile inference rule.
func inferSquareEdge(group []TileRef) (int, bool) {
	for _, r := range group {
		n, err := probeTileFn(r.Payload)
		if err != nil || n <= 0 {
			continue
		}
		pixels := n / 4
		edge := int(math.Sqrt(float64(pixels)))
		if edge > 0 {
			return edge, true
		}
	}
	return 0, false
}

// inferOtherEdge probes the first decodable tile in group and divides its
// pixel count by the already-known tile edge to recover the other edge
// (W from a side tile's T·W pixel count, H from a base tile's T·H).
func inferOtherEdge(group []TileRef, knownEdge int) (int, bool) {
	if knownEdge <= 0 {
		return 0, false
	}
	for _, r := range group {
		n, err := probeTileFn(r.Payload)
		if err != nil || n <= 0 {
			continue
		}
		pixels := n / 4
		other := pixels / knownEdge
		if other > 0 {
			return other, true
		}
	}
	return 0, false
}

// inferCornerEdges cross-infers whichever of W/H is still unknown from the
// corner tile's W·H pixel count, using the other one already known; when
// neither is known it defaults both to the tile edge.
func inferCornerEdges(corner []TileRef, t int, wOK, hOK bool, w, h int) (int, int, bool) {
	for _, r := range corner {
		n, err := probeTileFn(r.Payload)
		if err != nil || n <= 0 {
			continue
		}
		pixels := n / 4
		switch {
		case wOK && !hOK && w > 0:
			return w, pixels / w, true
		case hOK && !wOK && h > 0:
			return pixels / h, h, true
		case !wOK && !hOK:
			return t, t, true
		}
	}
	return 0, 0, false
}
