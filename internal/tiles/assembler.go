package tiles

import (
	"fmt"
	"image"
	"log"

	"github.com/protomaps/drawing-salvage/internal/salvageerr"
)

// Orientation mirrors the document's stored rotation (spec §4.8): the
// canvas is assembled at 0° and then rotated as a whole before any mirror
// flip is applied.
type Orientation int

const (
	Orientation0 Orientation = iota
	Orientation180
	Orientation90CW
	Orientation90CCW
)

// Placement describes one recovered tile ready for painting: its grid
// position and already-inflated (DEFLATE-unwrapped) raw codec payload.
type Placement struct {
	Col, Row int
	Payload  []byte
}

// LayerAssembler paints a recovered layer's tiles onto a single RGBA canvas.
type LayerAssembler struct {
	logger *log.Logger
	mode   Mode
	geo    Geometry
}

// NewLayerAssembler builds an assembler for the given solved geometry.
func NewLayerAssembler(logger *log.Logger, geo Geometry, mode Mode) *LayerAssembler {
	return &LayerAssembler{logger: logger, mode: mode, geo: geo}
}

// Assemble paints every placement onto a size_x × size_y canvas (spec
// §4.8), then applies orientation rotation followed by any mirror flips.
// In Lenient mode a tile that fails to decode is logged and omitted,
// leaving that region transparent; in Strict mode the first failure aborts.
func (a *LayerAssembler) Assemble(placements []Placement, orientation Orientation, flipH, flipV bool) (*image.RGBA, error) {
	geo := a.geo
	sizeX := (geo.Cols-1)*geo.TileEdge + geo.EdgeW
	sizeY := (geo.Rows-1)*geo.TileEdge + geo.EdgeH
	if sizeX <= 0 || sizeY <= 0 {
		return nil, &salvageerr.GeometryUnknown{Layer: ""}
	}

	canvas := image.NewRGBA(image.Rect(0, 0, sizeX, sizeY))

	for _, p := range placements {
		tileW, tileH := geo.TileEdge, geo.TileEdge
		if p.Col == geo.Cols-1 {
			tileW = geo.EdgeW
		}
		if p.Row == geo.Rows-1 {
			tileH = geo.EdgeH
		}
		expected := tileW * tileH * 4

		pixels, err := decodeTileFn(p.Payload, 0, expected)
		if err != nil {
			if a.mode == Strict {
				return nil, err
			}
			if a.logger != nil {
				a.logger.Printf("carver: omitting tile (col=%d row=%d): %v", p.Col, p.Row, err)
			}
			continue
		}

		x := p.Col * geo.TileEdge
		var y int
		if p.Row == geo.Rows-1 {
			y = 0
		} else {
			y = sizeY - (p.Row+1)*geo.TileEdge
		}

		paintTile(canvas, x, y, tileW, tileH, pixels)
	}

	out := rotate(canvas, orientation)
	out = applyFlips(out, orientation, flipH, flipV)
	return out, nil
}

// paintTile writes a row-major RGBA tile buffer into canvas at (x, y),
// undoing the source's bottom-up row storage by reading rows back to front.
func paintTile(canvas *image.RGBA, x, y, w, h int, pixels []byte) {
	for row := 0; row < h; row++ {
		srcRow := h - 1 - row
		src := pixels[srcRow*w*4 : (srcRow+1)*w*4]
		dstOff := canvas.PixOffset(x, y+row)
		copy(canvas.Pix[dstOff:dstOff+w*4], src)
	}
}

func rotate(src *image.RGBA, o Orientation) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch o {
	case Orientation0:
		return src
	case Orientation180:
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(w-1-x, h-1-y, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	case Orientation90CW:
		dst := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(h-1-y, x, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	case Orientation90CCW:
		dst := image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(y, w-1-x, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	default:
		return src
	}
}

// applyFlips mirrors the rotated canvas. Horizontal/vertical here refer to
// the document's original (pre-rotation) axes, so a 90° rotation swaps
// which screen axis each flip acts on.
func applyFlips(img *image.RGBA, o Orientation, flipH, flipV bool) *image.RGBA {
	if !flipH && !flipV {
		return img
	}
	screenFlipX, screenFlipY := flipH, flipV
	if o == Orientation90CW || o == Orientation90CCW {
		screenFlipX, screenFlipY = flipV, flipH
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx, sy := x, y
			if screenFlipX {
				sx = w - 1 - x
			}
			if screenFlipY {
				sy = h - 1 - y
			}
			dst.Set(x, y, img.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return dst
}

func (o Orientation) String() string {
	switch o {
	case Orientation0:
		return "0"
	case Orientation180:
		return "180"
	case Orientation90CW:
		return "90cw"
	case Orientation90CCW:
		return "90ccw"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}
