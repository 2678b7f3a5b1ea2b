// Package docmodel reads a layered-drawing document's property list — an
// NSKeyedArchiver-style object graph with index-based back-references — and
// extracts the fields needed to drive rendering.
package docmodel

import (
	"github.com/protomaps/drawing-salvage/internal/tiles"
)

// Document is the subset of the archive's root object the renderer needs
// (spec §4.9).
type Document struct {
	TileSize            int
	Orientation         tiles.Orientation
	FlippedHorizontally bool
	FlippedVertically   bool
	SizeW, SizeH        int
	Composite           string
	Layers              []string
	UnwrappedLayers     []string
	Name                string
}

// AllResourceUUIDs returns every UUID-shaped resource reference the document
// points at: the composite preview plus every layer and unwrapped layer.
func (d *Document) AllResourceUUIDs() []string {
	var uuids []string
	if d.Composite != "" {
		uuids = append(uuids, d.Composite)
	}
	uuids = append(uuids, d.Layers...)
	uuids = append(uuids, d.UnwrappedLayers...)
	return uuids
}
