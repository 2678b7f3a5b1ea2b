// Package pipeline wires the carver, tile renderer and document reader
// together into the two rendering entry points the CLI exposes: rendering
// every layer out of a recovered, still-wrapped archive, and rendering a
// single layer described only by a tile-range manifest.
package pipeline

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/protomaps/drawing-salvage/internal/carver"
	"github.com/protomaps/drawing-salvage/internal/chunkstream"
	"github.com/protomaps/drawing-salvage/internal/docmodel"
	"github.com/protomaps/drawing-salvage/internal/tiles"
)

// documentEntryName is the archived property-list entry naming a document's
// metadata (spec §4.9/§6): "Document.archive", not a ".plist" file.
const documentEntryName = "Document.archive"

type layerTiles struct {
	refs []tiles.TileRef
}

// RenderArchive locates the ArchiveFragment spanning [start, end) in the
// chunk directory, reads its property-list entry via DocumentReader, and
// renders every layer it names onto a PNG per layer in outDir.
func RenderArchive(logger *log.Logger, chunkDir string, start, end int64, outDir string, mode tiles.Mode) error {
	return renderArchive(logger, chunkDir, start, end, outDir, mode, false)
}

// RenderComposite behaves like RenderArchive but renders only the document's
// composite layer (its flattened preview image, identified by doc.Composite)
// instead of every layer, mirroring the original recover_embedded.py's
// preview mode: a fast, single-image check of a carved archive before
// committing to a full per-layer render.
func RenderComposite(logger *log.Logger, chunkDir string, start, end int64, outDir string, mode tiles.Mode) error {
	return renderArchive(logger, chunkDir, start, end, outDir, mode, true)
}

func renderArchive(logger *log.Logger, chunkDir string, start, end int64, outDir string, mode tiles.Mode, compositeOnly bool) error {
	cs, err := chunkstream.Open(chunkDir)
	if err != nil {
		return fmt.Errorf("pipeline: opening chunk directory: %w", err)
	}
	defer cs.Close()

	archives, _, err := carver.New(cs, logger).Run()
	if err != nil {
		return fmt.Errorf("pipeline: carving chunk directory: %w", err)
	}

	var target *carver.ArchiveFragment
	for i := range archives {
		if archives[i].Start == start && (end <= 0 || archives[i].End == end) {
			target = &archives[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("pipeline: no carved archive fragment at offset %d", start)
	}

	cs2, err := chunkstream.Open(chunkDir)
	if err != nil {
		return fmt.Errorf("pipeline: reopening chunk directory: %w", err)
	}
	defer cs2.Close()

	var doc *docmodel.Document
	var fileNames []string
	layers := map[string]*layerTiles{}

	for _, f := range target.Files {
		fileNames = append(fileNames, f.Name)

		if strings.HasSuffix(f.Name, documentEntryName) {
			raw, err := tiles.InflateEntryMode(cs2, f.Start, f.End, mode)
			if err != nil {
				return fmt.Errorf("pipeline: inflating document plist: %w", err)
			}
			if raw == nil {
				continue
			}
			d, err := docmodel.NewDocumentReader(logger).Parse(raw)
			if err != nil {
				if mode == tiles.Strict {
					return fmt.Errorf("pipeline: parsing document: %w", err)
				}
				logger.Printf("pipeline: skipping unparseable document plist: %v", err)
				continue
			}
			doc = d
			continue
		}

		layerUUID, col, row, err := tiles.ParseChunkName(f.Name)
		if err != nil {
			continue
		}
		payload, err := tiles.InflateEntryMode(cs2, f.Start, f.End, mode)
		if err != nil {
			if mode == tiles.Strict {
				return fmt.Errorf("pipeline: inflating tile %s: %w", f.Name, err)
			}
			logger.Printf("pipeline: omitting tile %s: %v", f.Name, err)
			continue
		}
		if payload == nil {
			continue
		}
		lt := layers[layerUUID]
		if lt == nil {
			lt = &layerTiles{}
			layers[layerUUID] = lt
		}
		lt.refs = append(lt.refs, tiles.TileRef{Col: col, Row: row, Payload: payload})
	}

	if doc == nil {
		return fmt.Errorf("pipeline: archive at %d carries no document property list", start)
	}

	for _, missing := range docmodel.Validate(doc, fileNames) {
		logger.Printf("pipeline: document references missing resource %s", missing)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("pipeline: creating output directory: %w", err)
	}

	wanted := doc.Layers
	if len(wanted) == 0 {
		wanted = doc.UnwrappedLayers
	}
	if compositeOnly {
		if doc.Composite == "" {
			return fmt.Errorf("pipeline: document at %d has no composite layer", start)
		}
		wanted = []string{doc.Composite}
	}
	for _, uuid := range wanted {
		lt := layers[uuid]
		if lt == nil {
			logger.Printf("pipeline: layer %s has no recovered tile chunks, skipping", uuid)
			continue
		}
		if err := renderLayer(logger, lt.refs, doc, filepath.Join(outDir, uuid+".png"), mode); err != nil {
			if mode == tiles.Strict {
				return err
			}
			logger.Printf("pipeline: layer %s failed to render: %v", uuid, err)
		}
	}

	return nil
}

func renderLayer(logger *log.Logger, refs []tiles.TileRef, doc *docmodel.Document, outPath string, mode tiles.Mode) error {
	geo, err := tiles.SolveGeometry(logger, refs)
	if err != nil {
		return fmt.Errorf("solving geometry: %w", err)
	}

	placements := make([]tiles.Placement, 0, len(refs))
	for _, r := range refs {
		placements = append(placements, tiles.Placement{Col: r.Col, Row: r.Row, Payload: r.Payload})
	}

	orientation := tiles.Orientation0
	flipH, flipV := false, false
	if doc != nil {
		orientation = doc.Orientation
		flipH, flipV = doc.FlippedHorizontally, doc.FlippedVertically
	}

	asm := tiles.NewLayerAssembler(logger, geo, mode)
	canvas, err := asm.Assemble(placements, orientation, flipH, flipV)
	if err != nil {
		return fmt.Errorf("assembling canvas: %w", err)
	}

	return writePNG(outPath, canvas)
}

// writePNG encodes img to a temp file beside path and renames it into place
// on success, so a lenient-mode partial render never lands at the final
// path under its finished name.
func writePNG(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
