package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/protomaps/drawing-salvage/internal/chunkstream"
	"github.com/protomaps/drawing-salvage/internal/tiles"
)

// chunkRangeEntry is one row of a layer's tile-range manifest file
// (spec §6): {name, start, end}.
type chunkRangeEntry struct {
	Name  string `json:"name"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// RenderLayer renders every tile-range file named in a top-level manifest
// (a JSON array of paths) into a PNG alongside it, replacing "/json/" with
// "/png/" and a trailing ".json" with ".png" in the output path (spec §6).
// The archive wrapper for these tiles is assumed lost, so no document
// orientation/flip metadata applies — each layer renders at orientation 0.
func RenderLayer(logger *log.Logger, chunkDir, manifestPath string, mode tiles.Mode) error {
	manifestData, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("pipeline: reading manifest: %w", err)
	}
	var rangeFiles []string
	if err := json.Unmarshal(manifestData, &rangeFiles); err != nil {
		return fmt.Errorf("pipeline: parsing manifest: %w", err)
	}

	for _, rangeFile := range rangeFiles {
		if err := renderOneLayerFile(logger, chunkDir, rangeFile, mode); err != nil {
			if mode == tiles.Strict {
				return err
			}
			logger.Printf("pipeline: skipping %s: %v", rangeFile, err)
		}
	}
	return nil
}

func renderOneLayerFile(logger *log.Logger, chunkDir, rangeFile string, mode tiles.Mode) error {
	data, err := os.ReadFile(rangeFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", rangeFile, err)
	}
	var entries []chunkRangeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing %s: %w", rangeFile, err)
	}

	cs, err := chunkstream.Open(chunkDir)
	if err != nil {
		return fmt.Errorf("opening chunk directory: %w", err)
	}
	defer cs.Close()

	refs := make([]tiles.TileRef, 0, len(entries))
	for _, e := range entries {
		_, col, row, err := tiles.ParseChunkName(e.Name)
		if err != nil {
			logger.Printf("pipeline: %s: %v", rangeFile, err)
			continue
		}
		payload, err := tiles.InflateEntryMode(cs, e.Start, e.End, mode)
		if err != nil {
			if mode == tiles.Strict {
				return fmt.Errorf("inflating %s: %w", e.Name, err)
			}
			logger.Printf("pipeline: omitting tile %s: %v", e.Name, err)
			continue
		}
		if payload == nil {
			continue
		}
		refs = append(refs, tiles.TileRef{Col: col, Row: row, Payload: payload})
	}

	if err := renderLayer(logger, refs, nil, outputPathFor(rangeFile), mode); err != nil {
		return err
	}
	return nil
}

// outputPathFor applies the manifest's path-substitution rule: "/json/" to
// "/png/", and a trailing ".json" extension to ".png".
func outputPathFor(rangeFile string) string {
	out := strings.Replace(rangeFile, "/json/", "/png/", 1)
	if strings.HasSuffix(out, ".json") {
		out = strings.TrimSuffix(out, ".json") + ".png"
	}
	return out
}
