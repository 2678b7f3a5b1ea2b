package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/protomaps/drawing-salvage/internal/chunkstream"
	"github.com/protomaps/drawing-salvage/internal/tiles"
)

// ExtractEntry inflates the raw DEFLATE stream of the archive entry spanning
// [start, end) in the chunk directory and writes the decompressed bytes to
// outPath, with no tile-codec or property-list interpretation. It mirrors
// the original's deflate_range/deflate_ranges step: pulling a single named
// entry's contents out for offline analysis (a configuration plist, say)
// rather than feeding it through the rendering pipeline.
func ExtractEntry(chunkDir string, start, end int64, outPath string, mode tiles.Mode) error {
	cs, err := chunkstream.Open(chunkDir)
	if err != nil {
		return fmt.Errorf("pipeline: opening chunk directory: %w", err)
	}
	defer cs.Close()

	raw, err := tiles.InflateEntryMode(cs, start, end, mode)
	if err != nil {
		return fmt.Errorf("pipeline: inflating entry at %d: %w", start, err)
	}
	if raw == nil {
		return fmt.Errorf("pipeline: entry at %d could not be inflated", start)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("pipeline: creating output directory: %w", err)
	}
	if err := os.WriteFile(outPath, raw, 0o644); err != nil {
		return fmt.Errorf("pipeline: writing %s: %w", outPath, err)
	}
	return nil
}

// SaveArchiveBytes copies the raw, still-wrapped byte range [start, end) of
// a carved archive fragment verbatim to outPath, with no inflation or
// interpretation. It mirrors the original's recover_range, which writes a
// validated intact fragment straight back out as a standalone document file
// rather than only ever rendering it to PNG; callers should first confirm
// the fragment's Valid flag (from a carve report) before relying on the
// copy being a complete document.
func SaveArchiveBytes(chunkDir string, start, end int64, outPath string) error {
	cs, err := chunkstream.Open(chunkDir)
	if err != nil {
		return fmt.Errorf("pipeline: opening chunk directory: %w", err)
	}
	defer cs.Close()

	if _, err := cs.Seek(start, chunkstream.FromStart); err != nil {
		return fmt.Errorf("pipeline: seeking to %d: %w", start, err)
	}
	raw, err := cs.Read(int(end - start))
	if err != nil {
		return fmt.Errorf("pipeline: reading [%d,%d): %w", start, end, err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("pipeline: creating output directory: %w", err)
	}
	if err := os.WriteFile(outPath, raw, 0o644); err != nil {
		return fmt.Errorf("pipeline: writing %s: %w", outPath, err)
	}
	return nil
}
