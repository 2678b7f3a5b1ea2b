package carver

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/dustin/go-humanize"

	"github.com/protomaps/drawing-salvage/internal/chunkstream"
)

// Carve runs the byte-sweep carver over the chunk directory at chunkDir and
// writes partials.zips.json and partials.unknown.json into outDir.
func Carve(logger *log.Logger, chunkDir, outDir string) error {
	cs, err := chunkstream.Open(chunkDir)
	if err != nil {
		return fmt.Errorf("opening chunk stream: %w", err)
	}
	defer cs.Close()

	archives, unknown, err := New(cs, logger).Run()
	if err != nil {
		return fmt.Errorf("carving %s: %w", chunkDir, err)
	}
	if archives == nil {
		archives = []ArchiveFragment{}
	}
	if unknown == nil {
		unknown = []UnknownFragment{}
	}

	validCount := 0
	for _, a := range archives {
		if a.Valid {
			validCount++
		}
	}
	logger.Printf("carver: %d archive fragment(s) recovered (%d valid), %d unknown run(s)", len(archives), validCount, len(unknown))
	logger.Printf("carver: %s", coverageSummary(cs.Size(), archives, unknown))

	if err := writeJSON(filepath.Join(outDir, "partials.zips.json"), archives); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, "partials.unknown.json"), unknown); err != nil {
		return err
	}
	return nil
}

// coverageSummary reports how much of the stream the sweep accounted for,
// by OR-ing every recovered fragment's [start, end) range into a bitmap
// rather than re-walking the byte stream a second time.
func coverageSummary(streamSize int64, archives []ArchiveFragment, unknown []UnknownFragment) string {
	covered := roaring64.New()
	for _, a := range archives {
		if a.End > a.Start {
			covered.AddRange(uint64(a.Start), uint64(a.End))
		}
	}
	for _, u := range unknown {
		if u.End > u.Start {
			covered.AddRange(uint64(u.Start), uint64(u.End))
		}
	}
	accounted := covered.GetCardinality()
	gap := uint64(streamSize) - accounted
	return fmt.Sprintf("accounted for %s of %s (%s unaccounted)",
		humanize.Bytes(accounted), humanize.Bytes(uint64(streamSize)), humanize.Bytes(gap))
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
