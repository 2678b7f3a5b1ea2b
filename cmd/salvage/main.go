// Command salvage recovers drawing documents from a directory of
// disk-recovery chunk files: it carves archive fragments out of the raw
// byte stream, then renders a recovered layer's tiles to PNG either from a
// still-intact archive or from a standalone tile-range manifest.
package main

import (
	"context"
	"log"
	"os"

	"github.com/alecthomas/kong"

	_ "gocloud.dev/blob/fileblob"

	"github.com/protomaps/drawing-salvage/internal/carver"
	"github.com/protomaps/drawing-salvage/internal/pipeline"
	"github.com/protomaps/drawing-salvage/internal/progressx"
	"github.com/protomaps/drawing-salvage/internal/salvbucket"
	"github.com/protomaps/drawing-salvage/internal/tiles"
)

type carveCmd struct {
	ChunkDir string `arg:"" help:"Directory of ordered .CHK recovery files."`
	OutDir   string `arg:"" help:"Directory to write partials.zips.json and partials.unknown.json into."`
	Quiet    bool   `help:"Disable progress bars."`
}

func (c *carveCmd) Run(logger *log.Logger) error {
	progressx.SetQuiet(c.Quiet)
	return carver.Carve(logger, c.ChunkDir, c.OutDir)
}

type renderArchiveCmd struct {
	ChunkDir      string `arg:"" help:"Directory of ordered .CHK recovery files."`
	Start         int64  `arg:"" help:"Absolute start offset of the carved archive fragment."`
	End           int64  `arg:"" help:"Absolute end offset of the carved archive fragment (0 to match by start only)."`
	OutDir        string `arg:"" help:"Directory to write one PNG per layer into."`
	CompositeOnly bool   `name:"composite-only" help:"Render only the document's composite preview layer, skipping every other layer."`
	Strict        bool   `help:"Abort on the first per-tile/per-layer failure instead of omitting it."`
	Quiet         bool   `help:"Disable progress bars."`
}

func (c *renderArchiveCmd) Run(logger *log.Logger) error {
	progressx.SetQuiet(c.Quiet)
	if c.CompositeOnly {
		return pipeline.RenderComposite(logger, c.ChunkDir, c.Start, c.End, c.OutDir, modeFor(c.Strict))
	}
	return pipeline.RenderArchive(logger, c.ChunkDir, c.Start, c.End, c.OutDir, modeFor(c.Strict))
}

type extractEntryCmd struct {
	ChunkDir string `arg:"" help:"Directory of ordered .CHK recovery files."`
	Start    int64  `arg:"" help:"Absolute start offset of the entry's local-file record."`
	End      int64  `arg:"" help:"Absolute end offset of the entry's local-file record."`
	OutFile  string `arg:"" help:"Path to write the entry's decompressed bytes to."`
	Strict   bool   `help:"Report the underlying inflate error for an unreadable entry instead of a generic one (both modes fail)."`
}

func (c *extractEntryCmd) Run(logger *log.Logger) error {
	return pipeline.ExtractEntry(c.ChunkDir, c.Start, c.End, c.OutFile, modeFor(c.Strict))
}

type saveArchiveCmd struct {
	ChunkDir string `arg:"" help:"Directory of ordered .CHK recovery files."`
	Start    int64  `arg:"" help:"Absolute start offset of the carved archive fragment."`
	End      int64  `arg:"" help:"Absolute end offset of the carved archive fragment."`
	OutFile  string `arg:"" help:"Path to write the archive fragment's raw bytes to."`
}

func (c *saveArchiveCmd) Run(logger *log.Logger) error {
	return pipeline.SaveArchiveBytes(c.ChunkDir, c.Start, c.End, c.OutFile)
}

type renderLayerCmd struct {
	ChunkDir string `arg:"" help:"Directory of ordered .CHK recovery files."`
	Manifest string `arg:"" help:"Path to a JSON array of tile-range manifest file paths."`
	Strict   bool   `help:"Abort on the first per-tile failure instead of omitting it."`
	Quiet    bool   `help:"Disable progress bars."`
}

func (c *renderLayerCmd) Run(logger *log.Logger) error {
	progressx.SetQuiet(c.Quiet)
	return pipeline.RenderLayer(logger, c.ChunkDir, c.Manifest, modeFor(c.Strict))
}

type uploadCmd struct {
	File           string `arg:"" help:"Local file to upload."`
	BucketURL      string `arg:"" name:"bucket-url" help:"gocloud.dev/blob destination URL."`
	Key            string `arg:"" help:"Destination key/path within the bucket."`
	BufferSizeMB   int    `default:"8" help:"Upload chunk size in megabytes."`
	MaxConcurrency int    `default:"5" help:"Number of concurrent upload parts."`
}

func (c *uploadCmd) Run(logger *log.Logger) error {
	logger.Printf("uploading %s to %s/%s", c.File, c.BucketURL, c.Key)
	return salvbucket.Upload(context.Background(), c.File, c.BucketURL, c.Key, salvbucket.UploadOptions{
		BufferSizeMB:   c.BufferSizeMB,
		MaxConcurrency: c.MaxConcurrency,
	})
}

func modeFor(strict bool) tiles.Mode {
	if strict {
		return tiles.Strict
	}
	return tiles.Lenient
}

type cli struct {
	Carve         carveCmd         `cmd:"" help:"Sweep a chunk directory for archive and unknown byte fragments."`
	RenderArchive renderArchiveCmd `cmd:"render-archive" help:"Render every layer of a carved, still-wrapped archive."`
	RenderLayer   renderLayerCmd   `cmd:"render-layer" help:"Render a single layer from a tile-range manifest."`
	ExtractEntry  extractEntryCmd  `cmd:"extract-entry" help:"Inflate one archive entry's raw bytes to a file, with no further interpretation."`
	SaveArchive   saveArchiveCmd   `cmd:"save-archive" help:"Copy a validated carved archive fragment's raw bytes to a standalone file."`
	Upload        uploadCmd        `cmd:"" help:"Upload a finished artifact to an object-storage bucket."`
}

func main() {
	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime)

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("salvage"),
		kong.Description("Recover and render drawing documents from disk-recovery chunk files."),
		kong.UsageOnError(),
	)
	err := kctx.Run(logger)
	kctx.FatalIfErrorf(err)
}
