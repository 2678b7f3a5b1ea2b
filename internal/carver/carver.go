package carver

import (
	"log"

	"github.com/protomaps/drawing-salvage/internal/chunkstream"
	"github.com/protomaps/drawing-salvage/internal/progressx"
)

// State is the carver's current parse state.
type State int

const (
	StateUnknown State = iota
	StateFile
	StateDir
	StateEOF
)

func (s State) String() string {
	switch s {
	case StateFile:
		return "FILE"
	case StateDir:
		return "DIR"
	case StateEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Carver is the byte-sweep state machine described in spec §4.4. It owns a
// single ChunkStream and is not safe for concurrent use.
type Carver struct {
	cs        *chunkstream.ChunkStream
	logger    *log.Logger
	collector UnknownCollector

	state   State
	window  [4]byte
	winLen  int
	current *ArchiveFragment

	// lastRecordStart is the signature offset of the most recently decoded
	// local-file or central-directory record, the point a FILE/DIR-state
	// abandon rewinds to (one byte past it) so that record's body is
	// re-swept for anything hidden inside it.
	lastRecordStart int64

	archives []ArchiveFragment
}

// New constructs a Carver over cs. logger receives anomaly and abandonment
// diagnostics; it must not be nil.
func New(cs *chunkstream.ChunkStream, logger *log.Logger) *Carver {
	return &Carver{cs: cs, logger: logger, state: StateUnknown}
}

// Run sweeps the entire stream and returns every recovered ArchiveFragment
// and UnknownFragment.
func (c *Carver) Run() ([]ArchiveFragment, []UnknownFragment, error) {
	size := c.cs.Size()
	bar := progressx.NewBytesProgress(size, "carving")
	defer bar.Close()

	var lastReported int64
	for !c.cs.Closed() && c.cs.Offset() < size {
		b, err := c.cs.Read(1)
		if err != nil {
			return nil, nil, err
		}
		if len(b) == 0 {
			break
		}
		offset := c.cs.Offset() - 1
		bar.Add(int(c.cs.Offset() - lastReported))
		lastReported = c.cs.Offset()

		c.pushWindow(b[0])
		if c.winLen < 4 {
			c.handleUnknown(offset, b[0])
			continue
		}
		switch c.window {
		case LocalFileSig:
			c.handleLocal(offset)
		case CentralDirSig:
			c.handleCentral(offset)
		case EOCDSig:
			c.handleEOCD(offset)
		default:
			c.handleUnknown(offset, b[0])
		}
	}

	c.collector.EOF()
	c.closeCurrentIfOpen()
	return c.archives, c.collector.Fragments(), nil
}

func (c *Carver) pushWindow(b byte) {
	c.window[0], c.window[1], c.window[2], c.window[3] = c.window[1], c.window[2], c.window[3], b
	if c.winLen < 4 {
		c.winLen++
	}
}

func (c *Carver) resetWindow() {
	c.window = [4]byte{}
	c.winLen = 0
}

func (c *Carver) closeCurrentIfOpen() {
	if c.current == nil {
		return
	}
	c.current.recomputeValid()
	c.archives = append(c.archives, *c.current)
	c.current = nil
}

// abandon unwinds a parse that has gone wrong: the tentative ArchiveFragment
// is finalized as-is (its Valid predicate will almost always come out
// false), the UnknownCollector is told to tag the next fragment it opens as
// following a rollback, and the stream rewinds to one byte past blockStart
// so every position is examined at most twice.
func (c *Carver) abandon(blockStart int64) {
	c.closeCurrentIfOpen()
	c.collector.Rollback()
	c.state = StateUnknown
	c.resetWindow()
	if _, err := c.cs.Seek(blockStart+1, chunkstream.FromStart); err != nil {
		c.logger.Printf("carver: seek during abandon failed: %v", err)
	}
}

func (c *Carver) handleLocal(offset int64) {
	c.collector.UndoHeader()
	sigStart := offset - 3
	if c.state != StateFile {
		c.closeCurrentIfOpen()
		c.current = &ArchiveFragment{}
	}
	entry, err := DecodeLocalFile(c.cs)
	if err != nil {
		c.logger.Printf("carver: local-file header decode failed at %d: %v", sigStart, err)
		c.abandon(sigStart)
		return
	}
	c.current.touch(entry.Start, entry.End)
	c.current.Files = append(c.current.Files, entry)
	c.state = StateFile
	c.lastRecordStart = sigStart
	c.resetWindow()
}

func (c *Carver) handleCentral(offset int64) {
	c.collector.UndoHeader()
	sigStart := offset - 3
	if c.state != StateFile && c.state != StateDir {
		c.logger.Printf("carver: central-directory record at %d with no preceding local-file record", sigStart)
		c.closeCurrentIfOpen()
		c.current = &ArchiveFragment{}
	}
	entry, err := DecodeCentralDir(c.cs)
	if err != nil {
		c.logger.Printf("carver: central-directory decode failed at %d: %v", sigStart, err)
		c.abandon(sigStart)
		return
	}
	if c.current == nil {
		c.current = &ArchiveFragment{}
	}
	c.current.touch(entry.Start, entry.End)
	c.current.Dirs = append(c.current.Dirs, entry)
	c.state = StateDir
	c.lastRecordStart = sigStart
	c.resetWindow()
}

func (c *Carver) handleEOCD(offset int64) {
	c.collector.UndoHeader()
	sigStart := offset - 3
	if c.state != StateDir {
		c.logger.Printf("carver: end-of-central-directory at %d with no preceding central-directory record", sigStart)
	}
	if c.current == nil {
		c.current = &ArchiveFragment{}
	}
	summary, err := DecodeEOCD(c.cs)
	if err != nil {
		c.logger.Printf("carver: end-of-central-directory decode failed at %d: %v", sigStart, err)
		c.abandon(sigStart)
		return
	}
	c.current.touch(sigStart, c.cs.Offset())
	c.current.EOCD = &summary
	c.current.recomputeValid()
	c.archives = append(c.archives, *c.current)
	c.current = nil
	c.state = StateEOF
	c.lastRecordStart = sigStart
	c.resetWindow()
}

// handleUnknown feeds one non-signature byte to the UnknownCollector and,
// once the 4-byte window has filled (it restarts empty after every decoded
// record, so this means four bytes past the record that form no signature),
// immediately abandons the in-progress record while in FILE or DIR state: the
// previous record's declared length was wrong, so its body is rewound past
// and re-swept rather than skipped (spec §4.4).
func (c *Carver) handleUnknown(offset int64, b byte) {
	c.collector.PushByte(offset, b)
	if c.winLen < 4 {
		return
	}
	if c.state != StateFile && c.state != StateDir {
		return
	}
	c.logger.Printf("carver: unrecognized byte at %d while in state %s, abandoning fragment opened at %d", offset, c.state, c.lastRecordStart)
	c.abandon(c.lastRecordStart)
}
