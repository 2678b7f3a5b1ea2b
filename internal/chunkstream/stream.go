// Package chunkstream implements a virtual, seekable byte stream over a
// lexicographically ordered directory of fixed-size disk-recovery chunks.
// It is the addressing substrate for the rest of the salvage pipeline:
// every fragment, every tile range, every archive boundary is expressed as
// an absolute offset into one ChunkStream, so downstream components never
// need to know how many backing files that offset actually spans.
package chunkstream

import (
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Seek whence modes. Mode 2 mirrors the source tool's own convention: the
// argument is a displacement from size-1, not size, so seeking (0, FromEnd)
// lands one byte before the logical end of the stream. This is preserved
// rather than "fixed".
const (
	FromStart     = 0
	FromCurrent   = 1
	FromEnd       = 2
	FromFileStart = 3
	FromFileEnd   = 4
)

type backingFile struct {
	path  string
	start int64 // inclusive absolute offset
	end   int64 // exclusive absolute offset
}

// ChunkStream concatenates a directory of chunk files into one addressable
// byte space. It holds at most one open backing file descriptor at a time
// and is not safe for concurrent use (spec §5) — callers that parallelize
// across fragments or layers must construct one ChunkStream per worker.
type ChunkStream struct {
	dir    string
	files  []backingFile
	size   int64
	offset int64
	closed bool

	openIdx  int
	openFile *os.File
}

// Open constructs a ChunkStream over every regular file directly inside dir,
// ordered by name. The backing file list is fixed at construction and never
// reordered afterward.
func Open(dir string) (*ChunkStream, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	cs := &ChunkStream{dir: dir, openIdx: -1}
	var offset int64
	for _, name := range names {
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil {
			return nil, err
		}
		if info.Size() == 0 {
			continue
		}
		cs.files = append(cs.files, backingFile{path: full, start: offset, end: offset + info.Size()})
		offset += info.Size()
	}
	cs.size = offset

	if len(cs.files) > 0 {
		if err := cs.bindOffset(0); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// Size returns the total size of the concatenated stream.
func (cs *ChunkStream) Size() int64 { return cs.size }

// Offset returns the current absolute read offset.
func (cs *ChunkStream) Offset() int64 { return cs.offset }

// Closed reports whether the stream has been closed, either explicitly or
// because a seek landed outside [0, size).
func (cs *ChunkStream) Closed() bool { return cs.closed }

// Close releases the currently open backing file descriptor, if any.
func (cs *ChunkStream) Close() error {
	cs.closed = true
	return cs.closeOpenFile()
}

func (cs *ChunkStream) closeOpenFile() error {
	if cs.openFile == nil {
		return nil
	}
	err := cs.openFile.Close()
	cs.openFile = nil
	cs.openIdx = -1
	return err
}

// fileIndexFor returns the index of the backing file covering absolute
// offset o, or -1 if o == size (no file covers the exclusive end) or the
// stream has no files.
func (cs *ChunkStream) fileIndexFor(o int64) int {
	if len(cs.files) == 0 {
		return -1
	}
	i := sort.Search(len(cs.files), func(i int) bool { return cs.files[i].end > o })
	if i == len(cs.files) {
		return -1
	}
	if cs.files[i].start > o {
		return -1
	}
	return i
}

// bindOffset rebinds the open backing file (if needed) to cover offset o
// and positions its cursor at o - backingStart.
func (cs *ChunkStream) bindOffset(o int64) error {
	idx := cs.fileIndexFor(o)
	if idx == -1 {
		return cs.closeOpenFile()
	}
	if idx != cs.openIdx {
		if err := cs.closeOpenFile(); err != nil {
			return err
		}
		f, err := os.Open(cs.files[idx].path)
		if err != nil {
			return err
		}
		cs.openFile = f
		cs.openIdx = idx
	}
	_, err := cs.openFile.Seek(o-cs.files[idx].start, io.SeekStart)
	return err
}

// Seek computes a new absolute offset per the mode semantics in spec §4.1
// and rebinds the open backing file. If the computed offset falls outside
// [0, size) the stream closes and the offset clamps to size; this is not
// reported as an error, matching the source tool's behavior.
func (cs *ChunkStream) Seek(arg int64, mode int) (int64, error) {
	var newOffset int64
	switch mode {
	case FromStart:
		newOffset = arg
	case FromCurrent:
		newOffset = cs.offset + arg
	case FromEnd:
		newOffset = (cs.size - 1) + arg
	case FromFileStart:
		if cs.openIdx == -1 {
			newOffset = cs.size
		} else {
			newOffset = cs.files[cs.openIdx].start + arg
		}
	case FromFileEnd:
		if cs.openIdx == -1 {
			newOffset = cs.size
		} else {
			newOffset = cs.files[cs.openIdx].end + arg
		}
	default:
		return cs.offset, &os.PathError{Op: "seek", Path: cs.dir, Err: os.ErrInvalid}
	}

	if newOffset < 0 || newOffset >= cs.size {
		cs.offset = cs.size
		cs.closed = true
		if err := cs.closeOpenFile(); err != nil {
			return cs.offset, err
		}
		return cs.offset, nil
	}

	if err := cs.bindOffset(newOffset); err != nil {
		return cs.offset, err
	}
	cs.offset = newOffset
	return cs.offset, nil
}

// Read delivers up to n bytes starting at the current offset, crossing
// backing-file boundaries transparently. It returns fewer than n bytes only
// when the stream runs out of data; it never returns an error for hitting
// end of stream.
func (cs *ChunkStream) Read(n int) ([]byte, error) {
	if cs.closed || n <= 0 || cs.offset >= cs.size {
		return []byte{}, nil
	}

	out := make([]byte, 0, n)
	for len(out) < n {
		if cs.openFile == nil {
			break
		}
		want := n - len(out)
		buf := make([]byte, want)
		read, err := cs.openFile.Read(buf)
		if read > 0 {
			out = append(out, buf[:read]...)
			cs.offset += int64(read)
		}
		if err != nil && err != io.EOF {
			return out, err
		}
		if cs.offset >= cs.size {
			break
		}
		if cs.openIdx == -1 || cs.offset == cs.files[cs.openIdx].end {
			if _, serr := cs.Seek(0, FromFileEnd); serr != nil {
				return out, serr
			}
			if cs.closed {
				break
			}
			continue
		}
		if read == 0 {
			break
		}
	}
	return out, nil
}
