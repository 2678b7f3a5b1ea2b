// Package carver implements the forensic byte-sweep that recovers PK-format
// archive fragments and unknown byte runs from a chunkstream.ChunkStream,
// without relying on any archive's central directory being intact.
package carver

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// GapThreshold is the length of an all-zero run that splits an
// UnknownFragment (spec §6 constants).
const GapThreshold = 512

// FileEntryFragment describes one recovered local-file-header record.
type FileEntryFragment struct {
	Start    int64
	End      int64
	Name     string
	ModDate  uint16
	ModTime  uint16
	Corrupt  int64 // -1 if none
}

// FID is the synthesized cross-reference identifier for a file entry,
// matched against DirEntryFragment.Ref.
func (f FileEntryFragment) FID() string {
	return fmt.Sprintf("%s/[%d,%d]", f.Name, f.ModDate, f.ModTime)
}

func (f FileEntryFragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start   int64  `json:"start"`
		End     int64  `json:"end"`
		Name    string `json:"name"`
		FID     string `json:"fid"`
		Corrupt int64  `json:"corrupt"`
	}{f.Start, f.End, f.Name, f.FID(), f.Corrupt})
}

// DirEntryFragment describes one recovered central-directory-header record.
type DirEntryFragment struct {
	Start    int64
	End      int64
	Name     string
	ModDate  uint16
	ModTime  uint16
	RefStart int64 // relative start of the referenced local-file entry within the archive
	RefEnd   int64 // RefStart plus the declared compressed size (local header, name and extra not counted)
	Corrupt  int64
}

// Ref is the synthesized cross-reference identifier this directory entry
// expects its matching file entry to carry as its FID.
func (d DirEntryFragment) Ref() string {
	return fmt.Sprintf("%s/[%d,%d]", d.Name, d.ModDate, d.ModTime)
}

func (d DirEntryFragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string   `json:"name"`
		Ref     string   `json:"ref"`
		Offset  [2]int64 `json:"offset"`
		Corrupt int64    `json:"corrupt"`
	}{d.Name, d.Ref(), [2]int64{d.Start, d.End}, d.Corrupt})
}

// EOCDSummary is the end-of-central-directory record attached to an
// ArchiveFragment once observed.
type EOCDSummary struct {
	DeclaredCount uint16
	DirSize       uint32
	DirOffset     uint32
	DirStart      int64 // absolute: signature_offset - DirSize
	ArchiveStart  int64 // absolute: DirStart - DirOffset
}

// ArchiveFragment is a tentative archive salvaged from the stream.
type ArchiveFragment struct {
	Start int64
	End   int64
	Files []FileEntryFragment
	Dirs  []DirEntryFragment
	EOCD  *EOCDSummary
	Valid bool
}

// touch extends Start/End to cover a newly observed [start, end) range,
// maintaining the invariant start <= every entry's start, end >= every
// entry's end.
func (a *ArchiveFragment) touch(start, end int64) {
	if a.Start == 0 && a.End == 0 && len(a.Files) == 0 && len(a.Dirs) == 0 {
		a.Start = start
	} else if start < a.Start {
		a.Start = start
	}
	if end > a.End {
		a.End = end
	}
}

// recomputeValid applies the §3 validity predicate: EOCD present, declared
// entry count equals observed directory-entry count, and every directory
// entry's name is a substring of some file entry's name and vice versa.
func (a *ArchiveFragment) recomputeValid() {
	if a.EOCD == nil {
		a.Valid = false
		return
	}
	if int(a.EOCD.DeclaredCount) != len(a.Dirs) {
		a.Valid = false
		return
	}
	for _, d := range a.Dirs {
		if !anyContains(a.Files, d.Name) {
			a.Valid = false
			return
		}
	}
	for _, f := range a.Files {
		if !anyDirContains(a.Dirs, f.Name) {
			a.Valid = false
			return
		}
	}
	a.Valid = true
}

func anyContains(files []FileEntryFragment, dirName string) bool {
	for _, f := range files {
		if strings.Contains(f.Name, dirName) {
			return true
		}
	}
	return false
}

func anyDirContains(dirs []DirEntryFragment, fileName string) bool {
	for _, d := range dirs {
		if strings.Contains(d.Name, fileName) {
			return true
		}
	}
	return false
}

func (a ArchiveFragment) MarshalJSON() ([]byte, error) {
	var zipStart, dirStart int64
	var dirCount uint16
	if a.EOCD != nil {
		zipStart = a.EOCD.ArchiveStart
		dirStart = a.EOCD.DirStart
		dirCount = a.EOCD.DeclaredCount
	}
	out := struct {
		Start    int64               `json:"start"`
		End      int64               `json:"end"`
		Valid    bool                `json:"valid"`
		ZipStart int64               `json:"zip_start"`
		DirStart int64               `json:"dir_start"`
		DirCount uint16              `json:"dir_count"`
		Files    []FileEntryFragment `json:"files,omitempty"`
		Dirs     []DirEntryFragment  `json:"dirs,omitempty"`
	}{a.Start, a.End, a.Valid, zipStart, dirStart, dirCount, nil, nil}
	if !a.Valid {
		out.Files = a.Files
		out.Dirs = a.Dirs
	}
	return json.Marshal(out)
}

// UnknownFragment is a contiguous run of bytes matching no known signature.
type UnknownFragment struct {
	Start    int64
	End      int64
	Magic    []byte
	Rollback bool
}

func (u UnknownFragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start int64  `json:"start"`
		End   int64  `json:"end"`
		Magic string `json:"magic"`
	}{u.Start, u.End, hex.EncodeToString(u.Magic)})
}
