// Package progressx provides a swappable progress-reporting facade shared by
// the carver and the bucket uploader, so quiet CLI runs can disable bars
// without threading a boolean through every call site.
package progressx

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Writer creates progress trackers for count-based or byte-based operations.
type Writer interface {
	NewCountProgress(total int64, description string) Progress
	NewBytesProgress(total int64, description string) Progress
}

// Progress is an active progress tracker.
type Progress interface {
	io.Writer
	Add(num int)
	Close() error
}

var (
	mu      sync.RWMutex
	current Writer = &barWriter{}
)

// SetQuiet swaps the global writer between real progress bars and a no-op
// implementation. Used by the CLI's --quiet flag.
func SetQuiet(quiet bool) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		current = &quietWriter{}
	} else {
		current = &barWriter{}
	}
}

func get() Writer {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// NewCountProgress creates a progress tracker for count-based operations.
func NewCountProgress(total int64, description string) Progress {
	return get().NewCountProgress(total, description)
}

// NewBytesProgress creates a progress tracker for byte-based operations.
func NewBytesProgress(total int64, description string) Progress {
	return get().NewBytesProgress(total, description)
}

type barWriter struct{}

func (barWriter) NewCountProgress(total int64, description string) Progress {
	return &barProgress{bar: progressbar.Default(total, description)}
}

func (barWriter) NewBytesProgress(total int64, description string) Progress {
	return &barProgress{bar: progressbar.DefaultBytes(total, description)}
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Write(data []byte) (int, error) {
	if p.bar == nil {
		return len(data), nil
	}
	return p.bar.Write(data)
}

func (p *barProgress) Add(num int) {
	if p.bar != nil {
		p.bar.Add(num)
	}
}

func (p *barProgress) Close() error {
	if p.bar != nil {
		return p.bar.Close()
	}
	return nil
}

type quietWriter struct{}

func (quietWriter) NewCountProgress(int64, string) Progress { return quietProgress{} }
func (quietWriter) NewBytesProgress(int64, string) Progress { return quietProgress{} }

type quietProgress struct{}

func (quietProgress) Write(data []byte) (int, error) { return len(data), nil }
func (quietProgress) Add(int)                         {}
func (quietProgress) Close() error                    { return nil }
