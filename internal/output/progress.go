// Package output provides terminal output utilities for appdock: a
// byte-based progress bar for downloads and table renderers for app state.
// Progress indicators are thread-safe. ANSI output degrades gracefully on
// non-TTY writers.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// ByteProgress displays a byte-count progress bar with throughput.
// Example: downloading app.exe [=========>          ]  45%  12 MB / 27 MB (3.4 MB/s)
type ByteProgress struct {
	description string
	width       int
	mu          sync.Mutex
	writer      io.Writer
	received    int64
	total       int64
	rate        float64
	done        bool
}

// NewByteProgress creates a progress bar for a transfer of unknown size.
func NewByteProgress(description string) *ByteProgress {
	return &ByteProgress{
		description: description,
		width:       30,
		writer:      os.Stdout,
		total:       -1,
	}
}

// SetWriter sets the output writer (useful for testing).
func (p *ByteProgress) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// Update redraws the bar with the latest transfer state. total < 0 means the
// size is unknown and only received bytes are shown.
func (p *ByteProgress) Update(received, total int64, bytesPerSec float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.received = received
	p.total = total
	p.rate = bytesPerSec
	p.render()
}

// Finish completes the bar and moves to the next line.
func (p *ByteProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}
	p.done = true
	if p.total > 0 {
		p.received = p.total
	}
	p.render()
	fmt.Fprintln(p.writer)
}

func (p *ByteProgress) render() {
	if p.total <= 0 {
		fmt.Fprintf(p.writer, "\r%s  %s (%s/s)",
			p.description,
			humanize.Bytes(uint64(p.received)),
			humanize.Bytes(uint64(p.rate)))
		return
	}

	percent := float64(p.received) / float64(p.total)
	if percent > 1 {
		percent = 1
	}
	filled := int(percent * float64(p.width))

	var bar strings.Builder
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled:
			bar.WriteByte('=')
		case i == filled && percent < 1:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}

	fmt.Fprintf(p.writer, "\r%s [%s] %3.0f%%  %s / %s (%s/s)",
		p.description,
		bar.String(),
		percent*100,
		humanize.Bytes(uint64(p.received)),
		humanize.Bytes(uint64(p.total)),
		humanize.Bytes(uint64(p.rate)))
}
