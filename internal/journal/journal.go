// Package journal appends streaming tick reports to hourly zstd-compressed
// JSONL files.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/streaming"
)

// Entry is one journal line.
type Entry struct {
	Tick         uint64     `json:"tick"`
	At           time.Time  `json:"at"`
	Position     [3]float64 `json:"position"`
	Center       string     `json:"center"`
	Loaded       []string   `json:"loaded,omitempty"`
	Evicted      []string   `json:"evicted,omitempty"`
	SinkFailures int        `json:"sink_failures,omitempty"`
	Fallbacks    int        `json:"fallbacks,omitempty"`
	Resident     int        `json:"resident"`
	DurationUS   int64      `json:"duration_us"`
}

// FromReport converts a controller report.
func FromReport(rep streaming.Report, at time.Time) Entry {
	return Entry{
		Tick:         rep.Tick,
		At:           at.UTC(),
		Position:     [3]float64(rep.Position),
		Center:       rep.Center.String(),
		Loaded:       keyStrings(rep.Loaded),
		Evicted:      keyStrings(rep.Evicted),
		SinkFailures: rep.SinkFailures,
		Fallbacks:    rep.Fallbacks,
		Resident:     rep.Resident,
		DurationUS:   rep.Duration.Microseconds(),
	}
}

func keyStrings(keys []chunkindex.Key) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// Writer rotates to a new file every UTC hour.
type Writer struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{baseDir: baseDir, prefix: prefix, now: time.Now}
}

// WithClock replaces time.Now, for tests.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// WriteReport journals rep stamped with the writer clock.
func (w *Writer) WriteReport(rep streaming.Report) error {
	return w.Write(FromReport(rep, w.now()))
}

func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	// Flush ends the current zstd block so the entry is readable before rotation.
	return w.enc.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.PathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

// PathForHour returns the file for an hour formatted as 2006-01-02-15.
func (w *Writer) PathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadFile decodes every entry of a journal file. Appended zstd frames are
// read in order; an open file yields the entries flushed so far.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	jd := json.NewDecoder(dec)
	for {
		var e Entry
		if err := jd.Decode(&e); err != nil {
			// A file still being written ends without a frame footer.
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, e)
	}
}
