package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"paranoia.ai/internal/sim/director"
	"paranoia.ai/internal/sim/director/arbiter"
	"paranoia.ai/internal/sim/effects"
	"paranoia.ai/internal/sim/station"
)

// DefaultSegmentTicks is how many ticks go into one compressed file.
const DefaultSegmentTicks = 10000

// FileHeader is the first line of every segment.
type FileHeader struct {
	Kind      string `json:"kind"`
	RunID     string `json:"run_id"`
	FirstTick uint64 `json:"first_tick"`
}

// TickEntry holds one tick's director inputs and outputs. The inputs are
// enough to re-run the tick against a restored director.
type TickEntry struct {
	Tick       uint64               `json:"tick"`
	Snapshot   station.Snapshot     `json:"snapshot"`
	Events     []station.Event      `json:"events,omitempty"`
	Suppressed []string             `json:"suppressed,omitempty"`
	Pacing     station.Pacing       `json:"pacing"`
	Suspicion  int                  `json:"suspicion"`
	Channel    string               `json:"channel,omitempty"`
	Executed   []director.Execution `json:"executed,omitempty"`
	Headlines  []arbiter.Headline   `json:"headlines,omitempty"`
	Effects    []effects.Envelope   `json:"effects,omitempty"`
	Digest     string               `json:"digest"`
}

func NewTickEntry(in director.TickInput, suppressed []string, res director.TickResult, digest string) (TickEntry, error) {
	e := TickEntry{
		Tick:       in.Tick,
		Snapshot:   in.Snapshot,
		Events:     in.Events,
		Suppressed: suppressed,
		Pacing:     in.Pacing,
		Suspicion:  res.Suspicion,
		Executed:   res.Executed,
		Headlines:  res.Headlines,
		Digest:     digest,
	}
	if res.Routing.Passed {
		e.Channel = string(res.Routing.Channel)
	}
	for _, ef := range res.Applied {
		env, err := effects.Wrap(ef)
		if err != nil {
			return e, fmt.Errorf("tick %d: %w", in.Tick, err)
		}
		e.Effects = append(e.Effects, env)
	}
	return e, nil
}

// Input rebuilds the director input recorded in e.
func (e TickEntry) Input() director.TickInput {
	sup := station.SuppressedSet{}
	for _, s := range e.Suppressed {
		sup[s] = true
	}
	return director.TickInput{
		Tick:       e.Tick,
		Snapshot:   e.Snapshot,
		Events:     e.Events,
		Suppressor: sup,
		Pacing:     e.Pacing,
	}
}

// JSONLZstdWriter appends JSON lines to zstd segments, one file per
// segmentTicks ticks so a tick always maps to the same file.
type JSONLZstdWriter struct {
	baseDir      string
	prefix       string
	runID        string
	segmentTicks uint64

	mu     sync.Mutex
	curSeg uint64
	open   bool
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix, runID string, segmentTicks uint64) *JSONLZstdWriter {
	if segmentTicks == 0 {
		segmentTicks = DefaultSegmentTicks
	}
	return &JSONLZstdWriter{
		baseDir:      baseDir,
		prefix:       prefix,
		runID:        runID,
		segmentTicks: segmentTicks,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(tick uint64, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	seg := tick / w.segmentTicks
	if !w.open || seg != w.curSeg {
		if err := w.rotateLocked(seg, tick); err != nil {
			return err
		}
	}
	if err := w.writeLineLocked(v); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) writeLineLocked(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// rotateLocked opens a fresh file for seg. A resumed run that lands in an
// existing segment writes the next numbered part.
func (w *JSONLZstdWriter) rotateLocked(seg, tick uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	path := w.pathFor(seg, 0)
	for part := 1; fileExists(path); part++ {
		path = w.pathFor(seg, part)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
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
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curSeg = seg
	w.open = true
	return w.writeLineLocked(FileHeader{Kind: "header", RunID: w.runID, FirstTick: tick})
}

func (w *JSONLZstdWriter) closeLocked() error {
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
	w.open = false
	return err1
}

func (w *JSONLZstdWriter) pathFor(seg uint64, part int) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%010d-%02d.jsonl.zst", w.prefix, seg, part))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(runDir, runID string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, "ticks"), "ticks", runID, DefaultSegmentTicks)}
}

func (l *TickLogger) WriteTick(e TickEntry) error { return l.w.Write(e.Tick, e) }
func (l *TickLogger) Close() error                { return l.w.Close() }

// ErrStop ends ReadTicks early without an error.
var ErrStop = errors.New("stop reading ticks")

// ReadTicks calls fn for every logged tick under runDir in file order. Entries
// from a resumed run that overlap earlier ones are passed through as written;
// callers filter by tick.
func ReadTicks(runDir string, fn func(FileHeader, TickEntry) error) error {
	files, err := filepath.Glob(filepath.Join(runDir, "ticks", "ticks-*.jsonl.zst"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, path := range files {
		if err := readFile(path, fn); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func readFile(path string, fn func(FileHeader, TickEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 128*1024)
	var hdr FileHeader
	first := true
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if first {
				if jerr := json.Unmarshal(line, &hdr); jerr != nil || hdr.Kind != "header" {
					return fmt.Errorf("%s: missing header", filepath.Base(path))
				}
				first = false
			} else {
				var e TickEntry
				if jerr := json.Unmarshal(line, &e); jerr != nil {
					return fmt.Errorf("%s: %w", filepath.Base(path), jerr)
				}
				if ferr := fn(hdr, e); ferr != nil {
					return ferr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
