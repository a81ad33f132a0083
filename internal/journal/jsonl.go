package journal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgnsrekt/perf_console/internal/refresh"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fileName = "refresh.jsonl"

var (
	errClosed     = errors.New("journal is closed")
	errBufferFull = errors.New("journal buffer full")
)

// Record is one journal line.
type Record struct {
	At         time.Time `json:"at"`
	Kind       string    `json:"kind"`
	Epoch      uint64    `json:"epoch"`
	Outcome    string    `json:"outcome"`
	Banner     string    `json:"banner,omitempty"`
	Code       string    `json:"code,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Writer appends refresh events as JSON lines under baseDir/<UTC date>/.
// Writes are queued and never block the caller.
type Writer struct {
	baseDir   string
	maxSizeMB int
	now       func() time.Time

	writeCh chan Record
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

func NewWriter(baseDir string, bufferSize, maxSizeMB int) *Writer {
	return newWriter(baseDir, bufferSize, maxSizeMB, time.Now)
}

func newWriter(baseDir string, bufferSize, maxSizeMB int, now func() time.Time) *Writer {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	w := &Writer{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		now:       now,
		writeCh:   make(chan Record, bufferSize),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Observe journals a coordinator event.
func (w *Writer) Observe(evt refresh.Event) {
	rec := Record{
		At:         evt.At,
		Kind:       string(evt.Kind),
		Epoch:      evt.Epoch,
		Outcome:    string(evt.Outcome),
		Banner:     evt.Banner,
		Code:       evt.Code,
		DurationMS: evt.DurationMS,
	}
	if evt.Err != nil {
		rec.Error = evt.Err.Error()
	}
	if err := w.Write(rec); err != nil {
		slog.Debug("journal record dropped", "kind", rec.Kind, "error", err)
	}
}

// Write queues rec, failing rather than blocking when the queue is full.
func (w *Writer) Write(rec Record) error {
	select {
	case <-w.done:
		return errClosed
	default:
	}
	select {
	case w.writeCh <- rec:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "kind", rec.Kind)
		return errBufferFull
	}
}

// Close flushes queued records and closes the file.
func (w *Writer) Close() error {
	close(w.done)
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		return w.logger.Close()
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.writeCh:
			w.writeRecord(rec)
		case <-w.done:
			for {
				select {
				case rec := <-w.writeCh:
					w.writeRecord(rec)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) writeRecord(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal marshal failed", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().UTC().Format(time.DateOnly)
	if date != w.currentDate || w.logger == nil {
		if !w.rotateForDate(date) {
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err)
	}
}

func (w *Writer) rotateForDate(date string) bool {
	if w.logger != nil {
		w.logger.Close()
		w.logger = nil
	}

	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("journal mkdir failed", "error", err, "dir", dir)
		return false
	}

	filename := filepath.Join(dir, fileName)
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 30,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Info("opened refresh journal", "file", filename)
	return true
}
