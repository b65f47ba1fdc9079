package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

// DefaultMaxSize caps the log file before rotation. One rotated backup
// is kept, so disk use stays under twice this figure.
const DefaultMaxSize = 2 * 1024 * 1024

// RotatingWriter appends to a file and swaps it for a .1 backup once it
// grows past maxSize. Safe for concurrent use through the stdlib logger.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup tees the stdlib logger to stdout and a size-capped file. The
// returned writer should be closed on shutdown.
func Setup(logPath string) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(logPath, DefaultMaxSize)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

func NewRotatingWriter(path string, maxSize int64) (*RotatingWriter, error) {
	rw := &RotatingWriter{path: path, maxSize: maxSize}

	if info, err := os.Stat(path); err == nil && info.Size() > maxSize {
		rw.rotateLocked()
	}
	if rw.file == nil {
		if err := rw.openLocked(); err != nil {
			return nil, err
		}
	}
	return rw, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if w.size > w.maxSize {
		w.rotateLocked()
	}
	return n, err
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// rotateLocked moves the current file to a single .1 backup and starts a
// fresh one. Callers hold w.mu (or run before the writer is shared).
func (w *RotatingWriter) rotateLocked() {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	os.Rename(w.path, w.path+".1")
	w.openLocked()
}

func (w *RotatingWriter) openLocked() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	info, _ := f.Stat()
	w.file = f
	w.size = 0
	if info != nil {
		w.size = info.Size()
	}
	return nil
}
