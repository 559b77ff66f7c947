package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// RotatingFile is an io.WriteCloser that rotates the underlying file once
// it would exceed maxBytes. Rotated files are suffixed .1 (newest) through
// .maxBackups (oldest); the oldest is dropped on each rotation.
type RotatingFile struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int
	f          *os.File
	written    int64
}

// OpenRotatingFile opens or creates path for appending. A maxBytes of 0
// disables rotation; maxBackups below 1 keeps a single rotated file.
func OpenRotatingFile(path string, maxBytes int64, maxBackups int) (*RotatingFile, error) {
	if maxBackups < 1 {
		maxBackups = 1
	}
	r := &RotatingFile{path: path, maxBytes: maxBytes, maxBackups: maxBackups}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.f = f
	r.written = info.Size()
	return nil
}

// Write appends p, rotating first if the file would grow past the limit.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxBytes > 0 && r.written+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.f.Write(p)
	r.written += int64(n)
	return n, err
}

// Close closes the current file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *RotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}

	// Shift name.N to name.N+1, discarding the oldest.
	os.Remove(r.backupPath(r.maxBackups))
	for i := r.maxBackups - 1; i >= 1; i-- {
		from := r.backupPath(i)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, r.backupPath(i+1)); err != nil {
				return err
			}
		}
	}
	if err := os.Rename(r.path, r.backupPath(1)); err != nil {
		return err
	}

	return r.open()
}

func (r *RotatingFile) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", r.path, n)
}

var _ io.WriteCloser = (*RotatingFile)(nil)
