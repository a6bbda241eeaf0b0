package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const (
	LogFileName     = "screen_recorder.log"
	defaultMaxSize  = 10 * 1024 * 1024 // 10 MB
	defaultArchives = 3
	logFlags        = log.LstdFlags | log.Lmicroseconds | log.Lshortfile
)

var (
	mu     sync.Mutex
	active *Rotator
)

// Setup routes the standard logger to dir/screen_recorder.log, rotated at
// 10 MB with three archives. An empty dir means the working directory.
// Disabled file logging discards output so resident runs stay quiet.
func Setup(enableFileLogging bool, dir string) {
	mu.Lock()
	defer mu.Unlock()
	closeActive()
	log.SetFlags(logFlags)
	if !enableFileLogging {
		log.SetOutput(io.Discard)
		return
	}
	r, err := OpenRotator(filepath.Join(dir, LogFileName), defaultMaxSize, defaultArchives)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		log.SetOutput(io.Discard)
		return
	}
	active = r
	log.SetOutput(r)
}

// SetupVerbose routes logs to stderr, for interactive use.
func SetupVerbose() {
	mu.Lock()
	defer mu.Unlock()
	closeActive()
	log.SetFlags(logFlags)
	log.SetOutput(os.Stderr)
}

func closeActive() {
	if active != nil {
		_ = active.Close()
		active = nil
	}
}

// Rotator appends to path and moves it to path.1 (shifting older archives
// up to path.<archives>) once a write would grow it past maxSize.
type Rotator struct {
	mu       sync.Mutex
	path     string
	maxSize  int64
	archives int
	f        *os.File
	size     int64
}

func OpenRotator(path string, maxSize int64, archives int) (*Rotator, error) {
	r := &Rotator{path: path, maxSize: maxSize, archives: archives}
	if st, err := os.Stat(path); err == nil && st.Size() > maxSize {
		r.shift()
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rotator) open() error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	r.f, r.size = f, st.Size()
	return nil
}

func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return 0, os.ErrClosed
	}
	if r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		_ = r.f.Close()
		r.shift()
		if err := r.open(); err != nil {
			r.f = nil
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

// shift drops the oldest archive and renames the rest up by one.
func (r *Rotator) shift() {
	_ = os.Remove(r.archive(r.archives))
	for i := r.archives - 1; i >= 1; i-- {
		_ = os.Rename(r.archive(i), r.archive(i+1))
	}
	_ = os.Rename(r.path, r.archive(1))
}

func (r *Rotator) archive(n int) string { return fmt.Sprintf("%s.%d", r.path, n) }
