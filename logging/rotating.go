package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultMaxFileSize = 100 << 20

var sequencedName = regexp.MustCompile(`^app-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingFile appends to one log file per ISO week, app-YYYY-Www.log.
// When maxSize is set, a full week file continues in app-YYYY-Www_NN.log.
type RotatingFile struct {
	dir       string
	retention time.Duration
	maxSize   int64

	mu     sync.Mutex
	file   *os.File
	week   string
	size   int64
	closed bool

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewRotatingFile returns a writer on dir. No file is opened before the first write.
func NewRotatingFile(dir string, retentionWeeks int, maxSize int64) *RotatingFile {
	return &RotatingFile{
		dir:       dir,
		retention: time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxSize:   maxSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// weekKey formats t as its ISO week, 2026-W07
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.closed {
		return 0, os.ErrClosed
	}

	week := weekKey(time.Now())
	switch {
	case rf.file == nil || rf.week != week:
		if err := rf.open(week, false); err != nil {
			return 0, err
		}
	case rf.maxSize > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.maxSize:
		if err := rf.open(week, true); err != nil {
			return 0, err
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// open switches to the file of week, caller holds mu
func (rf *RotatingFile) open(week string, full bool) error {
	if rf.file != nil {
		_ = rf.file.Close()
		rf.file = nil
	}
	if err := os.MkdirAll(rf.dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(rf.dir, rf.pickFile(week, full))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file %s: %w", path, err)
	}

	rf.file, rf.week, rf.size = f, week, info.Size()
	return nil
}

// pickFile returns the last file of week, or the next sequence when that one is full
func (rf *RotatingFile) pickFile(week string, full bool) string {
	last, seq := fmt.Sprintf("app-%s.log", week), 0

	matches, _ := filepath.Glob(filepath.Join(rf.dir, fmt.Sprintf("app-%s_??.log", week)))
	for _, m := range matches {
		sub := sequencedName.FindStringSubmatch(filepath.Base(m))
		if sub == nil {
			continue
		}
		if n, _ := strconv.Atoi(sub[1]); n > seq {
			seq, last = n, filepath.Base(m)
		}
	}

	if !full {
		info, err := os.Stat(filepath.Join(rf.dir, last))
		if err != nil || rf.maxSize <= 0 || info.Size() < rf.maxSize {
			return last
		}
	}
	return fmt.Sprintf("app-%s_%02d.log", week, seq+1)
}

// CurrentFile returns the path written to, empty before the first write
func (rf *RotatingFile) CurrentFile() string {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return ""
	}
	return rf.file.Name()
}

// Cleanup removes the log files last modified before the retention window
func (rf *RotatingFile) Cleanup() (int, error) {
	entries, err := os.ReadDir(rf.dir)
	if err != nil {
		return 0, fmt.Errorf("read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rf.retention)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(rf.dir, name)) == nil {
			removed++
		}
	}
	return removed, nil
}

// StartCleanup runs Cleanup now and then every interval until Close
func (rf *RotatingFile) StartCleanup(interval time.Duration) {
	rf.startOnce.Do(func() {
		go func() {
			defer close(rf.done)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				if n, err := rf.Cleanup(); err != nil {
					fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
				} else if n > 0 {
					fmt.Fprintf(os.Stderr, "removed %d expired log files\n", n)
				}

				select {
				case <-rf.stop:
					return
				case <-ticker.C:
				}
			}
		}()
	})
}

// Close stops the cleanup loop and closes the current file
func (rf *RotatingFile) Close() error {
	var err error
	rf.closeOnce.Do(func() {
		close(rf.stop)
		started := true
		rf.startOnce.Do(func() { started = false })
		if started {
			<-rf.done
		}

		rf.mu.Lock()
		defer rf.mu.Unlock()
		rf.closed = true
		if rf.file != nil {
			err = rf.file.Close()
			rf.file = nil
		}
	})
	return err
}
