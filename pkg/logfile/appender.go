package logfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultMaxSizeMB is the rotation threshold when none is configured.
	DefaultMaxSizeMB = 100
	// TimestampLayout is the layout of the line prefix.
	TimestampLayout = "2006-01-02 15:04:05"

	bytesPerMB = 1024 * 1024
)

// Appender writes "<timestamp> - <line>" entries to a log file. The file is
// opened and closed for every line, so no handle is held between writes.
type Appender struct {
	path       string
	backupPath string
	maxSizeMB  float64
	now        func() time.Time
}

// Option customizes an Appender.
type Option func(*Appender)

// WithClock overrides the time source used for line timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Appender) {
		a.now = now
	}
}

// New returns an Appender for path. An empty backupPath defaults to
// path + ".bkp" and a non-positive maxSizeMB to DefaultMaxSizeMB.
func New(path, backupPath string, maxSizeMB float64, opts ...Option) *Appender {
	if backupPath == "" {
		backupPath = path + ".bkp"
	}
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	a := &Appender{
		path:       path,
		backupPath: backupPath,
		maxSizeMB:  maxSizeMB,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Path returns the log file path.
func (a *Appender) Path() string { return a.path }

// BackupPath returns the rotation target.
func (a *Appender) BackupPath() string { return a.backupPath }

// Append writes a single timestamped line.
func (a *Appender) Append(line string) error {
	if dir := filepath.Dir(a.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", a.path, err)
	}
	entry := fmt.Sprintf("%s - %s\n", a.now().Format(TimestampLayout), line)
	if _, err := f.WriteString(entry); err != nil {
		_ = f.Close()
		return fmt.Errorf("write log file %s: %w", a.path, err)
	}
	return f.Close()
}

// Appendf formats according to a format specifier and appends the result.
func (a *Appender) Appendf(format string, args ...any) error {
	return a.Append(fmt.Sprintf(format, args...))
}

// RotateIfNeeded copies the log file to the backup path and truncates it when
// its size in megabytes is strictly greater than the threshold. A missing log
// file is not an error. It reports whether a rotation happened.
func (a *Appender) RotateIfNeeded() (bool, error) {
	info, err := os.Stat(a.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat log file %s: %w", a.path, err)
	}

	sizeMB := float64(info.Size()) / bytesPerMB
	if sizeMB <= a.maxSizeMB {
		return false, nil
	}

	if err := copyFile(a.path, a.backupPath); err != nil {
		return false, err
	}
	if err := os.Truncate(a.path, 0); err != nil {
		return false, fmt.Errorf("truncate log file %s: %w", a.path, err)
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open backup %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
