package common

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// logFile is an append-only log file that rotates itself once a write
// would grow it past maxSize. Rotated files are gzipped next to it as
// <name>.<timestamp>.gz and at most maxBackups of them are kept.
// It is not safe for concurrent use; AppLogger serializes writes.
type logFile struct {
	path       string
	maxSize    int64
	maxBackups int

	f    *os.File
	size int64
}

func openLogFile(path string, maxSize int64, maxBackups int) (*logFile, error) {
	if isSymlink(path) {
		return nil, fmt.Errorf("security error: log file is a symlink")
	}

	lf := &logFile{path: path, maxSize: maxSize, maxBackups: maxBackups}
	if err := lf.open(); err != nil {
		return nil, err
	}
	if lf.size >= maxSize {
		if err := lf.rotate(); err != nil {
			return nil, err
		}
	}
	return lf, nil
}

func (lf *logFile) open() error {
	f, err := os.OpenFile(lf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	lf.f = f
	lf.size = info.Size()
	return nil
}

func (lf *logFile) Write(p []byte) (int, error) {
	if lf.f == nil {
		return 0, os.ErrClosed
	}
	if lf.size > 0 && lf.size+int64(len(p)) > lf.maxSize {
		if err := lf.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := lf.f.Write(p)
	lf.size += int64(n)
	return n, err
}

func (lf *logFile) rotate() error {
	if err := lf.f.Close(); err != nil {
		return err
	}
	lf.f = nil

	backup := fmt.Sprintf("%s.%s.gz", lf.path, time.Now().Format("20060102-150405.000000"))
	if err := gzipFile(lf.path, backup); err != nil {
		os.Remove(backup)
		os.Rename(lf.path, strings.TrimSuffix(backup, ".gz"))
	} else {
		os.Remove(lf.path)
	}

	lf.prune()
	return lf.open()
}

// prune removes the oldest backups beyond maxBackups. Backup names embed
// their rotation time, so name order is age order.
func (lf *logFile) prune() {
	backups, err := filepath.Glob(lf.path + ".*")
	if err != nil || len(backups) <= lf.maxBackups {
		return
	}
	slices.Sort(backups)
	for _, old := range backups[:len(backups)-lf.maxBackups] {
		os.Remove(old)
	}
}

func (lf *logFile) Close() error {
	if lf.f == nil {
		return nil
	}
	err := lf.f.Close()
	lf.f = nil
	return err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(out)
	_, err = io.Copy(zw, in)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
