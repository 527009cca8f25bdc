package provision

import (
	"fmt"
	"io"
	"io/fs"
	"os"
)

// AssetSource is the read-only store the helper variants are packaged in.
// Open must return an error matching fs.ErrNotExist when name is absent.
type AssetSource interface {
	Open(name string) (io.ReadCloser, error)
}

// FSSource serves assets from an fs.FS, such as an embed.FS or os.DirFS.
type FSSource struct {
	FS fs.FS
}

// NewDirSource serves assets from a directory on disk.
func NewDirSource(dir string) *FSSource {
	return &FSSource{FS: os.DirFS(dir)}
}

// Open implements AssetSource.
func (s *FSSource) Open(name string) (io.ReadCloser, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	f, err := s.FS.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return f, nil
}

// OpenSource builds the AssetSource named by a config asset_source kind
// and location.
func OpenSource(kind, location string) (AssetSource, io.Closer, error) {
	switch kind {
	case "dir":
		return NewDirSource(location), io.NopCloser(nil), nil
	case "sqlite":
		src, err := NewSQLiteSource(location)
		if err != nil {
			return nil, nil, err
		}
		return src, src, nil
	default:
		return nil, nil, fmt.Errorf("unknown asset source kind %q", kind)
	}
}
