// Package provision makes the bundled helper executable available on disk.
//
// Two strategies are ranked and tried in order. The pre-installed helper next
// to the platform's native libraries is used when the platform restricts
// executing files from the private cache. Otherwise, and as fallback, each
// candidate architecture's packaged asset is copied to a deterministic cache
// path and marked executable. An existing executable cache file is reused
// without copying.
package provision

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"

	"github.com/yllada/vpn-launcher/common"
	"github.com/yllada/vpn-launcher/platform"
)

// Location is an executable helper on disk.
type Location struct {
	Path string
	// Prepared is true when the file was already in place and no copy was made.
	Prepared bool
}

// Strategy is one ranked way of producing a Location.
type Strategy struct {
	Name string
	Run  func() (Location, error)
}

// ProvisioningError reports that no strategy produced an executable.
// It matches common.ErrProvisioningExhausted and every per-candidate cause.
type ProvisioningError struct {
	Attempted []string
	Causes    []error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("cannot find any executable for this device's ABIs [%s]", strings.Join(e.Attempted, " "))
}

func (e *ProvisioningError) Unwrap() []error {
	return append([]error{common.ErrProvisioningExhausted}, e.Causes...)
}

// Materializer provisions the helper binary.
type Materializer struct {
	// HelperName is the asset prefix; variants are "<HelperName>.<abi>".
	HelperName string
	// PreinstalledName is the helper file inside NativeLibDir.
	PreinstalledName string
	NativeLibDir     string
	CacheDir         string
	Assets           AssetSource
	Caps             platform.Capabilities
	Sink             common.StatusSink

	// chmod is os.Chmod outside tests.
	chmod func(string, os.FileMode) error
}

// AssetName returns the packaged asset name for an architecture.
func (m *Materializer) AssetName(abi string) string {
	return m.HelperName + "." + abi
}

// CachePath returns the deterministic cache path for an architecture.
func (m *Materializer) CachePath(abi string) string {
	return filepath.Join(m.CacheDir, common.CachePrefix+m.AssetName(abi))
}

// PreinstalledPath returns the canonical pre-installed helper path.
func (m *Materializer) PreinstalledPath() string {
	return filepath.Join(m.NativeLibDir, m.PreinstalledName)
}

// Strategies returns the ranked strategy list for the given candidates.
func (m *Materializer) Strategies(candidates []string) []Strategy {
	strategies := make([]Strategy, 0, len(candidates)+1)
	if m.Caps.RestrictsTempExecution {
		strategies = append(strategies, Strategy{Name: "preinstalled", Run: m.preinstalled})
	}
	for _, abi := range candidates {
		strategies = append(strategies, Strategy{
			Name: abi,
			Run:  func() (Location, error) { return m.cached(abi) },
		})
	}
	return strategies
}

// Provision runs the strategies in order and returns the first executable
// helper. The returned path exists and was verified executable just before
// returning.
func (m *Materializer) Provision(candidates []string) (Location, error) {
	perr := &ProvisioningError{Attempted: append([]string(nil), candidates...)}

	for _, s := range m.Strategies(candidates) {
		loc, err := s.Run()
		if err == nil {
			return loc, nil
		}
		perr.Causes = append(perr.Causes, fmt.Errorf("%s: %w", s.Name, err))
	}

	return Location{}, perr
}

// preinstalled probes the platform-installed helper. It is always the right
// architecture because the platform's native library installer placed it.
func (m *Materializer) preinstalled() (Location, error) {
	path := m.PreinstalledPath()
	if platform.IsExecutable(path) {
		common.Emit(m.Sink, common.SeverityDebug, "Using %s from native library dir: %s", m.PreinstalledName, path)
		return Location{Path: path, Prepared: true}, nil
	}

	common.Emit(m.Sink, common.SeverityWarning,
		"%s not found in native library dir (%s), falling back to %s from assets",
		m.PreinstalledName, path, m.HelperName)
	return Location{}, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
}

// cached returns the cache file for abi, extracting it first when missing
// or not executable.
func (m *Materializer) cached(abi string) (Location, error) {
	path := m.CachePath(abi)
	if platform.IsExecutable(path) {
		common.Emit(m.Sink, common.SeverityDebug, "Using %s from cache: %s", m.HelperName, path)
		return Location{Path: path, Prepared: true}, nil
	}

	if err := m.extract(abi, path); err != nil {
		return Location{}, err
	}

	// Execute permission is re-checked against the kernel: a noexec cache
	// mount leaves the mode bits set but the file unusable.
	if !platform.IsExecutable(path) {
		common.Emit(m.Sink, common.SeverityError, "Failed to make %s executable: %s", m.HelperName, path)
		return Location{}, fmt.Errorf("%s: %w", path, common.ErrPermissionMarkFailed)
	}

	common.Emit(m.Sink, common.SeverityDebug, "Using %s from cache: %s", m.HelperName, path)
	return Location{Path: path}, nil
}

// extract streams the packaged asset for abi to dest and marks it
// executable. A failed copy may leave a partial file; the next attempt
// truncates it.
func (m *Materializer) extract(abi, dest string) error {
	name := m.AssetName(abi)
	src, err := m.Assets.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			common.Emit(m.Sink, common.SeverityInfo, "Failed getting assets for architecture %s", abi)
			return fmt.Errorf("%s: %w", name, common.ErrAssetNotFound)
		}
		common.EmitException(m.Sink, err, "Opening asset %s", name)
		return fmt.Errorf("%s: %w: %v", name, common.ErrCopyFailed, err)
	}
	defer src.Close()

	if err := os.MkdirAll(m.CacheDir, 0700); err != nil {
		common.EmitException(m.Sink, err, "Creating cache directory %s", m.CacheDir)
		return fmt.Errorf("%w: %v", common.ErrCopyFailed, err)
	}

	n, err := copyTo(dest, src)
	if err != nil {
		common.EmitException(m.Sink, err, "Copying %s to %s", name, dest)
		return fmt.Errorf("%s: %w: %v", name, common.ErrCopyFailed, err)
	}
	common.Emit(m.Sink, common.SeverityDebug, "Extracted %s (%s) to %s", name, units.HumanSize(float64(n)), dest)

	chmod := m.chmod
	if chmod == nil {
		chmod = os.Chmod
	}
	if err := chmod(dest, common.ExecFileMode); err != nil {
		common.Emit(m.Sink, common.SeverityError, "Failed to make %s executable: %v", m.HelperName, err)
		return fmt.Errorf("%s: %w: %v", dest, common.ErrPermissionMarkFailed, err)
	}
	return nil
}

func copyTo(dest string, src io.Reader) (int64, error) {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
