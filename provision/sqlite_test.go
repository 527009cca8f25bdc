package provision

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/yllada/vpn-launcher/common"
)

func packTestBundle(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	db := filepath.Join(t.TempDir(), "bundle.db")
	n, err := PackBundle(db, dir)
	if err != nil {
		t.Fatalf("PackBundle() error = %v", err)
	}
	if n != len(files) {
		t.Errorf("PackBundle() = %d, want %d", n, len(files))
	}
	return db
}

func TestSQLiteSource(t *testing.T) {
	db := packTestBundle(t, map[string]string{
		"helper.arm64-v8a": "arm64",
		"helper.x86_64":    "amd64",
	})

	src, err := NewSQLiteSource(db)
	if err != nil {
		t.Fatalf("NewSQLiteSource() error = %v", err)
	}
	defer src.Close()

	names, err := src.Names()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"helper.arm64-v8a", "helper.x86_64"}) {
		t.Errorf("Names() = %v", names)
	}

	rc, err := src.Open("helper.x86_64")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "amd64" {
		t.Errorf("Open() content = %q", data)
	}

	if _, err := src.Open("helper.x86"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestSQLiteSource_MissingBundle(t *testing.T) {
	if _, err := NewSQLiteSource(filepath.Join(t.TempDir(), "absent.db")); err == nil {
		t.Error("NewSQLiteSource() should fail for a missing bundle")
	}
}

func TestSQLiteSource_PathWithURIMetacharacters(t *testing.T) {
	assets := t.TempDir()
	if err := os.WriteFile(filepath.Join(assets, "helper.x86_64"), []byte("amd64"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, dir := range []string{"build#2", "what?now", "100%done"} {
		t.Run(dir, func(t *testing.T) {
			parent := filepath.Join(t.TempDir(), dir)
			if err := os.Mkdir(parent, 0o755); err != nil {
				t.Fatal(err)
			}
			db := filepath.Join(parent, "bundle.db")
			if _, err := PackBundle(db, assets); err != nil {
				t.Fatalf("PackBundle() error = %v", err)
			}
			if _, err := os.Stat(db); err != nil {
				t.Fatalf("bundle not written at %s: %v", db, err)
			}

			src, err := NewSQLiteSource(db)
			if err != nil {
				t.Fatalf("NewSQLiteSource() error = %v", err)
			}
			defer src.Close()

			rc, err := src.Open("helper.x86_64")
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			if string(data) != "amd64" {
				t.Errorf("Open() content = %q", data)
			}
		})
	}
}

func TestSQLiteSource_NotABundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSQLiteSource(path); err == nil {
		t.Error("NewSQLiteSource() should reject a database without the assets table")
	}
}

func TestBundleDSN(t *testing.T) {
	dsn, err := bundleDSN("/tmp/build#2/a?b.db", "ro")
	if err != nil {
		t.Fatal(err)
	}
	if want := "file:/tmp/build%232/a%3Fb.db?mode=ro"; dsn != want {
		t.Errorf("bundleDSN() = %q, want %q", dsn, want)
	}
}

func TestPackBundle_Replaces(t *testing.T) {
	db := packTestBundle(t, map[string]string{"helper.x86": "v1"})

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "helper.x86"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := PackBundle(db, dir); err != nil {
		t.Fatal(err)
	}

	src, err := NewSQLiteSource(db)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	rc, err := src.Open("helper.x86")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "v2" {
		t.Errorf("content = %q, want replaced asset", data)
	}
}

func TestProvision_FromSQLiteBundle(t *testing.T) {
	m, _, _ := newMaterializer(t, nil)
	db := packTestBundle(t, map[string]string{"helper.armeabi-v7a": "arm"})

	src, err := NewSQLiteSource(db)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	m.Assets = src

	loc, err := m.Provision([]string{"arm64-v8a", "armeabi-v7a"})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if loc.Path != m.CachePath("armeabi-v7a") {
		t.Errorf("Path = %v", loc.Path)
	}
	if _, err := m.Provision([]string{"x86"}); !errors.Is(err, common.ErrProvisioningExhausted) {
		t.Errorf("error = %v, want exhausted", err)
	}
}

func TestOpenSource(t *testing.T) {
	if _, _, err := OpenSource("ftp", "x"); err == nil {
		t.Error("OpenSource() should reject unknown kinds")
	}
	src, closer, err := OpenSource("dir", t.TempDir())
	if err != nil || src == nil {
		t.Fatalf("OpenSource(dir) = %v, %v", src, err)
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
