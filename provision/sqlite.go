package provision

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/yllada/vpn-launcher/common"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS assets (
	name TEXT PRIMARY KEY,
	data BLOB NOT NULL
)`

// SQLiteSource serves assets from a single-file SQLite bundle holding the
// table assets(name, data).
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens a bundle read-only. The file must already exist.
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("asset bundle: %w", err)
	}
	dsn, err := bundleDSN(path, "ro")
	if err != nil {
		return nil, fmt.Errorf("asset bundle: %w", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("asset bundle: %w", err)
	}

	var one int
	err = db.QueryRow(`SELECT 1 FROM assets LIMIT 1`).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		db.Close()
		return nil, fmt.Errorf("asset bundle %s: %w", path, err)
	}
	return &SQLiteSource{db: db}, nil
}

// bundleDSN returns a SQLite URI filename for path. The path is escaped so
// '#', '?' and '%' in directory names reach SQLite unchanged.
func bundleDSN(path, mode string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := &url.URL{Scheme: "file", OmitHost: true, Path: p, RawQuery: "mode=" + mode}
	return u.String(), nil
}

// Open implements AssetSource. The blob is read whole.
func (s *SQLiteSource) Open(name string) (io.ReadCloser, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM assets WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Names lists the assets in the bundle.
func (s *SQLiteSource) Names() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM assets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// PackBundle writes every regular file directly inside dir into the bundle
// at dbPath, replacing assets of the same name. It returns the number of
// assets written.
func PackBundle(dbPath, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	dsn, err := bundleDSN(dbPath, "rwc")
	if err != nil {
		return 0, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return 0, fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	count := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO assets (name, data) VALUES (?, ?)`, entry.Name(), data); err != nil {
			return 0, fmt.Errorf("insert %s: %w", entry.Name(), err)
		}
		common.LogDebug("Packed %s (%s)", entry.Name(), units.HumanSize(float64(len(data))))
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
