// Package filex holds small filesystem helpers: directory preparation and
// scoped temporary files that are always released.
package filex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (relative paths resolve against the working
// directory) and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// TempFile is a file living only for the duration of one operation.
// Callers must defer Release right after a successful WriteTemp.
type TempFile struct {
	Path string
}

// WriteTemp copies r into a new file in dir named after pattern (see
// os.CreateTemp). On error nothing is left behind.
func WriteTemp(dir, pattern string, r io.Reader) (tf *TempFile, err error) {
	dir, err = EnsureDir(dir)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close temp: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(f.Name())
			tf = nil
		}
	}()

	if _, err = io.Copy(f, r); err != nil {
		return nil, fmt.Errorf("write temp: %w", err)
	}

	return &TempFile{Path: f.Name()}, nil
}

// Open opens the temp file for reading.
func (t *TempFile) Open() (*os.File, error) {
	return os.Open(t.Path)
}

// Release removes the file. Releasing twice is not an error.
func (t *TempFile) Release() error {
	if t == nil {
		return nil
	}
	if err := os.Remove(t.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
