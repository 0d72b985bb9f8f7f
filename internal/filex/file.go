// Package filex manages the local staging directory where received images
// wait until a workflow uploads or drops them.
package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// EnsureSubdDir creates dirName under the working directory if needed and
// returns its absolute path.
func EnsureSubdDir(dirName string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

type Staging struct {
	dir string
}

// NewStaging prepares the staging directory. A relative dir is resolved
// against the working directory.
func NewStaging(dir string) (*Staging, error) {
	if !filepath.IsAbs(dir) {
		abs, err := EnsureSubdDir(dir)
		if err != nil {
			return nil, err
		}
		return &Staging{dir: abs}, nil
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Staging{dir: dir}, nil
}

func (s *Staging) Dir() string {
	return s.dir
}

// Write stores data under a fresh random name and returns the path.
func (s *Staging) Write(data []byte) (string, error) {
	path := filepath.Join(s.dir, uuid.NewString()+".img")
	if err := os.WriteFile(path, data, 0o660); err != nil {
		return "", fmt.Errorf("stage image: %w", err)
	}
	return path, nil
}

func (s *Staging) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read staged image: %w", err)
	}
	return data, nil
}

// Remove deletes a staged file. Empty paths and missing files are not errors.
func (s *Staging) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staged image: %w", err)
	}
	return nil
}

// Purge removes leftovers of a previous run. Sessions do not survive a
// restart, so nothing in the directory can still be referenced.
func (s *Staging) Purge() (int, error) {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read staging dir: %w", err)
	}

	n := 0
	for _, it := range items {
		if it.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, it.Name())); err != nil {
			return n, fmt.Errorf("purge staging dir: %w", err)
		}
		n++
	}
	return n, nil
}
