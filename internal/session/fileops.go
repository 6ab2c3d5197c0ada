package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FileSystem performs the FILE family's operations.
type FileSystem interface {
	// Create creates the file at path, truncating an existing one.
	Create(path string) error
	// Remove deletes the file at path. Directories are refused.
	Remove(path string) error
	// Append writes data to the end of an existing file.
	Append(path string, data []byte) error
	// Canonicalize returns the absolute path with all symlinks resolved.
	Canonicalize(path string) (string, error)
}

// OSFileSystem is the FileSystem backed by the host OS.
type OSFileSystem struct{}

func (OSFileSystem) Create(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func (OSFileSystem) Remove(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("remove %s: is a directory", path)
	}
	return os.Remove(path)
}

func (OSFileSystem) Append(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (OSFileSystem) Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// resolution renders the outcome of a canonical path lookup for the
// file-path field: Ok("<path>") or Err("<reason>").
func resolution(path string, err error) string {
	if err != nil {
		return "Err(" + strconv.Quote(err.Error()) + ")"
	}
	return "Ok(" + strconv.Quote(path) + ")"
}
