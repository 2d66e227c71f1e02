// Package filesys defines the file system the kernel loads executable
// images from. Backends live in subpackages: memfs keeps files in memory,
// afsfs stores them through github.com/viant/afs.
package filesys

import (
	"bytes"
	"errors"
	"io"
)

// Common errors returned by backends.
var (
	ErrNotFound    = errors.New("file not found")
	ErrExists      = errors.New("file already exists")
	ErrIsDirectory = errors.New("is a directory")
	ErrReadOnly    = errors.New("read-only file system")
)

// OpenFile is an open file that supports positioned reads.
type OpenFile interface {
	io.ReaderAt
	// Length returns the file size in bytes.
	Length() int64
	// Close releases the file.
	Close() error
}

// FileSystem is the kernel's view of storage.
type FileSystem interface {
	// Open opens an existing file for reading.
	Open(path string) (OpenFile, error)
	// Create creates an empty file, truncating an existing one.
	Create(path string) error
}

// bytesFile serves a snapshot of file contents.
type bytesFile struct {
	*bytes.Reader
}

// NewBytesFile wraps data as an OpenFile.
func NewBytesFile(data []byte) OpenFile {
	return bytesFile{bytes.NewReader(data)}
}

func (f bytesFile) Length() int64 { return f.Size() }

func (f bytesFile) Close() error { return nil }
