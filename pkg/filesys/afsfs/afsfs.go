// Package afsfs implements filesys.FileSystem on top of github.com/viant/afs,
// so executable images can live on local disk or any storage afs supports.
package afsfs

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"minikern/pkg/filesys"
)

// FS resolves kernel paths below a base URL.
type FS struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

var _ filesys.FileSystem = (*FS)(nil)

// New creates a file system rooted at basePath, creating the directory
// when it does not exist.
func New(basePath string) (*FS, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	fs := afs.New()

	ctx := context.Background()
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	return &FS{
		baseURL: url.Normalize(basePath, file.Scheme),
		fs:      fs,
	}, nil
}

// fileURL maps a kernel path onto a URL under the base. Paths never escape
// the base directory.
func (s *FS) fileURL(p string) string {
	rel := strings.TrimPrefix(path.Clean("/"+p), "/")
	if rel == "" {
		return s.baseURL
	}
	return url.Join(s.baseURL, rel)
}

// Open downloads the whole file and serves reads from memory.
func (s *FS) Open(p string) (filesys.OpenFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	location := s.fileURL(p)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check if %s exists: %w", p, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", p, filesys.ErrNotFound)
	}
	object, err := s.fs.Object(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if object.IsDir() {
		return nil, fmt.Errorf("%s: %w", p, filesys.ErrIsDirectory)
	}

	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return filesys.NewBytesFile(data), nil
}

// Create uploads an empty file, replacing existing content.
func (s *FS) Create(p string) error {
	return s.WriteFile(p, nil)
}

// WriteFile uploads data to p.
func (s *FS) WriteFile(p string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	location := s.fileURL(p)
	if location == s.baseURL {
		return fmt.Errorf("%s: %w", p, filesys.ErrIsDirectory)
	}
	if err := s.fs.Upload(context.Background(), location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}
