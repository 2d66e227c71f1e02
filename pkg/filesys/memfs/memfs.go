// Package memfs provides an in-memory file system.
// It is useful for tests and for booting kernels whose programs are
// supplied by the host process.
package memfs

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"minikern/pkg/filesys"
)

// memNode represents a node in the filesystem (file or directory).
type memNode struct {
	data     []byte
	isDir    bool
	children map[string]*memNode
	mtime    time.Time
}

// newMemNode creates a new memory node.
func newMemNode(isDir bool) *memNode {
	n := &memNode{isDir: isDir, mtime: time.Now()}
	if isDir {
		n.children = make(map[string]*memNode)
	}
	return n
}

// FS represents an in-memory filesystem.
type FS struct {
	mu       sync.RWMutex
	root     *memNode
	readOnly bool
}

var _ filesys.FileSystem = (*FS)(nil)

// New creates a new in-memory filesystem.
func New() *FS {
	return &FS{root: newMemNode(true)}
}

// NewReadOnly creates an in-memory filesystem holding files and rejecting
// later modification.
func NewReadOnly(files map[string][]byte) (*FS, error) {
	fs := New()
	for name, data := range files {
		if err := fs.WriteFile(name, data); err != nil {
			return nil, err
		}
	}
	fs.readOnly = true
	return fs, nil
}

// clean turns any path into an absolute, clean one. Relative paths are
// resolved against the root.
func clean(p string) string {
	return path.Clean("/" + p)
}

// splitPath splits a path into components.
func splitPath(p string) []string {
	p = clean(p)
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// nodeFromPath walks the filesystem and returns the node at the given path.
func (fs *FS) nodeFromPath(p string) (*memNode, error) {
	node := fs.root
	for _, part := range splitPath(p) {
		if !node.isDir {
			return nil, fmt.Errorf("%s: %w", p, filesys.ErrNotFound)
		}
		child, ok := node.children[part]
		if !ok {
			return nil, fmt.Errorf("%s: %w", p, filesys.ErrNotFound)
		}
		node = child
	}
	return node, nil
}

// parentDir returns the directory that holds p, creating missing
// directories on the way.
func (fs *FS) parentDir(p string) (*memNode, string, error) {
	parts := splitPath(p)
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("%s: %w", p, filesys.ErrIsDirectory)
	}
	dir := fs.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := dir.children[part]
		if !ok {
			child = newMemNode(true)
			dir.children[part] = child
		}
		if !child.isDir {
			return nil, "", fmt.Errorf("%s: %w", p, filesys.ErrExists)
		}
		dir = child
	}
	return dir, parts[len(parts)-1], nil
}

// Open implements filesys.FileSystem.Open. The returned file reads a
// snapshot of the contents at open time.
func (fs *FS) Open(p string) (filesys.OpenFile, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node, err := fs.nodeFromPath(p)
	if err != nil {
		return nil, err
	}
	if node.isDir {
		return nil, fmt.Errorf("%s: %w", p, filesys.ErrIsDirectory)
	}
	data := make([]byte, len(node.data))
	copy(data, node.data)
	return filesys.NewBytesFile(data), nil
}

// Create implements filesys.FileSystem.Create.
func (fs *FS) Create(p string) error {
	return fs.WriteFile(p, nil)
}

// WriteFile stores data at p, creating parent directories as needed.
func (fs *FS) WriteFile(p string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return filesys.ErrReadOnly
	}
	dir, base, err := fs.parentDir(p)
	if err != nil {
		return err
	}
	if existing, ok := dir.children[base]; ok && existing.isDir {
		return fmt.Errorf("%s: %w", p, filesys.ErrIsDirectory)
	}

	node := newMemNode(false)
	node.data = append([]byte(nil), data...)
	dir.children[base] = node
	return nil
}

// ReadFile returns a copy of the file at p.
func (fs *FS) ReadFile(p string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node, err := fs.nodeFromPath(p)
	if err != nil {
		return nil, err
	}
	if node.isDir {
		return nil, fmt.Errorf("%s: %w", p, filesys.ErrIsDirectory)
	}
	return append([]byte{}, node.data...), nil
}

// Remove deletes a file or an empty directory.
func (fs *FS) Remove(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.readOnly {
		return filesys.ErrReadOnly
	}
	parts := splitPath(p)
	if len(parts) == 0 {
		return fmt.Errorf("%s: %w", p, filesys.ErrIsDirectory)
	}
	dir, err := fs.nodeFromPath("/" + strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return err
	}
	base := parts[len(parts)-1]
	node, ok := dir.children[base]
	if !ok {
		return fmt.Errorf("%s: %w", p, filesys.ErrNotFound)
	}
	if node.isDir && len(node.children) > 0 {
		return fmt.Errorf("%s: directory not empty", p)
	}
	delete(dir.children, base)
	return nil
}

// List returns the names in directory p, sorted.
func (fs *FS) List(p string) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node, err := fs.nodeFromPath(p)
	if err != nil {
		return nil, err
	}
	if !node.isDir {
		return []string{path.Base(clean(p))}, nil
	}
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
