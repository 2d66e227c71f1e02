// Package mm implements the physical page allocator: one bit per frame of
// simulated main memory, allocated first-fit.
//
// Each call is safe on its own, but sequences such as "check FreeCount, then
// Allocate" are not atomic. Callers that need such a sequence to hold must
// run it under one externally held lock.
package mm

import (
	"errors"
	"fmt"
	"sync"

	"minikern/pkg/bitmap"
)

// Allocation errors.
var (
	ErrOutOfMemory  = errors.New("out of physical memory")
	ErrInvalidFrame = errors.New("invalid frame")
)

// Manager tracks which physical frames are in use.
type Manager struct {
	// mu protects frames.
	mu     sync.Mutex
	frames *bitmap.Bitmap
}

// NewManager creates an allocator for numFrames physical frames, all free.
func NewManager(numFrames int) *Manager {
	return &Manager{frames: bitmap.New(numFrames)}
}

// Allocate claims the lowest free frame.
func (m *Manager) Allocate() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame := m.frames.Find()
	if frame == -1 {
		return -1, ErrOutOfMemory
	}
	return frame, nil
}

// Deallocate returns a frame to the pool. Freeing a frame that is out of
// range or already free is reported as ErrInvalidFrame.
func (m *Manager) Deallocate(frame int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame < 0 || frame >= m.frames.Size() || !m.frames.Test(frame) {
		return fmt.Errorf("deallocate frame %d: %w", frame, ErrInvalidFrame)
	}
	m.frames.Clear(frame)
	return nil
}

// FreeCount returns the number of unallocated frames.
func (m *Manager) FreeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames.NumClear()
}

// NumFrames returns the total number of frames managed.
func (m *Manager) NumFrames() int {
	return m.frames.Size()
}

// InUse reports whether a frame is currently allocated.
func (m *Manager) InUse(frame int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if frame < 0 || frame >= m.frames.Size() {
		return false
	}
	return m.frames.Test(frame)
}
