package pcb

import (
	"fmt"
	"sync"

	"minikern/pkg/bitmap"
)

// Manager is the process registry: a fixed-capacity table of PCBs indexed
// by pid, with pids handed out from a bitmap.
type Manager struct {
	// mu protects pids and pcbs.
	mu   sync.Mutex
	pids *bitmap.Bitmap
	pcbs []*PCB
}

// NewManager creates a registry for at most maxProcesses live processes.
func NewManager(maxProcesses int) *Manager {
	return &Manager{
		pids: bitmap.New(maxProcesses),
		pcbs: make([]*PCB, maxProcesses),
	}
}

// Allocate creates and registers a PCB under the lowest free pid. Running
// out of pids is a configuration limit, not a recoverable condition, and
// panics.
func (m *Manager) Allocate() *PCB {
	m.mu.Lock()
	defer m.mu.Unlock()

	pid := m.pids.Find()
	if pid == -1 {
		panic(fmt.Sprintf("pcb: process table full (%d entries)", len(m.pcbs)))
	}
	p := New(pid)
	m.pcbs[pid] = p
	return p
}

// Deallocate removes p from the registry, freeing its pid for reuse.
// Deallocating a PCB that is not registered is a kernel bug and panics.
func (m *Manager) Deallocate(p *PCB) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p == nil {
		panic("pcb: deallocating nil pcb")
	}
	if p.PID < 0 || p.PID >= len(m.pcbs) || m.pcbs[p.PID] != p {
		panic(fmt.Sprintf("pcb: deallocating unregistered pid %d", p.PID))
	}
	m.pcbs[p.PID] = nil
	m.pids.Clear(p.PID)
}

// Lookup returns the PCB registered under pid, or nil.
func (m *Manager) Lookup(pid int) *PCB {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pid < 0 || pid >= len(m.pcbs) {
		return nil
	}
	return m.pcbs[pid]
}

// Count returns the number of registered PCBs.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pcbs) - m.pids.NumClear()
}

// Capacity returns the maximum number of live processes.
func (m *Manager) Capacity() int {
	return len(m.pcbs)
}

// Processes returns the registered PCBs ordered by pid.
func (m *Manager) Processes() []*PCB {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*PCB, 0)
	for _, p := range m.pcbs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
