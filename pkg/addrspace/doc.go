// Package addrspace builds and manages the virtual address spaces of user
// processes.
//
// An address space is a linear page table with one entry per virtual page,
// each backed by its own physical frame. Spaces are created by loading a
// NOFF image (Loader.Load) or by copying another space page for page
// (AddrSpace.Duplicate). No two live spaces ever share a frame. A space is
// released exactly once, which returns all of its frames to the allocator.
//
// Loading and duplication check the free frame count and then allocate.
// Both steps run under the Loader's lock so that concurrent forks cannot
// overcommit memory between the check and the allocation.
package addrspace
