/*
Package pcb provides process control blocks and the registry that maps
process ids to them.

A PCB owns its children and keeps a non-owning reference to its parent.
When a process exits, its children are either destroyed (if they have
already exited) or disowned (if they are still running). A disowned PCB has
no parent and is deallocated by its own exit; a PCB that still has a parent
stays registered until the parent joins it.

# Lifecycle

	p := registry.Allocate()        // StateRunning, registered under p.PID
	parent.AddChild(p)
	...
	p.MarkExited(status)            // StateZombie
	p.ReapOrDisownChildren(registry)
	if p.Parent() == nil {
		registry.Deallocate(p)
	}

Pid exhaustion is a hard limit of the kernel's configuration: Allocate
panics rather than returning an error.
*/
package pcb
