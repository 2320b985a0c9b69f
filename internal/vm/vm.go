// Package vm implements the page-fault service routine of spec.md §4.4
// and the stack-growth/pin wiring around it, orchestrating a single
// process's pagetable.Table against the shared frame.Table and
// swap.Allocator.
//
// AddressSpace serializes fault resolution the way the teacher's
// Vm_t.Lock_pmap/Unlock_pmap does (biscuit/src/vm/as.go): one mutex per
// address space, held across the lookup-or-grow-stack step and the
// page-in step, so two faults racing on the same unmapped address
// don't both try to allocate a descriptor for it. This lock is
// independent of any frame lock: eviction of one of this process's
// resident pages reaches its pagedir.Software through the descriptor's
// own reference, never through AddressSpace, so a victim scan never
// blocks behind a process that is busy faulting.
package vm

import (
	"fmt"
	"sync"

	"vmcore/internal/pagedir"
	"vmcore/internal/pagetable"
)

// AddressSpace is one process's virtual memory: its page directory and
// supplemental page table, plus the fault-serializing lock.
type AddressSpace struct {
	mu sync.Mutex

	dir   pagedir.Directory
	table *pagetable.Table
}

// New wraps an already-constructed page table and directory. Table is
// expected to have been built with pagetable.New against the same dir.
func New(dir pagedir.Directory, table *pagetable.Table) *AddressSpace {
	return &AddressSpace{dir: dir, table: table}
}

// Table returns the underlying per-process page table, for callers
// (the mmap manager, process exit) that need to allocate or deallocate
// descriptors directly rather than through a fault.
func (as *AddressSpace) Table() *pagetable.Table { return as.table }

// Dir returns the address space's page directory, for callers (tests,
// diagnostics) that need to inspect architectural mapping state
// directly rather than through a fault.
func (as *AddressSpace) Dir() pagedir.Directory { return as.dir }

// Fault implements spec.md §4.4's page-fault service routine: locate
// or grow the faulting descriptor, reject true protection violations,
// and bring the page into a frame with the access's required
// permission. write reports whether the faulting access was a store;
// user must be true, since a fault against a kernel-only address is a
// bug in the caller, not a user-correctable condition, and is reported
// as an error rather than silently resolved.
func (as *AddressSpace) Fault(addr, stackPointer uintptr, write, user bool) error {
	if !user {
		return fmt.Errorf("vm: fault at %#x from non-user context", addr)
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	d, err := as.table.ForAddr(addr, stackPointer)
	if err != nil {
		return err
	}

	// Two threads simultaneously faulting on the same address race to
	// take this lock; since the whole fault path runs under it, the
	// second to arrive simply observes the page already resident and
	// installed, matching biscuit's "two threads simultaneously
	// faulted on same page" short-circuit in Sys_pgfault.
	if _, err := as.table.In(d, write); err != nil {
		return err
	}
	return nil
}

// Lock pins the page at addr, paging it in first if necessary. It
// corresponds to spec.md §4.3's page_lock, used by kernel code about
// to read or write through a user pointer without wanting the page
// evicted mid-access.
func (as *AddressSpace) Lock(addr uintptr, willWrite bool) error {
	return as.table.Lock(addr, willWrite)
}

// Unlock releases a pin taken by Lock.
func (as *AddressSpace) Unlock(addr uintptr) error {
	return as.table.Unlock(addr)
}

// Exit tears down every descriptor owned by this address space,
// releasing frames and swap slots back to the shared pools.
func (as *AddressSpace) Exit() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.table.Exit()
}
