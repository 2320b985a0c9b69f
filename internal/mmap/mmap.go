// Package mmap implements the file-mapping manager of spec.md §4.6: map
// a file's contents into a process's address space page by page, and
// later tear the mapping down, writing back whichever pages a user
// wrote to.
//
// Grounded on userprog/syscall.c's sys_mmap/sys_munmap/unmap, with one
// deliberate behavior change noted in SPEC_FULL.md and spec.md §9's
// open question (a): the original's unmap writes back
// PGSIZE*page_cnt bytes at every dirty page's own offset — a bulk
// write whose length belongs to the whole mapping, not the page,
// and which overruns the file for every page but the first. Each
// page's Descriptor already carries its own fileOffset/fileBytes
// (set at map time below), and its own Evict implements the
// corrected per-page write-back; Munmap here just triggers that path
// one page at a time.
package mmap

import (
	"fmt"
	"sync"

	"vmcore/internal/pagesize"
	"vmcore/internal/pagetable"
	"vmcore/internal/vfile"
	"vmcore/internal/vm"
)

// Handle identifies one active mapping, analogous to the original's
// per-process "next_handle" counter (syscall.c's struct mapping.handle).
type Handle int

// mapping records what Munmap and process exit need: the file to
// close and the page range to unwind.
type mapping struct {
	file  vfile.File
	base  uintptr
	pages int
}

// Manager tracks the active mappings for one address space.
type Manager struct {
	mu     sync.Mutex
	as     *vm.AddressSpace
	next   Handle
	active map[Handle]*mapping
}

// New returns an empty mapping manager for address space as.
func New(as *vm.AddressSpace) *Manager {
	return &Manager{as: as, active: make(map[Handle]*mapping)}
}

// ErrEmptyFile is returned by Map for a zero-length file: there is
// nothing meaningful to map, matching the original's implicit
// rejection (its allocation loop never executes and returns a mapping
// with page_cnt == 0, which this implementation treats as a failure
// rather than a silently empty success).
var ErrEmptyFile = fmt.Errorf("mmap: cannot map an empty file")

// Map implements sys_mmap: rejects a zero or non-page-aligned addr,
// reopens path for an independent cursor, and installs one read/write zero-backed-tail
// descriptor per page of the file, rolling back every descriptor
// already installed if any allocation in the run fails (spec.md §4.6's
// "must not leave a partial mapping behind").
func (m *Manager) Map(path string, addr uintptr) (Handle, error) {
	if addr == 0 || addr%pagesize.Size != 0 {
		return 0, fmt.Errorf("mmap: addr %#x is not page-aligned", addr)
	}

	src, err := vfile.Open(path)
	if err != nil {
		return 0, err
	}
	f, err := src.Reopen()
	if err != nil {
		src.Close()
		return 0, err
	}
	src.Close()

	length, err := f.Length()
	if err != nil {
		f.Close()
		return 0, err
	}
	if length == 0 {
		f.Close()
		return 0, ErrEmptyFile
	}

	table := m.as.Table()
	var installed int
	var offset int64
	for remaining := length; remaining > 0; {
		pageAddr := addr + uintptr(installed)*pagesize.Size
		n := remaining
		if n > pagesize.Size {
			n = pagesize.Size
		}
		if _, err := table.AllocateFile(pageAddr, false, false, f, offset, int(n)); err != nil {
			m.rollback(table, addr, installed)
			f.Close()
			return 0, err
		}
		offset += n
		remaining -= n
		installed++
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	h := m.next
	m.active[h] = &mapping{file: f, base: addr, pages: installed}
	return h, nil
}

func (m *Manager) rollback(table *pagetable.Table, addr uintptr, installed int) {
	for i := 0; i < installed; i++ {
		table.Deallocate(addr + uintptr(i)*pagesize.Size)
	}
}

// ErrUnknownHandle is returned by Unmap for a handle this manager
// never issued or already unmapped.
var ErrUnknownHandle = fmt.Errorf("mmap: unknown mapping handle")

// Unmap implements sys_munmap/unmap: deallocates every page of the
// mapping (each page's own Evict writes back its own dirty bytes at
// its own offset, per the package doc's corrected behavior), then
// closes the reopened file.
func (m *Manager) Unmap(h Handle) error {
	m.mu.Lock()
	mp, ok := m.active[h]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownHandle
	}
	delete(m.active, h)
	m.mu.Unlock()

	return m.teardown(mp)
}

func (m *Manager) teardown(mp *mapping) error {
	table := m.as.Table()
	var firstErr error
	for i := 0; i < mp.pages; i++ {
		if err := table.Deallocate(mp.base + uintptr(i)*pagesize.Size); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := mp.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ExitAll implements the mapping half of syscall_exit: every mapping
// still open at process exit is unmapped in turn.
func (m *Manager) ExitAll() {
	m.mu.Lock()
	mappings := make([]*mapping, 0, len(m.active))
	for h, mp := range m.active {
		mappings = append(mappings, mp)
		delete(m.active, h)
	}
	m.mu.Unlock()

	for _, mp := range mappings {
		m.teardown(mp)
	}
}
