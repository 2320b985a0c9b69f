package pagedir

import (
	"sync"

	"vmcore/internal/mem"
)

// entry mirrors the handful of PTE bits the core actually consults:
// present is implicit (an entry exists or it doesn't), writable gates
// stores, accessed/dirty are the bits the clock sweep and the eviction
// write-back decision read. Compare to the teacher's PTE_P/PTE_W/PTE_A/
// PTE_D constants in mem/mem.go, collapsed here to booleans since this
// is a map-backed reference MMU rather than real page-table bitfields.
type entry struct {
	present  bool
	frame    mem.FrameNo
	writable bool
	accessed bool
	dirty    bool
}

// Software is an in-memory stand-in for a hardware page directory,
// used by tests and the demo binary. One Software belongs to exactly
// one address space, just as one set of page tables belongs to one
// process.
type Software struct {
	mu      sync.Mutex
	entries map[uintptr]*entry
}

// NewSoftware returns an empty page directory.
func NewSoftware() *Software {
	return &Software{entries: make(map[uintptr]*entry)}
}

var _ Directory = (*Software)(nil)

// SetMapping implements Directory. A fresh entry always starts clean:
// real hardware clears the dirty bit on install, and the accessed bit
// starts set since installation always accompanies an access.
func (s *Software) SetMapping(vaddr uintptr, frame mem.FrameNo, w bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[vaddr] = &entry{present: true, frame: frame, writable: w, accessed: true}
}

// ClearMapping implements Directory. It marks the entry absent rather
// than deleting it, so that a subsequent Dirty/Accessed call still
// observes the bits the mapping carried at the moment it was cleared —
// on real hardware those bits live in the same PTE word as the present
// bit and survive until the entry itself is overwritten or reused.
func (s *Software) ClearMapping(vaddr uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[vaddr]
	if !ok {
		return
	}
	e.present = false
	e.frame = mem.FrameNone
}

// Mapping implements Directory.
func (s *Software) Mapping(vaddr uintptr) (mem.FrameNo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[vaddr]
	if !ok || !e.present {
		return mem.FrameNone, false
	}
	return e.frame, true
}

// Accessed implements Directory.
func (s *Software) Accessed(vaddr uintptr, clear bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[vaddr]
	if !ok {
		return false
	}
	a := e.accessed
	if clear {
		e.accessed = false
	}
	return a
}

// Dirty implements Directory.
func (s *Software) Dirty(vaddr uintptr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[vaddr]
	if !ok {
		return false
	}
	return e.dirty
}

// MarkWrite simulates a user store instruction: it requires the mapping
// be writable and sets the dirty bit, the same effect a real store
// through a writable PTE has on the hardware dirty bit.
func (s *Software) MarkWrite(vaddr uintptr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[vaddr]
	if !ok || !e.present || !e.writable {
		return false
	}
	e.dirty = true
	e.accessed = true
	return true
}

// MarkRead simulates a user load instruction: it requires a mapping to
// exist and sets the accessed bit.
func (s *Software) MarkRead(vaddr uintptr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[vaddr]
	if !ok || !e.present {
		return false
	}
	e.accessed = true
	return true
}
