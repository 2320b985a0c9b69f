// Package pagedir defines the architectural page-directory collaborator
// the virtual-memory core depends on but does not implement: installing
// and clearing a virtual-to-physical mapping, and testing the hardware
// accessed/dirty bits a real MMU would maintain. spec.md §6 places this
// out of scope as an external collaborator; Directory is the seam, and
// Software is a reference implementation used by tests and the demo
// binary in place of real page-table hardware.
package pagedir

import "vmcore/internal/mem"

// Directory is the architectural page-directory interface the core
// consumes. A real kernel backs this with x86 page tables; Software
// backs it with a plain map for testing and demonstration.
type Directory interface {
	// SetMapping installs vaddr -> frame, writable iff w is true.
	// Replaces any existing mapping for vaddr.
	SetMapping(vaddr uintptr, frame mem.FrameNo, w bool)

	// ClearMapping removes any mapping for vaddr. A no-op if none exists.
	ClearMapping(vaddr uintptr)

	// Mapping reports the frame currently mapped at vaddr, if any.
	Mapping(vaddr uintptr) (frame mem.FrameNo, ok bool)

	// Accessed reports the hardware accessed bit for vaddr's mapping.
	// When clear is true the bit is also reset to 0, matching the clock
	// algorithm's "test-and-clear" use in spec.md §4.2 step 4.
	Accessed(vaddr uintptr, clear bool) bool

	// Dirty reports the hardware dirty bit for vaddr's mapping.
	Dirty(vaddr uintptr) bool
}
