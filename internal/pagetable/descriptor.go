// Package pagetable implements the per-process supplemental page table
// of spec.md §4.3: a hash keyed by page-aligned virtual address, whose
// entries carry the backing-store descriptor for every addressable
// page, plus the eviction routing (page_out) and pinning discipline
// (page_lock/page_unlock) that operate on one descriptor at a time.
package pagetable

import (
	"fmt"

	"vmcore/internal/frame"
	"vmcore/internal/mem"
	"vmcore/internal/pagedir"
	"vmcore/internal/swap"
	"vmcore/internal/vfile"
)

// backing distinguishes the two "origin" states of spec.md §9's
// tagged-variant recommendation; the third state (in-swap) is orthogonal
// and tracked by swapSlot, since a page can be swapped out regardless
// of whether its origin was anonymous or a file.
type backing int

const (
	backingZero backing = iota
	backingFile
)

// Descriptor is one page descriptor, as specified in spec.md §3.
// Exactly one of {resident, in-swap, in-file, zero-fill} is current at
// any instant, and every transition between them happens with the
// relevant frame lock held (spec.md §3, §5) — either the lock the page
// already owns (eviction, explicit deallocate) or a freshly allocated
// one (page-in). Descriptor carries no back-reference to a thread;
// per spec.md §9's design note it instead carries the owning address
// space's collaborators directly (dir, swapAlloc), reachable from any
// thread's context.
type Descriptor struct {
	addr     uintptr
	readOnly bool

	// frame is mem.FrameNone when the page is not resident. Mutated
	// only while the pertinent frame lock is held (see package doc).
	frame mem.FrameNo

	// swapSlot is mem.SwapNone unless the page is currently paged out.
	swapSlot mem.SwapSlot

	backing    backing
	file       vfile.File
	fileOffset int64
	fileBytes  int
	writeBack  bool

	dir       pagedir.Directory
	swapAlloc *swap.Allocator

	// pinned holds the frame handle while this page is held locked by
	// Lock/Unlock (spec.md §4.3's page_lock/page_unlock). Touched only
	// by the goroutine currently holding the pin, between a successful
	// Lock and its matching Unlock.
	pinned *frame.Handle
}

var _ frame.Page = (*Descriptor)(nil)

// Addr returns the descriptor's page-aligned virtual address.
func (d *Descriptor) Addr() uintptr { return d.addr }

// ReadOnly reports whether writes to this page are forbidden.
func (d *Descriptor) ReadOnly() bool { return d.readOnly }

// Resident reports whether the page currently occupies a frame.
func (d *Descriptor) Resident() bool { return d.frame != mem.FrameNone }

// Frame returns the frame currently holding this page, or
// mem.FrameNone.
func (d *Descriptor) Frame() mem.FrameNo { return d.frame }

// Accessed implements frame.Page: it consults the hardware accessed
// bit through the owning address space's page directory.
func (d *Descriptor) Accessed(clear bool) bool {
	return d.dir.Accessed(d.addr, clear)
}

// Evict implements frame.Page and spec.md §4.3's page_out. The caller
// (the frame table, selecting a victim, or page table Deallocate)
// holds this page's frame lock throughout.
func (d *Descriptor) Evict(contents *mem.Page) error {
	// Clearing the mapping before reading the dirty bit is the dirty-
	// bit race barrier of spec.md §4.3 step 1-2 / §5: once cleared, a
	// racing store re-faults instead of silently dirtying a page this
	// routine has already decided is clean.
	d.dir.ClearMapping(d.addr)
	dirty := d.dir.Dirty(d.addr)

	toSwap := false
	switch {
	case d.backing == backingZero:
		toSwap = true
	case d.backing == backingFile && dirty && d.writeBack:
		// Dirty private mapping (e.g. a writable data segment): must
		// not let modifications reach the backing executable.
		toSwap = true
	case d.backing == backingFile && dirty && !d.writeBack:
		if _, err := d.file.WriteAt(contents[:d.fileBytes], d.fileOffset); err != nil {
			return fmt.Errorf("pagetable: write back addr %#x: %w", d.addr, err)
		}
	default:
		// file != none, not dirty: file is authoritative, discard.
	}

	if toSwap {
		slot, err := d.swapAlloc.Out(contents)
		if err != nil {
			// Mapping is already cleared but d.frame is left untouched:
			// the page is still resident in this same frame, so the
			// next access just re-installs the mapping (spec.md §7).
			return err
		}
		d.swapSlot = slot
		// Swap is now authoritative; spec.md §4.1.
		d.backing = backingZero
		d.file = nil
		d.fileOffset = 0
		d.fileBytes = 0
		d.writeBack = false
	}
	d.frame = mem.FrameNone
	return nil
}

// materialize fills contents from whichever backing store is current,
// per spec.md §4.4 step 3 (do_page_in). warn receives a warning if a
// short file read disagrees with the expected file_bytes.
func (d *Descriptor) materialize(contents *mem.Page, warn func(format string, args ...any)) error {
	switch {
	case d.swapSlot != mem.SwapNone:
		if err := d.swapAlloc.In(d.swapSlot, contents); err != nil {
			return fmt.Errorf("pagetable: swap in addr %#x: %w", d.addr, err)
		}
		d.swapSlot = mem.SwapNone
	case d.backing == backingFile:
		n, err := d.file.ReadAt(contents[:d.fileBytes], d.fileOffset)
		if err != nil {
			return fmt.Errorf("pagetable: read file for addr %#x: %w", d.addr, err)
		}
		if n != d.fileBytes {
			warn("pagetable: short read for addr %#x: got %d bytes, wanted %d", d.addr, n, d.fileBytes)
		}
		for i := n; i < len(contents); i++ {
			contents[i] = 0
		}
	default:
		*contents = mem.Page{}
	}
	return nil
}
