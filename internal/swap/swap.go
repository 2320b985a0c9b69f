// Package swap implements the swap allocator of spec.md §4.1: a bitmap
// of page-sized slots on a block device, one bit per slot, with
// find-first-clear-and-flip allocation under a single dedicated mutex.
//
// Allocator never touches a page descriptor or a frame lock; it is the
// leaf of the lock order scan -> frame -> swap (spec.md §5). Callers
// (the frame table's eviction path and the page table's page_in) are
// responsible for holding the relevant frame lock across Out/In, as
// spec.md §4.1 requires.
package swap

import (
	"fmt"
	"log"
	"sync"

	"vmcore/internal/blockdev"
	"vmcore/internal/mem"
	"vmcore/internal/pagesize"
)

// Allocator owns the swap bitmap and the device it addresses.
type Allocator struct {
	mu     sync.Mutex
	bitmap []bool
	dev    blockdev.Device
	log    *log.Logger
}

// New constructs an Allocator with room for slots page-sized slots on
// dev. The bitmap starts empty: spec.md §6 notes swap contents do not
// persist across reboots, so the bitmap is always rebuilt empty rather
// than scanned off the device.
func New(dev blockdev.Device, slots int, logger *log.Logger) *Allocator {
	if logger == nil {
		logger = log.Default()
	}
	return &Allocator{
		bitmap: make([]bool, slots),
		dev:    dev,
		log:    logger,
	}
}

// ErrFull is returned by Out when no swap slot is free.
var ErrFull = fmt.Errorf("swap: device full")

// alloc finds the first clear bit, flips it, and returns its index.
// The whole scan-and-flip happens under Allocator.mu so two evictors
// racing for the last free slot cannot both claim it (spec.md §4.1).
func (a *Allocator) alloc() (mem.SwapSlot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, used := range a.bitmap {
		if !used {
			a.bitmap[i] = true
			return mem.SwapSlot(i), nil
		}
	}
	return mem.SwapNone, ErrFull
}

func (a *Allocator) free(slot mem.SwapSlot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bitmap[slot] = false
}

// Out writes page to a freshly allocated slot and returns it. The
// caller must hold the owning frame's lock across this call per
// spec.md §4.1; Out itself has no notion of frames or page
// descriptors, only raw bytes.
func (a *Allocator) Out(page *mem.Page) (mem.SwapSlot, error) {
	slot, err := a.alloc()
	if err != nil {
		return mem.SwapNone, err
	}
	base := int64(slot) * pagesize.SectorsPerPage
	for s := 0; s < pagesize.SectorsPerPage; s++ {
		lo, hi := s*pagesize.SectorSize, (s+1)*pagesize.SectorSize
		if err := a.dev.WriteSector(base+int64(s), page[lo:hi]); err != nil {
			// Leave the slot marked used: a partially written slot must
			// not be handed out again until the device error is
			// diagnosed. I/O failure is not retried at this layer
			// (spec.md §7).
			return mem.SwapNone, fmt.Errorf("swap: write slot %d sector %d: %w", slot, s, err)
		}
	}
	return slot, nil
}

// In reads slot's sectors into dst and releases the slot. The bitmap
// clear need not be atomic with the read: only the page's frame lock,
// held by the caller, gates the slot's reuse (spec.md §4.1).
func (a *Allocator) In(slot mem.SwapSlot, dst *mem.Page) error {
	base := int64(slot) * pagesize.SectorsPerPage
	for s := 0; s < pagesize.SectorsPerPage; s++ {
		lo, hi := s*pagesize.SectorSize, (s+1)*pagesize.SectorSize
		if err := a.dev.ReadSector(base+int64(s), dst[lo:hi]); err != nil {
			return fmt.Errorf("swap: read slot %d sector %d: %w", slot, s, err)
		}
	}
	a.free(slot)
	return nil
}

// Discard releases slot without reading it back, used when a page
// table entry for a swapped-out page is torn down without being
// faulted back in (e.g. page_deallocate on a swapped page).
func (a *Allocator) Discard(slot mem.SwapSlot) {
	a.free(slot)
}

// InUse reports how many slots are currently allocated, for the diag
// exporter and tests.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, used := range a.bitmap {
		if used {
			n++
		}
	}
	return n
}
