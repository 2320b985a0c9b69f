// Package frame implements the global frame table of spec.md §4.2: a
// fixed array of physical frames, allocate-and-lock with clock
// eviction, and the scan/frame lock discipline of spec.md §5 (scan ->
// frame -> swap, scan lock never held across I/O).
//
// The frame<->page back-reference of spec.md §9 is implemented with a
// plain index (mem.FrameNo) from the page side and the Page interface
// below from the frame side, avoiding a reference cycle between this
// package and package pagetable: pagetable.Descriptor implements Page,
// but frame never imports pagetable.
package frame

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"vmcore/internal/mem"
)

// Page is the contract the frame table needs from whatever page
// descriptor currently occupies a frame: a way to consult (and clear)
// the hardware accessed bit for the clock sweep, and a way to evict
// the frame's contents to their backing store. Both are called with
// the frame's lock held by the caller, matching spec.md §4.2/§4.3.
type Page interface {
	// Accessed reports the hardware accessed bit for this page's
	// mapping, clearing it when clear is true.
	Accessed(clear bool) bool
	// Evict routes contents to swap, to the backing file, or discards
	// them, per spec.md §4.3's page_out. It returns nil on success.
	Evict(contents *mem.Page) error
}

type slot struct {
	mu       sync.Mutex
	contents mem.Page
	page     Page
}

// Table is the global, fixed-size frame table.
type Table struct {
	frames  []slot
	scan    *semaphore.Weighted
	hand    int
	retries int
	backoff time.Duration
	log     *log.Logger

	stats Stats
}

// Stats accumulates the eviction-path counters recovered from the
// original pintos implementation's frame.c (SPEC_FULL.md, "DOMAIN
// STACK — supplemented components"), exported by package diag.
type Stats struct {
	Evictions     int64
	AllocFailures int64
}

// New builds a frame table of count frames.
func New(count int, retries int, backoff time.Duration, logger *log.Logger) *Table {
	if logger == nil {
		logger = log.Default()
	}
	t := &Table{
		frames:  make([]slot, count),
		scan:    semaphore.NewWeighted(1),
		retries: retries,
		backoff: backoff,
		log:     logger,
	}
	return t
}

// Count returns the number of frames in the table.
func (t *Table) Count() int { return len(t.frames) }

// Handle references a locked frame. The zero Handle is not valid; it
// is only ever produced by Table methods that already hold the frame's
// lock.
type Handle struct {
	no mem.FrameNo
	s  *slot
}

// No returns the frame index this handle refers to.
func (h Handle) No() mem.FrameNo { return h.no }

// Contents returns the frame's backing storage. Valid only while the
// handle's lock is held.
func (h Handle) Contents() *mem.Page { return &h.s.contents }

// ErrNoFreeFrame is returned by AllocAndLock when every attempt fails
// and the last one found no evictable frame. If the last attempt chose
// a victim whose eviction failed, that eviction error is returned
// instead.
var ErrNoFreeFrame = fmt.Errorf("frame: no free frame after retries")

var errNoVictim = fmt.Errorf("frame: clock sweep found no evictable frame")

// AllocAndLock returns a frame bound to page, with the frame's lock
// held by the caller. It retries up to t.retries times with t.backoff
// between attempts, per spec.md §4.2 and §5.
func (t *Table) AllocAndLock(page Page) (Handle, error) {
	var lastErr error
	for attempt := 0; attempt < t.retries; attempt++ {
		if h, ok := t.tryFreeFrame(page); ok {
			return h, nil
		}
		h, err := t.clockSweep(page)
		if err == nil {
			return h, nil
		}
		lastErr = err
		// Retry uniformly whether the sweep found no victim or a victim
		// was found but eviction itself failed (e.g. swap exhaustion):
		// spec.md §4.2 and §5 give frame_alloc_and_lock's 3-attempt,
		// one-second-backoff retry with no qualifier on the reason a
		// given attempt came up empty.
		if err == errNoVictim {
			t.log.Printf("frame: alloc attempt %d/%d found no victim, backing off", attempt+1, t.retries)
		} else {
			t.log.Printf("frame: alloc attempt %d/%d evict failed: %v, backing off", attempt+1, t.retries, err)
		}
		time.Sleep(t.backoff)
	}
	t.stats.AllocFailures++
	if lastErr != nil && lastErr != errNoVictim {
		return Handle{}, lastErr
	}
	return Handle{}, ErrNoFreeFrame
}

// tryFreeFrame implements pass 1 of spec.md §4.2: a single linear scan
// for an already-free frame whose lock can be taken without blocking.
func (t *Table) tryFreeFrame(page Page) (Handle, bool) {
	for i := range t.frames {
		s := &t.frames[i]
		if !s.mu.TryLock() {
			continue
		}
		if s.page == nil {
			s.page = page
			return Handle{no: mem.FrameNo(i), s: s}, true
		}
		s.mu.Unlock()
	}
	return Handle{}, false
}

// clockSweep implements pass 2 of spec.md §4.2. The scan lock is held
// for victim selection and released before any blocking I/O (step 5),
// per spec.md §4.2's invariant and §5's lock order.
func (t *Table) clockSweep(page Page) (Handle, error) {
	ctx := context.Background()
	if err := t.scan.Acquire(ctx, 1); err != nil {
		return Handle{}, err
	}
	scanHeld := true
	defer func() {
		if scanHeld {
			t.scan.Release(1)
		}
	}()

	limit := 2 * len(t.frames)
	for i := 0; i < limit; i++ {
		idx := t.hand
		t.hand = (t.hand + 1) % len(t.frames)

		s := &t.frames[idx]
		if !s.mu.TryLock() {
			continue
		}
		if s.page == nil {
			s.page = page
			return Handle{no: mem.FrameNo(idx), s: s}, nil
		}
		if s.page.Accessed(true) {
			s.mu.Unlock()
			continue
		}

		// Victim chosen: release the scan lock before the blocking
		// write-back/swap-out I/O (spec.md §4.2 step 5).
		t.scan.Release(1)
		scanHeld = false

		victim := s.page
		if err := victim.Evict(&s.contents); err != nil {
			s.mu.Unlock()
			return Handle{}, err
		}
		t.stats.Evictions++
		s.page = page
		return Handle{no: mem.FrameNo(idx), s: s}, nil
	}
	return Handle{}, errNoVictim
}

// LockIndex blocks until frame idx's lock is free, then returns a
// Handle to it. Implements the frame-acquisition half of frame_lock
// (spec.md §4.2); the caller is responsible for re-validating that the
// frame still belongs to the page it expected, since the binding may
// have changed between reading the index and this call returning.
func (t *Table) LockIndex(idx mem.FrameNo) Handle {
	s := &t.frames[idx]
	s.mu.Lock()
	return Handle{no: idx, s: s}
}

// CurrentPage reports the page currently bound to h's frame, for the
// caller's re-validation step in frame_lock.
func (h Handle) CurrentPage() Page { return h.s.page }

// Free implements frame_free: caller holds the lock; resets the
// frame's page to none and releases the lock.
func (t *Table) Free(h Handle) {
	h.s.page = nil
	h.s.mu.Unlock()
}

// Unlock implements frame_unlock: releases without unbinding.
func (t *Table) Unlock(h Handle) {
	h.s.mu.Unlock()
}

// Stats returns a snapshot of the eviction counters.
func (t *Table) Stats() Stats { return t.stats }

// Occupancy reports how many frames are currently bound to a page.
// Used by the diag pprof exporter; takes and releases each frame lock
// briefly rather than a consistent snapshot, since holding all locks
// at once would violate the "at most one frame lock per thread" rule
// of spec.md §5.
func (t *Table) Occupancy() (resident, free int) {
	for i := range t.frames {
		s := &t.frames[i]
		s.mu.Lock()
		if s.page != nil {
			resident++
		} else {
			free++
		}
		s.mu.Unlock()
	}
	return resident, free
}
