package pagetable

import (
	"log"
	"sync"

	"vmcore/internal/frame"
	"vmcore/internal/mem"
	"vmcore/internal/pagedir"
	"vmcore/internal/pagesize"
	"vmcore/internal/swap"
	"vmcore/internal/vfile"
	"vmcore/internal/vmerr"
)

// bucketCount shards the per-process hash the way hashtable.go's
// bucket_t array does, trading a single global map lock for
// independent per-bucket locks (grounded on hashtable.Hashtable_t,
// simplified to a typed uintptr key instead of interface{}).
const bucketCount = 64

type bucket struct {
	mu sync.RWMutex
	m  map[uintptr]*Descriptor
}

// Table is the per-process supplemental page table of spec.md §4.3: a
// hash keyed by page-aligned virtual address (hash value addr >>
// page_bits, spec.md §4.3), paired with the shared frame table and
// swap allocator every process contends over.
type Table struct {
	buckets  [bucketCount]bucket
	frames   *frame.Table
	swap     *swap.Allocator
	dir      pagedir.Directory
	log      *log.Logger
	physBase uintptr
	stackMax uintptr
	stackTol uintptr
}

// New builds an empty page table for one address space. physBase is
// the top of the user address range (stacks grow down from it);
// stackMax and stackTol are the spec.md §4.5 stack-growth parameters.
func New(frames *frame.Table, swapAlloc *swap.Allocator, dir pagedir.Directory, physBase, stackMax, stackTol uintptr, logger *log.Logger) *Table {
	if logger == nil {
		logger = log.Default()
	}
	t := &Table{frames: frames, swap: swapAlloc, dir: dir, physBase: physBase, stackMax: stackMax, stackTol: stackTol, log: logger}
	for i := range t.buckets {
		t.buckets[i].m = make(map[uintptr]*Descriptor)
	}
	return t
}

func addrBucketIndex(addr uintptr) int {
	return int((addr >> pagesize.Bits) % bucketCount)
}

func (t *Table) lookup(addr uintptr) (*Descriptor, bool) {
	b := &t.buckets[addrBucketIndex(addr)]
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.m[addr]
	return d, ok
}

// Allocate implements page_allocate: inserts a new zero-fill descriptor
// at round_down(vaddr), failing if the address is already mapped.
func (t *Table) Allocate(vaddr uintptr, readOnly bool) (*Descriptor, error) {
	addr := pagesize.PageRoundDown(vaddr)
	b := &t.buckets[addrBucketIndex(addr)]
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.m[addr]; exists {
		return nil, vmerr.ErrDoubleMap
	}
	d := &Descriptor{
		addr:      addr,
		readOnly:  readOnly,
		frame:     mem.FrameNone,
		swapSlot:  mem.SwapNone,
		backing:   backingZero,
		dir:       t.dir,
		swapAlloc: t.swap,
	}
	b.m[addr] = d
	return d, nil
}

// AllocateFile is the file-mapping manager's entry point: like
// Allocate, but installs a file backing instead of zero-fill.
func (t *Table) AllocateFile(vaddr uintptr, readOnly, writeBack bool, f vfile.File, fileOffset int64, fileBytes int) (*Descriptor, error) {
	addr := pagesize.PageRoundDown(vaddr)
	b := &t.buckets[addrBucketIndex(addr)]
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.m[addr]; exists {
		return nil, vmerr.ErrDoubleMap
	}
	d := &Descriptor{
		addr:       addr,
		readOnly:   readOnly,
		frame:      mem.FrameNone,
		swapSlot:   mem.SwapNone,
		backing:    backingFile,
		file:       f,
		fileOffset: fileOffset,
		fileBytes:  fileBytes,
		writeBack:  writeBack,
		dir:        t.dir,
		swapAlloc:  t.swap,
	}
	b.m[addr] = d
	return d, nil
}

// Deallocate implements page_deallocate: locates the descriptor and,
// if resident, routes it through page_out only when it is a shared,
// non-write-back file mapping (page.c:261-268) — the one case where a
// deallocated page's contents must still reach their backing store.
// Every other resident page (anonymous, or a private write-back
// mapping) is being discarded for good, so its frame is simply freed
// without evicting: routing it through Evict would either swap out an
// anonymous page nobody will ever read back (leaking the slot forever,
// since the descriptor is already gone from the table) or swap out a
// dirty write-back file page the original instead discards outright.
func (t *Table) Deallocate(vaddr uintptr) error {
	addr := pagesize.PageRoundDown(vaddr)
	b := &t.buckets[addrBucketIndex(addr)]
	b.mu.Lock()
	d, ok := b.m[addr]
	if !ok {
		b.mu.Unlock()
		return vmerr.ErrAddressFault
	}
	delete(b.m, addr)
	b.mu.Unlock()

	if d.frame != mem.FrameNone {
		h := t.frames.LockIndex(d.frame)
		if d.backing == backingFile && !d.writeBack {
			if err := d.Evict(h.Contents()); err != nil {
				t.frames.Unlock(h)
				return err
			}
		} else {
			d.dir.ClearMapping(addr)
			d.frame = mem.FrameNone
		}
		t.frames.Free(h)
	} else if d.swapSlot != mem.SwapNone {
		t.swap.Discard(d.swapSlot)
	}
	return nil
}

// ForAddr implements page_for_addr: a lookup with implicit stack
// growth per spec.md §4.5. sp is the faulting thread's user stack
// pointer at the moment of the fault.
func (t *Table) ForAddr(addr, sp uintptr) (*Descriptor, error) {
	rounded := pagesize.PageRoundDown(addr)
	if d, ok := t.lookup(rounded); ok {
		return d, nil
	}
	if !t.stackShouldGrow(addr, sp) {
		return nil, vmerr.ErrAddressFault
	}
	return t.Allocate(rounded, false)
}

// stackShouldGrow implements spec.md §4.5's two-part test: addr lies
// above the stack floor (physBase - stackMax) and within stackTol
// bytes below sp.
func (t *Table) stackShouldGrow(addr, sp uintptr) bool {
	if addr >= t.physBase {
		return false
	}
	floor := t.physBase - t.stackMax
	if addr <= floor {
		return false
	}
	if sp < t.stackTol {
		return addr+t.stackTol >= sp
	}
	lowBound := sp - t.stackTol
	return addr >= lowBound
}

// frameLock implements frame_lock(page): if d.frame is set, takes that
// frame's lock; if the binding changed between the read and the
// acquire, releases and reports false.
func (t *Table) frameLock(d *Descriptor) (frame.Handle, bool) {
	idx := d.frame
	if idx == mem.FrameNone {
		return frame.Handle{}, false
	}
	h := t.frames.LockIndex(idx)
	if h.CurrentPage() != frame.Page(d) {
		t.frames.Unlock(h)
		return frame.Handle{}, false
	}
	return h, true
}

// doPageIn implements the fresh-frame half of spec.md §4.4 step 3:
// obtain a locked frame and materialize the page's contents into it.
func (t *Table) doPageIn(d *Descriptor) (frame.Handle, error) {
	h, err := t.frames.AllocAndLock(d)
	if err != nil {
		return frame.Handle{}, err
	}
	if err := d.materialize(h.Contents(), t.warnf); err != nil {
		t.frames.Free(h)
		return frame.Handle{}, err
	}
	d.frame = h.No()
	return h, nil
}

func (t *Table) warnf(format string, args ...any) {
	t.log.Printf(format, args...)
}

// In implements page_in: materializes d if necessary and installs the
// architectural mapping, writeable iff the page is not read-only. A
// mapping already installed for the same frame is left as it is, so
// its accessed and dirty bits survive a repeated fault. Returns false (without terminating) on
// out-of-memory or I/O failure; the caller (the page-fault service)
// decides what that means for the faulting process.
func (t *Table) In(d *Descriptor, write bool) (bool, error) {
	if write && d.readOnly {
		return false, vmerr.ErrReadOnly
	}
	h, ok := t.frameLock(d)
	if !ok {
		var err error
		h, err = t.doPageIn(d)
		if err != nil {
			return false, err
		}
	}
	if f, mapped := d.dir.Mapping(d.addr); !mapped || f != h.No() {
		d.dir.SetMapping(d.addr, h.No(), !d.readOnly)
	}
	t.frames.Unlock(h)
	return true, nil
}

// Lock implements page_lock: locate the page, reject writes against
// read-only pages, acquire (and keep) the frame lock — installing and
// populating a frame if the page is not yet resident — and install
// the architectural mapping. The frame stays locked until Unlock.
func (t *Table) Lock(addr uintptr, willWrite bool) error {
	rounded := pagesize.PageRoundDown(addr)
	d, ok := t.lookup(rounded)
	if !ok {
		return vmerr.ErrAddressFault
	}
	if willWrite && d.readOnly {
		return vmerr.ErrReadOnly
	}
	h, ok := t.frameLock(d)
	if !ok {
		var err error
		h, err = t.doPageIn(d)
		if err != nil {
			return err
		}
	}
	d.dir.SetMapping(d.addr, h.No(), !d.readOnly)
	d.pinned = &h
	return nil
}

// Unlock implements page_unlock: releases the frame lock taken by
// Lock.
func (t *Table) Unlock(addr uintptr) error {
	rounded := pagesize.PageRoundDown(addr)
	d, ok := t.lookup(rounded)
	if !ok {
		return vmerr.ErrAddressFault
	}
	if d.pinned == nil {
		return vmerr.ErrNotPinned
	}
	t.frames.Unlock(*d.pinned)
	d.pinned = nil
	return nil
}

// Exit implements page_exit: destroys every descriptor in this
// process's table, freeing any held frame or swap slot.
func (t *Table) Exit() {
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.Lock()
		for addr, d := range b.m {
			d.dir.ClearMapping(addr)
			if d.frame != mem.FrameNone {
				h := t.frames.LockIndex(d.frame)
				t.frames.Free(h)
			} else if d.swapSlot != mem.SwapNone {
				t.swap.Discard(d.swapSlot)
			}
			delete(b.m, addr)
		}
		b.mu.Unlock()
	}
}

// Lookup exposes a read-only view of the descriptor at addr, for
// callers (stack-pointer validation, tests) that only need to inspect
// state rather than service a fault.
func (t *Table) Lookup(addr uintptr) (*Descriptor, bool) {
	return t.lookup(pagesize.PageRoundDown(addr))
}
