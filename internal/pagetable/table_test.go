package pagetable

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vmcore/internal/blockdev"
	"vmcore/internal/frame"
	"vmcore/internal/pagedir"
	"vmcore/internal/pagesize"
	"vmcore/internal/swap"
	"vmcore/internal/vfile"
	"vmcore/internal/vmerr"
)

const physBase = uintptr(0x80000000)

func newTestTable(t *testing.T, frames int) (*Table, *frame.Table) {
	t.Helper()
	dir := pagedir.NewSoftware()
	dev := blockdev.NewMem(int64(16 * pagesize.SectorsPerPage))
	swapAlloc := swap.New(dev, 16, nil)
	frameTbl := frame.New(frames, 4, time.Millisecond, nil)
	tbl := New(frameTbl, swapAlloc, dir, physBase, 1<<20, 32, nil)
	return tbl, frameTbl
}

func TestAllocateThenInZeroFills(t *testing.T) {
	tbl, _ := newTestTable(t, 4)
	addr := physBase - pagesize.Size

	d, err := tbl.Allocate(addr, false)
	require.NoError(t, err)

	ok, err := tbl.In(d, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, d.Resident())
}

func TestAllocateRejectsDoubleMap(t *testing.T) {
	tbl, _ := newTestTable(t, 4)
	addr := physBase - pagesize.Size

	_, err := tbl.Allocate(addr, false)
	require.NoError(t, err)

	_, err = tbl.Allocate(addr, false)
	require.ErrorIs(t, err, vmerr.ErrDoubleMap)
}

func TestInRejectsWriteToReadOnlyPage(t *testing.T) {
	tbl, _ := newTestTable(t, 4)
	addr := physBase - pagesize.Size

	d, err := tbl.Allocate(addr, true)
	require.NoError(t, err)

	_, err = tbl.In(d, true)
	require.ErrorIs(t, err, vmerr.ErrReadOnly)
}

func TestForAddrGrowsStackWithinTolerance(t *testing.T) {
	tbl, _ := newTestTable(t, 4)
	sp := physBase - pagesize.Size

	d, err := tbl.ForAddr(sp-16, sp)
	require.NoError(t, err)
	require.NotNil(t, d)
}

func TestForAddrRejectsBeyondTolerance(t *testing.T) {
	tbl, _ := newTestTable(t, 4)
	sp := physBase - pagesize.Size

	_, err := tbl.ForAddr(sp-64, sp)
	require.ErrorIs(t, err, vmerr.ErrAddressFault)
}

func TestForAddrRejectsBeyondStackCeiling(t *testing.T) {
	tbl, _ := newTestTable(t, 4)
	// Far below physBase - stackMax: not a plausible stack growth.
	addr := physBase - (1 << 20) - pagesize.Size
	_, err := tbl.ForAddr(addr, addr)
	require.ErrorIs(t, err, vmerr.ErrAddressFault)
}

// TestEvictionRoundTrip mirrors the classic Pintos A/B/C/A touch
// sequence with frame_cnt=2: touching a third page must evict one of
// the first two, and re-touching the evicted page must page it back in
// without error and leave it resident.
func TestEvictionRoundTrip(t *testing.T) {
	tbl, frameTbl := newTestTable(t, 2)
	dir := tbl.dir.(*pagedir.Software)

	pageA := physBase - 1*pagesize.Size
	pageB := physBase - 2*pagesize.Size
	pageC := physBase - 3*pagesize.Size

	dA, err := tbl.Allocate(pageA, false)
	require.NoError(t, err)
	_, err = tbl.In(dA, true)
	require.NoError(t, err)
	require.True(t, dir.MarkWrite(pageA))

	dB, err := tbl.Allocate(pageB, false)
	require.NoError(t, err)
	_, err = tbl.In(dB, false)
	require.NoError(t, err)

	// Age A and B out so the clock sweep considers them victims.
	dA.Accessed(true)
	dB.Accessed(true)

	dC, err := tbl.Allocate(pageC, false)
	require.NoError(t, err)
	_, err = tbl.In(dC, false)
	require.NoError(t, err)

	require.Equal(t, int64(1), frameTbl.Stats().Evictions)
	require.True(t, dA.Resident() != dB.Resident(), "exactly one of A, B should have been evicted")

	// Re-touch whichever was evicted; it must page back in without error.
	var evicted *Descriptor
	if !dA.Resident() {
		evicted = dA
	} else {
		evicted = dB
	}
	ok, err := tbl.In(evicted, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, evicted.Resident())
}

func TestLockUnlockPinsFrame(t *testing.T) {
	tbl, _ := newTestTable(t, 4)
	addr := physBase - pagesize.Size
	_, err := tbl.Allocate(addr, false)
	require.NoError(t, err)

	require.NoError(t, tbl.Lock(addr, true))
	require.NoError(t, tbl.Unlock(addr))
}

func TestUnlockWithoutLockFails(t *testing.T) {
	tbl, _ := newTestTable(t, 4)
	addr := physBase - pagesize.Size
	_, err := tbl.Allocate(addr, false)
	require.NoError(t, err)

	require.ErrorIs(t, tbl.Unlock(addr), vmerr.ErrNotPinned)
}

func TestFileMappingWriteBackAndDiscard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapped.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789abcdef"), 0600))

	f, err := vfile.Open(path)
	require.NoError(t, err)
	reopened, err := f.Reopen()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, frameTbl := newTestTable(t, 4)
	addr := physBase - pagesize.Size
	d, err := tbl.AllocateFile(addr, false, false, reopened, 0, 16)
	require.NoError(t, err)

	_, err = tbl.In(d, true)
	require.NoError(t, err)
	swDir := tbl.dir.(*pagedir.Software)
	require.True(t, swDir.MarkWrite(addr))

	// Simulate the user store that made the page dirty: mutate the
	// frame's own bytes directly, the way a real CPU write would.
	h := frameTbl.LockIndex(d.Frame())
	copy(h.Contents()[:], []byte("ZZZZZZZZZZZZZZZZ"))
	frameTbl.Unlock(h)

	require.NoError(t, tbl.Deallocate(addr))

	back, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "ZZZZZZZZZZZZZZZZ", string(back[:16]))
}

// TestDeallocateAnonymousPageDiscardsWithoutSwap guards against
// page_deallocate routing an anonymous (zero-fill) page through
// page_out: that would swap out contents nobody will ever read back
// and leak the slot forever, since the descriptor is already removed
// from the table by the time eviction would run.
func TestDeallocateAnonymousPageDiscardsWithoutSwap(t *testing.T) {
	tbl, _ := newTestTable(t, 4)
	addr := physBase - pagesize.Size

	d, err := tbl.Allocate(addr, false)
	require.NoError(t, err)
	_, err = tbl.In(d, true)
	require.NoError(t, err)

	require.NoError(t, tbl.Deallocate(addr))
	require.Equal(t, 0, tbl.swap.InUse())
}

func TestCleanFileMappingDiscardedWithoutWriteBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapped.bin")
	original := []byte("0123456789abcdef")
	require.NoError(t, os.WriteFile(path, original, 0600))

	f, err := vfile.Open(path)
	require.NoError(t, err)
	reopened, err := f.Reopen()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, frameTbl := newTestTable(t, 1)
	addr := physBase - pagesize.Size
	d, err := tbl.AllocateFile(addr, false, false, reopened, 0, 16)
	require.NoError(t, err)
	_, err = tbl.In(d, false)
	require.NoError(t, err)

	// Force eviction with a second page; the first page was never
	// written, so page_out must discard rather than write back.
	other, err := tbl.Allocate(physBase-2*pagesize.Size, false)
	require.NoError(t, err)
	_, err = tbl.In(other, false)
	require.NoError(t, err)

	require.Equal(t, int64(1), frameTbl.Stats().Evictions)

	back, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, original, back)
}
