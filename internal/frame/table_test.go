package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vmcore/internal/mem"
)

// fakePage is a minimal frame.Page for exercising the table without
// pulling in package pagetable (which would import frame, creating the
// cycle this interface exists to avoid).
type fakePage struct {
	id       int
	accessed bool
	evicted  bool
	evictErr error
}

func (p *fakePage) Accessed(clear bool) bool {
	a := p.accessed
	if clear {
		p.accessed = false
	}
	return a
}

func (p *fakePage) Evict(contents *mem.Page) error {
	p.evicted = true
	if p.evictErr != nil {
		return p.evictErr
	}
	contents[0] = byte(p.id)
	return nil
}

func TestAllocAndLockFillsFreeFrames(t *testing.T) {
	tbl := New(3, 3, time.Millisecond, nil)

	var handles []Handle
	for i := 0; i < 3; i++ {
		h, err := tbl.AllocAndLock(&fakePage{id: i})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	// Occupancy takes each frame lock, so release them first; Unlock
	// keeps each frame bound to its page.
	for _, h := range handles {
		tbl.Unlock(h)
	}

	resident, free := tbl.Occupancy()
	require.Equal(t, 3, resident)
	require.Equal(t, 0, free)
}

func TestClockSweepEvictsUnaccessedVictim(t *testing.T) {
	tbl := New(2, 3, time.Millisecond, nil)

	a := &fakePage{id: 1, accessed: false}
	b := &fakePage{id: 2, accessed: true}

	ha, err := tbl.AllocAndLock(a)
	require.NoError(t, err)
	tbl.Unlock(ha)

	hb, err := tbl.AllocAndLock(b)
	require.NoError(t, err)
	tbl.Unlock(hb)

	// Both frames are full; a third allocation must evict one of them.
	c := &fakePage{id: 3}
	hc, err := tbl.AllocAndLock(c)
	require.NoError(t, err)
	defer tbl.Unlock(hc)

	require.True(t, a.evicted || b.evicted)
	stats := tbl.Stats()
	require.Equal(t, int64(1), stats.Evictions)
}

func TestAllocAndLockPropagatesEvictionError(t *testing.T) {
	tbl := New(1, 2, time.Millisecond, nil)

	boom := &fakePage{id: 1, evictErr: errBoom}
	h, err := tbl.AllocAndLock(boom)
	require.NoError(t, err)
	tbl.Unlock(h)

	_, err = tbl.AllocAndLock(&fakePage{id: 2})
	require.ErrorIs(t, err, errBoom)

	stats := tbl.Stats()
	require.Equal(t, int64(1), stats.AllocFailures)
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
