package swap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vmcore/internal/blockdev"
	"vmcore/internal/mem"
	"vmcore/internal/pagesize"
)

func TestOutInRoundTrip(t *testing.T) {
	dev := blockdev.NewMem(int64(4 * pagesize.SectorsPerPage))
	alloc := New(dev, 4, nil)

	var page mem.Page
	for i := range page {
		page[i] = byte(i % 251)
	}

	slot, err := alloc.Out(&page)
	require.NoError(t, err)
	require.Equal(t, 1, alloc.InUse())

	var back mem.Page
	require.NoError(t, alloc.In(slot, &back))
	require.Equal(t, page, back)
	require.Equal(t, 0, alloc.InUse())
}

func TestOutFailsWhenFull(t *testing.T) {
	dev := blockdev.NewMem(int64(2 * pagesize.SectorsPerPage))
	alloc := New(dev, 2, nil)

	var page mem.Page
	_, err := alloc.Out(&page)
	require.NoError(t, err)
	_, err = alloc.Out(&page)
	require.NoError(t, err)

	_, err = alloc.Out(&page)
	require.ErrorIs(t, err, ErrFull)
}

func TestDiscardFreesSlotWithoutReading(t *testing.T) {
	dev := blockdev.NewMem(int64(2 * pagesize.SectorsPerPage))
	alloc := New(dev, 2, nil)

	var page mem.Page
	slot, err := alloc.Out(&page)
	require.NoError(t, err)
	require.Equal(t, 1, alloc.InUse())

	alloc.Discard(slot)
	require.Equal(t, 0, alloc.InUse())
}
