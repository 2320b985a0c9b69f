package subsystem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vmcore/internal/config"
	"vmcore/internal/pagesize"
)

func TestNewProcessFaultsAgainstSharedFrames(t *testing.T) {
	cfg := config.Default()
	cfg.Frames.Count = 2

	core, err := New(cfg, nil)
	require.NoError(t, err)

	physBase := uintptr(0x80000000)
	proc := core.NewProcess(physBase)
	defer proc.Exit()

	addr := physBase - pagesize.Size
	require.NoError(t, proc.AS.Fault(addr, addr, false, true))

	resident, _ := core.Frames().Occupancy()
	require.Equal(t, 1, resident)
}

func TestTwoProcessesShareTheSameFramePool(t *testing.T) {
	cfg := config.Default()
	cfg.Frames.Count = 1

	core, err := New(cfg, nil)
	require.NoError(t, err)

	physBase := uintptr(0x80000000)
	p1 := core.NewProcess(physBase)
	defer p1.Exit()
	p2 := core.NewProcess(physBase)
	defer p2.Exit()

	addr := physBase - pagesize.Size
	require.NoError(t, p1.AS.Fault(addr, addr, false, true))
	// With only one shared frame, the second process's fault must evict
	// the first process's resident page rather than fail.
	require.NoError(t, p2.AS.Fault(addr, addr, false, true))

	resident, free := core.Frames().Occupancy()
	require.Equal(t, 1, resident)
	require.Equal(t, 0, free)
}
