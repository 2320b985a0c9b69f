// Package subsystem wires the shared collaborators of spec.md §2 — the
// global frame table, the global swap allocator, and the configuration
// that sizes them — into a single object new address spaces are built
// against. This is the Design Notes' "expose as an opaque subsystem
// object" resolution to the ambient-globals open question: nothing in
// package frame, swap, pagetable, or vm reaches for a package-level
// variable, so more than one Core can coexist (one per test, one per
// simulated machine in the demo binary) without interference.
package subsystem

import (
	"fmt"
	"log"
	"time"

	"vmcore/internal/blockdev"
	"vmcore/internal/config"
	"vmcore/internal/frame"
	"vmcore/internal/mmap"
	"vmcore/internal/pagedir"
	"vmcore/internal/pagesize"
	"vmcore/internal/pagetable"
	"vmcore/internal/swap"
	"vmcore/internal/vm"
)

// Core holds the subsystems every address space shares.
type Core struct {
	cfg    *config.Config
	frames *frame.Table
	swap   *swap.Allocator
	log    *log.Logger
}

// New builds the shared subsystems from cfg. If cfg.Swap.DevicePath is
// empty, swap backs onto an in-memory device (blockdev.Mem) sized to
// cfg.Swap.Slots sectors-per-page, suitable for tests and the demo
// binary; a non-empty path opens a real file via blockdev.File.
func New(cfg *config.Config, logger *log.Logger) (*Core, error) {
	if logger == nil {
		logger = log.Default()
	}

	var dev blockdev.Device
	if cfg.Swap.DevicePath == "" {
		dev = blockdev.NewMem(int64(cfg.Swap.Slots) * int64(pagesize.SectorsPerPage))
	} else {
		f, err := blockdev.OpenFile(cfg.Swap.DevicePath)
		if err != nil {
			return nil, fmt.Errorf("subsystem: open swap device: %w", err)
		}
		dev = f
	}

	swapAlloc := swap.New(dev, cfg.Swap.Slots, logger)
	frames := frame.New(cfg.Frames.Count, cfg.Alloc.Retries, time.Duration(cfg.Alloc.BackoffMillis)*time.Millisecond, logger)

	return &Core{cfg: cfg, frames: frames, swap: swapAlloc, log: logger}, nil
}

// Frames returns the shared frame table, for diagnostics.
func (c *Core) Frames() *frame.Table { return c.frames }

// Swap returns the shared swap allocator, for diagnostics.
func (c *Core) Swap() *swap.Allocator { return c.swap }

// Process bundles one process's address space with its file-mapping
// manager, the unit the demo binary and tests drive a simulated fault
// workload against.
type Process struct {
	AS   *vm.AddressSpace
	Maps *mmap.Manager
}

// NewProcess builds a fresh address space against the shared
// subsystems, with its own software page directory and page table,
// sized by the stack parameters in the core's configuration. physBase
// is the top of the simulated user address range.
func (c *Core) NewProcess(physBase uintptr) *Process {
	dir := pagedir.NewSoftware()
	table := pagetable.New(c.frames, c.swap, dir, physBase, uintptr(c.cfg.Stack.MaxBytes), uintptr(c.cfg.Stack.GrowTolerance), c.log)
	as := vm.New(dir, table)
	return &Process{AS: as, Maps: mmap.New(as)}
}

// Exit tears down a process's address space and open mappings.
func (p *Process) Exit() {
	p.Maps.ExitAll()
	p.AS.Exit()
}
