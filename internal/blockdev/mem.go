package blockdev

import (
	"fmt"
	"sync"
)

// Mem is an in-memory block device: a flat byte slice grown in
// sector-sized chunks on the first read or write of any sector beyond
// the current capacity. It exists for unit tests that want a swap device without
// touching the filesystem.
type Mem struct {
	mu   sync.Mutex
	data []byte
}

// NewMem returns an empty in-memory device with room for sectors
// sectors pre-allocated.
func NewMem(sectors int64) *Mem {
	return &Mem{data: make([]byte, sectors*sectorSize)}
}

var _ Device = (*Mem)(nil)

func (m *Mem) SectorSize() int { return sectorSize }

func (m *Mem) SectorCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data)) / sectorSize
}

func (m *Mem) ensure(idx int64) {
	need := (idx + 1) * sectorSize
	if int64(len(m.data)) >= need {
		return
	}
	grown := make([]byte, need)
	copy(grown, m.data)
	m.data = grown
}

// ReadSector implements Device.
func (m *Mem) ReadSector(idx int64, buf []byte) error {
	if len(buf) != sectorSize {
		return fmt.Errorf("blockdev: read buffer must be %d bytes, got %d", sectorSize, len(buf))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < 0 {
		return fmt.Errorf("blockdev: negative sector index %d", idx)
	}
	m.ensure(idx)
	off := idx * sectorSize
	copy(buf, m.data[off:off+sectorSize])
	return nil
}

// WriteSector implements Device.
func (m *Mem) WriteSector(idx int64, buf []byte) error {
	if len(buf) != sectorSize {
		return fmt.Errorf("blockdev: write buffer must be %d bytes, got %d", sectorSize, len(buf))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < 0 {
		return fmt.Errorf("blockdev: negative sector index %d", idx)
	}
	m.ensure(idx)
	off := idx * sectorSize
	copy(m.data[off:off+sectorSize], buf)
	return nil
}
