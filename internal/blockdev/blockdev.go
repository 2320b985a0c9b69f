// Package blockdev is the sector-addressed block device collaborator
// spec.md §6 places out of scope ("the low-level block device driver
// offers sector read/write"). Device is the seam the swap allocator
// programs against; Mem and File are two concrete backends — an
// in-memory one for unit tests and a real-file one, grounded on the
// teacher's fs.Disk_i request/ack pattern in fs/blk.go but simplified to
// a synchronous call since the core never needs more than one
// outstanding sector request per swap operation.
package blockdev

import "vmcore/internal/pagesize"

// Device is a sector-addressed block device: sector in, sector out.
// SectorSize reports the device's sector size so callers can validate
// it against pagesize.SectorSize before issuing any I/O.
type Device interface {
	ReadSector(idx int64, buf []byte) error
	WriteSector(idx int64, buf []byte) error
	SectorSize() int
	// SectorCount reports the device's current size in sectors. Mem and
	// File grow on demand, so for them this is the size reached so far.
	SectorCount() int64
}

// sectorSize is the size every Device implementation in this package
// uses; it is always pagesize.SectorSize.
const sectorSize = pagesize.SectorSize
