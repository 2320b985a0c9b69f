package blockdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a block device backed by a real file, addressed with
// unix.Pread/Pwrite rather than os.File.ReadAt/WriteAt so that each
// sector access is a single positioned syscall with no internal
// locking beyond what the kernel file offset would otherwise require —
// the Go analogue of the sector-addressed AHCI driver the spec treats
// as an external collaborator (spec.md §6, "offers sector read/write").
type File struct {
	f *os.File
}

var _ Device = (*File)(nil)

// OpenFile opens (creating if necessary) path as a swap/scratch device.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("blockdev: open %s: %w", path, err)
	}
	return &File{f: f}, nil
}

func (d *File) SectorSize() int { return sectorSize }

func (d *File) SectorCount() int64 {
	st, err := d.f.Stat()
	if err != nil {
		return 0
	}
	return st.Size() / sectorSize
}

// ReadSector implements Device.
func (d *File) ReadSector(idx int64, buf []byte) error {
	if len(buf) != sectorSize {
		return fmt.Errorf("blockdev: read buffer must be %d bytes, got %d", sectorSize, len(buf))
	}
	if idx < 0 {
		return fmt.Errorf("blockdev: negative sector index %d", idx)
	}
	n, err := unix.Pread(int(d.f.Fd()), buf, idx*sectorSize)
	if err != nil {
		return fmt.Errorf("blockdev: pread sector %d: %w", idx, err)
	}
	// A short read past end-of-file reads as zero, matching a freshly
	// grown sparse swap file.
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WriteSector implements Device.
func (d *File) WriteSector(idx int64, buf []byte) error {
	if len(buf) != sectorSize {
		return fmt.Errorf("blockdev: write buffer must be %d bytes, got %d", sectorSize, len(buf))
	}
	if idx < 0 {
		return fmt.Errorf("blockdev: negative sector index %d", idx)
	}
	if _, err := unix.Pwrite(int(d.f.Fd()), buf, idx*sectorSize); err != nil {
		return fmt.Errorf("blockdev: pwrite sector %d: %w", idx, err)
	}
	return nil
}

// Close releases the underlying file descriptor.
func (d *File) Close() error {
	return d.f.Close()
}
