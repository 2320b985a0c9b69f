// Package vfile is the filesystem collaborator spec.md §6 places out of
// scope: "open, read-at, write-at, length, reopen, close", all assumed
// to run under a global filesystem lock owned by the syscall layer the
// core does not implement. File is the seam; OSFile backs it with a
// real os.File for the demo binary and integration tests.
package vfile

import (
	"fmt"
	"os"
)

// File is an open backing file with an independent read/write cursor,
// as produced by Reopen — each memory mapping needs its own cursor so
// that concurrent mappings of the same inode do not interfere.
type File interface {
	ReadAt(buf []byte, off int64) (int, error)
	WriteAt(buf []byte, off int64) (int, error)
	Length() (int64, error)
	Reopen() (File, error)
	Close() error
}

// OSFile backs File with a real *os.File.
type OSFile struct {
	f    *os.File
	path string
}

var _ File = (*OSFile)(nil)

// reservedNames stand in for the descriptor numbers the original pintos
// syscall.c refuses to mmap (stdin/stdout); Open rejects exactly these
// paths as the supplemented behaviour noted in SPEC_FULL.md.
var reservedNames = map[string]bool{"/dev/stdin": true, "/dev/stdout": true}

// ErrReservedHandle is returned by Open for a reserved path.
var ErrReservedHandle = fmt.Errorf("vfile: reserved descriptor may not be mapped")

// Open opens path for reading and writing.
func Open(path string) (*OSFile, error) {
	if reservedNames[path] {
		return nil, ErrReservedHandle
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("vfile: open %s: %w", path, err)
	}
	return &OSFile{f: f, path: path}, nil
}

func (o *OSFile) ReadAt(buf []byte, off int64) (int, error) {
	n, err := o.f.ReadAt(buf, off)
	if err != nil && n == 0 {
		return n, err
	}
	// io.ReaderAt returning io.EOF with a short read is the expected
	// shape of a read hitting the end of the file; the page-fault
	// service's do_page_in zero-fills the remainder and only logs if
	// the short count disagrees with the requested file_bytes.
	return n, nil
}

func (o *OSFile) WriteAt(buf []byte, off int64) (int, error) {
	return o.f.WriteAt(buf, off)
}

func (o *OSFile) Length() (int64, error) {
	st, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// Reopen yields an independent *OSFile over the same inode, per
// spec.md §4.6's mmap requiring "an independent position/offset".
func (o *OSFile) Reopen() (File, error) {
	return Open(o.path)
}

func (o *OSFile) Close() error {
	return o.f.Close()
}
