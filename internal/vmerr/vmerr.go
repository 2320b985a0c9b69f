// Package vmerr collects the sentinel errors shared across the
// virtual-memory core's components, matching spec.md §7's error-kind
// taxonomy (address violation, read-only write, double-map, unpinned
// unlock). Invalid-handle sentinels live in the packages that own the
// handles (mmap.ErrUnknownHandle, vfile.ErrReservedHandle).
// Component-local failures that don't cross a package boundary (short
// reads, device errors) stay as wrapped fmt.Errorf values where they
// occur instead of living here.
package vmerr

import "errors"

var (
	// ErrAddressFault covers an address with no mapping that stack
	// growth does not cover — spec.md §7's "address violation". A write
	// to a read-only page is reported as ErrReadOnly instead.
	ErrAddressFault = errors.New("vmcore: address fault")

	// ErrReadOnly is returned when a write is attempted against a
	// page whose descriptor forbids it.
	ErrReadOnly = errors.New("vmcore: page is read-only")

	// ErrDoubleMap is returned by page_allocate when the address is
	// already mapped.
	ErrDoubleMap = errors.New("vmcore: address already mapped")

	// ErrNotPinned is returned by page_unlock for an address that was
	// never pinned by page_lock.
	ErrNotPinned = errors.New("vmcore: address is not pinned")
)
