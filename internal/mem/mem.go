// Package mem holds the small set of primitive types shared across the
// frame table, page directory, and page table packages, mirroring the
// role of the teacher's mem package (Pa_t, Pg_t) as the common currency
// between the address-space and physical-memory layers.
package mem

import "vmcore/internal/pagesize"

// FrameNo identifies one entry in the frame table. It is a plain index
// rather than a pointer so that the page side of the frame<->page
// reference (spec.md §9) can be copied, compared, and set to the
// sentinel FrameNone without aliasing concerns.
type FrameNo int32

// FrameNone is the sentinel "no frame" value, analogous to a nil
// pointer but safe to store in a struct passed by value.
const FrameNone FrameNo = -1

// SwapSlot identifies one page-sized slot on the swap device.
type SwapSlot int64

// SwapNone is the sentinel "not swapped out" value.
const SwapNone SwapSlot = -1

// Page is pagesize.Size bytes of raw frame contents.
type Page [pagesize.Size]byte
