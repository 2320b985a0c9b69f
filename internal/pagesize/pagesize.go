// Package pagesize holds the page- and sector-size constants shared by
// every layer of the virtual-memory core, and the rounding helpers built
// on top of them.
package pagesize

// Size is the size of a single page in bytes. Real teaching kernels fix
// this at build time; we do the same rather than threading it through
// every call site.
const Size = 4096

// Bits is the base-2 exponent of Size.
const Bits = 12

// SectorSize is the size of a single disk sector in bytes.
const SectorSize = 512

// SectorsPerPage is the number of disk sectors backing one page-sized
// swap slot. SectorSize must divide Size evenly or the subsystem
// cannot be constructed; config.Load checks this at startup.
const SectorsPerPage = Size / SectorSize

// Int is satisfied by every built-in integer type, mirroring the
// teacher's util.Int constraint.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// RoundDown aligns v down to the nearest multiple of b.
func RoundDown[T Int](v, b T) T {
	return v - (v % b)
}

// RoundUp aligns v up to the nearest multiple of b.
func RoundUp[T Int](v, b T) T {
	return RoundDown(v+b-1, b)
}

// pageInt is Int without the 8-bit types, which cannot hold Size.
type pageInt interface {
	~int | ~int16 | ~int32 | ~int64 |
		~uint | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// PageRoundDown aligns a virtual or file address down to a page boundary.
func PageRoundDown[T pageInt](v T) T {
	return RoundDown(v, T(Size))
}

// PageRoundUp aligns a virtual or file address up to a page boundary.
func PageRoundUp[T pageInt](v T) T {
	return RoundUp(v, T(Size))
}
