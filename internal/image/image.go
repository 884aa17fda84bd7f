// Package image provides the Image Accessor: a thin, format-agnostic view
// over a parsed binary that the RTTI/vtable walker reads from. It borrows
// the loaded binary for its lifetime the way the teacher's emulator
// package borrows a debug/elf.File for the duration of LoadELF.
package image

import (
	"errors"
	"fmt"
)

// Format identifies the executable container format of a loaded image.
type Format int

const (
	FormatUnknown Format = iota
	FormatMachO
	FormatELF
)

func (f Format) String() string {
	switch f {
	case FormatMachO:
		return "Mach-O"
	case FormatELF:
		return "ELF"
	default:
		return "unknown"
	}
}

// Sentinel errors. Wrapped with calling context via fmt.Errorf("...: %w", ...)
// at each frame, in the idiom of the teacher's elf.go.
var (
	// ErrUnsupportedPointerWidth is returned when the image's bit class is
	// neither 32 nor 64 bit.
	ErrUnsupportedPointerWidth = errors.New("unsupported pointer width")

	// ErrUnsupportedFormat is returned when an operation that requires
	// format-specific support (e.g. binding enumeration) is attempted on a
	// format that doesn't implement it yet.
	ErrUnsupportedFormat = errors.New("unsupported binary format")

	// ErrAddressNotMapped is returned when a read or a containing-section
	// lookup finds no backing bytes for a virtual address.
	ErrAddressNotMapped = errors.New("address not mapped")
)

// Symbol is a symbol table entry, keyed by virtual address in the Index.
// Names are stored post Mach-O leading-underscore fixup.
type Symbol struct {
	VirtualAddress uint64
	Name           string
}

// Binding is a dynamic-linker relocation entry: a virtual address in the
// image bound to an external symbol name (e.g. a typeinfo class symbol
// living in libc++abi.dylib, or __cxa_pure_virtual).
type Binding struct {
	VirtualAddress uint64
	SymbolName     string
}

// Accessor is the external interface the core consumes from a loaded
// binary: pointer width, byte/C-string reads by virtual address, and the
// format tag. This mirrors spec.md §6's abstract loader interface, cut
// down to exactly what the walker touches.
type Accessor interface {
	// PointerSize returns 4 or 8, derived from the image's bit class.
	PointerSize() (int, error)

	// ReadU32 reads a little-endian uint32 at va.
	ReadU32(va uint64) (uint32, error)

	// ReadU64 reads a little-endian uint64 at va.
	ReadU64(va uint64) (uint64, error)

	// ReadI32 reads a little-endian int32 at va.
	ReadI32(va uint64) (int32, error)

	// ReadPtr reads a pointer-sized little-endian value at va, dispatching
	// on PointerSize.
	ReadPtr(va uint64) (uint64, error)

	// ReadCString reads bytes from va to the first NUL, within the section
	// that contains va.
	ReadCString(va uint64) (string, error)

	// Format returns the container format of the loaded image.
	Format() Format
}

// readPtr is the shared ReadPtr dispatch used by every Accessor
// implementation, so the width-dispatch logic lives in one place.
func readPtr(a Accessor, va uint64) (uint64, error) {
	size, err := a.PointerSize()
	if err != nil {
		return 0, err
	}
	switch size {
	case 4:
		v, err := a.ReadU32(va)
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 8:
		return a.ReadU64(va)
	default:
		return 0, fmt.Errorf("read pointer at 0x%x: %w", va, ErrUnsupportedPointerWidth)
	}
}
