package vtable

import (
	"github.com/zboralski/vtabledump/internal/image"
)

// fakeAccessor is a minimal in-memory image.Accessor for exercising the
// locator/slicer/walker against hand-built memory layouts, without needing
// a real Mach-O file.
type fakeAccessor struct {
	ptr     int
	words   map[uint64]uint64
	strings map[uint64]string
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{ptr: 8, words: make(map[uint64]uint64), strings: make(map[uint64]string)}
}

func (f *fakeAccessor) PointerSize() (int, error) { return f.ptr, nil }

// ReadU32 and ReadU64 return 0 for an address that was never explicitly
// set, the same as reading zero-initialized bytes from a real mapped
// section: the slicer/locator tell "unresolved" from "unreadable" by
// content, not by a read failure.
func (f *fakeAccessor) ReadU32(va uint64) (uint32, error) {
	return uint32(f.words[va]), nil
}

func (f *fakeAccessor) ReadU64(va uint64) (uint64, error) {
	return f.words[va], nil
}

func (f *fakeAccessor) ReadI32(va uint64) (int32, error) {
	v, err := f.ReadU32(va)
	return int32(v), err
}

func (f *fakeAccessor) ReadPtr(va uint64) (uint64, error) { return f.ReadU64(va) }

func (f *fakeAccessor) ReadCString(va uint64) (string, error) {
	s, ok := f.strings[va]
	if !ok {
		return "", image.ErrAddressNotMapped
	}
	return s, nil
}

func (f *fakeAccessor) Format() image.Format { return image.FormatMachO }

func (f *fakeAccessor) set(va, val uint64) { f.words[va] = val }
