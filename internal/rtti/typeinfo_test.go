package rtti

import (
	"errors"
	"testing"

	"github.com/zboralski/vtabledump/internal/image"
)

// fakeAccessor is an in-memory image.Accessor over sparse little-endian
// word maps, built up by the test fixtures below. It never parses a real
// binary; it exists to exercise the decode logic against exact byte
// layouts without needing a real Mach-O file on disk.
type fakeAccessor struct {
	ptr     int
	u32     map[uint64]uint32
	u64     map[uint64]uint64
	strings map[uint64]string
}

func newFakeAccessor(ptr int) *fakeAccessor {
	return &fakeAccessor{
		ptr:     ptr,
		u32:     make(map[uint64]uint32),
		u64:     make(map[uint64]uint64),
		strings: make(map[uint64]string),
	}
}

func (f *fakeAccessor) PointerSize() (int, error) { return f.ptr, nil }

func (f *fakeAccessor) ReadU32(va uint64) (uint32, error) {
	v, ok := f.u32[va]
	if !ok {
		return 0, image.ErrAddressNotMapped
	}
	return v, nil
}

func (f *fakeAccessor) ReadU64(va uint64) (uint64, error) {
	v, ok := f.u64[va]
	if !ok {
		return 0, image.ErrAddressNotMapped
	}
	return v, nil
}

func (f *fakeAccessor) ReadI32(va uint64) (int32, error) {
	v, err := f.ReadU32(va)
	return int32(v), err
}

func (f *fakeAccessor) ReadPtr(va uint64) (uint64, error) {
	if f.ptr == 4 {
		v, err := f.ReadU32(va)
		return uint64(v), err
	}
	return f.ReadU64(va)
}

func (f *fakeAccessor) ReadCString(va uint64) (string, error) {
	s, ok := f.strings[va]
	if !ok {
		return "", image.ErrAddressNotMapped
	}
	return s, nil
}

func (f *fakeAccessor) Format() image.Format { return image.FormatMachO }

func (f *fakeAccessor) setPtr(va, val uint64) {
	if f.ptr == 4 {
		f.u32[va] = uint32(val)
	} else {
		f.u64[va] = val
	}
}

func TestDecodeClassTypeInfo(t *testing.T) {
	acc := newFakeAccessor(8)
	const va = 0x1000
	bindings := map[uint64]string{
		va: "__ZTVN10__cxxabiv117__class_type_infoE",
	}
	acc.setPtr(va+8, 0x2000)
	acc.strings[0x2000] = "4Leaf"

	d, err := NewDecoder(acc, bindings)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	ti, err := d.Decode(va)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ti.Kind != Class {
		t.Errorf("Kind = %v, want Class", ti.Kind)
	}
	if ti.Name != "4Leaf" {
		t.Errorf("Name = %q, want %q", ti.Name, "4Leaf")
	}
	if ti.HasVMI() {
		t.Error("HasVMI() = true for a plain class")
	}
}

func TestDecodeSIChain(t *testing.T) {
	acc := newFakeAccessor(8)
	const derived, base = 0x1000, 0x3000
	bindings := map[uint64]string{
		derived: "__ZTVN10__cxxabiv120__si_class_type_infoE",
		base:    "__ZTVN10__cxxabiv117__class_type_infoE",
	}
	acc.setPtr(derived+8, 0x2000)
	acc.strings[0x2000] = "7Derived"
	acc.setPtr(derived+16, base)

	acc.setPtr(base+8, 0x4000)
	acc.strings[0x4000] = "4Base"

	d, err := NewDecoder(acc, bindings)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	ti, err := d.Decode(derived)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ti.Kind != SI {
		t.Fatalf("Kind = %v, want SI", ti.Kind)
	}
	if ti.Base == nil || ti.Base.Name != "4Base" {
		t.Fatalf("Base = %+v, want name 4Base", ti.Base)
	}
	if ti.HasVMI() {
		t.Error("HasVMI() = true for an SI chain with no VMI ancestor")
	}
}

func TestDecodeSIBaseInAnotherImage(t *testing.T) {
	acc := newFakeAccessor(8)
	const derived = 0x1000
	bindings := map[uint64]string{
		derived: "__ZTVN10__cxxabiv120__si_class_type_infoE",
	}
	acc.setPtr(derived+8, 0x2000)
	acc.strings[0x2000] = "7Derived"
	acc.setPtr(derived+16, 0x9999) // base pointer present, but unreadable/unbound

	d, err := NewDecoder(acc, bindings)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	ti, err := d.Decode(derived)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ti.Base != nil {
		t.Errorf("Base = %+v, want nil for a cross-image base", ti.Base)
	}
}

func TestDecodeVMI(t *testing.T) {
	acc := newFakeAccessor(8)
	const derived, base0, base1 = 0x1000, 0x3000, 0x5000
	bindings := map[uint64]string{
		derived: "__ZTVN10__cxxabiv121__vmi_class_type_infoE",
		base0:   "__ZTVN10__cxxabiv117__class_type_infoE",
		base1:   "__ZTVN10__cxxabiv117__class_type_infoE",
	}
	acc.setPtr(derived+8, 0x2000)
	acc.strings[0x2000] = "8Multiple"
	acc.u32[derived+16] = 0 // flags
	acc.u32[derived+24] = 2 // base_count

	acc.setPtr(derived+32, base0)
	acc.u32[derived+40] = int32ToPacked(0x10, 0)
	acc.setPtr(derived+48, base1)
	acc.u32[derived+56] = int32ToPacked(0x10, 8)

	acc.setPtr(base0+8, 0x4000)
	acc.strings[0x4000] = "4Foo0"
	acc.setPtr(base1+8, 0x6000)
	acc.strings[0x6000] = "4Foo1"

	d, err := NewDecoder(acc, bindings)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	ti, err := d.Decode(derived)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ti.Kind != VMI {
		t.Fatalf("Kind = %v, want VMI", ti.Kind)
	}
	if ti.BaseCount != 2 || len(ti.Bases) != 2 {
		t.Fatalf("got %d bases, want 2", len(ti.Bases))
	}
	if ti.Bases[0].Base == nil || ti.Bases[0].Base.Name != "4Foo0" {
		t.Errorf("Bases[0] = %+v", ti.Bases[0])
	}
	if ti.Bases[1].Offset != 8 {
		t.Errorf("Bases[1].Offset = %d, want 8", ti.Bases[1].Offset)
	}
	if !ti.HasVMI() {
		t.Error("HasVMI() = false for a VMI node")
	}
}

func int32ToPacked(flags uint8, offset int32) uint32 {
	return uint32(offset)<<8 | uint32(flags)
}

func TestDecodeUnboundTypeinfo(t *testing.T) {
	acc := newFakeAccessor(8)
	d, err := NewDecoder(acc, map[uint64]string{})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	_, err = d.Decode(0x1000)
	if !errors.Is(err, ErrMissingTypeinfoBinding) {
		t.Errorf("err = %v, want ErrMissingTypeinfoBinding", err)
	}
}

func TestDecodeUnknownBoundClass(t *testing.T) {
	acc := newFakeAccessor(8)
	d, err := NewDecoder(acc, map[uint64]string{0x1000: "__ZTVN10__cxxabiv1_unknownE"})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	_, err = d.Decode(0x1000)
	if !errors.Is(err, ErrUnknownTypeinfoClass) {
		t.Errorf("err = %v, want ErrUnknownTypeinfoClass", err)
	}
}

func TestHasVMINilReceiver(t *testing.T) {
	var ti *Typeinfo
	if ti.HasVMI() {
		t.Error("HasVMI() on nil receiver should be false")
	}
}
