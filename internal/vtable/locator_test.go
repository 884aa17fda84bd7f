package vtable

import (
	"errors"
	"testing"

	"github.com/zboralski/vtabledump/internal/image"
)

func TestFindTypeinfoImmediate(t *testing.T) {
	acc := newFakeAccessor()
	const va, typeinfoVA = 0x2000, 0x5000
	symbols := map[uint64]image.Symbol{
		typeinfoVA: {VirtualAddress: typeinfoVA, Name: "_ZTI4Leaf"},
	}
	acc.set(va, typeinfoVA)

	ti, vft, err := FindTypeinfo(acc, symbols, va)
	if err != nil {
		t.Fatalf("FindTypeinfo: %v", err)
	}
	if ti != typeinfoVA {
		t.Errorf("typeinfoVA = 0x%x, want 0x%x", ti, typeinfoVA)
	}
	if vft != va+8 {
		t.Errorf("vftableVA = 0x%x, want 0x%x", vft, va+8)
	}
}

func TestFindTypeinfoScansForward(t *testing.T) {
	acc := newFakeAccessor()
	const va, typeinfoVA = 0x2000, 0x5000
	symbols := map[uint64]image.Symbol{
		typeinfoVA: {VirtualAddress: typeinfoVA, Name: "_ZTI4Leaf"},
	}
	acc.set(va, 0x1111)        // offset-to-top, not a typeinfo
	acc.set(va+8, typeinfoVA)  // typeinfo pointer one slot later

	ti, vft, err := FindTypeinfo(acc, symbols, va)
	if err != nil {
		t.Fatalf("FindTypeinfo: %v", err)
	}
	if ti != typeinfoVA {
		t.Errorf("typeinfoVA = 0x%x, want 0x%x", ti, typeinfoVA)
	}
	if vft != va+16 {
		t.Errorf("vftableVA = 0x%x, want 0x%x", vft, va+16)
	}
}

func TestFindTypeinfoAlignmentAnomaly(t *testing.T) {
	acc := newFakeAccessor()
	const va = 0x2000
	symbols := map[uint64]image.Symbol{
		va: {VirtualAddress: va, Name: "_ZN4Leaf3fooEv"}, // a labeled, non-typeinfo symbol
	}
	acc.set(va, 0x1111)

	_, _, err := FindTypeinfo(acc, symbols, va)
	if !errors.Is(err, ErrVftableAlignmentAnomaly) {
		t.Errorf("err = %v, want ErrVftableAlignmentAnomaly", err)
	}
}
