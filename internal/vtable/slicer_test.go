package vtable

import (
	"testing"

	"github.com/zboralski/vtabledump/internal/image"
)

func TestSliceVftableStopsAtLabeledSymbol(t *testing.T) {
	acc := newFakeAccessor()
	const va = 0x2000
	symbols := map[uint64]image.Symbol{
		0x9001: {VirtualAddress: 0x9001, Name: "_ZN4Leaf3fooEv"},
		va + 8: {VirtualAddress: va + 8, Name: "_ZTVnext"},
	}
	acc.set(va, 0x9001)

	members, cont, err := SliceVftable(acc, symbols, nil, va, 8)
	if err != nil {
		t.Fatalf("SliceVftable: %v", err)
	}
	if cont {
		t.Error("cont = true, want false when the next slot is a labeled symbol")
	}
	if len(members) != 1 || members[0].Name != "_ZN4Leaf3fooEv" {
		t.Fatalf("members = %+v", members)
	}
}

func TestSliceVftableSkipsDyldStubBinder(t *testing.T) {
	acc := newFakeAccessor()
	const va = 0x2000
	symbols := map[uint64]image.Symbol{
		0x9001: {VirtualAddress: 0x9001, Name: dyldStubBinder},
	}
	bindings := map[uint64]string{
		va: "__cxa_pure_virtual",
	}
	acc.set(va, 0x9001)

	members, cont, err := SliceVftable(acc, symbols, bindings, va, 8)
	if err != nil {
		t.Fatalf("SliceVftable: %v", err)
	}
	if !cont {
		t.Error("cont = false, want true after resolving via binding")
	}
	if len(members) != 1 || members[0].Name != "__cxa_pure_virtual" {
		t.Fatalf("members = %+v, want [__cxa_pure_virtual]", members)
	}
}

func TestSliceVftableTerminatesOnUnresolvedSlot(t *testing.T) {
	acc := newFakeAccessor()
	const va = 0x2000
	acc.set(va, 0x9001) // not in symbols or bindings

	members, cont, err := SliceVftable(acc, map[uint64]image.Symbol{}, nil, va, 8)
	if err != nil {
		t.Fatalf("SliceVftable: %v", err)
	}
	if !cont {
		t.Error("cont = false, want true: an unresolved slot is a stop-but-continue")
	}
	if len(members) != 0 {
		t.Errorf("members = %+v, want empty", members)
	}
}

func TestSliceVftableMultipleSlots(t *testing.T) {
	acc := newFakeAccessor()
	const va = 0x2000
	symbols := map[uint64]image.Symbol{
		0x9001: {VirtualAddress: 0x9001, Name: "_ZN4Leaf1aEv"},
		0x9002: {VirtualAddress: 0x9002, Name: "_ZN4Leaf1bEv"},
	}
	acc.set(va, 0x9001)
	acc.set(va+8, 0x9002)

	members, _, err := SliceVftable(acc, symbols, nil, va, 8)
	if err != nil {
		t.Fatalf("SliceVftable: %v", err)
	}
	if len(members) != 2 || members[0].Name != "_ZN4Leaf1aEv" || members[1].Name != "_ZN4Leaf1bEv" {
		t.Fatalf("members = %+v", members)
	}
}
