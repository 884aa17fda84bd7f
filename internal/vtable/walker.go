package vtable

import (
	"fmt"

	"github.com/zboralski/vtabledump/internal/image"
	"github.com/zboralski/vtabledump/internal/rtti"
)

// Record is one extracted vtable: a symbol address, its typeinfo graph,
// and the ordered sequence of vftables that symbol owns. The first
// vftable is always the primary; subsequent vftables exist only when the
// typeinfo graph contains a VMI node.
type Record struct {
	Addr        uint64
	Name        string
	Typeinfo    *rtti.Typeinfo
	Vftables    []Vftable
	PointerSize int
}

// Walk is the Vtable Walker (spec.md §4.6): given a _ZTV* symbol address,
// it locates the typeinfo pointer, decodes it, slices the primary
// vftable, and — while the typeinfo graph contains a VMI node — continues
// slicing secondary vftables until the continuation heuristic stops.
func Walk(acc image.Accessor, idx *image.Index, decoder *rtti.Decoder, va uint64) (*Record, error) {
	ptrSize, err := acc.PointerSize()
	if err != nil {
		return nil, wrapAt(va, err)
	}
	p := uint64(ptrSize)

	typeinfoVA, firstVftableVA, err := FindTypeinfo(acc, idx.Symbols, va+p)
	if err != nil {
		return nil, wrapAt(va, fmt.Errorf("locate typeinfo: %w", err))
	}

	ti, err := decoder.Decode(typeinfoVA)
	if err != nil {
		return nil, wrapAt(typeinfoVA, fmt.Errorf("decode typeinfo: %w", err))
	}

	primary, cont, err := SliceVftable(acc, idx.Symbols, idx.Bindings, firstVftableVA, ptrSize)
	if err != nil {
		return nil, wrapAt(firstVftableVA, fmt.Errorf("slice primary vftable: %w", err))
	}

	vftables := []Vftable{primary}
	cursor := firstVftableVA + uint64(len(primary))*p

	for cont && ti.HasVMI() {
		_, nextVftableVA, err := FindTypeinfo(acc, idx.Symbols, cursor)
		if err != nil {
			// Secondary locator/slicer failures are caught locally and
			// terminate the secondary loop gracefully (spec.md §7).
			break
		}

		next, nextCont, err := SliceVftable(acc, idx.Symbols, idx.Bindings, nextVftableVA, ptrSize)
		if err != nil {
			break
		}

		vftables = append(vftables, next)
		cursor = nextVftableVA + uint64(len(next))*p
		cont = nextCont
	}

	return &Record{
		Addr:        va,
		Typeinfo:    ti,
		Vftables:    vftables,
		PointerSize: ptrSize,
	}, nil
}
