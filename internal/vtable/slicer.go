package vtable

import "github.com/zboralski/vtabledump/internal/image"

// Member is one resolved vftable slot.
type Member struct {
	// Name is the method's mangled symbol name, or the bound symbol name
	// (e.g. "__cxa_pure_virtual") when the slot is an unresolved
	// pure-virtual placeholder. Never empty for a member that was emitted.
	Name string
}

// Vftable is one contiguous run of method slots. Slot index is the
// position within the slice; byte offset is slot*pointerSize.
type Vftable []Member

// dyldStubBinder is excluded from symbol-pointer resolution: it's the idle
// entry at the head of a lazy-binding stubs region, not a method.
const dyldStubBinder = "dyld_stub_binder"

// SliceVftable is the Vftable Slicer: starting at va, it consumes
// consecutive pointer-sized slots as method entries per spec.md §4.4's
// per-slot decision table, until the termination heuristic fires. The
// returned bool reports whether the caller should attempt to slice
// another vftable immediately after this one.
func SliceVftable(acc image.Accessor, symbols map[uint64]image.Symbol, bindings map[uint64]string, va uint64, ptrSize int) (Vftable, bool, error) {
	var members Vftable
	a := va

	for {
		if _, ok := symbols[a]; ok {
			// Another labeled structure begins here.
			return members, false, nil
		}

		target, err := acc.ReadPtr(a)
		if err != nil {
			return members, false, err
		}

		if sym, ok := symbols[target]; ok && sym.Name != dyldStubBinder {
			members = append(members, Member{Name: sym.Name})
			a += uint64(ptrSize)
			continue
		}

		if name, ok := bindings[a]; ok {
			members = append(members, Member{Name: name})
			a += uint64(ptrSize)
			continue
		}

		return members, true, nil
	}
}
