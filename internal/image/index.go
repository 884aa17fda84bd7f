package image

import "fmt"

// Index holds the two address-keyed maps the vtable walker reads from: the
// symbol map (definitions) and the binding map (external references
// resolved at load time by dyld). Immutable once built, in the spirit of
// the teacher's ELFInfo.Symbols/Imports maps built once in LoadELF.
type Index struct {
	Symbols  map[uint64]Symbol
	Bindings map[uint64]string
}

// SymbolSource is the subset of a loader needed to build the Index: a raw
// symbol iterator and, where supported, a raw binding iterator.
type SymbolSource interface {
	RawSymbols() []Symbol
	Format() Format
}

// BindingSource is implemented by loaders that can enumerate dynamic
// bindings. Only Mach-O dyld bindings are currently supported; a loader
// for a format without this support simply doesn't implement it.
type BindingSource interface {
	RawBindings() ([]Binding, error)
}

// BuildIndex runs the one-time pass over the loader's symbol and binding
// iterators, applying the Mach-O leading-underscore fixup to every name.
//
// If multiple symbols resolve to the same virtual address, the last one
// encountered (in the loader's iteration order) wins — this matches the
// reference implementation's std::map::operator[] overwrite behavior
// (spec.md §9 open question: "the reference's last-writer-wins behavior
// may hide vtable aliases"). We preserve that behavior rather than
// "fixing" it, since no test fixture in this pack exercises the aliased
// case and guessing at different semantics would silently diverge from
// spec.md §4.2.
func BuildIndex(src SymbolSource) (*Index, error) {
	idx := &Index{
		Symbols:  make(map[uint64]Symbol),
		Bindings: make(map[uint64]string),
	}

	machO := src.Format() == FormatMachO

	for _, s := range src.RawSymbols() {
		name := s.Name
		if machO {
			name = fixupMachOName(name)
		}
		idx.Symbols[s.VirtualAddress] = Symbol{VirtualAddress: s.VirtualAddress, Name: name}
	}

	// Dynamic binding enumeration is Mach-O only per spec.md §6 ("Mach-O
	// only: Binary.dyld_info().bindings()"); an ELF source simply yields
	// no bindings rather than an error — typeinfo decoding then always
	// fails with ErrMissingTypeinfoBinding on that format, which is the
	// correct behavior for a loader this package doesn't claim to fully
	// support yet, not a build-time failure.
	if src.Format() == FormatMachO {
		bs, ok := src.(BindingSource)
		if !ok {
			return nil, fmt.Errorf("build binding index: %w", ErrUnsupportedFormat)
		}
		bindings, err := bs.RawBindings()
		if err != nil {
			return nil, fmt.Errorf("build binding index: %w", err)
		}
		for _, b := range bindings {
			idx.Bindings[b.VirtualAddress] = fixupMachOName(b.SymbolName)
		}
	}

	return idx, nil
}

// fixupMachOName strips a single leading underscore, the C-symbol-mangling
// convention Mach-O toolchains apply to every exported name.
func fixupMachOName(name string) string {
	if name != "" && name[0] == '_' {
		return name[1:]
	}
	return name
}
