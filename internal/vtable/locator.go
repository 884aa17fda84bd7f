package vtable

import (
	"fmt"
	"strings"

	"github.com/zboralski/vtabledump/internal/image"
)

// zTIPrefix is the Itanium mangling prefix for a typeinfo symbol.
const zTIPrefix = "_ZTI"

// FindTypeinfo is the secondary-typeinfo locator (spec.md §4.5): starting
// at va, it scans forward one pointer at a time until the pointer value is
// itself a labeled symbol whose fixed-up name starts with _ZTI. It returns
// the typeinfo address found and the address of the first byte past that
// pointer, where methods begin.
func FindTypeinfo(acc image.Accessor, symbols map[uint64]image.Symbol, va uint64) (typeinfoVA, vftableVA uint64, err error) {
	ptrSize, err := acc.PointerSize()
	if err != nil {
		return 0, 0, err
	}

	a := va
	for {
		if _, ok := symbols[a]; ok {
			return 0, 0, fmt.Errorf("scan reached labeled symbol at 0x%x before a typeinfo: %w", a, ErrVftableAlignmentAnomaly)
		}

		target, err := acc.ReadPtr(a)
		if err != nil {
			return 0, 0, err
		}

		if sym, ok := symbols[target]; ok && strings.HasPrefix(sym.Name, zTIPrefix) {
			return target, a + uint64(ptrSize), nil
		}

		a += uint64(ptrSize)
	}
}
