package vtable

import (
	"sort"
	"strings"

	"github.com/zboralski/vtabledump/internal/image"
	"github.com/zboralski/vtabledump/internal/rtti"
)

// zTVPrefix is the Itanium mangling prefix for a vtable symbol.
const zTVPrefix = "_ZTV"

// SkipHandler is invoked for a per-vtable failure in best-effort mode,
// before the aggregator moves on to the next symbol.
type SkipHandler func(addr uint64, name string, err error)

// Result is the Result Aggregator's output: every extracted vtable, in
// ascending address order, plus a by-class index for convenience lookups
// (spec_full.md §11 — not part of the extraction algorithm itself, just a
// query layer over its output, in the spirit of the teacher's
// VTableMap.ByClass).
type Result struct {
	Records []*Record

	byClass map[string]*Record
}

// ByClass looks up a record by its typeinfo's class name.
func (r *Result) ByClass(name string) (*Record, bool) {
	rec, ok := r.byClass[name]
	return rec, ok
}

// Extract walks every _ZTV* symbol in idx in ascending address order and
// returns the aggregated results (spec.md §4.7). When bestEffort is
// false, the first per-vtable failure aborts the whole extraction,
// matching the reference implementation. When true, onSkip (if non-nil)
// is called for each failing symbol and extraction continues.
func Extract(acc image.Accessor, idx *image.Index, bestEffort bool, onSkip SkipHandler) (*Result, error) {
	decoder, err := rtti.NewDecoder(acc, idx.Bindings)
	if err != nil {
		return nil, err
	}

	addrs := make([]uint64, 0, len(idx.Symbols))
	for addr := range idx.Symbols {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	result := &Result{byClass: make(map[string]*Record)}

	for _, addr := range addrs {
		sym := idx.Symbols[addr]
		if !strings.HasPrefix(sym.Name, zTVPrefix) {
			continue
		}

		rec, err := Walk(acc, idx, decoder, addr)
		if err == nil {
			rec.Name = sym.Name
		}
		if err != nil {
			if bestEffort {
				if onSkip != nil {
					onSkip(addr, sym.Name, err)
				}
				continue
			}
			return nil, err
		}

		result.Records = append(result.Records, rec)
		if rec.Typeinfo != nil && rec.Typeinfo.Name != "" {
			if _, exists := result.byClass[rec.Typeinfo.Name]; !exists {
				result.byClass[rec.Typeinfo.Name] = rec
			}
		}
	}

	return result, nil
}
