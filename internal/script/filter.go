// Package script evaluates the CLI's --filter expression against each
// extracted vtable record using goja, a pure-Go ECMAScript runtime. The
// CLI driver and its flag handling are out of scope for the extraction
// core (spec.md §1's Non-goals), but this is exactly that kind of
// driver-level convenience: ad-hoc post-filtering, not a new extraction
// path.
package script

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/zboralski/vtabledump/internal/vtable"
)

// Filter compiles a boolean JS expression once and evaluates it per
// record. The expression sees two bindings: name (string, the vtable's
// class symbol) and numVftables (number).
type Filter struct {
	program *goja.Program
	vm      *goja.Runtime
}

// NewFilter compiles expr. It does not reject an empty expr; the CLI
// skips constructing a Filter when --filter wasn't given.
func NewFilter(expr string) (*Filter, error) {
	program, err := goja.Compile("filter", expr, false)
	if err != nil {
		return nil, fmt.Errorf("compile filter expression: %w", err)
	}
	return &Filter{program: program, vm: goja.New()}, nil
}

// Match runs the compiled expression against rec and reports whether it
// evaluated truthy.
func (f *Filter) Match(rec *vtable.Record) (bool, error) {
	if err := f.vm.Set("name", rec.Name); err != nil {
		return false, err
	}
	if err := f.vm.Set("numVftables", len(rec.Vftables)); err != nil {
		return false, err
	}

	v, err := f.vm.RunProgram(f.program)
	if err != nil {
		return false, fmt.Errorf("evaluate filter expression: %w", err)
	}
	return v.ToBoolean(), nil
}

// Apply filters result.Records in place order, keeping only records that
// match f.
func Apply(f *Filter, records []*vtable.Record) ([]*vtable.Record, error) {
	var out []*vtable.Record
	for _, rec := range records {
		ok, err := f.Match(rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
