// Package rtti decodes Itanium C++ ABI run-time type information records:
// the recursive __class_type_info / __si_class_type_info /
// __vmi_class_type_info tree rooted at a _ZTI* address. This is the
// Typeinfo Decoder component of the vtable walker.
package rtti

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zboralski/vtabledump/internal/image"
)

// Kind tags which of the three Itanium RTTI layouts a Typeinfo node holds.
type Kind int

const (
	// Class corresponds to __class_type_info: no base classes.
	Class Kind = iota
	// SI corresponds to __si_class_type_info: one non-virtual public base.
	SI
	// VMI corresponds to __vmi_class_type_info: virtual or multiple
	// inheritance.
	VMI
)

func (k Kind) String() string {
	switch k {
	case Class:
		return "CLASS_TYPE_INFO"
	case SI:
		return "SI_CLASS_TYPE_INFO"
	case VMI:
		return "VMI_CLASS_TYPE_INFO"
	default:
		return "UNKNOWN_TYPE_INFO"
	}
}

// VMIBase is one base-class entry of a VMI typeinfo node.
type VMIBase struct {
	// Base is nil when the base typeinfo lives in another image — a
	// cross-image reference, not a failure.
	Base   *Typeinfo
	Flags  uint8
	Offset int64
}

// Typeinfo is one node of the (tree-shaped, parent-owns-children) RTTI
// graph. Only the fields relevant to Kind are populated; the others are
// left at zero value.
type Typeinfo struct {
	Kind Kind

	// Name is the mangled class name with no _ZTS prefix synthesized
	// (callers prepend _Z if desired, as the text report does). May be
	// empty if the RTTI string pointer was null.
	Name string

	// Base is the SI variant's single base. Nil if Kind != SI or if the
	// base lives in another image.
	Base *Typeinfo

	// VMI fields, populated only when Kind == VMI.
	Flags     uint32
	BaseCount uint32
	Bases     []VMIBase
}

var (
	// ErrMissingTypeinfoBinding is returned when a typeinfo address has no
	// entry in the binding map: there's no way to know which ABI class of
	// record lives there.
	ErrMissingTypeinfoBinding = errors.New("missing typeinfo binding")

	// ErrUnknownTypeinfoClass is returned when a bound symbol name at a
	// typeinfo address doesn't match any of the three recognized Itanium
	// ABI typeinfo classes.
	ErrUnknownTypeinfoClass = errors.New("unknown typeinfo class")
)

// Decoder parses typeinfo records out of an image. It holds no state of
// its own beyond the accessor and the binding map it was built with.
type Decoder struct {
	acc      image.Accessor
	bindings map[uint64]string
	ptr      int

	// Full64BitOffsets switches the VMI offset_flags sub-field to an 8-byte
	// read instead of the reference's unconditional 4-byte read, per
	// spec.md §4.3's "known limitation" note. Off by default; no test in
	// this package sets it and it has not been checked against real
	// 64-bit images, per spec.md §9's explicit caution against silently
	// "correcting" this.
	Full64BitOffsets bool
}

// NewDecoder builds a Decoder over acc using bindings (the Index Builder's
// binding map, keyed by fixed-up virtual address).
func NewDecoder(acc image.Accessor, bindings map[uint64]string) (*Decoder, error) {
	ptr, err := acc.PointerSize()
	if err != nil {
		return nil, fmt.Errorf("new typeinfo decoder: %w", err)
	}
	return &Decoder{acc: acc, bindings: bindings, ptr: ptr}, nil
}

// Decode parses exactly one typeinfo record rooted at va, recursing into
// base typeinfos as the variant requires.
func (d *Decoder) Decode(va uint64) (*Typeinfo, error) {
	bound, ok := d.bindings[va]
	if !ok {
		return nil, fmt.Errorf("typeinfo at 0x%x: %w", va, ErrMissingTypeinfoBinding)
	}

	var kind Kind
	switch {
	case strings.HasSuffix(bound, "__class_type_infoE"):
		kind = Class
	case strings.HasSuffix(bound, "__si_class_type_infoE"):
		kind = SI
	case strings.HasSuffix(bound, "__vmi_class_type_infoE"):
		kind = VMI
	default:
		return nil, fmt.Errorf("typeinfo at 0x%x bound to %q: %w", va, bound, ErrUnknownTypeinfoClass)
	}

	p := uint64(d.ptr)

	namePtr, err := d.acc.ReadPtr(va + p)
	if err != nil {
		return nil, fmt.Errorf("typeinfo name pointer at 0x%x: %w", va+p, err)
	}
	name := ""
	if namePtr != 0 {
		name, err = d.acc.ReadCString(namePtr)
		if err != nil {
			return nil, fmt.Errorf("typeinfo name string at 0x%x: %w", namePtr, err)
		}
	}

	ti := &Typeinfo{Kind: kind, Name: name}

	switch kind {
	case SI:
		baseVA, err := d.acc.ReadPtr(va + 2*p)
		if err != nil {
			return nil, fmt.Errorf("SI base pointer at 0x%x: %w", va+2*p, err)
		}
		if baseVA != 0 {
			if base, err := d.Decode(baseVA); err == nil {
				ti.Base = base
			}
			// A failed base recursion (e.g. the base lives in another
			// image) is swallowed here: best-effort descent per spec.md
			// §4.3 step 3 and §7's propagation policy.
		}

	case VMI:
		flags, err := d.acc.ReadU32(va + 2*p)
		if err != nil {
			return nil, fmt.Errorf("VMI flags at 0x%x: %w", va+2*p, err)
		}
		baseCount, err := d.acc.ReadU32(va + 3*p)
		if err != nil {
			return nil, fmt.Errorf("VMI base_count at 0x%x: %w", va+3*p, err)
		}
		ti.Flags = flags
		ti.BaseCount = baseCount
		ti.Bases = make([]VMIBase, 0, baseCount)

		for i := uint32(0); i < baseCount; i++ {
			var vb VMIBase

			basePtrAddr := va + (4+2*uint64(i))*p
			baseVA, err := d.acc.ReadPtr(basePtrAddr)
			if err == nil && baseVA != 0 {
				if base, err := d.Decode(baseVA); err == nil {
					vb.Base = base
				}
				// Errors here (unreadable pointer or a cross-image base)
				// are swallowed the same way: absent base, not a failure
				// of the parent VMI record.
			}

			offsetAddr := va + (5+2*uint64(i))*p
			if d.Full64BitOffsets {
				packed, err := d.acc.ReadU64(offsetAddr)
				if err != nil {
					return nil, fmt.Errorf("VMI offset_flags at 0x%x: %w", offsetAddr, err)
				}
				vb.Flags = uint8(packed & 0xFF)
				vb.Offset = int64(packed) >> 8
			} else {
				packed, err := d.acc.ReadI32(offsetAddr)
				if err != nil {
					return nil, fmt.Errorf("VMI offset_flags at 0x%x: %w", offsetAddr, err)
				}
				vb.Flags = uint8(uint32(packed) & 0xFF)
				vb.Offset = int64(packed >> 8)
			}

			ti.Bases = append(ti.Bases, vb)
		}
	}

	return ti, nil
}

// HasVMI reports whether t or any SI ancestor's subtree contains a VMI
// node — the gate spec.md §4.6 step 4 uses to decide whether a vtable
// symbol can have secondary vftables at all.
func (t *Typeinfo) HasVMI() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case VMI:
		return true
	case SI:
		return t.Base.HasVMI()
	default:
		return false
	}
}
