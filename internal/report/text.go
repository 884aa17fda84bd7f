package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/zboralski/vtabledump/internal/rtti"
	"github.com/zboralski/vtabledump/internal/vtable"
)

// WriteText renders result in the reference textual format from spec.md §6:
//
//	_Z<mangled_class_name>
//	    typeinfo:
//	        type: <KIND>
//	        name: _Z<mangled>
//	        [recursive base(s), indented by one tab per level]
//	    number of vftables: <N>
//	----- VFTABLE
//	    <member_name> is at offset <hex> (member# <decimal>)
//	    ...
//	----- NEXT VTABLE
func WriteText(w io.Writer, result *vtable.Result) error {
	for _, rec := range result.Records {
		if err := writeRecord(w, rec); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w io.Writer, rec *vtable.Record) error {
	if _, err := fmt.Fprintf(w, "%s\n", styleClass(rec.Name)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "    %s\n", styleDetail("typeinfo:")); err != nil {
		return err
	}
	if err := writeTypeinfo(w, rec.Typeinfo, 2); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "    %s %s\n", styleDetail("number of vftables:"), styleAddress(fmt.Sprintf("%d", len(rec.Vftables)))); err != nil {
		return err
	}

	for _, vft := range rec.Vftables {
		if _, err := fmt.Fprintf(w, "%s\n", styleBorder("----- VFTABLE")); err != nil {
			return err
		}
		for slot, member := range vft {
			offset := slot * rec.PointerSize
			line := fmt.Sprintf("    %s is at offset %s (member# %s)",
				styleMember(member.Name),
				styleAddress(fmt.Sprintf("0x%x", offset)),
				fmt.Sprintf("%d", slot))
			if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
				return err
			}
		}
	}
	if _, err := fmt.Fprintf(w, "%s\n", styleBorder("----- NEXT VTABLE")); err != nil {
		return err
	}
	return nil
}

func writeTypeinfo(w io.Writer, ti *rtti.Typeinfo, tabs int) error {
	if ti == nil {
		return nil
	}
	indent := strings.Repeat("\t", tabs)

	if _, err := fmt.Fprintf(w, "%s%s %s\n", indent, styleDetail("type:"), styleKind(ti.Kind.String())); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%s %s\n", indent, styleDetail("name:"), styleClass("_Z"+ti.Name)); err != nil {
		return err
	}

	switch ti.Kind {
	case rtti.SI:
		if ti.Base != nil {
			if _, err := fmt.Fprintf(w, "%s%s\n", indent, styleDetail("base:")); err != nil {
				return err
			}
			if err := writeTypeinfo(w, ti.Base, tabs+1); err != nil {
				return err
			}
		}
	case rtti.VMI:
		for i, base := range ti.Bases {
			if _, err := fmt.Fprintf(w, "%s%s flags=0x%x offset=%d\n", indent, styleDetail(fmt.Sprintf("base[%d]:", i)), base.Flags, base.Offset); err != nil {
				return err
			}
			if base.Base != nil {
				if err := writeTypeinfo(w, base.Base, tabs+1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
