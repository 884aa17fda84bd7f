package image

import (
	"debug/macho"
	"encoding/binary"
	"fmt"
	"os"
)

const (
	lcDyldInfo     = 0x22
	lcDyldInfoOnly = 0x80000022
)

// MachOLoader is the Mach-O Image Accessor: debug/macho for header,
// segment, section and symbol-table parsing, plus a hand-rolled bind-opcode
// decoder (bindopcodes.go) for the dynamic bindings debug/macho doesn't
// expose. It borrows the raw file bytes for its lifetime, in the same
// spirit as the teacher's ELFInfo borrowing a *elf.File's backing reader.
type MachOLoader struct {
	path string
	raw  []byte
	f    *macho.File
	ptr  int
}

// Open parses the Mach-O file at path.
func Open(path string) (*MachOLoader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	f, err := macho.NewFile(newReaderAt(raw))
	if err != nil {
		return nil, fmt.Errorf("parse Mach-O %s: %w", path, err)
	}

	ptr := 4
	switch f.Magic {
	case macho.Magic64:
		ptr = 8
	case macho.Magic32:
		ptr = 4
	default:
		return nil, fmt.Errorf("parse Mach-O %s: %w", path, ErrUnsupportedPointerWidth)
	}

	return &MachOLoader{path: path, raw: raw, f: f, ptr: ptr}, nil
}

// Close releases the underlying macho.File.
func (l *MachOLoader) Close() error {
	return l.f.Close()
}

// PointerSize implements Accessor.
func (l *MachOLoader) PointerSize() (int, error) {
	if l.ptr != 4 && l.ptr != 8 {
		return 0, ErrUnsupportedPointerWidth
	}
	return l.ptr, nil
}

// Format implements Accessor.
func (l *MachOLoader) Format() Format { return FormatMachO }

// sectionContaining returns the section whose [Addr, Addr+Size) range
// covers va, along with its raw content.
func (l *MachOLoader) sectionContaining(va uint64) (*macho.Section, []byte, error) {
	for _, sec := range l.f.Sections {
		if sec.Addr == 0 || sec.Size == 0 {
			continue
		}
		if va >= sec.Addr && va < sec.Addr+sec.Size {
			data, err := sec.Data()
			if err != nil {
				return nil, nil, fmt.Errorf("read section %s at 0x%x: %w", sec.Name, va, ErrAddressNotMapped)
			}
			return sec, data, nil
		}
	}
	return nil, nil, fmt.Errorf("0x%x: %w", va, ErrAddressNotMapped)
}

func (l *MachOLoader) readBytes(va uint64, n int) ([]byte, error) {
	sec, data, err := l.sectionContaining(va)
	if err != nil {
		return nil, err
	}
	off := va - sec.Addr
	if off+uint64(n) > uint64(len(data)) {
		return nil, fmt.Errorf("0x%x: %w", va, ErrAddressNotMapped)
	}
	return data[off : off+uint64(n)], nil
}

// ReadU32 implements Accessor.
func (l *MachOLoader) ReadU32(va uint64) (uint32, error) {
	b, err := l.readBytes(va, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 implements Accessor.
func (l *MachOLoader) ReadU64(va uint64) (uint64, error) {
	b, err := l.readBytes(va, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadI32 implements Accessor.
func (l *MachOLoader) ReadI32(va uint64) (int32, error) {
	v, err := l.ReadU32(va)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// ReadPtr implements Accessor.
func (l *MachOLoader) ReadPtr(va uint64) (uint64, error) {
	return readPtr(l, va)
}

// ReadCString implements Accessor.
func (l *MachOLoader) ReadCString(va uint64) (string, error) {
	sec, data, err := l.sectionContaining(va)
	if err != nil {
		return "", err
	}
	off := va - sec.Addr
	if off > uint64(len(data)) {
		return "", fmt.Errorf("0x%x: %w", va, ErrAddressNotMapped)
	}
	end := off
	for end < uint64(len(data)) && data[end] != 0 {
		end++
	}
	return string(data[off:end]), nil
}

// RawSymbols returns every symbol table entry as the loader sees it,
// before the Mach-O leading-underscore fixup the Index Builder applies.
func (l *MachOLoader) RawSymbols() []Symbol {
	if l.f.Symtab == nil {
		return nil
	}
	out := make([]Symbol, 0, len(l.f.Symtab.Syms))
	for _, s := range l.f.Symtab.Syms {
		if s.Value == 0 || s.Name == "" {
			continue
		}
		// Mach-O nlist n_value is already a virtual address for defined
		// symbols; offset_to_virtual_address is the identity here.
		out = append(out, Symbol{VirtualAddress: s.Value, Name: s.Name})
	}
	return out
}

// RawBindings decodes LC_DYLD_INFO(_ONLY)'s bind, lazy-bind and weak-bind
// streams into address -> external-symbol-name entries.
func (l *MachOLoader) RawBindings() ([]Binding, error) {
	dyldInfo, ok := l.findDyldInfo()
	if !ok {
		// No LC_DYLD_INFO at all (e.g. statically linked, or a modern
		// chained-fixups-only image): no bindings, not an error.
		return nil, nil
	}

	segs := l.orderedSegments()

	var out []Binding
	if dyldInfo.bindOff > 0 && dyldInfo.bindSize > 0 {
		out = append(out, decodeBindOpcodes(l.sliceAt(dyldInfo.bindOff, dyldInfo.bindSize), segs)...)
	}
	if dyldInfo.lazyBindOff > 0 && dyldInfo.lazyBindSize > 0 {
		out = append(out, decodeBindOpcodes(l.sliceAt(dyldInfo.lazyBindOff, dyldInfo.lazyBindSize), segs)...)
	}
	if dyldInfo.weakBindOff > 0 && dyldInfo.weakBindSize > 0 {
		out = append(out, decodeBindOpcodes(l.sliceAt(dyldInfo.weakBindOff, dyldInfo.weakBindSize), segs)...)
	}
	return out, nil
}

func (l *MachOLoader) sliceAt(off, size uint32) []byte {
	start, end := int(off), int(off)+int(size)
	if start < 0 || end > len(l.raw) || start > end {
		return nil
	}
	return l.raw[start:end]
}

type dyldInfoCmd struct {
	bindOff, bindSize         uint32
	lazyBindOff, lazyBindSize uint32
	weakBindOff, weakBindSize uint32
}

// findDyldInfo scans the raw load commands for LC_DYLD_INFO(_ONLY). debug/macho
// exposes unrecognized commands as macho.LoadBytes, uninterpreted.
func (l *MachOLoader) findDyldInfo() (dyldInfoCmd, bool) {
	for _, ld := range l.f.Loads {
		raw := ld.Raw()
		if len(raw) < 8 {
			continue
		}
		cmd := l.f.ByteOrder.Uint32(raw[0:4])
		if cmd != lcDyldInfo && cmd != lcDyldInfoOnly {
			continue
		}
		if len(raw) < 48 {
			continue
		}
		bo := l.f.ByteOrder
		return dyldInfoCmd{
			bindOff:      bo.Uint32(raw[16:20]),
			bindSize:     bo.Uint32(raw[20:24]),
			weakBindOff:  bo.Uint32(raw[24:28]),
			weakBindSize: bo.Uint32(raw[28:32]),
			lazyBindOff:  bo.Uint32(raw[32:36]),
			lazyBindSize: bo.Uint32(raw[36:40]),
		}, true
	}
	return dyldInfoCmd{}, false
}

// orderedSegments returns segment {Addr, Size} in load-command order,
// matching the segment index ordinal bind opcodes reference.
func (l *MachOLoader) orderedSegments() []segmentVA {
	var out []segmentVA
	for _, ld := range l.f.Loads {
		if seg, ok := ld.(*macho.Segment); ok {
			out = append(out, segmentVA{addr: seg.Addr, size: seg.Memsz})
		}
	}
	return out
}

// readerAt adapts a byte slice to io.ReaderAt without copying.
type readerAt struct{ b []byte }

func newReaderAt(b []byte) *readerAt { return &readerAt{b: b} }

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.b)) {
		return 0, fmt.Errorf("readerAt: offset %d out of range", off)
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, fmt.Errorf("readerAt: short read at offset %d", off)
	}
	return n, nil
}
