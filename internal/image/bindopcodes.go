package image

// Mach-O dyld bind opcode decoding.
//
// debug/macho (stdlib) parses segments, sections and the symbol table, but
// it has no support for LC_DYLD_INFO(_ONLY)'s bind/lazy-bind/weak-bind
// streams — which is exactly where the spec's "binding" entries live (an
// unresolved reference to e.g. __ZTVN10__cxxabiv1XXXE, resolved at load
// time by dyld). No library in the retrieved pack parses Mach-O either, so
// this is hand-rolled the same way the teacher's elf.go hand-parses ELF
// RELA relocations with encoding/binary instead of reaching for a
// relocation library — same idiom, different format and opcode encoding.
//
// Reference: dyld's bind_opcodes.h (Apple's dyld, braodly mirrored by
// every open implementation, e.g. LIEF's MachO::BindingInfo decoder, which
// is what the original vtable-dumper this spec was distilled from used).

const (
	bindOpcodeMask                          = 0xF0
	bindImmediateMask                       = 0x0F
	bindOpcodeDone                          = 0x00
	bindOpcodeSetDylibOrdinalImm            = 0x10
	bindOpcodeSetDylibOrdinalULEB           = 0x20
	bindOpcodeSetDylibSpecialImm            = 0x30
	bindOpcodeSetSymbolTrailingFlagsImm     = 0x40
	bindOpcodeSetTypeImm                    = 0x50
	bindOpcodeSetAddendSLEB                 = 0x60
	bindOpcodeSetSegmentAndOffsetULEB       = 0x70
	bindOpcodeAddAddrULEB                   = 0x80
	bindOpcodeDoBind                        = 0x90
	bindOpcodeDoBindAddAddrULEB             = 0xA0
	bindOpcodeDoBindAddAddrImmScaled        = 0xB0
	bindOpcodeDoBindULEBTimesSkippingULEB   = 0xC0
	bindOpcodeThreaded                      = 0xD0
)

// segmentVA is the minimal description of a Mach-O segment needed to turn
// a bind opcode's (segment index, segment offset) pair into a virtual
// address.
type segmentVA struct {
	addr uint64
	size uint64
}

// decodeBindOpcodes walks one bind-info stream (classic bind, lazy bind, or
// weak bind all share the same opcode encoding) and returns the resolved
// virtual-address -> external-symbol-name bindings.
func decodeBindOpcodes(stream []byte, segments []segmentVA) []Binding {
	var (
		out        []Binding
		segIndex   = -1
		segOffset  uint64
		symbolName string
	)

	addrOf := func() (uint64, bool) {
		if segIndex < 0 || segIndex >= len(segments) {
			return 0, false
		}
		return segments[segIndex].addr + segOffset, true
	}

	i := 0
	for i < len(stream) {
		b := stream[i]
		i++
		opcode := b & bindOpcodeMask
		imm := b & bindImmediateMask

		switch opcode {
		case bindOpcodeDone:
			// Classic (non-lazy) bind streams terminate the whole walk on
			// DONE; lazy-bind streams use DONE to separate per-symbol runs
			// and continue. Either way, stop advancing segOffset state from
			// a stale symbol on the next run.
			symbolName = ""

		case bindOpcodeSetDylibOrdinalImm, bindOpcodeSetDylibOrdinalULEB, bindOpcodeSetDylibSpecialImm:
			if opcode == bindOpcodeSetDylibOrdinalULEB {
				_, n := readULEB128(stream[i:])
				i += n
			}

		case bindOpcodeSetSymbolTrailingFlagsImm:
			start := i
			for i < len(stream) && stream[i] != 0 {
				i++
			}
			symbolName = string(stream[start:i])
			if i < len(stream) {
				i++ // skip NUL
			}

		case bindOpcodeSetTypeImm:
			// Only BIND_TYPE_POINTER is meaningful here; nothing to record.

		case bindOpcodeSetAddendSLEB:
			_, n := readSLEB128(stream[i:])
			i += n

		case bindOpcodeSetSegmentAndOffsetULEB:
			segIndex = int(imm)
			off, n := readULEB128(stream[i:])
			i += n
			segOffset = off

		case bindOpcodeAddAddrULEB:
			off, n := readULEB128(stream[i:])
			i += n
			segOffset += off

		case bindOpcodeDoBind:
			if addr, ok := addrOf(); ok && symbolName != "" {
				out = append(out, Binding{VirtualAddress: addr, SymbolName: symbolName})
			}
			segOffset += 8 // pointer-sized slot consumed

		case bindOpcodeDoBindAddAddrULEB:
			if addr, ok := addrOf(); ok && symbolName != "" {
				out = append(out, Binding{VirtualAddress: addr, SymbolName: symbolName})
			}
			off, n := readULEB128(stream[i:])
			i += n
			segOffset += 8 + off

		case bindOpcodeDoBindAddAddrImmScaled:
			if addr, ok := addrOf(); ok && symbolName != "" {
				out = append(out, Binding{VirtualAddress: addr, SymbolName: symbolName})
			}
			segOffset += 8 + uint64(imm)*8

		case bindOpcodeDoBindULEBTimesSkippingULEB:
			count, n := readULEB128(stream[i:])
			i += n
			skip, n2 := readULEB128(stream[i:])
			i += n2
			for k := uint64(0); k < count; k++ {
				if addr, ok := addrOf(); ok && symbolName != "" {
					out = append(out, Binding{VirtualAddress: addr, SymbolName: symbolName})
				}
				segOffset += 8 + skip
			}

		case bindOpcodeThreaded:
			// Chained-fixup threaded bind tables (arm64e) aren't decoded;
			// such images fall back to symtab-only symbol resolution.
			return out

		default:
			// Unknown opcode: bail rather than mis-walk the rest of the
			// stream.
			return out
		}
	}
	return out
}

func readULEB128(b []byte) (uint64, int) {
	var result uint64
	var shift uint
	var i int
	for i < len(b) {
		byte_ := b[i]
		i++
		result |= uint64(byte_&0x7f) << shift
		if byte_&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, i
}

func readSLEB128(b []byte) (int64, int) {
	var result int64
	var shift uint
	var i int
	var byte_ byte
	for i < len(b) {
		byte_ = b[i]
		i++
		result |= int64(byte_&0x7f) << shift
		shift += 7
		if byte_&0x80 == 0 {
			break
		}
	}
	if shift < 64 && byte_&0x40 != 0 {
		result |= -1 << shift
	}
	return result, i
}
