// Package decoder implements the Instruction Decoder (spec.md §4.C): given
// the raw bytes at a faulting program counter, it classifies direction,
// operand width, the total encoded instruction length, and (for stores)
// extracts the value to ship to the device model.
//
// The decoder targets the register-memory move family on a 64-bit
// little-endian architecture (spec.md §4.C table): plain and
// immediate-form byte/word/dword MOVs. It deliberately reproduces the
// reference implementation's accumulator-only register convention for
// both store-source and load-destination data (spec.md §4.C, §9): a
// production decoder would honor the ModR/M reg field instead, but that
// is documented as a known bug to carry forward, not a defect to silently
// fix.
package decoder

// Direction classifies whether the trapped instruction reads from or
// writes to the device region.
type Direction int

const (
	Load Direction = iota
	Store
)

func (d Direction) String() string {
	if d == Store {
		return "store"
	}
	return "load"
}

// AccessInfo is the decoder's output: enough to build a wire.Message and
// to advance the program counter correctly.
type AccessInfo struct {
	Direction Direction
	Width     int // 1, 2, or 4 bytes
	Length    int // total encoded instruction length, in bytes
	Value     uint32 // for Store: the zero-extended value to send; unused for Load
}

// minLength/maxLength bound the clamp spec.md §4.C requires: "clamp
// pathological values to a safe fallback length (>= 1, <= 15)".
const (
	minLength     = 1
	maxLength     = 15
	fallbackNoPtr = 3 // spec.md §9: fallback when the byte pointer is absent
	fallbackLen   = 6 // used when the computed length falls outside [minLength, maxLength]
)

// isPrefix reports whether b is one of the prefixes the decoder skips
// before opcode classification: operand-size (0x66), address-size (0x67),
// REP/REPNE (0xF2/0xF3), and the REX extended-register-bank prefixes
// (0x40-0x4F) — spec.md §4.C "Prefix skipping".
func isPrefix(b byte) bool {
	return b == 0x66 || b == 0x67 || b == 0xF2 || b == 0xF3 || (b >= 0x40 && b <= 0x4F)
}

// parsed holds the intermediate decode state shared by length computation
// and data extraction.
type parsed struct {
	opcode     byte
	has66      bool
	ok         bool // recognized opcode
	direction  Direction
	width      int
	afterModRM int // offset, from the start of inst, just past ModR/M/SIB/disp
	immLen     int // 0, 1, 2, or 4
	length     int // total instruction length
}

func parse(inst []byte) parsed {
	pos := 0
	has66 := false
	for pos < len(inst) && isPrefix(inst[pos]) {
		if inst[pos] == 0x66 {
			has66 = true
		}
		pos++
	}
	if pos >= len(inst) {
		return parsed{ok: false, direction: Load, width: 4, length: clampLength(pos, len(inst) == 0)}
	}

	opcode := inst[pos]
	pos++ // consume opcode byte

	var direction Direction
	width := 4
	ok := true
	switch opcode {
	case 0x89:
		direction, width = Store, 4
	case 0x8B:
		direction, width = Load, 4
	case 0x88:
		direction, width = Store, 1
	case 0x8A:
		direction, width = Load, 1
	case 0xC7:
		direction, width = Store, 4
	case 0xC6:
		direction, width = Store, 1
	default:
		ok, direction, width = false, Load, 4
	}
	if has66 && ok && width == 4 {
		width = 2
	}

	// ModR/M + optional SIB + optional displacement (spec.md §4.C
	// "Length computation"), walked regardless of whether the opcode was
	// recognized, matching the original's unconditional ModR/M scan.
	if pos < len(inst) {
		modrm := inst[pos]
		mod := modrm >> 6
		rm := modrm & 0x7
		pos++ // consume ModR/M byte

		if mod != 3 && rm == 4 && pos < len(inst) {
			sib := inst[pos]
			pos++ // SIB byte
			if mod == 0 && sib&0x7 == 5 {
				pos += 4 // SIB base=101 with mod=00: 32-bit displacement, no base register
			}
		}
		switch {
		case mod == 1:
			pos++ // 8-bit displacement
		case mod == 2 || (mod == 0 && rm == 5):
			pos += 4 // 32-bit displacement
		}
	}

	afterModRM := pos
	immLen := 0
	switch opcode {
	case 0xC7:
		if has66 {
			immLen = 2
		} else {
			immLen = 4
		}
	case 0xC6:
		immLen = 1
	}
	pos += immLen

	return parsed{
		opcode:     opcode,
		has66:      has66,
		ok:         ok,
		direction:  direction,
		width:      width,
		afterModRM: afterModRM,
		immLen:     immLen,
		length:     clampLength(pos, false),
	}
}

func clampLength(computed int, noPointer bool) int {
	if noPointer {
		return fallbackNoPtr
	}
	if computed < minLength || computed > maxLength {
		return fallbackLen
	}
	return computed
}

// Decode classifies the instruction at inst (the bytes at the faulting
// program counter) and, for stores, extracts the value to send to the
// model from rax — the accumulator register, per the accumulator-only
// convention documented above. inst may be shorter than the true
// instruction only in pathological cases; Decode never reads past
// len(inst).
func Decode(inst []byte, rax uint64) AccessInfo {
	p := parse(inst)
	info := AccessInfo{Direction: p.direction, Width: p.width, Length: p.length}
	if p.direction == Store {
		info.Value = extractStoreValue(inst, p, rax)
	}
	return info
}

// extractStoreValue implements spec.md §4.C "Data extraction (stores)":
// immediate-form stores read the immediate bytes following ModR/M,
// zero-extended; register-form stores read the low width bytes of the
// accumulator.
func extractStoreValue(inst []byte, p parsed, rax uint64) uint32 {
	if p.immLen > 0 {
		var v uint32
		end := p.afterModRM + p.immLen
		if end > len(inst) {
			end = len(inst)
		}
		for i := p.afterModRM; i < end; i++ {
			v |= uint32(inst[i]) << (8 * uint(i-p.afterModRM))
		}
		return v
	}
	return maskWidth(rax, p.width)
}

func maskWidth(v uint64, width int) uint32 {
	switch width {
	case 1:
		return uint32(v & 0xFF)
	case 2:
		return uint32(v & 0xFFFF)
	default:
		return uint32(v & 0xFFFFFFFF)
	}
}

// InjectAccumulator implements spec.md §4.C "Data injection (loads)":
// write the low width bytes of data into rax, matching the x86
// partial-register-write convention: widths 1 and 2 leave the upper bytes
// unchanged, while width 4 zero-extends into the full 64-bit register.
func InjectAccumulator(rax uint64, data uint32, width int) uint64 {
	switch width {
	case 1:
		return (rax &^ 0xFF) | uint64(data&0xFF)
	case 2:
		return (rax &^ 0xFFFF) | uint64(data&0xFFFF)
	default:
		return uint64(data)
	}
}
