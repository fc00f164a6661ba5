package vm

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/value"
)

func isStringOp(op instr.Op) bool {
	switch op {
	case instr.OpSPush, instr.OpSAdd, instr.OpSMod, instr.OpSLength,
		instr.OpCRef, instr.OpCAssign:
		return true
	default:
		return false
	}
}

// execString implements the string operation family of §4.3.3: S_PUSH
// allocates a fresh slot for a string-table literal, S_ADD concatenates
// in place (the left operand's slot is reused, matching the "the left
// string's slot is mutated in place, not replaced" rule), S_MOD substitutes
// one value into the format string's first %-slot, S_LENGTH/C_REF/C_ASSIGN
// operate on Unicode codepoints rather than bytes.
func (v *VM) execString(op instr.Op) {
	switch op {
	case instr.OpSPush:
		idx := instr.ReadUint32(v.Image.Code, v.IP+2)
		s := ""
		if int(idx) < len(v.Image.Strings) {
			s = v.Image.Strings[idx]
		}
		v.Operand.Push(value.SlotFrom(v.Heap.AllocString(s)))
	case instr.OpSAdd:
		b := v.Operand.Pop()
		a := v.Operand.Pop()
		combined := v.Heap.String(a.Slot()) + v.Heap.String(b.Slot())
		v.Heap.SetString(a.Slot(), combined)
		v.Heap.Unref(b.Slot())
		v.Operand.Push(a)
	case instr.OpSMod:
		declared := StrFmtType(instr.ReadInt32(v.Image.Code, v.IP+2))
		arg := v.Operand.Pop()
		str := v.Operand.Pop()
		v.execSMod(declared, arg, str)
		v.Operand.Push(str)
	case instr.OpSLength:
		s := v.Operand.Pop()
		v.Operand.Push(value.IntFrom(int32(utf8.RuneCountInString(v.Heap.String(s.Slot())))))
	case instr.OpCRef:
		idx := v.Operand.Pop().Int()
		s := v.Operand.Pop()
		runes := []rune(v.Heap.String(s.Slot()))
		if idx < 0 || int(idx) >= len(runes) {
			v.warn("C_REF index %d out of range", idx)
			v.Operand.Push(value.IntFrom(0))
			return
		}
		v.Operand.Push(value.IntFrom(runes[idx]))
	case instr.OpCAssign:
		ch := v.Operand.Pop().Int()
		idx := v.Operand.Pop().Int()
		s := v.Operand.Pop()
		runes := []rune(v.Heap.String(s.Slot()))
		if idx < 0 || int(idx) >= len(runes) {
			v.warn("C_ASSIGN index %d out of range", idx)
			return
		}
		runes[idx] = rune(ch)
		v.Heap.SetString(s.Slot(), string(runes))
	}
}

// StrFmtType is the declared type of the value S_MOD pops (§4.4): it
// tells execSMod how to interpret the argument Value's bits, and is
// checked against the %-conversion scanned out of the format string.
type StrFmtType int32

const (
	StrFmtInt StrFmtType = iota
	StrFmtFloat
	StrFmtString
)

// fmtSpec is one parsed %-conversion scanned from a format string: the
// byte range it occupies (so the caller can splice in the formatted
// replacement) plus its C-style flags (§4.4 "Padding, zero-pad, and
// precision flags per C-style rules").
type fmtSpec struct {
	start, end int
	leftAlign  bool
	zeroPad    bool
	width      int
	havePrec   bool
	prec       int
	conv       byte
}

// scanFmtSpec finds the first %-conversion in s and parses its flags,
// width, precision and conversion character. It reports false if s has no
// well-formed %-slot (S_MOD is then a no-op on the format string, §4.4).
func scanFmtSpec(s string) (fmtSpec, bool) {
	start := strings.IndexByte(s, '%')
	if start < 0 {
		return fmtSpec{}, false
	}
	spec := fmtSpec{start: start}
	j := start + 1
	for j < len(s) {
		switch s[j] {
		case '-':
			spec.leftAlign = true
			j++
			continue
		case '0':
			if !spec.zeroPad {
				spec.zeroPad = true
				j++
				continue
			}
		}
		break
	}
	widthStart := j
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j > widthStart {
		spec.width, _ = strconv.Atoi(s[widthStart:j])
	}
	if j < len(s) && s[j] == '.' {
		j++
		precStart := j
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		spec.havePrec = true
		if j > precStart {
			spec.prec, _ = strconv.Atoi(s[precStart:j])
		}
	}
	if j >= len(s) {
		return fmtSpec{}, false
	}
	spec.conv = s[j]
	spec.end = j + 1
	return spec, true
}

// convType reports which StrFmtType a %-conversion character expects:
// %d/%D/%c/%b all read the argument as an int32, %f/%F as a float, %s as
// a string (§4.4).
func convType(conv byte) StrFmtType {
	switch conv {
	case 'f', 'F':
		return StrFmtFloat
	case 's':
		return StrFmtString
	default:
		return StrFmtInt
	}
}

// execSMod substitutes arg into str's first %-slot in place (§4.3.3: "formats
// a single value into a % slot in the format string", not an append). declared
// is the compiler's declared argument type for this call site; a mismatch
// against the scanned conversion is a RuntimeWarn, and the scanned
// conversion's own type wins (it is what actually drives formatting).
func (v *VM) execSMod(declared StrFmtType, arg, str value.Value) {
	s := v.Heap.String(str.Slot())
	spec, ok := scanFmtSpec(s)
	if !ok {
		v.warn("S_MOD: no %%-slot in format string")
		return
	}
	conv := convType(spec.conv)
	if conv != declared {
		v.warn("S_MOD: declared type %d does not match conversion %q", declared, spec.conv)
	}

	var formatted string
	switch conv {
	case StrFmtFloat:
		formatted = v.formatFloat(arg.Float(), spec, spec.conv == 'F')
	case StrFmtString:
		formatted = v.formatString(arg, spec)
		if arg.Slot() >= 0 {
			v.Heap.Unref(arg.Slot())
		}
	default:
		formatted = v.formatConv(spec.conv, arg.Int(), spec)
	}

	v.Heap.SetString(str.Slot(), s[:spec.start]+formatted+s[spec.end:])
}

// formatConv renders an int32 argument per conv: %d/%D decimal (the latter
// in full-width/zenkaku digits), %c a single codepoint, %b "true"/"false"
// (§4.4; the original engine's FMT_BOOL case, not a binary digit string).
func (v *VM) formatConv(conv byte, n int32, spec fmtSpec) string {
	switch conv {
	case 'c':
		return padText(string(rune(n)), spec.width, spec.leftAlign)
	case 'b':
		s := "false"
		if n != 0 {
			s = "true"
		}
		return padText(s, spec.width, spec.leftAlign)
	default: // 'd', 'D'
		return v.formatInt(n, spec, conv == 'D')
	}
}

// formatInt renders n as decimal, honoring precision (minimum digit count,
// zero-padded, and disabling the zero-pad flag per C rules), then width
// padding, then an optional zenkaku digit transliteration.
func (v *VM) formatInt(n int32, spec fmtSpec, zenkaku bool) string {
	s := strconv.FormatInt(int64(n), 10)
	if spec.havePrec {
		neg := strings.HasPrefix(s, "-")
		digits := s
		if neg {
			digits = s[1:]
		}
		if len(digits) < spec.prec {
			digits = strings.Repeat("0", spec.prec-len(digits)) + digits
		}
		if neg {
			s = "-" + digits
		} else {
			s = digits
		}
	}
	s = padNumeric(s, spec.width, spec.zeroPad && !spec.havePrec, spec.leftAlign)
	if zenkaku {
		s = toZenkaku(s)
	}
	return s
}

// formatFloat renders f as fixed-point with spec's precision (default 6,
// matching printf's %f), then width padding, then an optional zenkaku
// digit transliteration.
func (v *VM) formatFloat(f float32, spec fmtSpec, zenkaku bool) string {
	prec := 6
	if spec.havePrec {
		prec = spec.prec
	}
	s := strconv.FormatFloat(float64(f), 'f', prec, 32)
	s = padNumeric(s, spec.width, spec.zeroPad, spec.leftAlign)
	if zenkaku {
		s = toZenkaku(s)
	}
	return s
}

// formatString reads arg's referenced string (or "" for NoSlot), truncated
// to spec's precision if given (C's "%.Ns" = at most N runes), then
// space-padded to width.
func (v *VM) formatString(arg value.Value, spec fmtSpec) string {
	s := ""
	if arg.Slot() >= 0 {
		s = v.Heap.String(arg.Slot())
	}
	if spec.havePrec {
		runes := []rune(s)
		if len(runes) > spec.prec {
			s = string(runes[:spec.prec])
		}
	}
	return padText(s, spec.width, spec.leftAlign)
}

// padNumeric pads a formatted number to width: zero-padding inserts after
// a leading sign so "-5" with width 4 becomes "-005", not "00-5".
func padNumeric(s string, width int, zeroPad, leftAlign bool) string {
	if len(s) >= width {
		return s
	}
	pad := width - len(s)
	if leftAlign {
		return s + strings.Repeat(" ", pad)
	}
	if zeroPad {
		if strings.HasPrefix(s, "-") {
			return "-" + strings.Repeat("0", pad) + s[1:]
		}
		return strings.Repeat("0", pad) + s
	}
	return strings.Repeat(" ", pad) + s
}

// padText space-pads a non-numeric conversion's rendering to width.
func padText(s string, width int, leftAlign bool) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	pad := strings.Repeat(" ", width-n)
	if leftAlign {
		return s + pad
	}
	return pad + s
}

// toZenkaku transliterates ASCII digits, '-' and '.' to their full-width
// (zenkaku) counterparts for %D/%F (§4.4): each of these code points sits
// exactly 0xFEE0 below its full-width form.
func toZenkaku(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' || r == '.' {
			b.WriteRune(r + 0xFEE0)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
