// Package instr is the bytecode's instruction table (§6): each opcode's
// mnemonic, operand widths and whether it transfers control directly
// instead of falling through to ip+width (§4.3.3). The real reference
// table is large and proprietary; this package reproduces the documented
// subset plus the generic shape every other opcode follows, so a host can
// extend Table with the rest of the reference encoding without touching
// the interpreter.
package instr

import "encoding/binary"

// Op is a 16-bit opcode, little-endian on the wire (§6).
type Op uint16

// Documented opcodes. Numeric values are assigned in
// this package and are not required to match any external encoding — a
// loader is free to remap them as it decodes a real image, provided it
// also remaps instr.Table.
const (
	OpNop Op = iota

	// Stack manipulation (§4.3.3 "Stack manip").
	OpPush
	OpPop
	OpDup
	OpDup2
	OpDupX2
	OpDup2X1
	OpSwap

	// Variable access.
	OpPushGlobal
	OpPushLocal
	OpPushStructMember
	OpAssign
	OpInc
	OpDec
	OpDelete
	OpCreate

	// Integer arithmetic (two's-complement wrap; DIV/MOD by zero -> 0).
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpLShift
	OpRShift
	OpNeg
	OpNot

	// Long (64-bit compute, saturate to int32) arithmetic.
	OpLongAdd
	OpLongSub
	OpLongMul
	OpLongDiv
	OpLongMod

	// Float arithmetic (IEEE-754, no trap on divide-by-zero).
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNeg

	// Comparisons (produce 0/1 integers).
	OpLT
	OpGT
	OpLTE
	OpGTE
	OpEq
	OpNEq
	OpFLT
	OpFGT
	OpFLTE
	OpFGTE
	OpFEq
	OpFNEq

	// Strings.
	OpSPush
	OpSAdd
	OpSMod
	OpSLength
	OpCRef
	OpCAssign

	// References.
	OpRef
	OpRefRef
	OpRAssign
	OpREqualE

	// Struct.
	OpNew
	OpDeleteStruct
	OpSRRef
	OpSRAssign

	// Arrays (§4.2).
	OpAAlloc
	OpARealloc
	OpACopy
	OpAPushback
	OpAPopback
	OpAErase
	OpAInsert
	OpASort
	OpASortMem
	OpAFind
	OpANumOf

	// Delegates (§4.3.5).
	OpDGNew
	OpDGAppend
	OpDGErase
	OpDGPlusA
	OpDGMinusA
	OpDGAssign
	OpDGClear
	OpDGNumOf
	OpDGCallBegin
	OpDGCall

	// Control flow.
	OpJump
	OpIfZ
	OpIfNZ
	OpCall
	OpCallMethod
	OpReturn
	OpSwitch
	OpStrSwitch
	OpCallOnJump
	OpSJump

	// Shorthand (fused) forms — representative sample, §4.3.3/§9.
	OpAssignAdd
	OpAssignSub
	OpIncLocal
	OpDecLocal
	OpPushLocalPlusImm

	// Syscall.
	OpCallSys

	// opBreakpointBit marks the breakpoint-tagged form of the opcode
	// that occupies its low bits, per §4.3.3 "top byte distinguishes a
	// breakpoint".
	opBreakpointBit Op = 0x8000
)

// Width is the fixed instruction width (in bytes, including the 16-bit
// opcode word) used to advance the instruction pointer after a
// non-control-transfer opcode executes.
type Width uint8

// ControlTransfer marks opcodes that assign the IP directly rather than
// falling through by Width.
type InstrInfo struct {
	Mnemonic        string
	Width           Width
	ControlTransfer bool
}

// Table maps every known Op to its InstrInfo. A host decoding a real
// image extends or replaces this table to match the reference encoding
// (§6 — "implementations must reproduce it verbatim from the
// reference"); the entries here give every documented opcode a
// plausible width so the rest of this package (layout, breakpoints) is
// immediately usable against a hand-built test image.
var Table = map[Op]InstrInfo{
	OpNop:               {"NOP", 2, false},
	OpPush:              {"PUSH", 6, false},
	OpPop:               {"POP", 2, false},
	OpDup:               {"DUP", 2, false},
	OpDup2:              {"DUP2", 2, false},
	OpDupX2:             {"DUP_X2", 2, false},
	OpDup2X1:            {"DUP2_X1", 2, false},
	OpSwap:              {"SWAP", 2, false},
	OpPushGlobal:        {"PUSH_GLOBAL", 6, false},
	OpPushLocal:         {"PUSH_LOCAL", 6, false},
	OpPushStructMember:  {"PUSH_STRUCT_MEMBER", 6, false},
	OpAssign:            {"ASSIGN", 2, false},
	OpInc:               {"INC", 2, false},
	OpDec:               {"DEC", 2, false},
	OpDelete:            {"DELETE", 2, false},
	OpCreate:            {"SR_CREATE", 2, false},
	OpAdd:               {"ADD", 2, false},
	OpSub:               {"SUB", 2, false},
	OpMul:               {"MUL", 2, false},
	OpDiv:               {"DIV", 2, false},
	OpMod:               {"MOD", 2, false},
	OpAnd:               {"AND", 2, false},
	OpOr:                {"OR", 2, false},
	OpXor:               {"XOR", 2, false},
	OpLShift:            {"LSHIFT", 2, false},
	OpRShift:            {"RSHIFT", 2, false},
	OpNeg:               {"NEG", 2, false},
	OpNot:               {"NOT", 2, false},
	OpLongAdd:           {"LI_ADD", 2, false},
	OpLongSub:           {"LI_SUB", 2, false},
	OpLongMul:           {"LI_MUL", 2, false},
	OpLongDiv:           {"LI_DIV", 2, false},
	OpLongMod:           {"LI_MOD", 2, false},
	OpFAdd:              {"F_ADD", 2, false},
	OpFSub:              {"F_SUB", 2, false},
	OpFMul:              {"F_MUL", 2, false},
	OpFDiv:              {"F_DIV", 2, false},
	OpFNeg:              {"F_NEG", 2, false},
	OpLT:                {"LT", 2, false},
	OpGT:                {"GT", 2, false},
	OpLTE:               {"LTE", 2, false},
	OpGTE:               {"GTE", 2, false},
	OpEq:                {"EQUALE", 2, false},
	OpNEq:               {"NOTE", 2, false},
	OpFLT:               {"F_LT", 2, false},
	OpFGT:               {"F_GT", 2, false},
	OpFLTE:              {"F_LTE", 2, false},
	OpFGTE:              {"F_GTE", 2, false},
	OpFEq:               {"F_EQUALE", 2, false},
	OpFNEq:              {"F_NOTE", 2, false},
	OpSPush:             {"S_PUSH", 6, false},
	OpSAdd:              {"S_ADD", 2, false},
	OpSMod:              {"S_MOD", 6, false},
	OpSLength:           {"S_LENGTH", 2, false},
	OpCRef:              {"C_REF", 2, false},
	OpCAssign:           {"C_ASSIGN", 2, false},
	OpRef:               {"REF", 2, false},
	OpRefRef:            {"REFREF", 2, false},
	OpRAssign:           {"R_ASSIGN", 2, false},
	OpREqualE:           {"R_EQUALE", 2, false},
	OpNew:               {"NEW", 6, false},
	OpDeleteStruct:      {"SR_DELETE", 2, false},
	OpSRRef:             {"SR_REF", 2, false},
	OpSRAssign:          {"SR_ASSIGN", 2, false},
	OpAAlloc:            {"A_ALLOC", 6, false},
	OpARealloc:          {"A_REALLOC", 6, false},
	OpACopy:             {"A_COPY", 2, false},
	OpAPushback:         {"A_PUSHBACK", 2, false},
	OpAPopback:          {"A_POPBACK", 2, false},
	OpAErase:            {"A_ERASE", 2, false},
	OpAInsert:           {"A_INSERT", 2, false},
	OpASort:             {"A_SORT", 6, false},
	OpASortMem:          {"A_SORT_MEM", 6, false},
	OpAFind:             {"A_FIND", 4, false},
	OpANumOf:            {"A_NUMOF", 6, false},
	OpDGNew:             {"DG_NEW", 2, false},
	OpDGAppend:          {"DG_APPEND", 2, false},
	OpDGErase:           {"DG_ERASE", 2, false},
	OpDGPlusA:           {"DG_PLUSA", 2, false},
	OpDGMinusA:          {"DG_MINUSA", 2, false},
	OpDGAssign:          {"DG_ASSIGN", 2, false},
	OpDGClear:           {"DG_CLEAR", 2, false},
	OpDGNumOf:           {"DG_NUMOF", 2, false},
	OpDGCallBegin:       {"DG_CALLBEGIN", 6, false},
	OpDGCall:            {"DG_CALL", 6, true},
	OpJump:              {"JUMP", 6, true},
	OpIfZ:               {"IFZ", 6, true},
	OpIfNZ:              {"IFNZ", 6, true},
	OpCall:              {"CALL", 6, true},
	OpCallMethod:        {"CALLMETHOD", 6, true},
	OpReturn:            {"RETURN", 2, true},
	OpSwitch:            {"SWITCH", 6, true},
	OpStrSwitch:         {"STRSWITCH", 6, true},
	OpCallOnJump:        {"CALLONJUMP", 6, true},
	OpSJump:             {"SJUMP", 6, true},
	OpAssignAdd:         {"ASSIGN_ADD", 2, false},
	OpAssignSub:         {"ASSIGN_SUB", 2, false},
	OpIncLocal:          {"INC_LOCAL", 6, false},
	OpDecLocal:          {"DEC_LOCAL", 6, false},
	OpPushLocalPlusImm:  {"PUSH_LOCAL_IMM", 10, false},
	OpCallSys:           {"CALLSYS", 6, false},
}

// ByteOrder is the bytecode stream's wire byte order (§6: "little-endian").
var ByteOrder = binary.LittleEndian

// ReadOp decodes the opcode word at code[ip:ip+2], stripping the
// breakpoint marker bit so dispatch always sees the underlying opcode
// (§4.3.3 "Breakpoint ... the underlying opcode executes").
func ReadOp(code []byte, ip uint32) Op {
	raw := Op(ByteOrder.Uint16(code[ip:]))
	return raw &^ opBreakpointBit
}

// IsBreakpoint reports whether the raw opcode word at ip carries the
// breakpoint marker bit.
func IsBreakpoint(code []byte, ip uint32) bool {
	raw := Op(ByteOrder.Uint16(code[ip:]))
	return raw&opBreakpointBit != 0
}

// ReadInt32 reads a little-endian 32-bit operand at code[off:].
func ReadInt32(code []byte, off uint32) int32 {
	return int32(ByteOrder.Uint32(code[off:]))
}

// ReadUint32 reads a little-endian 32-bit operand at code[off:].
func ReadUint32(code []byte, off uint32) uint32 {
	return ByteOrder.Uint32(code[off:])
}
