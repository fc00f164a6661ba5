package vm

import "github.com/ainrun/ainvm/value"

// imm32 wraps a raw 32-bit code-stream immediate into a Value, matching
// how PUSH/A_ALLOC-style opcodes carry their operand verbatim (§4.3.3).
func imm32(i int32) value.Value { return value.IntFrom(i) }
