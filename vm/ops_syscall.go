package vm

import "github.com/ainrun/ainvm/instr"

// execSyscall implements CALLSYS (§4.3.3/§4.6): the 32-bit immediate
// names a system-call tag. Argument count and marshalling are entirely
// the installed Syscall function's responsibility (package sysvm
// supplies the reference table) — it pops whatever it needs directly off
// the operand stack and pushes its own return value, since the per-tag
// signatures vary and many of them reach outside the interpreter (file
// I/O, time, process exit) entirely.
func (v *VM) execSyscall() {
	tag := instr.ReadInt32(v.Image.Code, v.IP+2)
	if v.Syscalls == nil {
		v.warn("CALLSYS %d: no syscall table installed", tag)
		return
	}
	if err := v.Syscalls(v, tag); err != nil {
		v.warn("CALLSYS %d: %v", tag, err)
	}
}
