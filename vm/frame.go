package vm

import "github.com/ainrun/ainvm/vmerr"

// SentinelIP marks a call frame's return address as "end of this
// vm_execute": when Return pops a frame whose ReturnIP is SentinelIP, the
// innermost dispatch loop stops instead of jumping (§4.3.2).
const SentinelIP uint32 = 0xFFFFFFFF

// maxCallDepth bounds the call stack; overflow is fatal (§3.4).
const maxCallDepth = 4096

// Frame is one call-stack record (§3.4): the callee, the caller's
// instruction pointer (call address), the return address, the callee's
// Local page heap slot, and the bound struct-page slot for method calls
// (NoStructPage for plain functions).
type Frame struct {
	FuncIndex  int32
	CallIP     uint32
	ReturnIP   uint32
	LocalSlot  int32
	StructSlot int32
}

// CallStack is the bounded stack of Frames.
type CallStack struct {
	frames []Frame
}

// Push appends f, fatal on overflow.
func (c *CallStack) Push(f Frame) {
	if len(c.frames) >= maxCallDepth {
		panic(vmerr.NewFatal("call", 0, nil, vmerr.ErrCallStackOverflow))
	}
	c.frames = append(c.frames, f)
}

// Pop removes and returns the top frame; underflow is fatal (it would
// mean RETURN executed with no active call, an image invariant
// violation).
func (c *CallStack) Pop() Frame {
	n := len(c.frames)
	if n == 0 {
		panic(vmerr.NewFatal("return", 0, nil, vmerr.ErrInvariant))
	}
	f := c.frames[n-1]
	c.frames = c.frames[:n-1]
	return f
}

// Top returns the active frame without popping it, or false if the call
// stack is empty (executing at top level, e.g. a fresh vm_call sentinel
// frame not yet pushed).
func (c *CallStack) Top() (Frame, bool) {
	n := len(c.frames)
	if n == 0 {
		return Frame{}, false
	}
	return c.frames[n-1], true
}

// Depth reports the current call-stack depth.
func (c *CallStack) Depth() int { return len(c.frames) }

// Frames returns the frames from the top (index 0) downward, for
// GetFuncStackName (§4.6).
func (c *CallStack) Frames() []Frame {
	out := make([]Frame, len(c.frames))
	for i := range c.frames {
		out[i] = c.frames[len(c.frames)-1-i]
	}
	return out
}

// SetFrames replaces the stack contents, bottom-to-top, for resume
// restore (§6).
func (c *CallStack) SetFrames(frames []Frame) {
	c.frames = append([]Frame(nil), frames...)
}
