// Package hll is the external-call bridge of §4.5: it resolves, at image
// load time, each library function name against a compile-time registry
// of native implementations, derives an argument-marshalling descriptor
// from the declared types, and invokes the resolved function with
// already-marshalled arguments. The domain libraries themselves (audio,
// graphics, input, text rendering — leaf callees behind the external-call
// bridge, §1) are out of scope: callers register whatever subset they
// implement.
package hll

import (
	"fmt"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/value"
)

// Arg is one already-marshalled native-call argument, tagged by the
// declared type so a native function can read it without re-deriving
// marshalling rules itself.
type Arg struct {
	Type  ain.Type
	Raw   value.Value // scalar / function-type / delegate / imain_system
	Ref   *value.Ref  // ref int/bool/long/float: pointer to the cell
	Slot  int32       // string/struct/array*, and ref string/struct/array*: the slot (-1 if none)
	IsRef bool
}

// Int reads a scalar argument as int32.
func (a Arg) Int() int32 { return a.Raw.Int() }

// Float reads a scalar argument as float32.
func (a Arg) Float() float32 { return a.Raw.Float() }

// Bool reads a scalar argument as bool.
func (a Arg) Bool() bool { return a.Raw.Bool() }

// String reads a string argument's contents. The callee does not own the
// buffer (§4.5): mutating it is invalid. For a ref string argument Slot
// is the containing page's slot, not the string's; its cell is addressed
// through Ref.
func (a Arg) String(h *heap.Heap) string {
	return h.String(a.Slot)
}

// Call is the context a NativeFunc executes with: heap access for
// allocating a fresh string/page return value, and an optional re-entrant
// hook to call back into bytecode (e.g. a callback argument of delegate
// type) — supplied by the vm package, since only it can re-enter the
// dispatcher (§4.3.2/§9).
type Call struct {
	Heap     *heap.Heap
	CallBack func(funcIndex int32, args []value.Value) (value.Value, error)
}

// NativeFunc is a host-provided implementation of one library function.
type NativeFunc func(c *Call, args []Arg) (value.Value, error)

// Registry maps (library name, function name) to a NativeFunc. It is
// built once at process init by host code registering whichever domain
// libraries it implements; unresolved names are not an error by
// themselves (§4.5: "Unresolved libraries or functions are fatal only if
// actually called").
type Registry struct {
	funcs map[string]NativeFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]NativeFunc)}
}

// Register installs fn as the implementation of library.function.
// Re-registering the same pair replaces the previous implementation.
func (r *Registry) Register(library, function string, fn NativeFunc) {
	r.funcs[key(library, function)] = fn
}

// Resolve looks up the implementation of library.function, returning
// (nil, false) if the host never registered one.
func (r *Registry) Resolve(library, function string) (NativeFunc, bool) {
	fn, ok := r.funcs[key(library, function)]
	return fn, ok
}

func key(library, function string) string {
	return library + "\x00" + function
}

// ErrUnresolved is returned by Invoke when no NativeFunc was registered
// for the called library function — a RuntimeWarn per §7 if the call
// site chooses to downgrade it, or promoted to FatalVm by the caller
// (§4.5's "fatal only if actually called" leaves the choice to the vm
// package, which knows the surrounding failure-semantics policy).
type ErrUnresolved struct {
	Library, Function string
}

func (e *ErrUnresolved) Error() string {
	return fmt.Sprintf("hll: unresolved function %s.%s", e.Library, e.Function)
}

// Invoke resolves and calls library.function with already-marshalled
// args, matching the declared sig's argument count.
func (r *Registry) Invoke(c *Call, library, function string, sig ain.LibraryFunction, args []Arg) (value.Value, error) {
	fn, ok := r.Resolve(library, function)
	if !ok {
		return 0, &ErrUnresolved{Library: library, Function: function}
	}
	return fn(c, args)
}
