package ain

import "sync"

// Global describes one entry of the program's global table: its name,
// declared type, and the group index used to filter GroupSave/GroupLoad.
type Global struct {
	Name  string
	Type  Type
	Group int32
}

// Function describes a function record: entry address, declared return
// type, and the declaration order of its local variables. Vars[0:NumArgs]
// are the arguments; the call convention of §4.3.2 pops them into the
// first NumArgs slots of a fresh Local page sized len(Vars).
type Function struct {
	Name    string
	Address uint32
	Return  Type
	Vars    []Type
	NumArgs int
	// IsMethod records whether calls to this function carry a struct-page
	// slot (§3.4); true for member functions of a Struct.
	IsMethod bool
}

// Member describes one struct member: name, declared type, and its fixed
// offset in declaration order within the struct's page.
type Member struct {
	Name string
	Type Type
}

// Struct describes a structure type: optional constructor/destructor
// function indices (-1 if absent) and its members in declaration order,
// whose count fixes the struct page's NumVars (§3.7).
type Struct struct {
	Name    string
	Ctor    int32
	Dtor    int32
	Members []Member
}

// LibraryFunction describes one function exported by a library: its
// declared argument types (used to derive the bridge's marshalling
// descriptor per §4.5) and return type.
type LibraryFunction struct {
	Name   string
	Args   []Type
	Return Type
}

// Library is a named group of functions resolved, at load time, against
// the host's native-function registry (§4.5). Libraries and functions
// that fail to resolve are not errors by themselves — only calling an
// unresolved one is fatal (§4.5 "Unresolved libraries or functions are
// fatal only if actually called").
type Library struct {
	Name      string
	Functions []LibraryFunction
}

// SwitchCase is one {value, address} entry of a SWITCH/STRSWITCH table.
// Exactly one of IntValue/StrValue is meaningful, per Switch.Type.
type SwitchCase struct {
	IntValue int32
	StrValue string
	Address  uint32
}

// Switch is one switch table: SWITCH keys on TInt, STRSWITCH on TString.
// Lookup is a linear scan, first match wins (§4.3.3); Default is the
// fall-through address, or -1 if the switch has no default.
type Switch struct {
	Type    TypeKind
	Default int32
	Cases   []SwitchCase
}

// FuncType describes a function-type or delegate signature: its argument
// and return types, used by the interpreter to typecheck DG_CALL/CALL
// targets and by the external-call bridge's marshalling rules.
type FuncType struct {
	Name   string
	Args   []Type
	Return Type
}

// Image is the immutable, loaded program module (§6). All fields are
// read-only after Builder.Build; the interpreter mutates only the heap,
// stacks, and instruction pointer, never the image.
type Image struct {
	Code []byte

	Globals   []Global
	Functions []Function
	Structs   []Struct
	Libraries []Library
	Switches  []Switch
	Messages  []string
	Strings   []string
	FuncTypes []FuncType
	Delegates []FuncType

	// Main, Alloc and Msgf are entry-point indices into Functions.
	// Alloc (the global-array builder) and Msgf (message-display
	// function) may be absent, signaled by -1.
	Main  int32
	Alloc int32
	Msgf  int32

	funcIndexOnce sync.Once
	funcIndex     map[string]int32
}

// FindFunction resolves a function by name, used by SJUMP/CALLONJUMP
// (§4.3.4) and the ExistFunc/GetFuncStackName syscalls (§4.6). The name
// table is built lazily on first call and cached for the image's
// lifetime (the supplemented caching behavior described in SPEC_FULL.md,
// grounded in xsystem4's vm.c repeated-lookup pattern for scenario jumps).
func (img *Image) FindFunction(name string) (int32, bool) {
	img.funcIndexOnce.Do(func() {
		img.funcIndex = make(map[string]int32, len(img.Functions))
		for i, f := range img.Functions {
			img.funcIndex[f.Name] = int32(i)
		}
	})
	i, ok := img.funcIndex[name]
	return i, ok
}

// Func returns the Function at index i, or (zero, false) if out of range.
func (img *Image) Func(i int32) (Function, bool) {
	if i < 0 || int(i) >= len(img.Functions) {
		return Function{}, false
	}
	return img.Functions[i], true
}

// Struct returns the Struct at index i, or (zero, false) if out of range.
func (img *Image) Struct(i int32) (Struct, bool) {
	if i < 0 || int(i) >= len(img.Structs) {
		return Struct{}, false
	}
	return img.Structs[i], true
}
