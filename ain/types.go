// Package ain is the immutable, read-only Program image: the loaded
// module's code buffer and its tables of globals, functions, structures,
// libraries, switches, messages, string literals, function types and
// delegate signatures (§6). Decoding the proprietary on-disk AIN encoding
// is explicitly out of scope (§1) — Image is built with a Builder, either
// by a host-side decoder or by tests.
package ain

import "fmt"

// TypeKind enumerates the declared variable/argument/return types the
// image's tables carry. It drives both the page kind a variable gets
// (§3.3) and the finalization policy applied to it (§3.5).
type TypeKind uint8

const (
	TVoid TypeKind = iota
	TInt
	TFloat
	TBool
	TLong
	TString
	TStruct
	TArray
	TRef     // ref int/bool/long/float — a (outer,inner) pair, §3.6
	TRefStr  // ref string — by address of the containing cell, §4.5
	TRefArr  // ref array* / ref struct — pointer to the page, §4.5
	TDelegate
	TFuncType
	TIMainSystem // opaque token type accepted verbatim by the bridge, §4.5
)

// Type is a fully resolved declared type: a TypeKind plus, for TArray,
// the element type and rank, and for TStruct/TArray-of-struct, the
// struct's index in Image.Structs.
type Type struct {
	Kind       TypeKind
	Rank       int32 // valid for TArray; rank >= 1
	Elem       *Type // valid for TArray; nil otherwise
	StructType int32 // valid for TStruct and TArray of struct; -1 otherwise
	FuncType   int32 // valid for TFuncType/TDelegate; index into Image.FuncTypes
}

// IsHeapRef reports whether a value of this type lives in a heap slot
// (string, struct, array, delegate) as opposed to being a plain scalar
// carried directly in the Value word.
func (t Type) IsHeapRef() bool {
	switch t.Kind {
	case TString, TStruct, TArray, TDelegate:
		return true
	default:
		return false
	}
}

// IsReference reports whether this is one of the "ref T" types of §3.6.
func (t Type) IsReference() bool {
	switch t.Kind {
	case TRef, TRefStr, TRefArr:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t.Kind {
	case TVoid:
		return "void"
	case TInt:
		return "int"
	case TFloat:
		return "float"
	case TBool:
		return "bool"
	case TLong:
		return "long"
	case TString:
		return "string"
	case TStruct:
		return fmt.Sprintf("struct#%d", t.StructType)
	case TArray:
		if t.Elem != nil {
			return fmt.Sprintf("array@%d<%s>", t.Rank, t.Elem)
		}
		return fmt.Sprintf("array@%d", t.Rank)
	case TRef:
		return "ref scalar"
	case TRefStr:
		return "ref string"
	case TRefArr:
		return "ref array/struct"
	case TDelegate:
		return fmt.Sprintf("delegate#%d", t.FuncType)
	case TFuncType:
		return fmt.Sprintf("functype#%d", t.FuncType)
	case TIMainSystem:
		return "imain_system"
	default:
		return "?"
	}
}
