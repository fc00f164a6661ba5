package ain

// Builder constructs an Image without requiring the proprietary on-disk
// decoder (decoding/decryption of the real AIN format is out of scope,
// §1): a host embeds this package and calls a decoder of its own to fill
// a Builder, or a test builds one fixture by hand.
type Builder struct {
	img Image
}

// NewBuilder returns an empty Builder with no entry points set.
func NewBuilder() *Builder {
	return &Builder{img: Image{Main: -1, Alloc: -1, Msgf: -1}}
}

func (b *Builder) SetCode(code []byte) *Builder { b.img.Code = code; return b }

func (b *Builder) AddGlobal(g Global) int32 {
	b.img.Globals = append(b.img.Globals, g)
	return int32(len(b.img.Globals) - 1)
}

func (b *Builder) AddFunction(f Function) int32 {
	b.img.Functions = append(b.img.Functions, f)
	return int32(len(b.img.Functions) - 1)
}

func (b *Builder) AddStruct(s Struct) int32 {
	b.img.Structs = append(b.img.Structs, s)
	return int32(len(b.img.Structs) - 1)
}

func (b *Builder) AddLibrary(l Library) int32 {
	b.img.Libraries = append(b.img.Libraries, l)
	return int32(len(b.img.Libraries) - 1)
}

func (b *Builder) AddSwitch(s Switch) int32 {
	b.img.Switches = append(b.img.Switches, s)
	return int32(len(b.img.Switches) - 1)
}

func (b *Builder) AddMessage(s string) int32 {
	b.img.Messages = append(b.img.Messages, s)
	return int32(len(b.img.Messages) - 1)
}

func (b *Builder) AddString(s string) int32 {
	b.img.Strings = append(b.img.Strings, s)
	return int32(len(b.img.Strings) - 1)
}

func (b *Builder) AddFuncType(ft FuncType) int32 {
	b.img.FuncTypes = append(b.img.FuncTypes, ft)
	return int32(len(b.img.FuncTypes) - 1)
}

func (b *Builder) AddDelegateType(ft FuncType) int32 {
	b.img.Delegates = append(b.img.Delegates, ft)
	return int32(len(b.img.Delegates) - 1)
}

func (b *Builder) SetMain(i int32) *Builder  { b.img.Main = i; return b }
func (b *Builder) SetAlloc(i int32) *Builder { b.img.Alloc = i; return b }
func (b *Builder) SetMsgf(i int32) *Builder  { b.img.Msgf = i; return b }

// Build finalizes the Image. The returned Image is safe to share across
// goroutines for reads (it is never mutated again).
func (b *Builder) Build() *Image {
	img := b.img
	return &img
}
