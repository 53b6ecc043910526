// Package wasm models the in-memory shape of a WebAssembly module as a
// sequence of typed sections, the structure the binary format itself uses.
package wasm

import "fmt"

// Index identifies an entry in one of the module's index spaces: function,
// type, table, memory, or global.
type Index = uint32

// ValueType is a WebAssembly value type byte.
type ValueType byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeFuncref   ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	default:
		return fmt.Sprintf("0x%x", byte(v))
	}
}

// ExternType classifies what an Import or Export refers to.
type ExternType byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

func (e ExternType) String() string {
	switch e {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	default:
		return fmt.Sprintf("0x%x", byte(e))
	}
}

// SectionID is the one-byte tag that precedes every section in the binary
// format, in module-order.
type SectionID byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
)

// SectionIDName returns the human-readable name of id, for diagnostics.
func SectionIDName(id SectionID) string {
	switch id {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	default:
		return fmt.Sprintf("unknown(0x%x)", byte(id))
	}
}

// FunctionType is an entry of the type section: zero or more parameter
// value types mapped to zero or more result value types.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// String renders the signature the way wazero's own function type keys do,
// e.g. "i32i32_i32" for (i32, i32) -> i32, "null_null" for () -> ().
func (t *FunctionType) String() string {
	return valueTypesString(t.Params) + "_" + valueTypesString(t.Results)
}

func valueTypesString(vs []ValueType) string {
	if len(vs) == 0 {
		return "null"
	}
	s := ""
	for _, v := range vs {
		s += v.String()
	}
	return s
}

// Limits is the (min, optional max) pair shared by table and memory types.
type Limits struct {
	Min uint32
	Max *uint32
}

// TableType describes a table declaration. The element type is always
// funcref in the MVP binary format this repository targets.
type TableType struct {
	Limits Limits
}

// MemoryType describes a memory declaration, in units of 64KiB pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// ConstantExpression is a constant initializer expression: a single
// instruction (i32.const, i64.const, f32.const, f64.const, or global.get)
// terminated by an end opcode that is not itself stored here.
type ConstantExpression struct {
	Opcode byte
	Data   []byte
}

// Global is a global section entry: its type and constant initializer.
type Global struct {
	Type *GlobalType
	Init ConstantExpression
}

// Import is an import section entry. Only the field matching Type is
// meaningful; the rest are zero.
type Import struct {
	Module, Name string
	Type         ExternType
	DescFunc     Index
	DescTable    *TableType
	DescMem      *MemoryType
	DescGlobal   *GlobalType
}

// Export is an export section entry.
type Export struct {
	Name  string
	Type  ExternType
	Index Index
}

// Code is a code section entry: one function body, paired positionally
// with the function section's type index of the same position.
type Code struct {
	LocalTypes []ValueType
	Body       []byte
}

// ElementSegment initializes a contiguous range of a table with function
// indices.
type ElementSegment struct {
	TableIndex Index
	OffsetExpr ConstantExpression
	Init       []Index
}

// DataSegment initializes a contiguous range of a memory with raw bytes.
type DataSegment struct {
	MemoryIndex     Index
	OffsetExpression ConstantExpression
	Init            []byte
}

// Section is implemented by every section variant a Module can hold. The
// unexported method keeps the set closed to this package.
type Section interface {
	SectionID() SectionID
	isSection()
}

type TypeSection struct{ Types []*FunctionType }

type ImportSection struct{ Imports []*Import }

// FunctionSection lists, for each defined (non-imported) function in
// order, the index into the type section describing its signature.
type FunctionSection struct{ TypeIndices []Index }

type TableSection struct{ Tables []*TableType }

type MemorySection struct{ Memories []*MemoryType }

type GlobalSection struct{ Globals []*Global }

type ExportSection struct{ Exports []*Export }

// StartSection names the function index (if any) to invoke on instantiation.
type StartSection struct{ FuncIndex Index }

type ElementSection struct{ Elements []*ElementSegment }

// CodeSection holds one body per defined function, in the same order as
// FunctionSection.TypeIndices.
type CodeSection struct{ Codes []*Code }

type DataSection struct{ Data []*DataSegment }

// OpaqueSection is a custom or otherwise unrecognized section preserved
// byte-for-byte. It is never touched by analysis or remapping.
type OpaqueSection struct {
	ID      SectionID
	Payload []byte
}

func (*TypeSection) SectionID() SectionID     { return SectionIDType }
func (*ImportSection) SectionID() SectionID   { return SectionIDImport }
func (*FunctionSection) SectionID() SectionID { return SectionIDFunction }
func (*TableSection) SectionID() SectionID    { return SectionIDTable }
func (*MemorySection) SectionID() SectionID   { return SectionIDMemory }
func (*GlobalSection) SectionID() SectionID   { return SectionIDGlobal }
func (*ExportSection) SectionID() SectionID   { return SectionIDExport }
func (*StartSection) SectionID() SectionID    { return SectionIDStart }
func (*ElementSection) SectionID() SectionID  { return SectionIDElement }
func (*CodeSection) SectionID() SectionID     { return SectionIDCode }
func (*DataSection) SectionID() SectionID     { return SectionIDData }
func (s *OpaqueSection) SectionID() SectionID { return s.ID }

func (*TypeSection) isSection()     {}
func (*ImportSection) isSection()   {}
func (*FunctionSection) isSection() {}
func (*TableSection) isSection()    {}
func (*MemorySection) isSection()   {}
func (*GlobalSection) isSection()   {}
func (*ExportSection) isSection()   {}
func (*StartSection) isSection()    {}
func (*ElementSection) isSection()  {}
func (*CodeSection) isSection()     {}
func (*DataSection) isSection()     {}
func (*OpaqueSection) isSection()   {}

// Module is an ordered sequence of sections, mirroring the binary format's
// section-at-a-time framing.
type Module struct {
	Sections []Section
}

// TypeSection returns the module's type section, or nil if absent.
func (m *Module) TypeSection() *TypeSection {
	for _, s := range m.Sections {
		if t, ok := s.(*TypeSection); ok {
			return t
		}
	}
	return nil
}

// ImportSection returns the module's import section, or nil if absent.
func (m *Module) ImportSection() *ImportSection {
	for _, s := range m.Sections {
		if t, ok := s.(*ImportSection); ok {
			return t
		}
	}
	return nil
}

// FunctionSection returns the module's function section, or nil if absent.
func (m *Module) FunctionSection() *FunctionSection {
	for _, s := range m.Sections {
		if t, ok := s.(*FunctionSection); ok {
			return t
		}
	}
	return nil
}

// TableSection returns the module's table section, or nil if absent.
func (m *Module) TableSection() *TableSection {
	for _, s := range m.Sections {
		if t, ok := s.(*TableSection); ok {
			return t
		}
	}
	return nil
}

// MemorySection returns the module's memory section, or nil if absent.
func (m *Module) MemorySection() *MemorySection {
	for _, s := range m.Sections {
		if t, ok := s.(*MemorySection); ok {
			return t
		}
	}
	return nil
}

// GlobalSection returns the module's global section, or nil if absent.
func (m *Module) GlobalSection() *GlobalSection {
	for _, s := range m.Sections {
		if t, ok := s.(*GlobalSection); ok {
			return t
		}
	}
	return nil
}

// ExportSection returns the module's export section, or nil if absent.
func (m *Module) ExportSection() *ExportSection {
	for _, s := range m.Sections {
		if t, ok := s.(*ExportSection); ok {
			return t
		}
	}
	return nil
}

// StartSection returns the module's start section, or nil if absent.
func (m *Module) StartSection() *StartSection {
	for _, s := range m.Sections {
		if t, ok := s.(*StartSection); ok {
			return t
		}
	}
	return nil
}

// ElementSection returns the module's element section, or nil if absent.
func (m *Module) ElementSection() *ElementSection {
	for _, s := range m.Sections {
		if t, ok := s.(*ElementSection); ok {
			return t
		}
	}
	return nil
}

// CodeSection returns the module's code section, or nil if absent.
func (m *Module) CodeSection() *CodeSection {
	for _, s := range m.Sections {
		if t, ok := s.(*CodeSection); ok {
			return t
		}
	}
	return nil
}

// DataSection returns the module's data section, or nil if absent.
func (m *Module) DataSection() *DataSection {
	for _, s := range m.Sections {
		if t, ok := s.(*DataSection); ok {
			return t
		}
	}
	return nil
}

// NumFunctionImports returns the number of entries in the import section,
// regardless of their Type. The shared function index space is defined as
// import-section-entries-then-defined-functions: every import occupies a
// function index slot here, matching the tool this package's remapper is
// ported from rather than filtering by ExternType.
func (m *Module) NumFunctionImports() uint32 {
	if im := m.ImportSection(); im != nil {
		return uint32(len(im.Imports))
	}
	return 0
}

// NumFunctions returns the size of the shared function index space:
// NumFunctionImports plus the number of defined functions.
func (m *Module) NumFunctions() uint32 {
	n := m.NumFunctionImports()
	if fs := m.FunctionSection(); fs != nil {
		n += uint32(len(fs.TypeIndices))
	}
	return n
}
