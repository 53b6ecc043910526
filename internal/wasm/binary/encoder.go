package binary

import (
	"github.com/wasmgc/wasmgc/internal/leb128"
	"github.com/wasmgc/wasmgc/internal/wasm"
)

// EncodeModule serializes m back to the WebAssembly binary format, writing
// sections in m.Sections order.
func EncodeModule(m *wasm.Module) []byte {
	out := append([]byte{}, Magic...)
	out = append(out, version...)
	for _, s := range m.Sections {
		payload := encodeSectionPayload(s)
		out = append(out, byte(s.SectionID()))
		out = append(out, leb128.EncodeUint32(uint32(len(payload)))...)
		out = append(out, payload...)
	}
	return out
}

func encodeSectionPayload(s wasm.Section) []byte {
	switch t := s.(type) {
	case *wasm.TypeSection:
		return encodeTypeSection(t)
	case *wasm.ImportSection:
		return encodeImportSection(t)
	case *wasm.FunctionSection:
		return encodeFunctionSection(t)
	case *wasm.TableSection:
		return encodeTableSection(t)
	case *wasm.MemorySection:
		return encodeMemorySection(t)
	case *wasm.GlobalSection:
		return encodeGlobalSection(t)
	case *wasm.ExportSection:
		return encodeExportSection(t)
	case *wasm.StartSection:
		return leb128.EncodeUint32(t.FuncIndex)
	case *wasm.ElementSection:
		return encodeElementSection(t)
	case *wasm.CodeSection:
		return encodeCodeSection(t)
	case *wasm.DataSection:
		return encodeDataSection(t)
	case *wasm.OpaqueSection:
		return t.Payload
	default:
		panic("binary: unknown section type")
	}
}

func encodeName(s string) []byte {
	out := leb128.EncodeUint32(uint32(len(s)))
	return append(out, s...)
}

func encodeLimits(l wasm.Limits) []byte {
	if l.Max == nil {
		out := []byte{0x00}
		return append(out, leb128.EncodeUint32(l.Min)...)
	}
	out := []byte{0x01}
	out = append(out, leb128.EncodeUint32(l.Min)...)
	return append(out, leb128.EncodeUint32(*l.Max)...)
}

func encodeTypeSection(t *wasm.TypeSection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.Types)))
	for _, ft := range t.Types {
		out = append(out, 0x60)
		out = append(out, leb128.EncodeUint32(uint32(len(ft.Params)))...)
		for _, p := range ft.Params {
			out = append(out, byte(p))
		}
		out = append(out, leb128.EncodeUint32(uint32(len(ft.Results)))...)
		for _, r := range ft.Results {
			out = append(out, byte(r))
		}
	}
	return out
}

func encodeImportSection(t *wasm.ImportSection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.Imports)))
	for _, im := range t.Imports {
		out = append(out, encodeName(im.Module)...)
		out = append(out, encodeName(im.Name)...)
		out = append(out, byte(im.Type))
		switch im.Type {
		case wasm.ExternTypeFunc:
			out = append(out, leb128.EncodeUint32(im.DescFunc)...)
		case wasm.ExternTypeTable:
			out = append(out, byte(wasm.ValueTypeFuncref))
			out = append(out, encodeLimits(im.DescTable.Limits)...)
		case wasm.ExternTypeMemory:
			out = append(out, encodeLimits(im.DescMem.Limits)...)
		case wasm.ExternTypeGlobal:
			out = append(out, byte(im.DescGlobal.ValType))
			out = append(out, boolByte(im.DescGlobal.Mutable))
		}
	}
	return out
}

func encodeFunctionSection(t *wasm.FunctionSection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.TypeIndices)))
	for _, idx := range t.TypeIndices {
		out = append(out, leb128.EncodeUint32(idx)...)
	}
	return out
}

func encodeTableSection(t *wasm.TableSection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.Tables)))
	for _, tbl := range t.Tables {
		out = append(out, byte(wasm.ValueTypeFuncref))
		out = append(out, encodeLimits(tbl.Limits)...)
	}
	return out
}

func encodeMemorySection(t *wasm.MemorySection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.Memories)))
	for _, mem := range t.Memories {
		out = append(out, encodeLimits(mem.Limits)...)
	}
	return out
}

func encodeGlobalSection(t *wasm.GlobalSection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.Globals)))
	for _, g := range t.Globals {
		out = append(out, byte(g.Type.ValType))
		out = append(out, boolByte(g.Type.Mutable))
		out = append(out, encodeConstantExpression(g.Init)...)
	}
	return out
}

func encodeExportSection(t *wasm.ExportSection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.Exports)))
	for _, e := range t.Exports {
		out = append(out, encodeName(e.Name)...)
		out = append(out, byte(e.Type))
		out = append(out, leb128.EncodeUint32(e.Index)...)
	}
	return out
}

func encodeElementSection(t *wasm.ElementSection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.Elements)))
	for _, e := range t.Elements {
		out = append(out, leb128.EncodeUint32(e.TableIndex)...)
		out = append(out, encodeConstantExpression(e.OffsetExpr)...)
		out = append(out, leb128.EncodeUint32(uint32(len(e.Init)))...)
		for _, idx := range e.Init {
			out = append(out, leb128.EncodeUint32(idx)...)
		}
	}
	return out
}

func encodeCodeSection(t *wasm.CodeSection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.Codes)))
	for _, c := range t.Codes {
		body := encodeLocals(c.LocalTypes)
		body = append(body, c.Body...)
		out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
		out = append(out, body...)
	}
	return out
}

// encodeLocals groups consecutive identical local types into runs, the way
// a well-formed module does, rather than emitting one run per local.
func encodeLocals(locals []wasm.ValueType) []byte {
	type run struct {
		vt    wasm.ValueType
		count uint32
	}
	var runs []run
	for _, vt := range locals {
		if len(runs) > 0 && runs[len(runs)-1].vt == vt {
			runs[len(runs)-1].count++
		} else {
			runs = append(runs, run{vt: vt, count: 1})
		}
	}
	out := leb128.EncodeUint32(uint32(len(runs)))
	for _, rn := range runs {
		out = append(out, leb128.EncodeUint32(rn.count)...)
		out = append(out, byte(rn.vt))
	}
	return out
}

func encodeDataSection(t *wasm.DataSection) []byte {
	out := leb128.EncodeUint32(uint32(len(t.Data)))
	for _, d := range t.Data {
		out = append(out, leb128.EncodeUint32(d.MemoryIndex)...)
		out = append(out, encodeConstantExpression(d.OffsetExpression)...)
		out = append(out, leb128.EncodeUint32(uint32(len(d.Init)))...)
		out = append(out, d.Init...)
	}
	return out
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
