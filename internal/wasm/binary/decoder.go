// Package binary decodes and encodes the WebAssembly binary module format,
// producing and consuming the in-memory wasm.Module representation.
package binary

import (
	"fmt"

	"github.com/wasmgc/wasmgc/internal/wasm"
)

// Magic and version are the eight fixed header bytes every module starts with.
var Magic = []byte{0x00, 0x61, 0x73, 0x6d}
var version = []byte{0x01, 0x00, 0x00, 0x00}

// DecodeModule parses the WebAssembly binary format into a wasm.Module.
// Custom sections (other than ones this package chooses to surface, which
// it does not) are preserved as OpaqueSection and otherwise ignored.
func DecodeModule(source []byte) (*wasm.Module, error) {
	if len(source) < 8 {
		return nil, WrapMalformed("invalid magic number")
	}
	for i, b := range Magic {
		if source[i] != b {
			return nil, WrapMalformed("invalid magic number")
		}
	}
	for i, b := range version {
		if source[8-4+i] != b {
			return nil, WrapMalformed("invalid version header")
		}
	}

	r := &reader{b: source, pos: 8}
	m := &wasm.Module{}

	for !r.atEOF() {
		idByte, err := r.readByte()
		if err != nil {
			return nil, fmt.Errorf("read section id: %w", err)
		}
		id := wasm.SectionID(idByte)

		size, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("section %s: read size: %w", wasm.SectionIDName(id), err)
		}
		if r.pos+int(size) > len(r.b) {
			return nil, WrapMalformed("section %s: size %d exceeds remaining input", wasm.SectionIDName(id), size)
		}
		payload := r.b[r.pos : r.pos+int(size)]
		sr := &reader{b: payload}

		var section wasm.Section
		switch id {
		case wasm.SectionIDType:
			section, err = decodeTypeSection(sr)
		case wasm.SectionIDImport:
			section, err = decodeImportSection(sr)
		case wasm.SectionIDFunction:
			section, err = decodeFunctionSection(sr)
		case wasm.SectionIDTable:
			section, err = decodeTableSection(sr)
		case wasm.SectionIDMemory:
			section, err = decodeMemorySection(sr)
		case wasm.SectionIDGlobal:
			section, err = decodeGlobalSection(sr)
		case wasm.SectionIDExport:
			section, err = decodeExportSection(sr)
		case wasm.SectionIDStart:
			section, err = decodeStartSection(sr)
		case wasm.SectionIDElement:
			section, err = decodeElementSection(sr)
		case wasm.SectionIDCode:
			section, err = decodeCodeSection(sr)
		case wasm.SectionIDData:
			section, err = decodeDataSection(sr)
		case wasm.SectionIDCustom:
			section = &wasm.OpaqueSection{ID: id, Payload: append([]byte(nil), payload...)}
		default:
			return nil, WrapMalformed("unknown section id 0x%x", idByte)
		}
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", wasm.SectionIDName(id), err)
		}

		m.Sections = append(m.Sections, section)
		r.pos += int(size)
	}

	return m, nil
}

func decodeLimits(r *reader) (wasm.Limits, error) {
	flag, err := r.readByte()
	if err != nil {
		return wasm.Limits{}, fmt.Errorf("read limits flag: %w", err)
	}
	min, err := r.readUint32()
	if err != nil {
		return wasm.Limits{}, fmt.Errorf("read limits min: %w", err)
	}
	l := wasm.Limits{Min: min}
	if flag == 1 {
		max, err := r.readUint32()
		if err != nil {
			return wasm.Limits{}, fmt.Errorf("read limits max: %w", err)
		}
		l.Max = &max
	}
	return l, nil
}

func decodeValueType(r *reader) (wasm.ValueType, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, fmt.Errorf("read value type: %w", err)
	}
	switch wasm.ValueType(b) {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64,
		wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		return wasm.ValueType(b), nil
	default:
		return 0, WrapMalformed("invalid value type 0x%x", b)
	}
}

func decodeTypeSection(r *reader) (*wasm.TypeSection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	types := make([]*wasm.FunctionType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.readByte()
		if err != nil {
			return nil, fmt.Errorf("type %d: read form: %w", i, err)
		}
		if form != 0x60 {
			return nil, WrapMalformed("type %d: expected func form 0x60, got 0x%x", i, form)
		}
		nParams, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("type %d: read param count: %w", i, err)
		}
		var params []wasm.ValueType
		if nParams > 0 {
			params = make([]wasm.ValueType, nParams)
		}
		for j := range params {
			if params[j], err = decodeValueType(r); err != nil {
				return nil, fmt.Errorf("type %d: param %d: %w", i, j, err)
			}
		}
		nResults, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("type %d: read result count: %w", i, err)
		}
		var results []wasm.ValueType
		if nResults > 0 {
			results = make([]wasm.ValueType, nResults)
		}
		for j := range results {
			if results[j], err = decodeValueType(r); err != nil {
				return nil, fmt.Errorf("type %d: result %d: %w", i, j, err)
			}
		}
		types = append(types, &wasm.FunctionType{Params: params, Results: results})
	}
	return &wasm.TypeSection{Types: types}, nil
}

func decodeImportSection(r *reader) (*wasm.ImportSection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	imports := make([]*wasm.Import, 0, count)
	for i := uint32(0); i < count; i++ {
		mod, err := r.readName()
		if err != nil {
			return nil, fmt.Errorf("import %d: module: %w", i, err)
		}
		name, err := r.readName()
		if err != nil {
			return nil, fmt.Errorf("import %d: name: %w", i, err)
		}
		kind, err := r.readByte()
		if err != nil {
			return nil, fmt.Errorf("import %d: read kind: %w", i, err)
		}
		im := &wasm.Import{Module: mod, Name: name, Type: wasm.ExternType(kind)}
		switch im.Type {
		case wasm.ExternTypeFunc:
			if im.DescFunc, err = r.readUint32(); err != nil {
				return nil, fmt.Errorf("import %d: func type index: %w", i, err)
			}
		case wasm.ExternTypeTable:
			elemType, err := r.readByte()
			if err != nil {
				return nil, fmt.Errorf("import %d: table elem type: %w", i, err)
			}
			_ = elemType
			lim, err := decodeLimits(r)
			if err != nil {
				return nil, fmt.Errorf("import %d: table limits: %w", i, err)
			}
			im.DescTable = &wasm.TableType{Limits: lim}
		case wasm.ExternTypeMemory:
			lim, err := decodeLimits(r)
			if err != nil {
				return nil, fmt.Errorf("import %d: memory limits: %w", i, err)
			}
			im.DescMem = &wasm.MemoryType{Limits: lim}
		case wasm.ExternTypeGlobal:
			vt, err := decodeValueType(r)
			if err != nil {
				return nil, fmt.Errorf("import %d: global value type: %w", i, err)
			}
			mutByte, err := r.readByte()
			if err != nil {
				return nil, fmt.Errorf("import %d: global mutability: %w", i, err)
			}
			im.DescGlobal = &wasm.GlobalType{ValType: vt, Mutable: mutByte == 1}
		default:
			return nil, WrapMalformed("import %d: invalid kind 0x%x", i, kind)
		}
		imports = append(imports, im)
	}
	return &wasm.ImportSection{Imports: imports}, nil
}

func decodeFunctionSection(r *reader) (*wasm.FunctionSection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	idx := make([]wasm.Index, count)
	for i := range idx {
		if idx[i], err = r.readUint32(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return &wasm.FunctionSection{TypeIndices: idx}, nil
}

func decodeTableSection(r *reader) (*wasm.TableSection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	tables := make([]*wasm.TableType, count)
	for i := range tables {
		elemType, err := r.readByte()
		if err != nil {
			return nil, fmt.Errorf("table %d: elem type: %w", i, err)
		}
		_ = elemType
		lim, err := decodeLimits(r)
		if err != nil {
			return nil, fmt.Errorf("table %d: limits: %w", i, err)
		}
		tables[i] = &wasm.TableType{Limits: lim}
	}
	return &wasm.TableSection{Tables: tables}, nil
}

func decodeMemorySection(r *reader) (*wasm.MemorySection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	mems := make([]*wasm.MemoryType, count)
	for i := range mems {
		lim, err := decodeLimits(r)
		if err != nil {
			return nil, fmt.Errorf("memory %d: limits: %w", i, err)
		}
		mems[i] = &wasm.MemoryType{Limits: lim}
	}
	return &wasm.MemorySection{Memories: mems}, nil
}

func decodeGlobalSection(r *reader) (*wasm.GlobalSection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	globals := make([]*wasm.Global, count)
	for i := range globals {
		vt, err := decodeValueType(r)
		if err != nil {
			return nil, fmt.Errorf("global %d: value type: %w", i, err)
		}
		mutByte, err := r.readByte()
		if err != nil {
			return nil, fmt.Errorf("global %d: mutability: %w", i, err)
		}
		init, err := r.decodeConstantExpression()
		if err != nil {
			return nil, fmt.Errorf("global %d: init expression: %w", i, err)
		}
		globals[i] = &wasm.Global{
			Type: &wasm.GlobalType{ValType: vt, Mutable: mutByte == 1},
			Init: init,
		}
	}
	return &wasm.GlobalSection{Globals: globals}, nil
}

func decodeExportSection(r *reader) (*wasm.ExportSection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	exports := make([]*wasm.Export, count)
	for i := range exports {
		name, err := r.readName()
		if err != nil {
			return nil, fmt.Errorf("export %d: name: %w", i, err)
		}
		kind, err := r.readByte()
		if err != nil {
			return nil, fmt.Errorf("export %d: kind: %w", i, err)
		}
		idx, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("export %d: index: %w", i, err)
		}
		exports[i] = &wasm.Export{Name: name, Type: wasm.ExternType(kind), Index: idx}
	}
	return &wasm.ExportSection{Exports: exports}, nil
}

func decodeStartSection(r *reader) (*wasm.StartSection, error) {
	idx, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read function index: %w", err)
	}
	return &wasm.StartSection{FuncIndex: idx}, nil
}

func decodeElementSection(r *reader) (*wasm.ElementSection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	elems := make([]*wasm.ElementSegment, count)
	for i := range elems {
		tableIdx, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("element %d: table index: %w", i, err)
		}
		offset, err := r.decodeConstantExpression()
		if err != nil {
			return nil, fmt.Errorf("element %d: offset expression: %w", i, err)
		}
		n, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("element %d: init count: %w", i, err)
		}
		init := make([]wasm.Index, n)
		for j := range init {
			if init[j], err = r.readUint32(); err != nil {
				return nil, fmt.Errorf("element %d: init %d: %w", i, j, err)
			}
		}
		elems[i] = &wasm.ElementSegment{TableIndex: tableIdx, OffsetExpr: offset, Init: init}
	}
	return &wasm.ElementSection{Elements: elems}, nil
}

func decodeCodeSection(r *reader) (*wasm.CodeSection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	codes := make([]*wasm.Code, count)
	for i := range codes {
		size, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("code %d: read size: %w", i, err)
		}
		body, err := r.readBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("code %d: read body: %w", i, err)
		}
		br := &reader{b: body}

		localEntryCount, err := br.readUint32()
		if err != nil {
			return nil, fmt.Errorf("code %d: local entry count: %w", i, err)
		}
		var locals []wasm.ValueType
		for j := uint32(0); j < localEntryCount; j++ {
			n, err := br.readUint32()
			if err != nil {
				return nil, fmt.Errorf("code %d: local group %d: count: %w", i, j, err)
			}
			vt, err := decodeValueType(br)
			if err != nil {
				return nil, fmt.Errorf("code %d: local group %d: type: %w", i, j, err)
			}
			for k := uint32(0); k < n; k++ {
				locals = append(locals, vt)
			}
		}
		bodyBytes := append([]byte(nil), body[br.pos:]...)
		codes[i] = &wasm.Code{LocalTypes: locals, Body: bodyBytes}
	}
	return &wasm.CodeSection{Codes: codes}, nil
}

func decodeDataSection(r *reader) (*wasm.DataSection, error) {
	count, err := r.readUint32()
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	segs := make([]*wasm.DataSegment, count)
	for i := range segs {
		memIdx, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("data %d: memory index: %w", i, err)
		}
		offset, err := r.decodeConstantExpression()
		if err != nil {
			return nil, fmt.Errorf("data %d: offset expression: %w", i, err)
		}
		n, err := r.readUint32()
		if err != nil {
			return nil, fmt.Errorf("data %d: init size: %w", i, err)
		}
		init, err := r.readBytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("data %d: init bytes: %w", i, err)
		}
		segs[i] = &wasm.DataSegment{
			MemoryIndex:      memIdx,
			OffsetExpression: offset,
			Init:             append([]byte(nil), init...),
		}
	}
	return &wasm.DataSection{Data: segs}, nil
}
