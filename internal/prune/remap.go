package prune

import (
	"math"

	"github.com/wasmgc/wasmgc/internal/leb128"
	"github.com/wasmgc/wasmgc/internal/wasm"
)

// deadIndex is the sentinel a translation vector holds for an index that
// was not retained; looking one up during remapping is an internal
// inconsistency, since analysis and remapping are built from the same
// traversal and every live reference should resolve.
const deadIndex = wasm.Index(math.MaxUint32)

// RemovedEntity records one entry dropped from an index space, for the
// driver to log.
type RemovedEntity struct {
	Kind  string // "type", "import", "function", "table", "memory", "global", "export", or "code"
	Index wasm.Index
}

// Report summarizes what a Remap call removed.
type Report struct {
	Removed         []RemovedEntity
	DroppedSections []wasm.SectionID
}

// Remapper builds translation vectors for the five shared index spaces
// from an Analysis, then rewrites every cross-reference in the module to
// use them.
type Remapper struct {
	analysis *Analysis

	functions []wasm.Index
	globals   []wasm.Index
	types     []wasm.Index
	tables    []wasm.Index
	memories  []wasm.Index
	nimports  wasm.Index

	report Report
}

// remapVector builds a translation vector of length max: retained[i] maps
// to its new, hole-free position; everything else maps to deadIndex.
func remapVector(max wasm.Index, retained indexSet) []wasm.Index {
	v := make([]wasm.Index, 0, max)
	var offset wasm.Index
	for i := wasm.Index(0); i < max; i++ {
		if retained.has(i) {
			v = append(v, i-offset)
		} else {
			v = append(v, deadIndex)
			offset++
		}
	}
	return v
}

// NewRemapper builds the translation vectors needed to remap module
// against analysis. It must be constructed before any section is mutated,
// since the vectors are sized from the module's original section lengths.
func NewRemapper(module *wasm.Module, analysis *Analysis) *Remapper {
	nimports := module.NumFunctionImports()

	var nfuncs wasm.Index
	if fs := module.FunctionSection(); fs != nil {
		nfuncs = wasm.Index(len(fs.TypeIndices))
	}
	var nglobals wasm.Index
	if gs := module.GlobalSection(); gs != nil {
		nglobals = wasm.Index(len(gs.Globals))
	}
	var nmem wasm.Index
	if ms := module.MemorySection(); ms != nil {
		nmem = wasm.Index(len(ms.Memories))
	}
	var ntables wasm.Index
	if ts := module.TableSection(); ts != nil {
		ntables = wasm.Index(len(ts.Tables))
	}
	var ntypes wasm.Index
	if ts := module.TypeSection(); ts != nil {
		ntypes = wasm.Index(len(ts.Types))
	}

	return &Remapper{
		analysis:  analysis,
		functions: remapVector(nfuncs+nimports, analysis.Functions),
		globals:   remapVector(nglobals, analysis.Globals),
		types:     remapVector(ntypes, analysis.Types),
		tables:    remapVector(ntables, analysis.Tables),
		memories:  remapVector(nmem, analysis.Memories),
		nimports:  nimports,
	}
}

// Remap deletes everything analysis did not mark live from module, in
// place, rewriting every surviving cross-reference to the new, hole-free
// indices. Sections left with zero entries are dropped, except Start
// (always either present or absent as a whole, never emptied by this
// pass), Element, and Data, which the module format allows to be empty
// and which the ported tool never drops on that basis.
func Remap(module *wasm.Module, analysis *Analysis) (*Report, error) {
	r := NewRemapper(module, analysis)

	kept := make([]wasm.Section, 0, len(module.Sections))
	for _, s := range module.Sections {
		retainSection := true
		var err error
		switch t := s.(type) {
		case *wasm.TypeSection:
			retainSection, err = r.remapTypeSection(t)
		case *wasm.ImportSection:
			retainSection, err = r.remapImportSection(t)
		case *wasm.FunctionSection:
			retainSection, err = r.remapFunctionSection(t)
		case *wasm.TableSection:
			retainSection, err = r.remapTableSection(t)
		case *wasm.MemorySection:
			retainSection, err = r.remapMemorySection(t)
		case *wasm.GlobalSection:
			retainSection, err = r.remapGlobalSection(t)
		case *wasm.ExportSection:
			retainSection, err = r.remapExportSection(t)
		case *wasm.StartSection:
			retainSection, err = r.remapStartSection(t)
		case *wasm.ElementSection:
			retainSection, err = r.remapElementSection(t)
		case *wasm.CodeSection:
			retainSection, err = r.remapCodeSection(t)
		case *wasm.DataSection:
			retainSection, err = r.remapDataSection(t)
		case *wasm.OpaqueSection:
			// Custom sections pass through untouched.
		}
		if err != nil {
			return nil, err
		}
		if retainSection {
			kept = append(kept, s)
		} else {
			r.report.DroppedSections = append(r.report.DroppedSections, s.SectionID())
		}
	}
	module.Sections = kept

	return &r.report, nil
}

// retain drops every element of *slice whose position (plus offset) is not
// in retained, scanning in descending order so earlier removals never
// shift the index of an element still to be checked. Surviving elements
// keep their relative order.
func retain[T any](report *Report, kind string, slice *[]T, retained indexSet, offset wasm.Index) {
	s := *slice
	for i := len(s) - 1; i >= 0; i-- {
		idx := wasm.Index(i) + offset
		if !retained.has(idx) {
			report.Removed = append(report.Removed, RemovedEntity{Kind: kind, Index: idx})
			s = append(s[:i], s[i+1:]...)
		}
	}
	*slice = s
}

func (r *Remapper) functionIdx(i wasm.Index) (wasm.Index, error) {
	return lookupIdx(r.functions, i, "function")
}

func (r *Remapper) globalIdx(i wasm.Index) (wasm.Index, error) {
	return lookupIdx(r.globals, i, "global")
}

func (r *Remapper) typeIdx(i wasm.Index) (wasm.Index, error) {
	return lookupIdx(r.types, i, "type")
}

func (r *Remapper) tableIdx(i wasm.Index) (wasm.Index, error) {
	return lookupIdx(r.tables, i, "table")
}

func (r *Remapper) memoryIdx(i wasm.Index) (wasm.Index, error) {
	return lookupIdx(r.memories, i, "memory")
}

func lookupIdx(v []wasm.Index, i wasm.Index, kind string) (wasm.Index, error) {
	if int(i) >= len(v) {
		return 0, WrapInconsistent("%s index %d out of range during remap", kind, i)
	}
	newIdx := v[i]
	if newIdx == deadIndex {
		return 0, WrapInconsistent("%s index %d resolves to a removed %s", kind, i, kind)
	}
	return newIdx, nil
}

func (r *Remapper) remapConstExpr(c *wasm.ConstantExpression) error {
	if c.Opcode != wasm.OpcodeGlobalGet {
		return nil
	}
	idx, _, err := leb128.LoadUint32(c.Data)
	if err != nil {
		return WrapInconsistent("global.get operand in const expression: %v", err)
	}
	newIdx, err := r.globalIdx(idx)
	if err != nil {
		return err
	}
	c.Data = leb128.EncodeUint32(newIdx)
	return nil
}

func (r *Remapper) remapTypeSection(s *wasm.TypeSection) (bool, error) {
	retain(&r.report, "type", &s.Types, r.analysis.Types, 0)
	return len(s.Types) > 0, nil
}

func (r *Remapper) remapImportSection(s *wasm.ImportSection) (bool, error) {
	retain(&r.report, "import", &s.Imports, r.analysis.Imports, 0)
	for _, im := range s.Imports {
		if im.Type == wasm.ExternTypeFunc {
			newIdx, err := r.typeIdx(im.DescFunc)
			if err != nil {
				return false, err
			}
			im.DescFunc = newIdx
		}
	}
	return len(s.Imports) > 0, nil
}

func (r *Remapper) remapFunctionSection(s *wasm.FunctionSection) (bool, error) {
	retain(&r.report, "function", &s.TypeIndices, r.analysis.Functions, r.nimports)
	for i, idx := range s.TypeIndices {
		newIdx, err := r.typeIdx(idx)
		if err != nil {
			return false, err
		}
		s.TypeIndices[i] = newIdx
	}
	return len(s.TypeIndices) > 0, nil
}

func (r *Remapper) remapTableSection(s *wasm.TableSection) (bool, error) {
	retain(&r.report, "table", &s.Tables, r.analysis.Tables, 0)
	return len(s.Tables) > 0, nil
}

func (r *Remapper) remapMemorySection(s *wasm.MemorySection) (bool, error) {
	retain(&r.report, "memory", &s.Memories, r.analysis.Memories, 0)
	return len(s.Memories) > 0, nil
}

func (r *Remapper) remapGlobalSection(s *wasm.GlobalSection) (bool, error) {
	retain(&r.report, "global", &s.Globals, r.analysis.Globals, 0)
	for _, g := range s.Globals {
		if err := r.remapConstExpr(&g.Init); err != nil {
			return false, err
		}
	}
	return len(s.Globals) > 0, nil
}

func (r *Remapper) remapExportSection(s *wasm.ExportSection) (bool, error) {
	retain(&r.report, "export", &s.Exports, r.analysis.Exports, 0)
	for _, e := range s.Exports {
		var newIdx wasm.Index
		var err error
		switch e.Type {
		case wasm.ExternTypeFunc:
			newIdx, err = r.functionIdx(e.Index)
		case wasm.ExternTypeTable:
			newIdx, err = r.tableIdx(e.Index)
		case wasm.ExternTypeMemory:
			newIdx, err = r.memoryIdx(e.Index)
		case wasm.ExternTypeGlobal:
			newIdx, err = r.globalIdx(e.Index)
		}
		if err != nil {
			return false, err
		}
		e.Index = newIdx
	}
	return len(s.Exports) > 0, nil
}

// remapStartSection is never asked to drop the start section: absence vs.
// presence of a start function is module-level, not index-space-driven.
func (r *Remapper) remapStartSection(s *wasm.StartSection) (bool, error) {
	newIdx, err := r.functionIdx(s.FuncIndex)
	if err != nil {
		return false, err
	}
	s.FuncIndex = newIdx
	return true, nil
}

// remapElementSection never drops the element section and never deletes
// a segment: segments are always roots (every member function and the
// segment's own table are already live by construction), so this only
// rewrites indices.
func (r *Remapper) remapElementSection(s *wasm.ElementSection) (bool, error) {
	for _, e := range s.Elements {
		newTableIdx, err := r.tableIdx(e.TableIndex)
		if err != nil {
			return false, err
		}
		e.TableIndex = newTableIdx

		for i, idx := range e.Init {
			newIdx, err := r.functionIdx(idx)
			if err != nil {
				return false, err
			}
			e.Init[i] = newIdx
		}

		if err := r.remapConstExpr(&e.OffsetExpr); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *Remapper) remapCodeSection(s *wasm.CodeSection) (bool, error) {
	retain(&r.report, "code", &s.Codes, r.analysis.Codes, 0)
	for _, c := range s.Codes {
		if err := r.remapFuncBody(c); err != nil {
			return false, err
		}
	}
	return len(s.Codes) > 0, nil
}

// remapFuncBody rebuilds c.Body by copying it verbatim except for each
// call, call_indirect, or global.get/set immediate, which is replaced by
// its remapped index re-encoded as LEB128. The replacement's encoded
// length may differ from the original's, so this splices rather than
// patches bytes in place.
func (r *Remapper) remapFuncBody(c *wasm.Code) error {
	var out []byte
	last := 0
	err := wasm.WalkInstructions(c.Body, func(kind wasm.RefKind, value uint32, offset, length int) error {
		if kind == wasm.RefNone {
			return nil
		}
		var newIdx wasm.Index
		var err error
		switch kind {
		case wasm.RefFunc:
			newIdx, err = r.functionIdx(value)
		case wasm.RefType:
			newIdx, err = r.typeIdx(value)
		case wasm.RefGlobal:
			newIdx, err = r.globalIdx(value)
		}
		if err != nil {
			return err
		}
		out = append(out, c.Body[last:offset]...)
		out = append(out, leb128.EncodeUint32(newIdx)...)
		last = offset + length
		return nil
	})
	if err != nil {
		return err
	}
	out = append(out, c.Body[last:]...)
	c.Body = out
	return nil
}

func (r *Remapper) remapDataSection(s *wasm.DataSection) (bool, error) {
	for _, d := range s.Data {
		newMemIdx, err := r.memoryIdx(d.MemoryIndex)
		if err != nil {
			return false, err
		}
		d.MemoryIndex = newMemIdx
		if err := r.remapConstExpr(&d.OffsetExpression); err != nil {
			return false, err
		}
	}
	return true, nil
}
