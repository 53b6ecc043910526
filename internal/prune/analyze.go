package prune

import (
	"github.com/wasmgc/wasmgc/internal/leb128"
	"github.com/wasmgc/wasmgc/internal/wasm"
)

// indexSet is an idempotent set of indices into one of the module's index
// spaces.
type indexSet map[wasm.Index]struct{}

// add reports whether idx was newly inserted, so callers can skip
// re-walking an already-live entity.
func (s indexSet) add(idx wasm.Index) bool {
	if _, ok := s[idx]; ok {
		return false
	}
	s[idx] = struct{}{}
	return true
}

func (s indexSet) has(idx wasm.Index) bool {
	_, ok := s[idx]
	return ok
}

// Analysis is the set of indices, in each of the module's index spaces,
// reachable from its roots.
type Analysis struct {
	Functions indexSet // shared index space: imports then defined functions
	Codes     indexSet // defined-function-relative (0-based, excludes imports)
	Tables    indexSet
	Memories  indexSet
	Globals   indexSet
	Types     indexSet
	Imports   indexSet // raw import-section position; only ever set through a function index below NumFunctionImports
	Exports   indexSet // export-section position
}

type analyzer struct {
	module    *wasm.Module
	blacklist map[string]struct{}
	an        Analysis
}

// Analyze walks every root the module exposes — non-blacklisted exports,
// data segments, every declared table, element segments, and the start
// function — marking everything transitively reachable from them.
//
// Every declared table is a root regardless of whether anything
// references it: the original tool this pass is ported from never
// eliminates tables, only functions, types, memories, and globals.
func Analyze(module *wasm.Module, blacklist map[string]struct{}) (*Analysis, error) {
	a := &analyzer{
		module:    module,
		blacklist: blacklist,
		an: Analysis{
			Functions: indexSet{},
			Codes:     indexSet{},
			Tables:    indexSet{},
			Memories:  indexSet{},
			Globals:   indexSet{},
			Types:     indexSet{},
			Imports:   indexSet{},
			Exports:   indexSet{},
		},
	}

	if es := module.ExportSection(); es != nil {
		for i, e := range es.Exports {
			if err := a.addExportEntry(e, wasm.Index(i)); err != nil {
				return nil, err
			}
		}
	}
	if ds := module.DataSection(); ds != nil {
		for _, d := range ds.Data {
			if err := a.addDataSegment(d); err != nil {
				return nil, err
			}
		}
	}
	if ts := module.TableSection(); ts != nil {
		for i := range ts.Tables {
			if err := a.addTable(wasm.Index(i)); err != nil {
				return nil, err
			}
		}
	}
	if els := module.ElementSection(); els != nil {
		for _, seg := range els.Elements {
			if err := a.addElementSegment(seg); err != nil {
				return nil, err
			}
		}
	}
	if ss := module.StartSection(); ss != nil {
		if err := a.addFunction(ss.FuncIndex); err != nil {
			return nil, err
		}
	}

	return &a.an, nil
}

// addFunction marks idx live in the shared function index space. When idx
// falls within the import section's length, it is resolved directly
// against that section's entries without checking that the entry is
// actually a function import — the shared index space this pass models
// assumes every import is a function import, the same simplification the
// ported tool makes (see DESIGN.md).
func (a *analyzer) addFunction(idx wasm.Index) error {
	if !a.an.Functions.add(idx) {
		return nil
	}
	nimports := a.module.NumFunctionImports()
	if idx < nimports {
		a.an.Imports.add(idx)
		im := a.module.ImportSection().Imports[idx]
		return a.addImportEntry(im)
	}

	codeIdx := idx - nimports
	a.an.Codes.add(codeIdx)

	fs := a.module.FunctionSection()
	if fs == nil || int(codeIdx) >= len(fs.TypeIndices) {
		return WrapInconsistent("function index %d has no function section entry", idx)
	}
	if err := a.addType(fs.TypeIndices[codeIdx]); err != nil {
		return err
	}

	cs := a.module.CodeSection()
	if cs == nil || int(codeIdx) >= len(cs.Codes) {
		return WrapInconsistent("function index %d has no code section entry", idx)
	}
	return a.addFuncBody(cs.Codes[codeIdx])
}

// addImportEntry marks the type referenced by a function import live.
// Table, memory, and global imports carry no further reference. Their
// position enters Imports only when a function index resolves to their
// slot in addFunction; a table, memory, or global import that no function
// index reaches is dropped by the remapper regardless of other use (see
// DESIGN.md).
func (a *analyzer) addImportEntry(im *wasm.Import) error {
	if im.Type == wasm.ExternTypeFunc {
		return a.addType(im.DescFunc)
	}
	return nil
}

func (a *analyzer) addTable(idx wasm.Index) error {
	if !a.an.Tables.add(idx) {
		return nil
	}
	ts := a.module.TableSection()
	if ts == nil || int(idx) >= len(ts.Tables) {
		return WrapInconsistent("table index %d out of range", idx)
	}
	return nil
}

func (a *analyzer) addMemory(idx wasm.Index) error {
	if !a.an.Memories.add(idx) {
		return nil
	}
	ms := a.module.MemorySection()
	if ms == nil || int(idx) >= len(ms.Memories) {
		return WrapInconsistent("memory index %d out of range", idx)
	}
	return nil
}

func (a *analyzer) addGlobal(idx wasm.Index) error {
	if !a.an.Globals.add(idx) {
		return nil
	}
	gs := a.module.GlobalSection()
	if gs == nil || int(idx) >= len(gs.Globals) {
		return WrapInconsistent("global index %d out of range", idx)
	}
	return a.walkConstExpr(gs.Globals[idx].Init)
}

func (a *analyzer) addType(idx wasm.Index) error {
	if !a.an.Types.add(idx) {
		return nil
	}
	ts := a.module.TypeSection()
	if ts == nil || int(idx) >= len(ts.Types) {
		return WrapInconsistent("type index %d out of range", idx)
	}
	return nil
}

func (a *analyzer) addFuncBody(c *wasm.Code) error {
	return wasm.WalkInstructions(c.Body, func(kind wasm.RefKind, value uint32, _, _ int) error {
		switch kind {
		case wasm.RefFunc:
			return a.addFunction(value)
		case wasm.RefType:
			return a.addType(value)
		case wasm.RefGlobal:
			return a.addGlobal(value)
		}
		return nil
	})
}

func (a *analyzer) walkConstExpr(c wasm.ConstantExpression) error {
	if c.Opcode != wasm.OpcodeGlobalGet {
		return nil
	}
	idx, _, err := leb128.LoadUint32(c.Data)
	if err != nil {
		return WrapInconsistent("global.get operand in const expression: %v", err)
	}
	return a.addGlobal(idx)
}

func (a *analyzer) addExportEntry(e *wasm.Export, pos wasm.Index) error {
	if _, blacklisted := a.blacklist[e.Name]; blacklisted {
		return nil
	}
	a.an.Exports.add(pos)
	switch e.Type {
	case wasm.ExternTypeFunc:
		return a.addFunction(e.Index)
	case wasm.ExternTypeTable:
		return a.addTable(e.Index)
	case wasm.ExternTypeMemory:
		return a.addMemory(e.Index)
	case wasm.ExternTypeGlobal:
		return a.addGlobal(e.Index)
	}
	return nil
}

func (a *analyzer) addDataSegment(d *wasm.DataSegment) error {
	if err := a.addMemory(d.MemoryIndex); err != nil {
		return err
	}
	return a.walkConstExpr(d.OffsetExpression)
}

func (a *analyzer) addElementSegment(e *wasm.ElementSegment) error {
	for _, idx := range e.Init {
		if err := a.addFunction(idx); err != nil {
			return err
		}
	}
	if err := a.addTable(e.TableIndex); err != nil {
		return err
	}
	return a.walkConstExpr(e.OffsetExpr)
}
