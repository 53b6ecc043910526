package prune

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmgc/wasmgc/internal/wasm"
)

func pruneModule(t *testing.T, m *wasm.Module, blacklist map[string]struct{}) *Report {
	t.Helper()
	a, err := Analyze(m, blacklist)
	require.NoError(t, err)
	report, err := Remap(m, a)
	require.NoError(t, err)
	return report
}

func TestRemap_UnusedHelperRemoved(t *testing.T) {
	m := buildModule()
	report := pruneModule(t, m, DefaultBlacklist())

	fs := m.FunctionSection()
	require.Len(t, fs.TypeIndices, 2, "function 1 (blacklisted, uncalled) is dropped; functions 0 and 2 remain")

	var removedFunc bool
	for _, rm := range report.Removed {
		if rm.Kind == "function" {
			removedFunc = true
		}
	}
	require.True(t, removedFunc)
}

func TestRemap_ExportIndexRewritten(t *testing.T) {
	m := buildModule()
	pruneModule(t, m, DefaultBlacklist())

	es := m.ExportSection()
	require.Len(t, es.Exports, 1, "the blacklisted \"main\" export is dropped along with function 1")
	require.Equal(t, "run", es.Exports[0].Name)
	require.Equal(t, wasm.Index(0), es.Exports[0].Index, "function 0 keeps index 0: nothing before it was removed")
}

func TestRemap_ElementSegmentFunctionIndexRewritten(t *testing.T) {
	m := buildModule()
	pruneModule(t, m, DefaultBlacklist())

	els := m.ElementSection()
	require.Len(t, els.Elements, 1)
	// Function 2 survives as the second retained function (0, 2) -> new index 1.
	require.Equal(t, []wasm.Index{1}, els.Elements[0].Init)
}

func TestRemap_GlobalChainIndicesRewritten(t *testing.T) {
	m := &wasm.Module{Sections: []wasm.Section{
		&wasm.TypeSection{Types: []*wasm.FunctionType{{}}},
		&wasm.FunctionSection{TypeIndices: []wasm.Index{0}},
		&wasm.GlobalSection{Globals: []*wasm.Global{
			{Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x00}}}, // unused
			{Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeGlobalGet, Data: []byte{0x02}}}, // used, refs global 2
			{Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x07}}}, // used
		}},
		&wasm.ExportSection{Exports: []*wasm.Export{{Name: "g", Type: wasm.ExternTypeGlobal, Index: 1}}},
		&wasm.CodeSection{Codes: []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}}},
	}}
	report := pruneModule(t, m, nil)

	gs := m.GlobalSection()
	require.Len(t, gs.Globals, 2, "global 0 is unreferenced and removed")
	// Surviving globals are old indices 1 (now 0) and 2 (now 1).
	require.Equal(t, wasm.OpcodeGlobalGet, gs.Globals[0].Init.Opcode)
	require.Equal(t, []byte{0x01}, gs.Globals[0].Init.Data, "old global index 2 is remapped to new index 1")

	es := m.ExportSection()
	require.Equal(t, wasm.Index(0), es.Exports[0].Index, "export of old global 1 now points at new index 0")

	var removedGlobal bool
	for _, rm := range report.Removed {
		if rm.Kind == "global" && rm.Index == 0 {
			removedGlobal = true
		}
	}
	require.True(t, removedGlobal)
}

func TestRemap_EmptySectionDropped(t *testing.T) {
	m := &wasm.Module{Sections: []wasm.Section{
		&wasm.TypeSection{Types: []*wasm.FunctionType{{}}},
	}}
	report := pruneModule(t, m, nil)
	require.Empty(t, m.Sections, "the only section had its sole type removed, so it is dropped entirely")
	require.Contains(t, report.DroppedSections, wasm.SectionIDType)
}

func TestRemap_ElementAndDataSectionsNeverDropped(t *testing.T) {
	m := &wasm.Module{Sections: []wasm.Section{
		&wasm.ElementSection{},
		&wasm.DataSection{},
		&wasm.StartSection{FuncIndex: 0},
		&wasm.FunctionSection{TypeIndices: []wasm.Index{0}},
		&wasm.TypeSection{Types: []*wasm.FunctionType{{}}},
		&wasm.CodeSection{Codes: []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}}},
	}}
	report := pruneModule(t, m, nil)
	require.NotContains(t, report.DroppedSections, wasm.SectionIDElement)
	require.NotContains(t, report.DroppedSections, wasm.SectionIDData)

	var hasElement, hasData bool
	for _, s := range m.Sections {
		switch s.(type) {
		case *wasm.ElementSection:
			hasElement = true
		case *wasm.DataSection:
			hasData = true
		}
	}
	require.True(t, hasElement)
	require.True(t, hasData)
}

func TestRemap_Idempotent(t *testing.T) {
	m := buildModule()
	pruneModule(t, m, DefaultBlacklist())

	// Re-running Analyze+Remap on an already-pruned module should be a no-op:
	// nothing new becomes unreachable, and no index shifts further.
	before := m.FunctionSection().TypeIndices
	report := pruneModule(t, m, DefaultBlacklist())
	require.Empty(t, report.Removed)
	require.Equal(t, before, m.FunctionSection().TypeIndices)
}

func TestRemap_CallIndirectTypeIndexRewritten(t *testing.T) {
	m := &wasm.Module{Sections: []wasm.Section{
		&wasm.TypeSection{Types: []*wasm.FunctionType{{}, {}, {Params: []wasm.ValueType{wasm.ValueTypeI32}}}},
		&wasm.FunctionSection{TypeIndices: []wasm.Index{0}},
		&wasm.TableSection{Tables: []*wasm.TableType{{Limits: wasm.Limits{Min: 1}}}},
		&wasm.ExportSection{Exports: []*wasm.Export{{Name: "run", Type: wasm.ExternTypeFunc, Index: 0}}},
		&wasm.CodeSection{Codes: []*wasm.Code{
			{Body: []byte{wasm.OpcodeCallIndirect, 0x02, 0x00, wasm.OpcodeEnd}},
		}},
	}}
	pruneModule(t, m, nil)

	ts := m.TypeSection()
	require.Len(t, ts.Types, 2, "unused type 1 is dropped; types 0 and 2 survive")

	body := m.CodeSection().Codes[0].Body
	require.Equal(t, wasm.OpcodeCallIndirect, body[0])
	require.Equal(t, byte(0x01), body[1], "old type index 2 is remapped to new index 1")
}
