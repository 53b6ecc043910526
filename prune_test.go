package wasmgc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmgc/wasmgc/internal/wasm"
	"github.com/wasmgc/wasmgc/internal/wasm/binary"
)

// buildRoundTripModule models a module with an unused helper, a blacklisted
// intrinsic export that nothing calls, a table rooting an indirectly
// invoked function, and a global reference chain.
func buildRoundTripModule() *wasm.Module {
	return &wasm.Module{Sections: []wasm.Section{
		&wasm.TypeSection{Types: []*wasm.FunctionType{{}, {Params: []wasm.ValueType{wasm.ValueTypeI32}}}},
		&wasm.FunctionSection{TypeIndices: []wasm.Index{0, 0, 0, 0}},
		&wasm.TableSection{Tables: []*wasm.TableType{{Limits: wasm.Limits{Min: 1}}}},
		&wasm.GlobalSection{Globals: []*wasm.Global{
			{Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x05}}},
			{Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeGlobalGet, Data: []byte{0x00}}},
		}},
		&wasm.ExportSection{Exports: []*wasm.Export{
			{Name: "run", Type: wasm.ExternTypeFunc, Index: 0},
			{Name: "memcpy", Type: wasm.ExternTypeFunc, Index: 3}, // blacklisted, also unused
		}},
		&wasm.ElementSection{Elements: []*wasm.ElementSegment{
			{TableIndex: 0, OffsetExpr: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x00}}, Init: []wasm.Index{2}},
		}},
		&wasm.CodeSection{Codes: []*wasm.Code{
			{Body: []byte{wasm.OpcodeGlobalGet, 0x01, wasm.OpcodeCallIndirect, 0x01, 0x00, wasm.OpcodeEnd}}, // func 0
			{Body: []byte{wasm.OpcodeEnd}},                                                                  // func 1: dead helper
			{Body: []byte{wasm.OpcodeEnd}},                                                                  // func 2: rooted via element segment
			{Body: []byte{wasm.OpcodeEnd}},                                                                  // func 3: "memcpy", unused+blacklisted
		}},
	}}
}

func TestPrune_EndToEnd(t *testing.T) {
	m := buildRoundTripModule()
	report, err := Prune(m, DefaultBlacklist())
	require.NoError(t, err)

	fs := m.FunctionSection()
	require.Len(t, fs.TypeIndices, 2, "only functions 0 and 2 survive: 1 is a dead helper, 3 is unused and blacklisted")

	es := m.ExportSection()
	require.Len(t, es.Exports, 1, "the blacklisted, uncalled memcpy export is dropped")
	require.Equal(t, "run", es.Exports[0].Name)

	gs := m.GlobalSection()
	require.Len(t, gs.Globals, 2, "both globals survive: global 1 is read by function 0, global 0 is referenced by global 1's init")

	require.NotEmpty(t, report.Removed)

	// The result re-encodes and re-decodes without error.
	encoded := binary.EncodeModule(m)
	decoded, err := binary.DecodeModule(encoded)
	require.NoError(t, err)
	require.Equal(t, m, decoded)
}

func TestPrune_IdempotentOnAlreadyPrunedModule(t *testing.T) {
	m := buildRoundTripModule()
	_, err := Prune(m, DefaultBlacklist())
	require.NoError(t, err)

	before := binary.EncodeModule(m)
	report, err := Prune(m, DefaultBlacklist())
	require.NoError(t, err)
	require.Empty(t, report.Removed)
	require.Empty(t, report.DroppedSections)
	require.Equal(t, before, binary.EncodeModule(m))
}

func TestPrune_NilBlacklistTreatsEveryExportAsRoot(t *testing.T) {
	m := buildRoundTripModule()
	_, err := Prune(m, nil)
	require.NoError(t, err)

	es := m.ExportSection()
	require.Len(t, es.Exports, 2, "with no blacklist, memcpy is exported and therefore a root")
}
