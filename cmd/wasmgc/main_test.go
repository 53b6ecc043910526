package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmgc/wasmgc/internal/wasm"
	"github.com/wasmgc/wasmgc/internal/wasm/binary"
)

func TestDoMain_NoArgs(t *testing.T) {
	var stdOut, stdErr bytes.Buffer
	code := doMain(nil, &stdOut, &stdErr)
	require.Equal(t, 1, code)
}

func TestDoMain_PruneRoundTrip(t *testing.T) {
	m := &wasm.Module{Sections: []wasm.Section{
		&wasm.TypeSection{Types: []*wasm.FunctionType{{}}},
		&wasm.FunctionSection{TypeIndices: []wasm.Index{0, 0}},
		&wasm.ExportSection{Exports: []*wasm.Export{{Name: "run", Type: wasm.ExternTypeFunc, Index: 0}}},
		&wasm.CodeSection{Codes: []*wasm.Code{
			{Body: []byte{wasm.OpcodeEnd}},
			{Body: []byte{wasm.OpcodeEnd}}, // unreferenced, should be pruned
		}},
	}}

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.wasm")
	outputPath := filepath.Join(dir, "out.wasm")
	require.NoError(t, os.WriteFile(inputPath, binary.EncodeModule(m), 0o644))

	var stdOut, stdErr bytes.Buffer
	code := doMain([]string{"prune", inputPath, outputPath}, &stdOut, &stdErr)
	require.Equal(t, 0, code, stdErr.String())
	require.Contains(t, stdOut.String(), "pruned")

	out, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	decoded, err := binary.DecodeModule(out)
	require.NoError(t, err)
	require.Len(t, decoded.FunctionSection().TypeIndices, 1, "the unreferenced second function is removed")
}

func TestDoMain_PruneNoDefaultBlacklist(t *testing.T) {
	m := &wasm.Module{Sections: []wasm.Section{
		&wasm.TypeSection{Types: []*wasm.FunctionType{{}}},
		&wasm.FunctionSection{TypeIndices: []wasm.Index{0}},
		&wasm.ExportSection{Exports: []*wasm.Export{{Name: "main", Type: wasm.ExternTypeFunc, Index: 0}}},
		&wasm.CodeSection{Codes: []*wasm.Code{{Body: []byte{wasm.OpcodeEnd}}}},
	}}

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.wasm")
	outputPath := filepath.Join(dir, "out.wasm")
	require.NoError(t, os.WriteFile(inputPath, binary.EncodeModule(m), 0o644))

	var stdOut, stdErr bytes.Buffer
	code := doMain([]string{"prune", "--no-default-blacklist", inputPath, outputPath}, &stdOut, &stdErr)
	require.Equal(t, 0, code, stdErr.String())

	out, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	decoded, err := binary.DecodeModule(out)
	require.NoError(t, err)
	require.Len(t, decoded.ExportSection().Exports, 1, "without the default blacklist, \"main\" is a root and survives")
}
