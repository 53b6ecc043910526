// Package wasmgc removes unreachable functions, types, memories, and
// globals from a WebAssembly module, renumbering what remains so every
// surviving index space stays contiguous from zero.
package wasmgc

import (
	"github.com/wasmgc/wasmgc/internal/prune"
	"github.com/wasmgc/wasmgc/internal/wasm"
)

// Report summarizes what Prune removed: one entry per dropped index-space
// member, plus any sections left empty and therefore dropped entirely.
type Report = prune.Report

// DefaultBlacklist returns the export names Prune treats as non-roots by
// default: compiler-runtime intrinsics and the conventional "main" entry
// point, neither of which a host embedding the module calls directly.
func DefaultBlacklist() map[string]struct{} {
	return prune.DefaultBlacklist()
}

// Prune analyzes module for everything reachable from its non-blacklisted
// exports, data segments, declared tables, element segments, and start
// function, then deletes everything else and rewrites every surviving
// cross-reference to the resulting hole-free indices, in place.
//
// A nil blacklist behaves as an empty one: every export is a root.
func Prune(module *wasm.Module, blacklist map[string]struct{}) (*Report, error) {
	if blacklist == nil {
		blacklist = map[string]struct{}{}
	}
	analysis, err := prune.Analyze(module, blacklist)
	if err != nil {
		return nil, err
	}
	return prune.Remap(module, analysis)
}
