// Package prune implements the two-phase dead-code elimination pass: an
// Analyzer that finds every function, type, table, memory, and global
// reachable from the module's roots, and a Remapper that deletes everything
// else and renumbers what remains.
package prune

// DefaultBlacklist returns the set of export names treated as non-roots
// even though they are exported: the compiler-runtime intrinsics a typical
// toolchain emits (software division, 64/128-bit shifts, float conversion
// helpers, libc memory routines) plus the conventional C entry point. A
// module built for a host that calls into it exclusively through its own
// exports, never these, can have them stripped even when present.
func DefaultBlacklist() map[string]struct{} {
	names := []string{
		"main",
		"__ashldi3", "__ashlti3", "__ashrdi3", "__ashrti3", "__lshrdi3", "__lshrti3",
		"__floatsisf", "__floatsidf", "__floatdidf", "__floattisf", "__floattidf",
		"__floatunsisf", "__floatunsidf", "__floatundidf", "__floatuntisf", "__floatuntidf",
		"__fixsfsi", "__fixsfdi", "__fixsfti", "__fixdfsi", "__fixdfdi", "__fixdfti",
		"__fixunssfsi", "__fixunssfdi", "__fixunssfti", "__fixunsdfsi", "__fixunsdfdi", "__fixunsdfti",
		"__udivsi3", "__umodsi3", "__udivmodsi4", "__udivdi3", "__udivmoddi4", "__umoddi3",
		"__udivti3", "__udivmodti4", "__umodti3",
		"memcpy", "memmove", "memset", "memcmp",
		"__powisf2", "__powidf2",
		"__addsf3", "__adddf3", "__subsf3", "__subdf3",
		"__divsi3", "__divdi3", "__divti3",
		"__modsi3", "__moddi3", "__modti3",
		"__divmodsi4", "__divmoddi4",
		"__muldi3", "__multi3",
		"__mulosi4", "__mulodi4", "__muloti4",
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
