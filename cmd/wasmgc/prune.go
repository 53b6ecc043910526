package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	wasmgc "github.com/wasmgc/wasmgc"
	"github.com/wasmgc/wasmgc/internal/wasm"
	"github.com/wasmgc/wasmgc/internal/wasm/binary"
)

var (
	pruneBlacklistFlag          string
	pruneNoDefaultBlacklistFlag bool
)

func newPruneCmd(stdOut io.Writer, log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune <input.wasm> <output.wasm>",
		Short: "Remove unreachable functions, types, memories, and globals, then renumber what remains",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(args, stdOut, log)
		},
	}
	cmd.Flags().StringVar(&pruneBlacklistFlag, "blacklist", "",
		"Comma-separated export names to treat as non-roots, merged into the default set")
	cmd.Flags().BoolVar(&pruneNoDefaultBlacklistFlag, "no-default-blacklist", false,
		"Start from an empty blacklist instead of the built-in compiler-intrinsic list")
	return cmd
}

func runPrune(args []string, stdOut io.Writer, log *logrus.Logger) error {
	inputPath, outputPath := args[0], args[1]

	source, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}

	module, err := binary.DecodeModule(source)
	if err != nil {
		return fmt.Errorf("decode %s: %w", inputPath, err)
	}

	blacklist := blacklistFromFlags()

	report, err := wasmgc.Prune(module, blacklist)
	if err != nil {
		return fmt.Errorf("prune %s: %w", inputPath, err)
	}

	for _, removed := range report.Removed {
		log.Debugf("removing %s %d", removed.Kind, removed.Index)
	}
	for _, id := range report.DroppedSections {
		log.Debugf("dropped empty %s section", wasm.SectionIDName(id))
	}

	out := binary.EncodeModule(module)
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}

	fmt.Fprintf(stdOut, "pruned %s -> %s (%d bytes -> %d bytes)\n", inputPath, outputPath, len(source), len(out))
	return nil
}

func blacklistFromFlags() map[string]struct{} {
	blacklist := map[string]struct{}{}
	if !pruneNoDefaultBlacklistFlag {
		blacklist = wasmgc.DefaultBlacklist()
	}
	for _, name := range strings.Split(pruneBlacklistFlag, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			blacklist[name] = struct{}{}
		}
	}
	return blacklist
}
