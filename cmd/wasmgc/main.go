// Command wasmgc removes unreachable functions, types, memories, and
// globals from a WebAssembly module.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

// doMain is separated out for the purpose of unit testing.
func doMain(args []string, stdOut, stdErr io.Writer) int {
	log := logrus.New()
	log.SetOutput(stdErr)

	root := newRootCmd(stdOut, log)
	root.SetOut(stdOut)
	root.SetErr(stdErr)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stdErr, "wasmgc:", err)
		return 1
	}
	return 0
}

func newRootCmd(stdOut io.Writer, log *logrus.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "wasmgc",
		Short:         "Remove dead functions, types, memories, and globals from a WebAssembly module",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return errors.New("missing subcommand: expected \"prune <input.wasm> <output.wasm>\"")
		},
	}
	root.AddCommand(newPruneCmd(stdOut, log))
	return root
}
