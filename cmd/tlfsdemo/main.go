// Command tlfsdemo drives the sdk package end to end against an
// in-memory todo-list schema: one replica creates a document, grants a
// second replica write access, and the two exchange deltas by hand the
// way a real transport would, then prints the first replica's task list
// once it has synced from the second.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tlfsdemo",
		Short: "Exercise the local-first sync core against a toy todo-list document",
	}
	cmd.AddCommand(newRunCommand())
	return cmd
}
