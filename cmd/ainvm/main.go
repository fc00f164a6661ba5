// Command ainvm loads a decoded program image and runs, inspects, or
// steps through it. It is the ambient front end around package vm: a
// thin cobra CLI, not a [MODULE] of its own.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagSaveDir  string
	flagGameName string
)

func main() {
	root := &cobra.Command{
		Use:           "ainvm",
		Short:         "bytecode interpreter for decoded program images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagSaveDir, "save-dir", "./saves", "directory for global/resume save files")
	root.PersistentFlags().StringVar(&flagGameName, "game-name", "", "game name reported to GetGameName (defaults to the image file's base name)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newReplCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ainvm:", err)
		os.Exit(1)
	}
}
