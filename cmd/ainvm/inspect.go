package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ainrun/ainvm/ain"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <image>",
		Short: "print a loaded image's tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := ain.Load(args[0])
			if err != nil {
				return err
			}
			printImage(os.Stdout, img)
			return nil
		},
	}
}

func printImage(w *os.File, img *ain.Image) {
	fmt.Fprintf(w, "code: %d bytes\n", len(img.Code))
	fmt.Fprintf(w, "main: %d  alloc: %d  msgf: %d\n\n", img.Main, img.Alloc, img.Msgf)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "FUNCTIONS")
	fmt.Fprintln(tw, "idx\tname\taddr\treturns\targs\tmethod")
	for i, f := range img.Functions {
		fmt.Fprintf(tw, "%d\t%s\t%#x\t%s\t%d\t%v\n", i, f.Name, f.Address, f.Return, f.NumArgs, f.IsMethod)
	}
	tw.Flush()
	fmt.Fprintln(w)

	fmt.Fprintln(tw, "STRUCTS")
	fmt.Fprintln(tw, "idx\tname\tctor\tdtor\tmembers")
	for i, s := range img.Structs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", i, s.Name, s.Ctor, s.Dtor, len(s.Members))
	}
	tw.Flush()
	fmt.Fprintln(w)

	fmt.Fprintln(tw, "LIBRARIES")
	fmt.Fprintln(tw, "idx\tname\tfunctions")
	for i, l := range img.Libraries {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i, l.Name, len(l.Functions))
	}
	tw.Flush()
	fmt.Fprintln(w)

	fmt.Fprintln(tw, "SWITCHES")
	fmt.Fprintln(tw, "idx\tkind\tcases\tdefault")
	for i, s := range img.Switches {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", i, s.Type, len(s.Cases), s.Default)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nglobals: %d  strings: %d  messages: %d  func-types: %d  delegates: %d\n",
		len(img.Globals), len(img.Strings), len(img.Messages), len(img.FuncTypes), len(img.Delegates))
}
