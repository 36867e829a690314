package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/caesar-terminal/synthbook/internal/synth"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in example chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDEPTH\tLEGS")
			for _, p := range synth.Presets() {
				legs := make([]string, len(p.Legs))
				for i, l := range p.Legs {
					legs[i] = l.Exchange + ":" + l.Symbol + ":" + l.Side
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, p.Depth, strings.Join(legs, " -> "))
			}
			return w.Flush()
		},
	}
}
