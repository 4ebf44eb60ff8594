package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/memsafe/demo"
	"github.com/wippyai/memsafe/memory"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [section...]",
		Short: "Run the named demonstration sections, or all of them",
		Long: `Run demonstration sections in the order given.

Sections: lifetimes, overflow, uaf, linear, session.`,
		ValidArgs: demo.Sections(),
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDemos(cmd, args)
		},
	}
}

func (a *app) runDemos(cmd *cobra.Command, sections []string) error {
	n := demo.NewNarrator(cmd.OutOrStdout(), a.colorFor(cmd.OutOrStdout()))
	ctx := demo.WithOptions(cmd.Context(), demo.Options{
		Linear: a.cfg.LinearOptions(),
		Memory: a.cfg.MemoryOptions(),
	})
	return demo.RunWith(ctx, n, sections...)
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List demonstration sections and visualizer scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Sections:")
			for _, s := range demo.All() {
				fmt.Fprintf(out, "  %-10s %s\n", s.Name, s.Title)
				for _, ex := range s.Examples {
					fmt.Fprintf(out, "    %-20s %s\n", ex.Name, ex.Title)
				}
			}

			fmt.Fprintln(out, "\nVisualizer scenarios:")
			for _, s := range memory.Scenarios() {
				fmt.Fprintf(out, "  %-10s %s\n", s.Name, s.Title)
			}
			return nil
		},
	}
}
