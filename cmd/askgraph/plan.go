package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

func planCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [question]",
		Short: "Print the task graph for a question without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := newApp(ctx, cfg, logWriter())
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := a.compiler.Tasks(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printGraph(cmd.OutOrStdout(), g)
			return nil
		},
	}
}

func printGraph(w io.Writer, g compiler.Graph) {
	idx := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	for _, i := range g.Indices() {
		t := g[i]
		if t.Thought != "" {
			dim.Fprintf(w, "   Thought: %s\n", t.Thought)
		}
		idx.Fprintf(w, "%2d. ", t.Index)
		fmt.Fprint(w, t.Action())
		if len(t.Dependencies) > 0 {
			dim.Fprintf(w, "  <- %v", t.Dependencies)
		}
		fmt.Fprintln(w)
	}
}
