package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

func askCMD() *cobra.Command {
	var (
		showTrace bool
		user      string
		runID     string
	)
	ask := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			if user != "" {
				ctx = compiler.ContextWithUser(ctx, user)
			}
			a, err := newApp(ctx, cfg, logWriter())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.progress != nil {
				if runID == "" {
					runID = uuid.NewString()
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "progress: %s\n", a.progress.Channel(runID))
			}
			if runID != "" {
				ctx = compiler.ContextWithRunID(ctx, runID)
			}
			res, err := a.compiler.RunDetailed(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res, showTrace)
			return nil
		},
	}
	ask.Flags().BoolVar(&showTrace, "trace", false, "print every round's plan and joiner decision")
	ask.Flags().StringVar(&user, "user", "", "user id recorded in audits")
	ask.Flags().StringVar(&runID, "run-id", "", "run id to use, so progress can be followed from another terminal")
	return ask
}

func logWriter() io.Writer {
	if verbose {
		return os.Stderr
	}
	return io.Discard
}

func printResult(w io.Writer, res compiler.Result, showTrace bool) {
	heading := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	if showTrace {
		for _, r := range res.Rounds {
			heading.Fprintf(w, "Round %d (%s)\n", r.Number, r.Elapsed.Round(time.Millisecond))
			if r.PlanError != "" {
				color.New(color.FgRed).Fprintf(w, "  plan error: %s\n", r.PlanError)
				continue
			}
			for _, line := range strings.Split(strings.TrimSpace(r.Transcript), "\n") {
				dim.Fprintf(w, "  %s\n", line)
			}
			fmt.Fprintf(w, "  decision: %s\n\n", r.Outcome.Decision)
		}
	}
	if res.Fallback {
		color.New(color.FgYellow).Fprintln(w, res.Answer)
	} else {
		color.New(color.FgGreen).Fprintln(w, res.Answer)
	}
	dim.Fprintf(w, "run %s, %d round(s), %s\n", res.RunID, len(res.Rounds), res.Elapsed.Round(time.Millisecond))
}
