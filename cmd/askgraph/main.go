package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgPath string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:          "askgraph",
		Short:        "Answer questions by planning, running and joining tool calls",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.json)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log plans, transcripts and joiner output")

	root.AddCommand(serveCMD(), askCMD(), planCMD(), migrateCMD(), tokenCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
