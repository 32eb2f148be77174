package main

import (
	"fmt"
	"strings"

	assembler "github.com/final221/Prompt-Assembler"
	"github.com/final221/Prompt-Assembler/internal/presentation/tui"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of promptasm",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if tui.IsTerminal(out) {
				tui.PrintBanner(out, strings.TrimSpace(assembler.Version))
				return
			}
			fmt.Fprintf(out, "promptasm version %s\n", strings.TrimSpace(assembler.Version))
		},
	}
}
