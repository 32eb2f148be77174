package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/final221/Prompt-Assembler/internal/cli"
	"github.com/final221/Prompt-Assembler/internal/presentation/tui"
	"github.com/final221/Prompt-Assembler/pkg/adapters/terminal"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/spf13/cobra"
)

func newComposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Print the assembled prompt and its variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetBool("raw")
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				c := s.Assembler.Compose()
				if err := printText(cmd, c.Raw, raw); err != nil {
					return err
				}
				if c.HasVariables() {
					fmt.Fprintf(cmd.ErrOrStderr(), "variables: %s\n", strings.Join(c.Variables, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("raw", false, "Do not render markdown")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the prompt with variables substituted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, _ := cmd.Flags().GetStringToString("set")
			raw, _ := cmd.Flags().GetBool("raw")
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				return printText(cmd, s.Assembler.Preview(values), raw)
			})
		},
	}
	cmd.Flags().StringToString("set", nil, "Variable values as NAME=value")
	cmd.Flags().Bool("raw", false, "Do not render markdown")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Assemble the prompt and deliver it using the current mode",
		Long:  `Assembles the parts, asks for every [[VARIABLE]] (unless given with --set) and delivers the text to the clipboard or the configured target.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var collector ports.ValueCollector = terminal.NewCollector()
			if cmd.Flags().Changed("set") {
				values, _ := cmd.Flags().GetStringToString("set")
				collector = ports.StaticValues(values)
			}
			return withSessionOpts(cmd, cli.Options{Collector: collector}, func(ctx context.Context, s *cli.Session) error {
				return report(cmd, s.Assembler.Run(ctx))
			})
		},
	}
	cmd.Flags().StringToString("set", nil, "Variable values as NAME=value")
	return cmd
}

func printText(cmd *cobra.Command, text string, raw bool) error {
	out := cmd.OutOrStdout()
	if raw {
		_, err := fmt.Fprintln(out, text)
		return err
	}
	rendered, err := tui.NewRenderer(out)(text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, strings.TrimRight(rendered, "\n"))
	return err
}
