package main

import (
	"context"
	"fmt"

	"github.com/final221/Prompt-Assembler/internal/cli"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/spf13/cobra"
)

func newModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "mode [clipboard|transfer|execute|next]",
		Short:     "Show or change the execution mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"clipboard", "transfer", "execute", "next"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				a := s.Assembler
				switch {
				case len(args) == 0:
				case args[0] == "next":
					if _, err := a.CycleMode(ctx); err != nil {
						return err
					}
				default:
					mode, err := domain.ParseMode(args[0])
					if err != nil {
						return err
					}
					if err := a.SetMode(ctx, mode); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.Mode())
				return nil
			})
		},
	}
}
