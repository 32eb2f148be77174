package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/final221/Prompt-Assembler/internal/cli"
	"github.com/final221/Prompt-Assembler/internal/presentation/tui"
	"github.com/final221/Prompt-Assembler/pkg/domain"
	"github.com/spf13/cobra"
)

func newPartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "part",
		Aliases: []string{"parts"},
		Short:   "Manage prompt parts",
	}
	cmd.AddCommand(
		newPartListCmd(),
		newPartAddCmd(),
		newPartSetCmd(),
		newPartRemoveCmd(),
		newPartMoveCmd(),
		newPartCollapseCmd(),
		newPartClearCmd(),
	)
	return cmd
}

func newPartListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List parts in assembly order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				tui.PrintParts(cmd.OutOrStdout(), s.Assembler.Parts())
				return nil
			})
		},
	}
}

func newPartAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a part",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				p, err := s.Assembler.AddPart(ctx)
				if err != nil {
					return err
				}
				if err := applyPartFlags(cmd, s, p.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return nil
			})
		},
	}
	addPartFlags(cmd)
	return cmd
}

func newPartSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set ID",
		Short: "Edit the name or content of a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				if _, ok := s.Assembler.Part(args[0]); !ok {
					return fmt.Errorf("%w: %s", domain.ErrPartNotFound, args[0])
				}
				return applyPartFlags(cmd, s, args[0])
			})
		},
	}
	addPartFlags(cmd)
	return cmd
}

func addPartFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Part name")
	cmd.Flags().String("content", "", "Part content")
	cmd.Flags().StringP("file", "f", "", "Read the content from a file")
	cmd.MarkFlagsMutuallyExclusive("content", "file")
}

func applyPartFlags(cmd *cobra.Command, s *cli.Session, id string) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		name, _ := flags.GetString("name")
		s.Assembler.SetName(id, name)
	}
	if flags.Changed("content") {
		content, _ := flags.GetString("content")
		s.Assembler.SetContent(id, content)
	}
	if path, _ := flags.GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		s.Assembler.SetContent(id, string(data))
	}
	return nil
}

func newPartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"remove"},
		Short:   "Delete a part",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				return s.Assembler.RemovePart(ctx, args[0])
			})
		},
	}
}

func newPartMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv ID POSITION",
		Short: "Move a part to a 1-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[1])
			}
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				return s.Assembler.MovePart(args[0], pos-1)
			})
		},
	}
}

func newPartCollapseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collapse ID",
		Short: "Toggle whether a part is collapsed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				collapsed, err := s.Assembler.ToggleCollapse(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "collapsed: %t\n", collapsed)
				return nil
			})
		},
	}
}

func newPartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every part",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				return report(cmd, s.Assembler.ClearAll(ctx))
			})
		},
	}
}

// report prints the outcome. Failures become the command error.
func report(cmd *cobra.Command, out domain.Outcome) error {
	if out.Kind == domain.OutcomeFailure {
		return fmt.Errorf("%s", out.String())
	}
	tui.PrintOutcome(cmd.OutOrStdout(), out)
	return nil
}
