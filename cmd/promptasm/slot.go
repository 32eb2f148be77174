package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/final221/Prompt-Assembler/internal/cli"
	"github.com/final221/Prompt-Assembler/internal/presentation/tui"
	"github.com/spf13/cobra"
)

func newSlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "slot",
		Aliases: []string{"slots"},
		Short:   "Save, load and share part configurations",
	}
	cmd.AddCommand(
		newSlotListCmd(),
		newSlotSaveCmd(),
		newSlotLoadCmd(),
		newSlotRemoveCmd(),
		newSlotRenameCmd(),
		newSlotExportCmd(),
		newSlotImportCmd(),
	)
	return cmd
}

func newSlotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List saved slots",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				tui.PrintSlots(cmd.OutOrStdout(), s.Assembler.Slots())
				return nil
			})
		},
	}
}

func newSlotSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save NAME",
		Short: "Save the current parts as a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				key, out := s.Assembler.SaveSlot(ctx, args[0])
				if out.OK() {
					fmt.Fprintln(cmd.OutOrStdout(), key)
				}
				return report(cmd, out)
			})
		},
	}
}

func newSlotLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load KEY",
		Short: "Replace the current parts with a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				return report(cmd, s.Assembler.LoadSlot(ctx, args[0]))
			})
		},
	}
}

func newSlotRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm KEY",
		Aliases: []string{"delete"},
		Short:   "Delete a slot",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				return report(cmd, s.Assembler.DeleteSlot(ctx, args[0]))
			})
		},
	}
}

func newSlotRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename KEY NAME",
		Short: "Change the display name of a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				return s.Assembler.RenameSlot(ctx, args[0], args[1])
			})
		},
	}
}

func newSlotExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export KEY",
		Short: "Write a slot as a loadout text file",
		Long:  `Writes the slot in the loadout format. Without --output the file is named after the slot; "-" writes to stdout.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				exp, out := s.Assembler.ExportSlot(ctx, args[0])
				if !out.OK() {
					return fmt.Errorf("%s", out.String())
				}
				if output == "-" {
					_, err := fmt.Fprint(cmd.OutOrStdout(), exp.Text)
					return err
				}
				if output == "" {
					output = exp.FileName
				}
				if err := os.WriteFile(output, []byte(exp.Text), 0o644); err != nil {
					return fmt.Errorf("failed to write loadout: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), output)
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file")
	return cmd
}

func newSlotImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the current parts with a loadout file and save it as a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read loadout: %w", err)
			}
			return withSession(cmd, func(ctx context.Context, s *cli.Session) error {
				return report(cmd, s.Assembler.ImportLoadout(ctx, filepath.Base(args[0]), string(data)))
			})
		},
	}
}
