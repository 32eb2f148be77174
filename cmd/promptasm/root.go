package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/final221/Prompt-Assembler/internal/cli"
	"github.com/final221/Prompt-Assembler/internal/config"
	"github.com/final221/Prompt-Assembler/pkg/adapters/memory"
	"github.com/final221/Prompt-Assembler/pkg/adapters/terminal"
	"github.com/final221/Prompt-Assembler/pkg/ports"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "promptasm",
		Short:         "Prompt Assembler composes prompts from reusable parts",
		Long:          `Prompt Assembler keeps an ordered set of prompt parts, fills in [[VARIABLES]] and delivers the result to the clipboard or a target application.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", config.DefaultPath(), "Config file (YAML or TOML)")
	flags.String("store", "", "Store backend: file, redis or memory")
	flags.String("store-path", "", "Directory of the file store")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.BoolP("yes", "y", false, "Answer yes to every confirmation")

	root.AddCommand(
		newPartCmd(),
		newComposeCmd(),
		newPreviewCmd(),
		newRunCmd(),
		newModeCmd(),
		newSlotCmd(),
		newServeCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if v, _ := flags.GetString("store"); v != "" {
		cfg.Store.Backend = v
	}
	if v, _ := flags.GetString("store-path"); v != "" {
		cfg.Store.Path = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

// withSession opens a session for the duration of fn. Pending edits are flushed on return.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *cli.Session) error) error {
	return withSessionOpts(cmd, cli.Options{}, fn)
}

func withSessionOpts(cmd *cobra.Command, opts cli.Options, fn func(ctx context.Context, s *cli.Session) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.Notifier == nil {
		opts.Notifier = notifier(cmd)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := cli.OpenSession(ctx, cfg, opts)
	if err != nil {
		return err
	}
	runErr := fn(ctx, s)
	if err := s.Close(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close session: %w", err)
	}
	return runErr
}

func notifier(cmd *cobra.Command) ports.Notifier {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return memory.AutoConfirm{}
	}
	return terminal.NewNotifier(terminal.WithOutput(cmd.ErrOrStderr()))
}
