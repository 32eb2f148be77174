package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/final221/Prompt-Assembler/internal/cli"
	mcpAdapter "github.com/final221/Prompt-Assembler/pkg/adapters/mcp"
	"github.com/final221/Prompt-Assembler/pkg/adapters/memory"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long:  `Exposes the session as Model Context Protocol tools over stdio, or SSE with --sse.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sse, _ := cmd.Flags().GetBool("sse")
			if cmd.Flags().Changed("port") {
				cfg.Server.MCPPort, _ = cmd.Flags().GetInt("port")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := cli.OpenSession(ctx, cfg, cli.Options{Notifier: memory.AutoConfirm{}})
			if err != nil {
				return err
			}
			defer s.Close(context.Background())

			srv := mcpAdapter.NewServer(s.Assembler,
				mcpAdapter.WithSink(s.Sink),
				mcpAdapter.WithLogger(s.Logger.With("component", "mcp")),
			)
			if sse {
				return srv.ServeSSE(ctx, cfg.Server.MCPPort)
			}
			return srv.ServeStdio()
		},
	}
	cmd.Flags().Bool("sse", false, "Serve over SSE instead of stdio")
	cmd.Flags().Int("port", 0, "SSE port (default from config, 8081)")
	return cmd
}
