package main

import (
	"context"

	"github.com/spf13/cobra"

	"verity/internal/logging"
	"verity/internal/mcpserve"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve investigations as MCP tools over stdio",
	Long: `Starts an MCP server over stdin/stdout. Agent hosts connect to it and call
investigate, get_investigation, export_investigation, health, and
list_servers directly.

The server monitors for parent process death. When the host disconnects or
restarts, the server self-terminates to prevent zombie processes.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserve.WatchParent(ctx, cancel)

	logging.New("cli").Info("starting verity MCP server over stdio (parent watchdog active)")
	return mcpserve.NewServer(app.orch, version).Run(ctx)
}
