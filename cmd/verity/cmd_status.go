package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"verity/internal/display"
	"verity/internal/format"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tool server fleet health",
	Long:  "Connects to the configured tool servers, pings each one, and reports liveness.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer app.Close()

	h := app.orch.Health(cmd.Context())
	out := cmd.OutOrStdout()

	if h.Total == 0 {
		fmt.Fprintln(out, "No tool servers configured.")
		fmt.Fprintln(out, "Point --config at a fleet file, e.g. .verity/servers.yaml")
		return nil
	}

	tb := format.NewTable(format.ASCII)
	tb.Header("Server", "State", "Live")
	for _, name := range app.registry.ListConfigured() {
		alive := h.Servers[name]
		tb.Row(name, display.ConnState(alive), format.BoolMark(alive))
	}
	tb.Footer("TOTAL", fmt.Sprintf("%d/%d connected", h.Connected, h.Total), "")
	fmt.Fprintln(out, tb.String())
	return nil
}
