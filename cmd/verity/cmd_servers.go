package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"verity/internal/format"
)

var serversFlags struct {
	connect bool
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured tool servers and their tool catalogs",
	Long: `Lists the fleet from the config file. With --connect, dials every server
and shows the tools each one advertises.`,
	RunE: runServers,
}

func init() {
	f := serversCmd.Flags()
	f.BoolVar(&serversFlags.connect, "connect", false, "Connect to the fleet and list advertised tools")
}

func runServers(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd.Context(), serversFlags.connect)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	configured := app.registry.ListConfigured()
	if len(configured) == 0 {
		fmt.Fprintln(out, "No tool servers configured.")
		fmt.Fprintln(out, "Point --config at a fleet file, e.g. .verity/servers.yaml")
		return nil
	}

	if !serversFlags.connect {
		for _, name := range configured {
			fmt.Fprintln(out, name)
		}
		fmt.Fprintf(out, "\n%d configured (use --connect to list tools)\n", len(configured))
		return nil
	}

	connected := make(map[string]bool)
	for _, name := range app.registry.ListConnected() {
		connected[name] = true
	}
	catalogs := app.registry.ToolCatalogs()

	tb := format.NewTable(format.ASCII)
	tb.Header("Server", "Live", "Tool", "Description")
	for _, name := range configured {
		tools := catalogs[name]
		if len(tools) == 0 {
			tb.Row(name, format.BoolMark(connected[name]), "", "")
			continue
		}
		for i, tool := range tools {
			server, mark := name, format.BoolMark(connected[name])
			if i > 0 {
				server, mark = "", ""
			}
			tb.Row(server, mark, tool.Name, format.Truncate(tool.Description, 64))
		}
	}
	fmt.Fprintln(out, tb.String())
	return nil
}
