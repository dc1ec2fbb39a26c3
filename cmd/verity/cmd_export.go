package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	outputPath string
}

var exportCmd = &cobra.Command{
	Use:   "export <investigation-id>",
	Short: "Export a stored investigation as a versioned, shareable document",
	Long: `Exports an investigation with its evidence chain, signed artifact, and
format version so third parties can re-verify the content hash.

Requires the same --db the investigation was stored in.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.outputPath, "output", "o", "", "Write the export to this path (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.Close()

	export, err := app.orch.Export(args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}

	if exportFlags.outputPath != "" {
		if err := os.WriteFile(exportFlags.outputPath, data, 0600); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Export written to: %s\n", exportFlags.outputPath)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
