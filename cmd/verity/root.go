package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"verity/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
	config    string
	db        string
}

var rootCmd = &cobra.Command{
	Use:   "verity",
	Short: "Evidence-based verification of claims and media",
	Long: "Verity investigates claims and media by orchestrating a fleet of MCP tool\n" +
		"servers (fact-check, forensics, web search), synthesizes a verdict from the\n" +
		"gathered evidence, and seals every result in a signed artifact.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, rootFlags.logFormat)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&rootFlags.config, "config", "", "Tool server fleet config (YAML or JSON)")
	pf.StringVar(&rootFlags.db, "db", "", "SQLite store path (default: in-memory)")

	rootCmd.AddCommand(investigateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
