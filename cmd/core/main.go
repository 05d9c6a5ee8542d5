// Command core is a thin cobra driver over the milli-core library: it
// opens an on-disk index and exposes index/document/search/settings
// subcommands, the way examples/json-lines-indexer.rs and
// examples/serve-http.rs drive the underlying engine without being a
// server themselves.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/milli-core/pkg/log"
)

var (
	// Version information (set via ldflags during build).
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "core",
	Short:   "core - embedded full-text search index CLI",
	Long:    "core drives a single on-disk milli-core search index: create it, index documents, search, and manage settings.",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("core version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides flag defaults)")
	rootCmd.PersistentFlags().String("dir", "./data", "Index data directory")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(documentCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(settingsCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
