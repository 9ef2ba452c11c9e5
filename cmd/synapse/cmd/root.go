// Package cmd provides the CLI commands for the Synapse server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synapse-rag/synapse/internal/config"
	"github.com/synapse-rag/synapse/internal/logging"
	"github.com/synapse-rag/synapse/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the synapse CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synapse",
		Short: "Session-scoped RAG server for document question answering",
		Long: `Synapse answers questions over documents uploaded into ephemeral
sessions. Each session gets isolated hybrid search (semantic + keyword)
over its own documents, and sessions expire automatically.

Run 'synapse serve' to start the HTTP API.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("synapse version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: synapse.yaml if present)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	// File logging only in debug mode; normal runs log to stderr
	logCfg := logging.Config{Level: "info", WriteToStderr: true}
	if debugMode {
		logCfg = logging.DefaultConfig()
		logCfg.Level = "debug"
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
