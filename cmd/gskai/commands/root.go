// Package commands defines all Cobra CLI commands for the gskai binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/genskey/gskai-go/internal/audit"
	"github.com/genskey/gskai-go/internal/config"
	"github.com/genskey/gskai-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gskai",
		Short: "gskai — literature-grounded research assistant for the Genskey platform",
		Long: `gskai ingests scientific publications from PubMed into a vector store
and answers research questions grounded in the retrieved literature.

Generation is routed per task through a configurable model registry
(~/.gskai/llm_config.json): each task maps to a registered model across
the OpenAI, Anthropic, Meta, and Google provider families.

Set MOCK_LLM=true and MOCK_VECTOR_DB=true to run fully offline with a
deterministic placeholder model and an exact in-memory index.
See 'gskai --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.gskai/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewAskCmd(),
		NewServeCmd(),
		NewModelsCmd(),
		NewRouteCmd(),
		NewVersionCmd(),
	)

	return root
}
