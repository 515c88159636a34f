// Package commands defines the Cobra CLI for the climatetrack binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mifdirfan/climatetrack/internal/audit"
	"github.com/mifdirfan/climatetrack/internal/config"
	"github.com/mifdirfan/climatetrack/internal/logging"
)

var (
	// configPath holds the --config flag value.
	configPath string
	// envFile holds the --env-file flag value.
	envFile string
)

// NewRootCmd constructs the root command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "climatetrack",
		Short: "ClimateTrack grounding engine for the disaster-preparedness chatbot",
		Long: `ClimateTrack ingests preparedness documents and public-safety tables into an
in-memory vector index, and answers chatbot questions with context drawn from
nearby alerts, reports, community posts, news and the indexed documents.

Settings come from the environment, optionally seeded from a .env file and a
YAML or TOML config file (~/.climatetrack/config.yaml, ./climatetrack.yaml,
./climatetrack.toml). The environment always wins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			loaded, err := config.LoadDotEnv(envFile)
			if err != nil {
				return err
			}
			if loaded {
				log.Debug("config: loaded .env file")
			}

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// Rebuild the logger now that LOG_LEVEL and LOG_FORMAT may have
			// come from a file.
			log = logging.New()
			slog.SetDefault(log)
			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or TOML config file (default: ~/.climatetrack/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewChatCmd(),
		NewImportCmd(),
		NewTokenCmd(),
		NewVersionCmd(),
	)
	return root
}
