// Command brandctl runs brand visibility analyses and provider checks from
// the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
	"github.com/AI-Template-SDK/senso-visibility/internal/logging"
	"github.com/AI-Template-SDK/senso-visibility/internal/providers"
	"github.com/AI-Template-SDK/senso-visibility/internal/repository"
	"github.com/AI-Template-SDK/senso-visibility/internal/scraper"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

var version = "dev"

var (
	verbose   bool
	useMemory bool
	envFile   string
	cfg       *config.Config
	logger    zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "brandctl",
	Short:   "Brand visibility analysis from the command line",
	Long:    "brandctl asks AI assistants the questions your customers ask and reports how often your brand, competitors and sources come up.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("loading env file: %w", err)
			}
		} else if err := godotenv.Load(); err != nil {
			_ = godotenv.Load("dev.env")
		}

		cfg = config.Load()
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger = logging.New(level, "console")
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "Keep results in memory instead of Postgres")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file to load instead of .env or dev.env")

	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queriesCmd)
	rootCmd.AddCommand(competitorsCmd)
}

func newFetcher() *scraper.Fetcher {
	return scraper.New(cfg.Analysis.ScrapeTimeout, scraper.WithLogger(logger))
}

func newProvider(fetcher *scraper.Fetcher) (services.AIProvider, error) {
	provider, err := providers.NewProvider(cfg, services.NewCostService(), fetcher, logger)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	return provider, nil
}

// openStore returns the Postgres store, or an in-memory one with --memory.
func openStore(cmd *cobra.Command) (repository.Store, error) {
	if useMemory {
		return repository.NewMemoryStore(), nil
	}
	store, err := repository.Connect(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database (use --memory to skip): %w", err)
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return store, nil
}
