package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-visibility/internal/config"
)

var diagnoseURL string

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Check environment, database, AI provider and scraper",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		failed := 0
		report := func(name string, err error) {
			if err != nil {
				failed++
				fmt.Printf("❌ %s: %v\n", name, err)
				return
			}
			fmt.Printf("✅ %s\n", name)
		}

		fmt.Println("🔍 Brand visibility diagnostics")
		fmt.Println()

		missing := missingSettings(cfg)
		if len(missing) > 0 {
			report("Environment", fmt.Errorf("missing %s", strings.Join(missing, ", ")))
		} else {
			report("Environment", nil)
		}
		fmt.Printf("  - Provider: %s\n", cfg.LLMProvider)
		fmt.Printf("  - Database: %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

		if useMemory {
			fmt.Println("⏭️  Database: skipped (--memory)")
		} else {
			report("Database", checkDatabase(cmd))
		}

		fetcher := newFetcher()
		provider, err := newProvider(fetcher)
		if err != nil {
			report("AI provider", err)
		} else {
			report("AI provider ("+provider.GetProviderName()+")", withTimeout(ctx, cfg.Analysis.RetryTimeout, func(ctx context.Context) error {
				if !provider.HasCredentials() {
					return fmt.Errorf("no API key configured")
				}
				queries, err := provider.GenerateQueries(ctx, "Diagnostics", "Connectivity check", 1, nil)
				if err != nil {
					return err
				}
				if len(queries) == 0 {
					return fmt.Errorf("provider returned no queries")
				}
				return nil
			}))
		}

		text := fetcher.FetchPageText(ctx, diagnoseURL)
		if text == "" {
			report("Scraper", fmt.Errorf("no text extracted from %s", diagnoseURL))
		} else {
			report("Scraper", nil)
			fmt.Printf("  - Extracted %d characters from %s\n", len(text), diagnoseURL)
		}

		fmt.Println()
		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		fmt.Println("🎉 All checks passed")
		return nil
	},
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseURL, "url", "https://example.com", "Page used to test the scraper")
}

func checkDatabase(cmd *cobra.Command) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Ping(cmd.Context())
}

// missingSettings lists the variables the configured provider needs but
// which are unset.
func missingSettings(cfg *config.Config) []string {
	var missing []string
	if cfg.ActiveAPIKey() == "" {
		switch cfg.LLMProvider {
		case "anthropic", "claude":
			missing = append(missing, "ANTHROPIC_API_KEY")
		default:
			missing = append(missing, "OPENAI_API_KEY")
		}
	}
	if cfg.DatabaseURL == "" && cfg.Database.Password == "" && !useMemory {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.SearchIndexEnabled && cfg.Typesense.APIKey == "" {
		missing = append(missing, "TYPESENSE_API_KEY")
	}
	return missing
}

func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
