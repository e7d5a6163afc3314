package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
	"github.com/AI-Template-SDK/senso-visibility/services"
)

var (
	runBrand    string
	runURL      string
	promptsFile string
	useExisting bool
	noDelay     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an analysis and print the results",
	Long: "Run an analysis for a brand. Prompts come from --prompts, from the stored prompts with --existing, " +
		"or are generated from the brand site.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var set *PromptSet
		if promptsFile != "" {
			var err error
			if set, err = loadPromptSet(promptsFile); err != nil {
				return err
			}
			if runBrand == "" {
				runBrand = set.Brand
			}
			if runURL == "" {
				runURL = set.URL
			}
		}
		if strings.TrimSpace(runBrand) == "" {
			return fmt.Errorf("a brand is required (--brand or brand: in the prompt file)")
		}
		if noDelay {
			cfg.Analysis.PromptDelay = 0
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		fetcher := newFetcher()
		provider, err := newProvider(fetcher)
		if err != nil {
			return err
		}
		if !provider.HasCredentials() {
			fmt.Println("⚠️  No API key configured, answers will use fallback data")
		}

		site := services.NewSiteService(fetcher, provider, logger)
		metrics := services.NewMetricsService(store)
		analyzer := services.NewAnalyzerService(cfg, store, provider, site, metrics,
			services.WithAnalyzerLogger(logger),
			services.WithProgressSink(printProgress),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var handle *services.RunHandle
		if set != nil {
			planner := services.NewPlannerService(cfg, store, provider, site, analyzer, nil, logger)
			var count int
			handle, count, err = planner.SaveAndAnalyze(ctx, runBrand, runURL, set.Plans())
			if err == nil {
				fmt.Printf("📋 Testing %d prompts from %s\n", count, promptsFile)
			}
		} else {
			handle, err = analyzer.StartRun(ctx, models.RunRequest{
				BrandName:          runBrand,
				BrandURL:           runURL,
				UseExistingPrompts: useExisting,
			})
		}
		if err != nil {
			return fmt.Errorf("starting analysis: %w", err)
		}

		go func() {
			<-ctx.Done()
			analyzer.CancelRun()
		}()

		progress, err := handle.Wait(context.Background())
		fmt.Println()
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		if progress.Status != models.StatusComplete {
			return fmt.Errorf("analysis ended: %s", progress.Message)
		}
		return printResults(cmd.Context(), metrics)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runBrand, "brand", "b", "", "Brand name to look for")
	runCmd.Flags().StringVarP(&runURL, "url", "u", "", "Brand homepage used to derive topics")
	runCmd.Flags().StringVarP(&promptsFile, "prompts", "p", "", "YAML prompt file")
	runCmd.Flags().BoolVar(&useExisting, "existing", false, "Re-test the stored prompts")
	runCmd.Flags().BoolVar(&noDelay, "no-delay", false, "Skip the pause between prompts")
}

func printProgress(p models.Progress) {
	if p.TotalPrompts > 0 {
		fmt.Printf("\r[%3d%%] %s (%d/%d)   ", p.Progress, p.Message, p.CompletedPrompts, p.TotalPrompts)
		return
	}
	fmt.Printf("\r[%3d%%] %s   ", p.Progress, p.Message)
}

func printResults(ctx context.Context, metrics services.MetricsService) error {
	overview, err := metrics.OverviewMetrics(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\n📊 Results:")
	fmt.Printf("  Brand mention rate: %.1f%%\n", overview.BrandMentionRate)
	fmt.Printf("  Prompts tested: %d\n", overview.TotalPrompts)
	fmt.Printf("  Top competitor: %s\n", overview.TopCompetitor)
	fmt.Printf("  Cited domains: %d\n", overview.TotalDomains)

	competitors, err := metrics.CompetitorAnalysis(ctx)
	if err != nil {
		return err
	}
	if len(competitors) > 0 {
		fmt.Println("\nCompetitors:")
		for _, c := range competitors {
			category := "Other"
			if c.Category != nil {
				category = *c.Category
			}
			fmt.Printf("  %-30s %-15s %4d mentions (%.1f%%)\n", c.Name, category, c.MentionCount, c.MentionRate)
		}
	}

	sources, err := metrics.SourceAnalysis(ctx)
	if err != nil {
		return err
	}
	if len(sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range sources {
			fmt.Printf("  %-40s %4d citations\n", s.Domain, s.CitationCount)
		}
	}
	return nil
}
