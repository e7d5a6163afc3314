package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	queryTopic       string
	queryDescription string
	queryCount       int
	queryCompetitors []string
	asJSON           bool
)

var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Generate test prompts for one topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		if queryDescription == "" {
			queryDescription = "Questions about " + queryTopic
		}
		provider, err := newProvider(newFetcher())
		if err != nil {
			return err
		}
		queries, err := provider.GenerateQueries(cmd.Context(), queryTopic, queryDescription, queryCount, queryCompetitors)
		if err != nil {
			return fmt.Errorf("generating queries: %w", err)
		}
		if asJSON {
			return printJSON(queries)
		}
		for i, q := range queries {
			fmt.Printf("%2d. %s\n", i+1, q)
		}
		return nil
	},
}

var competitorsCmd = &cobra.Command{
	Use:   "competitors <url>",
	Short: "Find competitors of a brand site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, err := newProvider(newFetcher())
		if err != nil {
			return err
		}
		competitors, err := provider.FindCompetitors(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("finding competitors: %w", err)
		}
		if asJSON {
			return printJSON(competitors)
		}
		for _, c := range competitors {
			fmt.Printf("%-30s %-20s %s\n", c.Name, c.Category, c.URL)
		}
		return nil
	},
}

func init() {
	queriesCmd.Flags().StringVarP(&queryTopic, "topic", "t", "", "Topic name")
	queriesCmd.Flags().StringVarP(&queryDescription, "description", "d", "", "Topic description")
	queriesCmd.Flags().IntVarP(&queryCount, "count", "n", 5, "Number of prompts")
	queriesCmd.Flags().StringSliceVar(&queryCompetitors, "competitor", nil, "Competitor to mention (repeatable)")
	_ = queriesCmd.MarkFlagRequired("topic")

	for _, c := range []*cobra.Command{queriesCmd, competitorsCmd} {
		c.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
