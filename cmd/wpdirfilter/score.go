package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/catalog"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score <slug>",
	Short: "Show a plugin's score breakdown",
	Long: `Fetch one plugin from the catalog and print its usability and health
scores with the per-component breakdown behind each number.

Examples:
  wpdirfilter score woocommerce
  wpdirfilter score contact-form-7`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}

func runScore(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := catalog.NewClient(catalog.ClientConfig{
		BaseURL:   cfg.Catalog.BaseURL,
		Timeout:   cfg.Catalog.Timeout.Std(),
		UserAgent: cfg.Catalog.UserAgent,
	})
	engine := scoring.NewEngine(cfg.Scoring.Weights,
		scoring.WithPlatformVersion(cfg.Scoring.PlatformVersion))

	meta, err := client.Details(context.Background(), args[0])
	if err != nil {
		return err
	}

	result := engine.Score(meta)

	fmt.Printf("%s (%s) %s\n", meta.Name, meta.Slug, meta.Version)
	fmt.Printf("Usability: %.1f / 5.0\n", result.UsabilityRating)
	fmt.Printf("Health:    %d / 100 (%s)\n\n", result.HealthScore, result.HealthColor)

	printBreakdown("USABILITY COMPONENT", result.UsabilityBreakdown)
	fmt.Println()
	printBreakdown("HEALTH COMPONENT", result.HealthBreakdown)
	return nil
}

func printBreakdown(header string, parts []scoring.ComponentScore) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\tRAW\tWEIGHT\tWEIGHTED\n", header)

	for _, part := range parts {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%d\t%.3f\n",
			componentLabel(part.Component), part.Raw, part.Weight, part.Weighted)
	}
	_ = w.Flush()
}

// componentLabel renders a snake_case component name for display.
func componentLabel(name string) string {
	caser := cases.Title(language.English)
	return caser.String(strings.ReplaceAll(name, "_", " "))
}
