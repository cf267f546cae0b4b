package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/domain/directory"
)

var (
	searchInstalls     string
	searchTimeframe    string
	searchMinUsability float64
	searchMinHealth    int
	searchSortBy       string
	searchSortDir      string
	searchPage         int
	searchPerPage      int
)

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search and filter directory plugins",
	Long: `Query the plugin catalog, apply filters and print one scored result page.

Examples:
  wpdirfilter search backup
  wpdirfilter search shop --installs 100k-1m --sort health_score
  wpdirfilter search --timeframe 6months --min-health 70`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchInstalls, "installs", "all", "installation range (all, under-1k, 1k-10k, 10k-100k, 100k-1m, over-1m)")
	searchCmd.Flags().StringVar(&searchTimeframe, "timeframe", "all", "update timeframe (all, 1month, 3months, 6months, 1year, 2years)")
	searchCmd.Flags().Float64Var(&searchMinUsability, "min-usability", 0, "minimum usability rating (0-5)")
	searchCmd.Flags().IntVar(&searchMinHealth, "min-health", 0, "minimum health score (0-100)")
	searchCmd.Flags().StringVar(&searchSortBy, "sort", "relevance", "sort field (relevance, name, rating, installations, updated, usability_rating, health_score)")
	searchCmd.Flags().StringVar(&searchSortDir, "direction", "desc", "sort direction (asc, desc)")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page")
	searchCmd.Flags().IntVar(&searchPerPage, "per-page", 24, "results per page (max 48)")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	svc, store, _, err := buildStack(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	term := ""
	if len(args) > 0 {
		term = args[0]
	}

	result, err := svc.Execute(context.Background(), directory.FilterRequest{
		SearchTerm:         term,
		InstallRange:       directory.InstallRange(searchInstalls),
		UpdateTimeframe:    directory.UpdateTimeframe(searchTimeframe),
		MinUsabilityRating: searchMinUsability,
		MinHealthScore:     searchMinHealth,
		SortBy:             directory.SortField(searchSortBy),
		SortDirection:      directory.SortDirection(searchSortDir),
		Page:               searchPage,
		PerPage:            searchPerPage,
	})
	if err != nil {
		return err
	}

	printResultTable(result)
	return nil
}

func printResultTable(result *directory.PagedResult) {
	if len(result.Plugins) == 0 {
		fmt.Println("No plugins match the given filters.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SLUG\tNAME\tINSTALLS\tRATING\tUSABILITY\tHEALTH\tUPDATED")

	for _, p := range result.Plugins {
		updated := "unknown"
		if !p.LastUpdated.IsZero() {
			updated = p.LastUpdated.Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%.1f\t%d (%s)\t%s\n",
			p.Slug,
			p.Name,
			p.ActiveInstalls,
			p.Rating,
			p.UsabilityRating,
			p.HealthScore,
			p.HealthColor,
			updated,
		)
	}
	_ = w.Flush()

	fmt.Printf("\nPage %d of %d (%d plugins match)\n",
		result.Pagination.CurrentPage,
		result.Pagination.TotalPages,
		result.Pagination.TotalResults,
	)
}
