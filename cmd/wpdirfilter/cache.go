package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/cache"
	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local cache",
	Long: `Operate on the durable cache that backs searches and scores.

Examples:
  wpdirfilter cache stats              # Per-scope entry counts and sizes
  wpdirfilter cache clear              # Drop everything
  wpdirfilter cache clear search       # Drop one scope
  wpdirfilter cache cleanup --limit 200`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-scope entry counts and sizes",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [scope]",
	Short: "Remove cached entries",
	Long: `Remove every entry in the named scope (meta, scores, search, ratelimit),
or in all scopes when none is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheClear,
}

var cacheCleanupLimit int

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune expired entries",
	RunE:  runCacheCleanup,
}

func init() {
	cacheCleanupCmd.Flags().IntVar(&cacheCleanupLimit, "limit", 0, "max entries to prune, 0 uses config")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)

	rootCmd.AddCommand(cacheCmd)
}

// openCache opens the durable cache from config. The fast tier stays off;
// maintenance commands only touch the store.
func openCache() (*cache.TieredCache, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	store, err := cache.New(cache.Config{
		Path:                 cfg.Cache.Path,
		CompressionThreshold: cfg.Cache.CompressionThreshold,
		StatsWindow:          cfg.Cache.StatsWindow.Std(),
	})
	return store, cfg, err
}

func runCacheStats(_ *cobra.Command, _ []string) error {
	store, _, err := openCache()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	scopes := make([]string, 0, len(stats.PerScope))
	for scope := range stats.PerScope {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCOPE\tENTRIES\tBYTES")
	for _, scope := range scopes {
		s := stats.PerScope[scope]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", scope, s.Entries, s.Bytes)
	}
	_, _ = fmt.Fprintf(w, "total\t%d\t%d\n", stats.Entries, stats.TotalBytes)
	_ = w.Flush()
	return nil
}

func runCacheClear(_ *cobra.Command, args []string) error {
	scope := cache.ScopeAll
	if len(args) > 0 {
		scope = args[0]
	}
	if !cache.ValidScope(scope) {
		return fmt.Errorf("unknown cache scope %q", scope)
	}

	store, _, err := openCache()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	removed, err := store.Clear(context.Background(), scope)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d entries from %s\n", removed, scope)
	return nil
}

func runCacheCleanup(_ *cobra.Command, _ []string) error {
	store, cfg, err := openCache()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	limit := cacheCleanupLimit
	if limit < 1 {
		limit = cfg.Cache.CleanupLimit
	}

	removed, err := store.Cleanup(context.Background(), limit)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d expired entries\n", removed)
	return nil
}
