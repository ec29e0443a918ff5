package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the synthesis cache",
		Long:  paragraph(fmt.Sprintf("\nSynthesized speech is %s on disk so documents read again start faster.", keyword("cached"))),
		Args:  cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show the size of the synthesis cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCacheStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			printCacheSummary(cmd.OutOrStdout(), store.Summary())
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached utterance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCacheStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			before := store.Summary().Disk
			if err := store.Clear(); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items, %s.\n", before.ItemCount, humanize.Bytes(uint64(max(before.Size, 0)))) //nolint:gosec
			return nil
		},
	}
)

func openCacheStore() (*cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, errors.New("the synthesis cache is disabled")
	}
	store := openCache(cfg.Cache)
	if store == nil {
		return nil, errors.New("unable to open the synthesis cache, see the log for details")
	}
	return store, nil
}

func printCacheSummary(w io.Writer, s cache.Summary) {
	fmt.Fprintln(w, keyword("Directory"), s.Dir)
	for _, tier := range []struct {
		level cache.Level
		stats cache.Stats
	}{
		{cache.LevelMemory, s.Memory},
		{cache.LevelDisk, s.Disk},
	} {
		st := tier.stats
		line := fmt.Sprintf("%-6s %d items, %s of %s", tier.level, st.ItemCount,
			humanize.Bytes(uint64(max(st.Size, 0))),     //nolint:gosec
			humanize.Bytes(uint64(max(st.Capacity, 0))), //nolint:gosec
		)
		if st.Hits+st.Misses > 0 {
			line += fmt.Sprintf(", %.0f%% hits", st.HitRate()*100)
		}
		if !st.LastAccess.IsZero() {
			line += subtle(", used " + humanize.Time(st.LastAccess))
		}
		fmt.Fprintln(w, line)
	}
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
