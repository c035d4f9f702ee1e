package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/prsignal/internal/cache"
)

var flagCacheJSON bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the pull request snapshot cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached pull request snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		c, err := cache.New(true, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
		if err != nil {
			fail(cmd, ExitRuntimeError, fmt.Errorf("opening cache: %w", err))
			return nil
		}
		n, err := c.Clear()
		if err != nil {
			fail(cmd, ExitRuntimeError, fmt.Errorf("clearing cache: %w", err))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%d entries).\n", n)
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
		if err != nil {
			fail(cmd, ExitRuntimeError, fmt.Errorf("opening cache: %w", err))
			return nil
		}
		out := cmd.OutOrStdout()
		if !c.Enabled() {
			fmt.Fprintln(out, "Cache is disabled.")
			return nil
		}
		stats, err := c.GetStats()
		if err != nil {
			fail(cmd, ExitRuntimeError, fmt.Errorf("reading cache stats: %w", err))
			return nil
		}
		if flagCacheJSON {
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintf(out, "Directory: %s\n", stats.Dir)
		fmt.Fprintf(out, "Entries:   %d (%d expired)\n", stats.Entries, stats.Expired)
		fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(uint64(stats.TotalBytes)))
		return nil
	},
}

func init() {
	cacheShowCmd.Flags().BoolVar(&flagCacheJSON, "json", false, "Print statistics as JSON")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheShowCmd)
}
