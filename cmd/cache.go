package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheName string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the TTL caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, c cacheOps) error {
			stats, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(stats)
		})
	},
}

var cacheEntriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, c cacheOps) error {
			entries, err := c.EntriesJSON(ctx)
			if err != nil {
				return err
			}
			return printJSON(entries)
		})
	},
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, c cacheOps) error {
			n, err := c.Sweep(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("sweep complete", zap.String("cache", cacheName), zap.Int("removed", n))
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, c cacheOps) error {
			if err := c.Clear(ctx); err != nil {
				return err
			}
			zap.L().Info("cache cleared", zap.String("cache", cacheName))
			return nil
		})
	},
}

// cacheOps is the slice of cache behavior the CLI needs, satisfied by both
// the search and enrichment caches.
type cacheOps struct {
	Stats       func(context.Context) (any, error)
	EntriesJSON func(context.Context) (any, error)
	Sweep       func(context.Context) (int, error)
	Clear       func(context.Context) error
}

func withCache(ctx context.Context, fn func(context.Context, cacheOps) error) error {
	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var ops cacheOps
	switch cacheName {
	case "search":
		ops = cacheOps{
			Stats:       func(ctx context.Context) (any, error) { return env.Search.Stats(ctx) },
			EntriesJSON: func(ctx context.Context) (any, error) { return env.Search.Entries(ctx) },
			Sweep:       env.Search.Sweep,
			Clear:       env.Search.Clear,
		}
	case "enrichment":
		ops = cacheOps{
			Stats:       func(ctx context.Context) (any, error) { return env.Enrich.Stats(ctx) },
			EntriesJSON: func(ctx context.Context) (any, error) { return env.Enrich.Entries(ctx) },
			Sweep:       env.Enrich.Sweep,
			Clear:       env.Enrich.Clear,
		}
	default:
		return eris.Errorf("unknown cache %q (want search or enrichment)", cacheName)
	}
	return fn(ctx, ops)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheName, "cache", "search", "which cache: search or enrichment")
	cacheCmd.AddCommand(cacheStatsCmd, cacheEntriesCmd, cacheSweepCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
