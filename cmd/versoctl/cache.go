package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	versobot "github.com/verso-labs/versobot"
	"github.com/verso-labs/versobot/internal/bootstrap"
)

// loadConfig reads the config file when given, else uses defaults.
func loadConfig(path string) (versobot.Config, error) {
	if path == "" {
		return versobot.DefaultConfig(), nil
	}
	cfg, err := versobot.LoadConfig(path)
	if err != nil {
		return versobot.Config{}, err
	}
	return *cfg, nil
}

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			agent, err := versobot.New(cfg)
			if err != nil {
				return err
			}

			stats := agent.CacheStats()
			fmt.Printf("Entries:  %d\nHits:     %d\nMisses:   %d\nHit rate: %.1f%%\n",
				stats.TotalEntries, stats.Hits, stats.Misses, stats.HitRate*100)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			agent, err := versobot.New(cfg)
			if err != nil {
				return err
			}

			agent.ClearCache()
			fmt.Println("All cached responses cleared.")
			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export cache statistics as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			agent, err := versobot.New(cfg)
			if err != nil {
				return err
			}

			agent.ExportCacheStats(args[0])
			fmt.Printf("Cache stats exported to %s\n", args[0])
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd, exportCmd)
	return cmd
}

func newSyncCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage the knowledge-base sync pipeline",
	}

	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Flush pending pairs to the knowledge index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			agent, err := bootstrap.Agent(cfg)
			if err != nil {
				return err
			}

			pending := agent.PendingPairs()
			agent.FlushPending(context.Background())
			fmt.Printf("Flushed %d pending pair(s).\n", pending)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.AddCommand(flushCmd)
	return cmd
}
