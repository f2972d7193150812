package main

import (
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/s9b/memenem-backend/internal/app"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the cache store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print per-category cache statistics as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openCache()
			if err != nil {
				return err
			}
			defer a.Store.Close()

			stats, err := a.Cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired cache entries and print the counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openCache()
			if err != nil {
				return err
			}
			defer a.Store.Close()

			removed, err := a.Cache.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(removed)
		},
	})
	return cmd
}

func openCache() (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewCacheOnly(cfg, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
