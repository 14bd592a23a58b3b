package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nativepkg/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the registry response and binary download caches",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var responsesOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached registry responses and downloaded binaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			cfg := c.settings()

			rc, err := c.newCache(ctx)
			if err != nil {
				return err
			}
			defer rc.Close()

			if cl, ok := rc.(cache.Clearer); ok {
				if err := cl.Clear(ctx); err != nil {
					return fmt.Errorf("clear response cache: %w", err)
				}
				printSuccess(out, "Cleared registry responses")
				if cfg.RedisURL == "" {
					printDetail(out, "Directory: %s", cfg.CacheDir)
				}
			}

			if responsesOnly {
				return nil
			}
			if err := os.RemoveAll(cfg.DownloadDir); err != nil {
				return fmt.Errorf("clear download cache: %w", err)
			}
			printSuccess(out, "Cleared downloaded binaries")
			printDetail(out, "Directory: %s", cfg.DownloadDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&responsesOnly, "responses-only", false, "keep downloaded binaries")
	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.settings()
			out := cmd.OutOrStdout()
			printKeyValue(out, "responses", cfg.CacheDir)
			printKeyValue(out, "binaries", cfg.DownloadDir)
			return nil
		},
	}
}
