package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cachePrefix string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop cached entries by key prefix (all entries when empty)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		kv, err := newCache(cmd.Context(), c)
		if err != nil {
			return err
		}
		defer kv.Close()
		n, err := kv.Invalidate(cmd.Context(), cachePrefix)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d cache entries (%s backend)\n", n, backendName(c.CacheBackend))
		return nil
	},
}

func backendName(b string) string {
	if b == "" {
		return "memory"
	}
	return b
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheInvalidateCmd.Flags().StringVar(&cachePrefix, "prefix", "", "key prefix, for example catalog:")
}
