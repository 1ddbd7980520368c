package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/tabloom-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Tabloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireConfig(); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "studies_dir: %s\n", cfg.StudiesDir)
		fmt.Fprintf(out, "catalog_path: %s\n", cfg.CatalogPath)
		fmt.Fprintf(out, "decimals: %d\n", cfg.Decimals)
		fmt.Fprintf(out, "alpha: %.3f\n", cfg.Alpha)
		fmt.Fprintf(out, "min_base: %.0f\n", cfg.MinBase)
		fmt.Fprintf(out, "just_right_keywords: %s\n", strings.Join(cfg.JustRightKeywords, ", "))
		if len(cfg.InvertedKeywords) > 0 {
			fmt.Fprintf(out, "inverted_keywords: %s\n", strings.Join(cfg.InvertedKeywords, ", "))
		}
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		fmt.Fprintf(out, "cache_backend: %s\n", cfg.CacheBackend)
		fmt.Fprintf(out, "cache_ttl_sec: %d\n", cfg.CacheTTLSec)
		if cfg.CacheBackend == "redis" {
			fmt.Fprintf(out, "redis_addr: %s\n", cfg.RedisAddr)
			fmt.Fprintf(out, "redis_password: %s\n", mask(cfg.RedisPassword))
			fmt.Fprintf(out, "redis_db: %d\n", cfg.RedisDB)
		}
		fmt.Fprintf(out, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(out, "coding_model: %s\n", cfg.CodingModel)
		fmt.Fprintf(out, "coding_concurrency: %d\n", cfg.CodingConcurrency)
		fmt.Fprintf(out, "serve_addr: %s\n", cfg.ServeAddr)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return fmt.Errorf("%w (keys: %s)", err, strings.Join(cfgpkg.Keys(), ", "))
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
