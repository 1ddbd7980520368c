package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabloom-cli/internal/cache"
	"github.com/KaramelBytes/tabloom-cli/internal/coding"
	"github.com/KaramelBytes/tabloom-cli/internal/compose"
	"github.com/KaramelBytes/tabloom-cli/internal/significance"
	"github.com/KaramelBytes/tabloom-cli/internal/survey"
)

// Global configuration structure.
type Global struct {
	StudiesDir  string `mapstructure:"studies_dir" yaml:"studies_dir"`
	CatalogPath string `mapstructure:"catalog_path" yaml:"catalog_path"`

	// Tabulation
	Decimals          int      `mapstructure:"decimals" yaml:"decimals"`
	Alpha             float64  `mapstructure:"alpha" yaml:"alpha"`
	MinBase           float64  `mapstructure:"min_base" yaml:"min_base"`
	JustRightKeywords []string `mapstructure:"just_right_keywords" yaml:"just_right_keywords"`
	InvertedKeywords  []string `mapstructure:"inverted_keywords" yaml:"inverted_keywords"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogOutput string `mapstructure:"log_output" yaml:"log_output"`

	// Cache
	CacheBackend  string `mapstructure:"cache_backend" yaml:"cache_backend"`
	CacheTTLSec   int    `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`

	// Open-ended coding
	APIKey               string `mapstructure:"api_key" yaml:"api_key"`
	CodingModel          string `mapstructure:"coding_model" yaml:"coding_model"`
	CodingBaseURL        string `mapstructure:"coding_base_url" yaml:"coding_base_url"`
	CodingConcurrency    int    `mapstructure:"coding_concurrency" yaml:"coding_concurrency"`
	CodingBaseTimeoutSec int    `mapstructure:"coding_base_timeout_sec" yaml:"coding_base_timeout_sec"`
	CodingPerAnswerMs    int    `mapstructure:"coding_per_answer_ms" yaml:"coding_per_answer_ms"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// HTTP API
	ServeAddr   string   `mapstructure:"serve_addr" yaml:"serve_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tabloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tabloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults make these keys visible to AutomaticEnv on Unmarshal.
	for _, k := range []string{"studies_dir", "catalog_path", "api_key", "redis_password"} {
		v.SetDefault(k, "")
	}
	v.SetDefault("decimals", 1)
	v.SetDefault("alpha", 0.05)
	v.SetDefault("min_base", 30)
	v.SetDefault("just_right_keywords", []string{"justo", "just right"})
	v.SetDefault("inverted_keywords", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("log_output", "stderr")
	v.SetDefault("cache_backend", "memory")
	v.SetDefault("cache_ttl_sec", 600)
	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("coding_model", "openai/gpt-4o-mini")
	v.SetDefault("coding_base_url", coding.DefaultBaseURL)
	v.SetDefault("coding_concurrency", 4)
	v.SetDefault("coding_base_timeout_sec", 30)
	v.SetDefault("coding_per_answer_ms", 200)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("serve_addr", ":8080")
	v.SetDefault("cors_origins", []string{"*"})
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TABLOOM")
	v.AutomaticEnv()
	setDefaults(v)

	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.StudiesDir == "" {
		c.StudiesDir = filepath.Join(dir, "studies")
	}
	if c.CatalogPath == "" {
		c.CatalogPath = filepath.Join(dir, "catalog.yaml")
	}
	return &c, nil
}

// Keys lists every settable key.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(c *Global, val string) error{
	"studies_dir":  func(c *Global, v string) error { c.StudiesDir = v; return nil },
	"catalog_path": func(c *Global, v string) error { c.CatalogPath = v; return nil },
	"decimals":     intSetter(func(c *Global, i int) { c.Decimals = i }, 0),
	"alpha": func(c *Global, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 1 {
			return fmt.Errorf("invalid alpha: %s (want 0 < alpha < 1)", v)
		}
		c.Alpha = f
		return nil
	},
	"min_base": func(c *Global, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid min_base: %s", v)
		}
		c.MinBase = f
		return nil
	},
	"just_right_keywords": func(c *Global, v string) error { c.JustRightKeywords = splitList(v); return nil },
	"inverted_keywords":   func(c *Global, v string) error { c.InvertedKeywords = splitList(v); return nil },
	"log_level": func(c *Global, v string) error {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("invalid log_level: %s (debug|info|warn|error)", v)
	},
	"log_format": func(c *Global, v string) error {
		switch strings.ToLower(v) {
		case "console", "json":
			c.LogFormat = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("invalid log_format: %s (console|json)", v)
	},
	"log_output": func(c *Global, v string) error { c.LogOutput = v; return nil },
	"cache_backend": func(c *Global, v string) error {
		switch strings.ToLower(v) {
		case "memory", "redis":
			c.CacheBackend = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("invalid cache_backend: %s (memory|redis)", v)
	},
	"cache_ttl_sec":           intSetter(func(c *Global, i int) { c.CacheTTLSec = i }, 0),
	"redis_addr":              func(c *Global, v string) error { c.RedisAddr = v; return nil },
	"redis_password":          func(c *Global, v string) error { c.RedisPassword = v; return nil },
	"redis_db":                intSetter(func(c *Global, i int) { c.RedisDB = i }, 0),
	"api_key":                 func(c *Global, v string) error { c.APIKey = v; return nil },
	"coding_model":            func(c *Global, v string) error { c.CodingModel = v; return nil },
	"coding_base_url":         func(c *Global, v string) error { c.CodingBaseURL = v; return nil },
	"coding_concurrency":      intSetter(func(c *Global, i int) { c.CodingConcurrency = i }, 1),
	"coding_base_timeout_sec": intSetter(func(c *Global, i int) { c.CodingBaseTimeoutSec = i }, 1),
	"coding_per_answer_ms":    intSetter(func(c *Global, i int) { c.CodingPerAnswerMs = i }, 0),
	"http_timeout_sec":        intSetter(func(c *Global, i int) { c.HTTPTimeoutSec = i }, 1),
	"retry_max_attempts":      intSetter(func(c *Global, i int) { c.RetryMaxAttempts = i }, 1),
	"retry_base_delay_ms":     intSetter(func(c *Global, i int) { c.RetryBaseDelayMs = i }, 0),
	"retry_max_delay_ms":      intSetter(func(c *Global, i int) { c.RetryMaxDelayMs = i }, 0),
	"serve_addr":              func(c *Global, v string) error { c.ServeAddr = v; return nil },
	"cors_origins":            func(c *Global, v string) error { c.CORSOrigins = splitList(v); return nil },
}

func intSetter(set func(*Global, int), lo int) func(*Global, string) error {
	return func(c *Global, v string) error {
		i, err := strconv.Atoi(v)
		if err != nil || i < lo {
			return fmt.Errorf("invalid int: %s (min %d)", v, lo)
		}
		set(c, i)
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Set validates and assigns one key.
func (c *Global) Set(key, val string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	if err := set(c, val); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// ComposeOptions returns the tabulation settings.
func (c *Global) ComposeOptions() compose.Options {
	opt := compose.DefaultOptions()
	opt.Decimals = c.Decimals
	opt.Significance = significance.Options{Alpha: c.Alpha, MinBase: c.MinBase}
	opt.Keywords = survey.ScaleKeywords{JustRight: c.JustRightKeywords, Inverted: c.InvertedKeywords}
	return opt
}

// CacheOptions returns the cache backend settings.
func (c *Global) CacheOptions() cache.Options {
	return cache.Options{Backend: c.CacheBackend, Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// CacheTTL is the catalog cache lifetime.
func (c *Global) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// ClientOptions returns the coding client settings.
func (c *Global) ClientOptions() coding.ClientOptions {
	return coding.ClientOptions{
		APIKey:           c.APIKey,
		BaseURL:          c.CodingBaseURL,
		Model:            c.CodingModel,
		HTTPTimeout:      time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMaxAttempts: c.RetryMaxAttempts,
		RetryBaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		RetryMaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
	}
}

// RunOptions returns the coding fan-out settings.
func (c *Global) RunOptions() coding.RunOptions {
	return coding.RunOptions{
		Concurrency: c.CodingConcurrency,
		BaseTimeout: time.Duration(c.CodingBaseTimeoutSec) * time.Second,
		PerAnswer:   time.Duration(c.CodingPerAnswerMs) * time.Millisecond,
	}
}
