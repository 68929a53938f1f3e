package tscache

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFileName is the project-level config file, looked up in the root.
const ConfigFileName = ".tscache.yaml"

// Config is everything an Engine needs to know about a project.
type Config struct {
	Root           string   `mapstructure:"root" yaml:"root"`
	CompilerConfig string   `mapstructure:"compiler_config" yaml:"compiler_config"`
	CacheDir       string   `mapstructure:"cache_dir" yaml:"cache_dir"`
	Include        []string `mapstructure:"include" yaml:"include"`
	Exclude        []string `mapstructure:"exclude" yaml:"exclude"`
	TestGlobs      []string `mapstructure:"test_globs" yaml:"test_globs"`
	WarnCodes      []int    `mapstructure:"warn_codes" yaml:"warn_codes"`
	MaxDepth       int      `mapstructure:"max_depth" yaml:"max_depth"`
	AlwaysVerify   bool     `mapstructure:"always_verify" yaml:"always_verify"`
	SymbolFilter   string   `mapstructure:"symbol_filter" yaml:"symbol_filter"`
}

// DefaultConfig returns the defaults for a project rooted at root.
func DefaultConfig(root string) Config {
	return Config{
		Root:           root,
		CompilerConfig: "tsconfig.json",
		CacheDir:       ".tscache",
		Include:        []string{"**/*.ts", "**/*.tsx"},
		Exclude:        []string{"node_modules/**", "**/node_modules/**", "dist/**"},
		TestGlobs:      []string{"**/*.test.ts", "**/*.test.tsx", "**/*.spec.ts", "**/*.spec.tsx"},
		WarnCodes:      []int{6133},
		MaxDepth:       3,
	}
}

// LoadConfig reads .tscache.yaml from root, applies TSCACHE_* environment
// overrides, and fills defaults. A missing config file is not an error.
func LoadConfig(root string) (Config, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("tscache: resolve root: %w", err)
	}
	def := DefaultConfig(abs)

	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	v.SetConfigType("yaml")
	v.AddConfigPath(abs)
	v.SetEnvPrefix("TSCACHE")
	v.AutomaticEnv()

	v.SetDefault("compiler_config", def.CompilerConfig)
	v.SetDefault("cache_dir", def.CacheDir)
	v.SetDefault("include", def.Include)
	v.SetDefault("exclude", def.Exclude)
	v.SetDefault("test_globs", def.TestGlobs)
	v.SetDefault("warn_codes", def.WarnCodes)
	v.SetDefault("max_depth", def.MaxDepth)
	v.SetDefault("always_verify", def.AlwaysVerify)
	v.SetDefault("symbol_filter", def.SymbolFilter)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("tscache: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("tscache: decode config: %w", err)
	}
	cfg.Root = abs
	return cfg.normalize(), nil
}

// normalize makes Root and CacheDir absolute and fills zero values from
// defaults.
func (c Config) normalize() Config {
	if abs, err := filepath.Abs(c.Root); err == nil {
		c.Root = abs
	}
	def := DefaultConfig(c.Root)
	if c.CompilerConfig == "" {
		c.CompilerConfig = def.CompilerConfig
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if !filepath.IsAbs(c.CacheDir) {
		c.CacheDir = filepath.Join(c.Root, c.CacheDir)
	}
	if len(c.Include) == 0 {
		c.Include = def.Include
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}
	return c
}

// CompilerConfigPath returns the absolute path of the compiler config.
func (c Config) CompilerConfigPath() string {
	if filepath.IsAbs(c.CompilerConfig) {
		return c.CompilerConfig
	}
	return filepath.Join(c.Root, c.CompilerConfig)
}

// IsWarning reports whether code is configured as a warning.
func (c Config) IsWarning(code int) bool {
	for _, w := range c.WarnCodes {
		if w == code {
			return true
		}
	}
	return false
}
