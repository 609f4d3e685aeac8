// Package config loads the declarative YAML configuration described
// in the external interfaces section: watch/storage/cache paths,
// display truncation tuning, walker behavior, AI keyword count, and
// writer memory budget.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/fsearchd/fsearchd/internal/ferrors"
)

// Config is the complete daemon configuration.
type Config struct {
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Display     DisplayConfig     `yaml:"display" json:"display"`
	Walker      WalkerConfig      `yaml:"walker" json:"walker"`
	AI          AIConfig          `yaml:"ai" json:"ai"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// PathsConfig locates the watched tree and the two on-disk stores.
type PathsConfig struct {
	WatchPath   string `yaml:"watch_path" json:"watch_path"`
	StoragePath string `yaml:"storage_path" json:"storage_path"`
	CachePath   string `yaml:"cache_path" json:"cache_path"`
	ModelPath   string `yaml:"model_path" json:"model_path"`
}

// DisplayConfig tunes result preview truncation.
type DisplayConfig struct {
	PreviewMaxLength   int `yaml:"preview_max_length" json:"preview_max_length"`
	SentenceSearchStart int `yaml:"sentence_search_start" json:"sentence_search_start"`
}

// WalkerConfig tunes the Scanner's tree traversal.
type WalkerConfig struct {
	UseRipgrepWalker      bool     `yaml:"use_ripgrep_walker" json:"use_ripgrep_walker"`
	RespectGitignore      bool     `yaml:"respect_gitignore" json:"respect_gitignore"`
	RespectIgnore         bool     `yaml:"respect_ignore" json:"respect_ignore"`
	SkipHidden            bool     `yaml:"skip_hidden" json:"skip_hidden"`
	FollowSymlinks        bool     `yaml:"follow_symlinks" json:"follow_symlinks"`
	MaxDepth              int      `yaml:"max_depth" json:"max_depth"`
	CustomIgnorePatterns  []string `yaml:"custom_ignore_patterns" json:"custom_ignore_patterns"`
	SupportedExtensions   []string `yaml:"supported_extensions" json:"supported_extensions"`
}

// AIConfig tunes the keyword extractor collaborator.
type AIConfig struct {
	KeywordCount int `yaml:"keyword_count" json:"keyword_count"`
}

// PerformanceConfig tunes the index writer.
type PerformanceConfig struct {
	IndexWriterMemory int `yaml:"index_writer_memory" json:"index_writer_memory"`
}

// LoggingConfig selects the ambient logger's behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns a Config populated with every default named in the
// external interfaces section.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	base := filepath.Join(home, ".fsearchd")

	return &Config{
		Paths: PathsConfig{
			WatchPath:   "",
			StoragePath: filepath.Join(base, "index"),
			CachePath:   filepath.Join(base, "cache"),
			ModelPath:   filepath.Join(base, "model"),
		},
		Display: DisplayConfig{
			PreviewMaxLength:    200,
			SentenceSearchStart: 50,
		},
		Walker: WalkerConfig{
			UseRipgrepWalker:     true,
			RespectGitignore:     true,
			RespectIgnore:        true,
			SkipHidden:           true,
			FollowSymlinks:       false,
			MaxDepth:             0,
			CustomIgnorePatterns: nil,
			SupportedExtensions:  []string{"txt", "md", "pdf"},
		},
		AI: AIConfig{
			KeywordCount: 3,
		},
		Performance: PerformanceConfig{
			IndexWriterMemory: 50 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML file at path, overlaying it on Default(), then
// applies FSEARCHD_* environment overrides, then validates. A missing
// file is not an error — defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, ferrors.Wrap(ferrors.Config, "read config file", err)
			}
		} else {
			parsed := *Default()
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return nil, ferrors.Wrap(ferrors.Config, "parse config file", err)
			}
			cfg.mergeWith(&parsed)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, ferrors.Wrap(ferrors.Config, "invalid configuration", err)
	}

	return cfg, nil
}

// mergeWith overlays non-zero values from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Paths.WatchPath != "" {
		c.Paths.WatchPath = other.Paths.WatchPath
	}
	if other.Paths.StoragePath != "" {
		c.Paths.StoragePath = other.Paths.StoragePath
	}
	if other.Paths.CachePath != "" {
		c.Paths.CachePath = other.Paths.CachePath
	}
	if other.Paths.ModelPath != "" {
		c.Paths.ModelPath = other.Paths.ModelPath
	}
	if other.Display.PreviewMaxLength != 0 {
		c.Display.PreviewMaxLength = other.Display.PreviewMaxLength
	}
	if other.Display.SentenceSearchStart != 0 {
		c.Display.SentenceSearchStart = other.Display.SentenceSearchStart
	}
	if len(other.Walker.SupportedExtensions) > 0 {
		c.Walker.SupportedExtensions = other.Walker.SupportedExtensions
	}
	if len(other.Walker.CustomIgnorePatterns) > 0 {
		c.Walker.CustomIgnorePatterns = other.Walker.CustomIgnorePatterns
	}
	if other.Walker.MaxDepth != 0 {
		c.Walker.MaxDepth = other.Walker.MaxDepth
	}
	// Bool fields in the walker section have meaningful false values, so a
	// YAML file always overrides them wholesale alongside the scalar flags.
	// Load decodes the file over a copy of Default(), so a flag the file
	// does not mention keeps its default here.
	c.Walker.UseRipgrepWalker = other.Walker.UseRipgrepWalker
	c.Walker.RespectGitignore = other.Walker.RespectGitignore
	c.Walker.RespectIgnore = other.Walker.RespectIgnore
	c.Walker.SkipHidden = other.Walker.SkipHidden
	c.Walker.FollowSymlinks = other.Walker.FollowSymlinks
	if other.AI.KeywordCount != 0 {
		c.AI.KeywordCount = other.AI.KeywordCount
	}
	if other.Performance.IndexWriterMemory != 0 {
		c.Performance.IndexWriterMemory = other.Performance.IndexWriterMemory
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
}

// applyEnvOverrides applies the handful of FSEARCHD_* overrides ops
// needs to flip without editing the config file.
func (c *Config) applyEnvOverrides() {
	if v, ok := os.LookupEnv("FSEARCHD_WATCH_PATH"); ok {
		c.Paths.WatchPath = v
	}
	if v, ok := os.LookupEnv("FSEARCHD_STORAGE_PATH"); ok {
		c.Paths.StoragePath = v
	}
	if v, ok := os.LookupEnv("FSEARCHD_CACHE_PATH"); ok {
		c.Paths.CachePath = v
	}
	if v, ok := os.LookupEnv("FSEARCHD_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv("FSEARCHD_INDEX_WORKER_MEMORY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Performance.IndexWriterMemory = n
		}
	}
}

// Validate checks the required fields and value ranges.
func (c *Config) Validate() error {
	if c.Paths.WatchPath == "" {
		return fmt.Errorf("paths.watch_path is required")
	}
	if c.Paths.StoragePath == "" {
		return fmt.Errorf("paths.storage_path is required")
	}
	if c.Paths.CachePath == "" {
		return fmt.Errorf("paths.cache_path is required")
	}
	if c.Display.PreviewMaxLength <= 0 {
		return fmt.Errorf("display.preview_max_length must be positive, got %d", c.Display.PreviewMaxLength)
	}
	if c.Walker.MaxDepth < 0 {
		return fmt.Errorf("walker.max_depth must be non-negative, got %d", c.Walker.MaxDepth)
	}
	if c.AI.KeywordCount < 0 {
		return fmt.Errorf("ai.keyword_count must be non-negative, got %d", c.AI.KeywordCount)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %s", c.Logging.Level)
	}
	return nil
}

// IndexWorkers returns a sensible worker count for the scanner,
// bounded by the number of available CPUs.
func (c *Config) IndexWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
