// Package config resolves dosewise settings from defaults, an optional YAML
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Skufu/dosewise/internal/cluster"
	"github.com/Skufu/dosewise/internal/dataset"
	"github.com/Skufu/dosewise/internal/engine"
	"github.com/Skufu/dosewise/internal/features"
	"github.com/Skufu/dosewise/internal/logging"
	"github.com/Skufu/dosewise/internal/stats"
)

// DefaultDatasetPath is the CSV shipped alongside the service.
const DefaultDatasetPath = "realistic_drug_labels_side_effects.csv"

// Config is the effective configuration.
type Config struct {
	Port    string `mapstructure:"port" yaml:"port"`
	GinMode string `mapstructure:"gin_mode" yaml:"gin_mode"`

	DatasetPath  string `mapstructure:"dataset_path" yaml:"dataset_path"`
	DatasetTable string `mapstructure:"dataset_table" yaml:"dataset_table"`
	EnableDB     bool   `mapstructure:"enable_db" yaml:"enable_db"`
	DatabaseURL  string `mapstructure:"database_url" yaml:"database_url,omitempty"`

	Eps             float64  `mapstructure:"eps" yaml:"eps"`
	MinSamples      int      `mapstructure:"min_samples" yaml:"min_samples"`
	Workers         int      `mapstructure:"workers" yaml:"workers"`
	LimitMultiplier float64  `mapstructure:"limit_multiplier" yaml:"limit_multiplier"`
	SimilarLimit    int      `mapstructure:"similar_limit" yaml:"similar_limit"`
	CategoryOrder   string   `mapstructure:"category_order" yaml:"category_order"`
	ExcludeColumns  []string `mapstructure:"exclude_columns" yaml:"exclude_columns"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// envKeys maps config keys to the environment variables that override them.
var envKeys = map[string]string{
	"port":             "PORT",
	"gin_mode":         "GIN_MODE",
	"dataset_path":     "DATASET_PATH",
	"dataset_table":    "DATASET_TABLE",
	"enable_db":        "ENABLE_DB",
	"database_url":     "DATABASE_URL",
	"eps":              "DBSCAN_EPS",
	"min_samples":      "DBSCAN_MIN_SAMPLES",
	"workers":          "DBSCAN_WORKERS",
	"limit_multiplier": "LIMIT_MULTIPLIER",
	"similar_limit":    "SIMILAR_LIMIT",
	"category_order":   "CATEGORY_ORDER",
	"exclude_columns":  "EXCLUDE_COLUMNS",
	"log_level":        "LOG_LEVEL",
	"log_format":       "LOG_FORMAT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("dataset_path", DefaultDatasetPath)
	v.SetDefault("dataset_table", dataset.DefaultTable)
	v.SetDefault("enable_db", false)
	v.SetDefault("database_url", "")
	v.SetDefault("eps", cluster.DefaultEps)
	v.SetDefault("min_samples", cluster.DefaultMinSamples)
	v.SetDefault("workers", 0)
	v.SetDefault("limit_multiplier", stats.DefaultLimitMultiplier)
	v.SetDefault("similar_limit", engine.DefaultSimilarLimit)
	v.SetDefault("category_order", string(features.OrderAppearance))
	v.SetDefault("exclude_columns", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load resolves the configuration. Precedence: environment (including a
// .env file in the working directory) > cfgFile > defaults. cfgFile may be
// empty; when set it must be readable.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.ExcludeColumns = splitList(c.ExcludeColumns)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// splitList flattens comma separated entries, as delivered by EXCLUDE_COLUMNS.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.EnableDB && c.DatabaseURL == "":
		return errors.New("DATABASE_URL is required when ENABLE_DB=true")
	case c.Eps <= 0:
		return fmt.Errorf("eps must be positive, got %v", c.Eps)
	case c.MinSamples <= 0:
		return fmt.Errorf("min_samples must be positive, got %d", c.MinSamples)
	case c.SimilarLimit <= 0:
		return fmt.Errorf("similar_limit must be positive, got %d", c.SimilarLimit)
	}
	switch features.CategoryOrder(c.CategoryOrder) {
	case features.OrderAppearance, features.OrderSorted:
	default:
		return fmt.Errorf("category_order must be %q or %q, got %q",
			features.OrderAppearance, features.OrderSorted, c.CategoryOrder)
	}
	return nil
}

// Logger builds the logger described by LogLevel and LogFormat.
func (c *Config) Logger() *logging.Logger {
	return logging.New(c.LogLevel, c.LogFormat)
}

// EngineOptions translates the configuration into engine options. The
// dataset source is the file at DatasetPath; callers loading from Postgres
// build the store themselves.
func (c *Config) EngineOptions(log *logging.Logger) engine.Options {
	return engine.Options{
		Source:     dataset.Source{Path: c.DatasetPath, Table: c.DatasetTable},
		Eps:        c.Eps,
		MinSamples: c.MinSamples,
		Workers:    c.Workers,
		Features: features.Options{
			CategoryOrder: features.CategoryOrder(c.CategoryOrder),
			Exclude:       c.ExcludeColumns,
		},
		LimitMultiplier: c.LimitMultiplier,
		SimilarLimit:    c.SimilarLimit,
		Logger:          log,
	}
}

// Save writes c as YAML to path, creating parent directories.
func Save(c *Config, path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
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
