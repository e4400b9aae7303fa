package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"glyphstat/domain/verdict"
	"glyphstat/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Classes  ClassesConfig  `yaml:"classes"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AnalysisConfig holds the defaults for null generation and verdicts.
type AnalysisConfig struct {
	NullMethod            verdict.NullMethod `yaml:"null_method"`
	NPermutations         int                `yaml:"n_permutations"`
	MaxPermutations       int                `yaml:"max_permutations"`
	Correction            verdict.Correction `yaml:"correction"`
	MinSampleSize         int                `yaml:"min_sample_size"`
	SignificanceThreshold float64            `yaml:"significance_threshold"`
	PrecisionTolerance    float64            `yaml:"precision_tolerance"`
	BatchSize             int                `yaml:"batch_size"`
	Workers               int                `yaml:"workers"`
	Seed                  int64              `yaml:"seed"`
	CodeVersion           string             `yaml:"code_version"`
}

// ClassesConfig holds class merging and macro-state clustering settings.
type ClassesConfig struct {
	MergeAlpha  float64 `yaml:"merge_alpha"`
	MacroMethod string  `yaml:"macro_method"`
	MacroKMin   int     `yaml:"macro_k_min"`
	MacroKMax   int     `yaml:"macro_k_max"`
}

// StorageConfig selects the verdict ledger backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite, postgres
	DSN    string `yaml:"dsn"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Address string `yaml:"address"`
	GinMode string `yaml:"gin_mode"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			NullMethod:            verdict.NullShuffle,
			NPermutations:         2000,
			MaxPermutations:       100000,
			Correction:            verdict.CorrectionBonferroni,
			MinSampleSize:         50,
			SignificanceThreshold: 0.01,
			PrecisionTolerance:    0.001,
			BatchSize:             250,
			Workers:               4,
			Seed:                  42,
			CodeVersion:           "dev",
		},
		Classes: ClassesConfig{
			MergeAlpha:  0.2,
			MacroMethod: "kmeans",
			MacroKMin:   2,
			MacroKMax:   8,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Server: ServerConfig{
			Address: ":8080",
			GinMode: "release",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads an optional YAML file over the defaults, applies GLYPHSTAT_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("failed to parse config %s: %w", path, err))
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	a := &c.Analysis
	a.NullMethod = verdict.NullMethod(getEnvOrDefault("GLYPHSTAT_NULL_METHOD", string(a.NullMethod)))
	a.NPermutations = getEnvIntOrDefault("GLYPHSTAT_N_PERMUTATIONS", a.NPermutations)
	a.MaxPermutations = getEnvIntOrDefault("GLYPHSTAT_MAX_PERMUTATIONS", a.MaxPermutations)
	a.Correction = verdict.Correction(getEnvOrDefault("GLYPHSTAT_CORRECTION", string(a.Correction)))
	a.MinSampleSize = getEnvIntOrDefault("GLYPHSTAT_MIN_SAMPLE_SIZE", a.MinSampleSize)
	a.SignificanceThreshold = getEnvFloatOrDefault("GLYPHSTAT_SIGNIFICANCE_THRESHOLD", a.SignificanceThreshold)
	a.PrecisionTolerance = getEnvFloatOrDefault("GLYPHSTAT_PRECISION_TOLERANCE", a.PrecisionTolerance)
	a.BatchSize = getEnvIntOrDefault("GLYPHSTAT_BATCH_SIZE", a.BatchSize)
	a.Workers = getEnvIntOrDefault("GLYPHSTAT_WORKERS", a.Workers)
	a.Seed = int64(getEnvIntOrDefault("GLYPHSTAT_SEED", int(a.Seed)))
	a.CodeVersion = getEnvOrDefault("GLYPHSTAT_CODE_VERSION", a.CodeVersion)

	c.Classes.MergeAlpha = getEnvFloatOrDefault("GLYPHSTAT_MERGE_ALPHA", c.Classes.MergeAlpha)
	c.Classes.MacroMethod = getEnvOrDefault("GLYPHSTAT_MACRO_METHOD", c.Classes.MacroMethod)
	c.Classes.MacroKMin = getEnvIntOrDefault("GLYPHSTAT_MACRO_K_MIN", c.Classes.MacroKMin)
	c.Classes.MacroKMax = getEnvIntOrDefault("GLYPHSTAT_MACRO_K_MAX", c.Classes.MacroKMax)

	c.Storage.Driver = getEnvOrDefault("GLYPHSTAT_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.DSN = getEnvOrDefault("DATABASE_URL", c.Storage.DSN)

	c.Server.Address = getEnvOrDefault("GLYPHSTAT_ADDRESS", c.Server.Address)
	c.Server.GinMode = getEnvOrDefault("GIN_MODE", c.Server.GinMode)
	c.Logging.Level = getEnvOrDefault("GLYPHSTAT_LOG_LEVEL", c.Logging.Level)
}

// Validate checks option ranges.
func (c *Config) Validate() error {
	a := c.Analysis
	switch {
	case !a.NullMethod.IsValid():
		return errors.ConfigInvalid(fmt.Sprintf("unknown null_method %q", a.NullMethod))
	case !a.Correction.IsValid():
		return errors.ConfigInvalid(fmt.Sprintf("unknown correction %q", a.Correction))
	case a.NPermutations < 1:
		return errors.ConfigInvalid("n_permutations must be positive")
	case a.MaxPermutations < 1:
		return errors.ConfigInvalid("max_permutations must be positive")
	case a.MinSampleSize < 1:
		return errors.ConfigInvalid("min_sample_size must be positive")
	case a.SignificanceThreshold <= 0 || a.SignificanceThreshold >= 1:
		return errors.ConfigInvalid("significance_threshold must be in (0,1)")
	case a.PrecisionTolerance < 0:
		return errors.ConfigInvalid("precision_tolerance cannot be negative")
	case a.BatchSize < 1:
		return errors.ConfigInvalid("batch_size must be positive")
	case a.Workers < 1:
		return errors.ConfigInvalid("workers must be positive")
	}

	cl := c.Classes
	switch {
	case cl.MergeAlpha <= 0 || cl.MergeAlpha >= 1:
		return errors.ConfigInvalid("merge_alpha must be in (0,1)")
	case cl.MacroMethod != "kmeans" && cl.MacroMethod != "average_linkage":
		return errors.ConfigInvalid(fmt.Sprintf("unknown macro_method %q", cl.MacroMethod))
	case cl.MacroKMin < 2 || cl.MacroKMax < cl.MacroKMin:
		return errors.ConfigInvalid("macro_k range must satisfy 2 <= k_min <= k_max")
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return errors.ConfigInvalid("storage dsn is required for driver " + c.Storage.Driver)
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
