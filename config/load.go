package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Load reads the jobtrawl configuration from jobtrawl.toml (working
// directory, if present) and JOBTRAWL_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("JOBTRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("jobtrawl")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return finishLoad(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return finishLoad(v)
}

func finishLoad(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.RunID = NewRunID()
	return &config, nil
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("log_json", false)
}

// NewRunID returns a unique, time-prefixed identifier for one process run.
// Ledger files are named by run id so concurrent processes never share a
// file handle; the timestamp prefix keeps directory listings chronological.
func NewRunID() string {
	return fmt.Sprintf("%s-%s",
		time.Now().UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8],
	)
}
