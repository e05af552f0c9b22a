// Package config loads tool configuration from an optional config file
// and BOMREV_* environment variables. Command-line flags override both.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config carries the settings every command needs.
type Config struct {
	// Database is the sqlite file holding versions, orders and records.
	Database string
	// Verbose enables debug logging.
	Verbose bool
	// Format selects CLI output rendering ("text" or "json").
	Format string
}

// Default returns the built-in settings: a per-user database file and
// plain text output.
func Default() Config {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "."
	}
	return Config{
		Database: filepath.Join(dir, ".bomrev", "bomrev.db"),
		Format:   "text",
	}
}

// Load reads configuration from configPath (optional, "" means search
// the working directory) and the environment on top of the defaults.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("bomrev")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("BOMREV")
	v.AutomaticEnv()
	v.BindEnv("database")
	v.BindEnv("verbose")
	v.BindEnv("format")

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; anything else is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	if v.IsSet("database") {
		cfg.Database = v.GetString("database")
	}
	if v.IsSet("verbose") {
		cfg.Verbose = v.GetBool("verbose")
	}
	if v.IsSet("format") {
		cfg.Format = v.GetString("format")
	}
	return cfg, nil
}
