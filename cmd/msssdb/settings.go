package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/lofar-msss/obsdb/internal/database"
)

// settings are the process settings: where the database lives and which
// pipeline configuration to use.
type settings struct {
	Database database.Config `mapstructure:"database"`
	Pipeline struct {
		Config string `mapstructure:"config"`
	} `mapstructure:"pipeline"`
}

// loadSettings reads the optional settings file and overlays MSSSDB_*
// environment variables, e.g. MSSSDB_DATABASE_DSN.
func loadSettings(path string) (settings, error) {
	v := viper.New()
	v.SetEnvPrefix("MSSSDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.dsn", database.DefaultDSN)
	v.SetDefault("database.debug", false)
	v.SetDefault("pipeline.config", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return settings{}, fmt.Errorf("reading settings: %w", err)
		}
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}
