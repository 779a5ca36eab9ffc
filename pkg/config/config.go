// Package config loads runtime configuration from a YAML file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoggingConfig controls the zap logger setup.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full runtime configuration of the API server.
type Config struct {
	ListenAddr   string        `mapstructure:"listenAddr"`
	DatabasePath string        `mapstructure:"databasePath"`
	RedisAddr    string        `mapstructure:"redisAddr"` // empty disables the shared cache
	Logging      LoggingConfig `mapstructure:"logging"`
}

// Load reads configuration from the given file, falling back to
// defaults and MILESLEDGER_* environment variables. A missing file is
// not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("listenAddr", ":8080")
	v.SetDefault("databasePath", "milesledger.db")
	v.SetDefault("redisAddr", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetEnvPrefix("MILESLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &conf, nil
}
