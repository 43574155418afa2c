// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Converter struct {
		Path           string `mapstructure:"path"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"converter"`
	Translation struct {
		TranslateURL   string `mapstructure:"translate_url"`
		SummaryURL     string `mapstructure:"summary_url"`
		APIKey         string `mapstructure:"api_key"`
		TargetLanguage string `mapstructure:"target_language"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"translation"`
	Pipeline struct {
		Workers    int      `mapstructure:"workers"`
		Watermarks []string `mapstructure:"watermarks"`
	} `mapstructure:"pipeline"`
	Output struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"output"`
	DropFolder struct {
		Path    string `mapstructure:"path"`
		OwnerID int64  `mapstructure:"owner_id"`
	} `mapstructure:"drop_folder"`
	Cache struct {
		MaxAgeHours      int `mapstructure:"max_age_hours"`
		EvictionInterval int `mapstructure:"eviction_interval"`
	} `mapstructure:"cache"`
}

// ConverterTimeout returns the conversion engine timeout as a duration.
func (c *Config) ConverterTimeout() time.Duration {
	return time.Duration(c.Converter.TimeoutSeconds) * time.Second
}

// TranslationTimeout returns the translation service timeout as a duration.
func (c *Config) TranslationTimeout() time.Duration {
	return time.Duration(c.Translation.TimeoutSeconds) * time.Second
}

// CacheMaxAge returns the content cache retention window as a duration.
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeHours) * time.Hour
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with a "LIBRO_" prefix.
	// e.g., LIBRO_DATABASE_PATH will override the `database.path` key.
	viper.SetEnvPrefix("LIBRO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("database.path", "./libro.db")
	viper.SetDefault("converter.path", "ebook-convert")
	viper.SetDefault("converter.timeout_seconds", 300)
	viper.SetDefault("translation.target_language", "es")
	viper.SetDefault("translation.timeout_seconds", 30)
	viper.SetDefault("pipeline.workers", 0)
	viper.SetDefault("output.path", "./output")
	viper.SetDefault("drop_folder.path", "")
	viper.SetDefault("drop_folder.owner_id", 0)
	viper.SetDefault("cache.max_age_hours", 72)
	viper.SetDefault("cache.eviction_interval", 60)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
