package config

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type WebServerConfig struct {
	Port          string `mapstructure:"port"`
	SessionSecret string `mapstructure:"session_secret"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type FeaturesConfig struct {
	Pro      bool `mapstructure:"pro"`
	CTALimit int  `mapstructure:"cta_limit"` // free-tier ceiling on non-demo CTAs
}

type SupportConfig struct {
	APIBaseURL     string `mapstructure:"api_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	HourlyLimit    int    `mapstructure:"hourly_limit"` // ticket submissions per user per hour
}

type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

type DemoConfig struct {
	DataPath string `mapstructure:"data_path"` // demo-data JSON file
}

type Config struct {
	WebServer WebServerConfig `mapstructure:"webserver"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Features  FeaturesConfig  `mapstructure:"features"`
	Support   SupportConfig   `mapstructure:"support"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Demo      DemoConfig      `mapstructure:"demo"`
}

func setDefaults() {
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("database.path", "ctamanager.db")
	viper.SetDefault("features.pro", false)
	viper.SetDefault("features.cta_limit", 3)
	viper.SetDefault("support.timeout_seconds", 30)
	viper.SetDefault("support.hourly_limit", 3)
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.max_size_mb", 16)
	viper.SetDefault("cache.ttl_seconds", 60)
	viper.SetDefault("demo.data_path", "demo/demo-data.json")
}

func LoadConfig() (Config, error) {
	var config Config

	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CTA")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			log.Error().Err(err).Msg("Error reading config file")
			return config, err
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		log.Error().Err(err).Msg("Unable to decode config into struct")
		return config, err
	}

	return config, nil
}

// MustLoadConfig loads the configuration or panics; used at bootstrap only.
func MustLoadConfig() Config {
	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return config
}
