package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// WHATHAPPENED_STORAGE_DIRECTORY for storage.directory.
const EnvPrefix = "WHATHAPPENED"

type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Retention RetentionConfig `mapstructure:"retention"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
}

type StorageConfig struct {
	// Directory holds one <user>.sqlite file per user.
	Directory string `mapstructure:"directory"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens. Empty leaves every request
	// anonymous.
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RetentionConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

type IngestConfig struct {
	RatePerMinute int `mapstructure:"rate_per_minute"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.directory", "data")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.cron", "0 3 * * *")
	v.SetDefault("ingest.rate_per_minute", 120)
}

// Load reads configuration from defaults, the optional YAML file at path
// and WHATHAPPENED_* environment variables, in increasing precedence. A
// .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Directory) == "" {
		return errors.New("storage.directory must not be empty")
	}
	if c.Retention.Enabled && !gronx.IsValid(c.Retention.Cron) {
		return fmt.Errorf("invalid retention.cron %q", c.Retention.Cron)
	}
	if c.Ingest.RatePerMinute < 0 {
		return fmt.Errorf("ingest.rate_per_minute must not be negative, got %d", c.Ingest.RatePerMinute)
	}
	return nil
}
