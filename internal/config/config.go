package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DBDriver      string        `mapstructure:"db_driver"`
	DSN           string        `mapstructure:"db_dsn"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	AppPort       string        `mapstructure:"app_port"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
	RuleCacheTTL  time.Duration `mapstructure:"rule_cache_ttl"`
	RuleCacheSize int           `mapstructure:"rule_cache_size"`
	SeedDir       string        `mapstructure:"seed_dir"`
	StrictDomains bool          `mapstructure:"strict_domains"`
}

// Load reads configuration with precedence env > config file > .env > defaults.
// configFile may be empty.
func Load(configFile string) (Config, error) {
	// .env never overrides variables that are already set.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	// MYSQL_DSN is the historical name of the DSN variable.
	if cfg.DSN == "" {
		cfg.DSN = v.GetString("mysql_dsn")
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_driver", "mysql")
	v.SetDefault("db_dsn", "")
	v.SetDefault("jwt_secret", "dev-secret-only")
	v.SetDefault("app_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("rule_cache_ttl", 5*time.Minute)
	v.SetDefault("rule_cache_size", 512)
	v.SetDefault("seed_dir", "")
	v.SetDefault("strict_domains", false)
	v.SetDefault("mysql_dsn", "")
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DSN == "" {
		return fmt.Errorf("config: DB_DSN (or MYSQL_DSN) not set")
	}
	if c.RuleCacheSize <= 0 {
		return fmt.Errorf("config: RULE_CACHE_SIZE must be positive")
	}
	return nil
}
