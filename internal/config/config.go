// Package config loads runtime configuration. Sources in priority order:
// built-in defaults, then the configuration file, then SCRIPTOR_*
// environment variables. Explicit command flags are applied by the CLI
// layer on top of the result.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, SCRIPTOR_DB_NAME
// and the like.
const EnvPrefix = "SCRIPTOR"

// EnvConfigPath names the config file location when no flag is given.
const EnvConfigPath = "SCRIPTOR_CONFIG"

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Port      int           `mapstructure:"port"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Config is the effective runtime configuration.
type Config struct {
	// DBName is the default database, overridden by an explicit flag.
	DBName string `mapstructure:"db_name"`

	DBHost     string `mapstructure:"db_host"`
	DBPort     int    `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	AdminDB    string `mapstructure:"admin_db"`

	MaxConnsPerDB   int           `mapstructure:"max_conns_per_db"`
	MaxTotalPools   int           `mapstructure:"max_total_pools"`
	PoolIdleTimeout time.Duration `mapstructure:"pool_idle_timeout"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"logfile"`

	// ShellInterface is the preferred console flavor for interactive runs.
	ShellInterface string `mapstructure:"shell_interface"`

	// CommitGuard is a boolean expression evaluated before every commit;
	// false forces rollback. Empty disables the guard.
	CommitGuard string `mapstructure:"commit_guard"`

	AuditEnabled bool `mapstructure:"audit_enabled"`

	HTTP HTTPConfig `mapstructure:"http"`

	configPath string
}

// Path returns the config file the values came from, empty when none.
func (c *Config) Path() string { return c.configPath }

func setDefaults(v *viper.Viper) {
	// Every key needs a default so environment-only overrides bind.
	v.SetDefault("db_name", "")
	v.SetDefault("logfile", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("admin_db", "postgres")

	v.SetDefault("max_conns_per_db", 10)
	v.SetDefault("max_total_pools", 50)
	v.SetDefault("pool_idle_timeout", 30*time.Minute)

	v.SetDefault("log_level", "info")
	v.SetDefault("shell_interface", "")
	v.SetDefault("commit_guard", "")
	v.SetDefault("audit_enabled", false)

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.jwt_secret", "")
	v.SetDefault("http.token_ttl", 15*time.Minute)
}

// Load reads the configuration. configPath may be empty; then the
// SCRIPTOR_CONFIG variable is consulted, and with neither set only
// defaults and environment apply. A named file that does not exist is
// an error; a defaulted one is not.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := configPath != ""
	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
		explicit = configPath != ""
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.configPath = v.ConfigFileUsed()

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DBPort <= 0 || cfg.DBPort > 65535 {
		return fmt.Errorf("invalid db_port %d", cfg.DBPort)
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port %d", cfg.HTTP.Port)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	return nil
}
