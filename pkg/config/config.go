// Package config loads bo4go settings from a YAML file and BO4GO_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ammar0144/bo4go/pkg/db"
	"github.com/ammar0144/bo4go/pkg/logger"
	"github.com/ammar0144/bo4go/pkg/redis"
)

// Store drivers
const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
)

// Config is the application configuration
type Config struct {
	Store    StoreConfig   `mapstructure:"store"`
	Database db.Config     `mapstructure:"database"`
	Cache    redis.Config  `mapstructure:"cache"`
	Log      logger.Config `mapstructure:"log"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory, mysql
}

// Load reads configuration from configPath, or from config.yaml in the
// working directory or ./config when configPath is empty. A missing default
// file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("BO4GO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the sections the selected driver uses
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMySQL:
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("invalid database config: %w", err)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", DriverMemory)

	dbDefaults := db.DefaultConfig("localhost", "bo4go", "root", "")
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.database", dbDefaults.Database)
	v.SetDefault("database.username", dbDefaults.Username)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.max_open_conns", dbDefaults.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", dbDefaults.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", dbDefaults.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", dbDefaults.ConnMaxIdleTime)
	v.SetDefault("database.charset", dbDefaults.Charset)
	v.SetDefault("database.collation", dbDefaults.Collation)
	v.SetDefault("database.timezone", dbDefaults.TimeZone)
	v.SetDefault("database.prepare_stmt", dbDefaults.PrepareStmt)
	v.SetDefault("database.query_timeout", dbDefaults.QueryTimeout)
	v.SetDefault("database.ssl.enabled", false)
	v.SetDefault("database.logging.level", dbDefaults.Logging.Level)
	v.SetDefault("database.logging.slow_query_threshold", dbDefaults.Logging.SlowQueryThreshold)

	cacheDefaults := redis.DefaultConfig()
	v.SetDefault("cache.enabled", cacheDefaults.Enabled)
	v.SetDefault("cache.default_ttl", cacheDefaults.DefaultTTL)
	v.SetDefault("cache.key_prefix", cacheDefaults.KeyPrefix)
	v.SetDefault("cache.host", cacheDefaults.Host)
	v.SetDefault("cache.port", cacheDefaults.Port)
	v.SetDefault("cache.password", cacheDefaults.Password)
	v.SetDefault("cache.database", cacheDefaults.Database)
	v.SetDefault("cache.pool_size", cacheDefaults.PoolSize)
	v.SetDefault("cache.min_idle_conns", cacheDefaults.MinIdleConns)
	v.SetDefault("cache.max_conn_age", cacheDefaults.MaxConnAge)
	v.SetDefault("cache.pool_timeout", cacheDefaults.PoolTimeout)
	v.SetDefault("cache.idle_timeout", cacheDefaults.IdleTimeout)
	v.SetDefault("cache.read_timeout", cacheDefaults.ReadTimeout)
	v.SetDefault("cache.write_timeout", cacheDefaults.WriteTimeout)
	v.SetDefault("cache.dial_timeout", cacheDefaults.DialTimeout)
	v.SetDefault("cache.compress_threshold", cacheDefaults.CompressThreshold)
	v.SetDefault("cache.logging.log_cache_hits", cacheDefaults.Logging.LogCacheHits)
	v.SetDefault("cache.logging.log_cache_misses", cacheDefaults.Logging.LogCacheMisses)
	v.SetDefault("cache.logging.log_invalidations", cacheDefaults.Logging.LogInvalidations)

	logDefaults := logger.DefaultConfig()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.output", logDefaults.Output)
	v.SetDefault("log.file_path", logDefaults.FilePath)
	v.SetDefault("log.max_size_mb", logDefaults.MaxSizeMB)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age_days", logDefaults.MaxAgeDays)
	v.SetDefault("log.compress", logDefaults.Compress)
}
