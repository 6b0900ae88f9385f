package redis

import (
	"fmt"
	"time"
)

// Config holds Redis cache configuration
type Config struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`

	// KeyPrefix namespaces every key written by the manager
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// Redis Connection
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Password string `mapstructure:"password" yaml:"password"`
	Database int    `mapstructure:"database" yaml:"database"`

	// Connection Pool
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	MaxConnAge   time.Duration `mapstructure:"max_conn_age" yaml:"max_conn_age"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout" yaml:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// Performance
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`

	// Clustering (for Redis Cluster)
	Cluster ClusterConfig `mapstructure:"cluster" yaml:"cluster"`

	// Values larger than CompressThreshold bytes are gzipped; zero disables it
	CompressThreshold int `mapstructure:"compress_threshold" yaml:"compress_threshold"`

	// Cache Logging
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ClusterConfig for Redis Cluster setup
type ClusterConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	Addresses []string `mapstructure:"addresses" yaml:"addresses"`
	Username  string   `mapstructure:"username" yaml:"username"`
	Password  string   `mapstructure:"password" yaml:"password"`
}

// LoggingConfig controls Redis cache logging behavior
type LoggingConfig struct {
	LogCacheHits     bool `mapstructure:"log_cache_hits" yaml:"log_cache_hits"`
	LogCacheMisses   bool `mapstructure:"log_cache_misses" yaml:"log_cache_misses"`
	LogInvalidations bool `mapstructure:"log_invalidations" yaml:"log_invalidations"`
}

// DefaultConfig returns a Redis configuration with the cache disabled and
// every other setting at its default
func DefaultConfig() *Config {
	return &Config{
		Enabled:           false,
		DefaultTTL:        10 * time.Minute,
		KeyPrefix:         "bo4go",
		Host:              "localhost",
		Port:              6379,
		Database:          0,
		PoolSize:          10,
		MinIdleConns:      3,
		MaxConnAge:        time.Hour,
		PoolTimeout:       time.Second * 4,
		IdleTimeout:       time.Minute * 5,
		ReadTimeout:       time.Second * 3,
		WriteTimeout:      time.Second * 3,
		DialTimeout:       time.Second * 5,
		CompressThreshold: 1024 * 100,
		Logging: LoggingConfig{
			LogCacheMisses:   true,
			LogInvalidations: true,
		},
	}
}

// Validate checks if the Redis configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil // Skip validation if cache is disabled
	}

	if !c.IsClusterMode() && c.Host == "" {
		return fmt.Errorf("redis host is required when cache is enabled")
	}
	if !c.IsClusterMode() && c.Port <= 0 {
		return fmt.Errorf("redis port must be positive")
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("default_ttl must be positive when cache is enabled")
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("pool_size must be at least 1")
	}
	if c.CompressThreshold < 0 {
		return fmt.Errorf("compress_threshold cannot be negative")
	}

	return nil
}

// GetAddr returns the Redis connection address
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsClusterMode returns true if Redis cluster is enabled
func (c *Config) IsClusterMode() bool {
	return c.Cluster.Enabled && len(c.Cluster.Addresses) > 0
}
