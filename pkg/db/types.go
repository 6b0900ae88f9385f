package db

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config holds MySQL/GORM database configuration
type Config struct {
	// Connection Settings
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// Connection Pool Settings
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// MySQL Specific Settings
	Charset   string `mapstructure:"charset" yaml:"charset"`     // Default: utf8mb4
	Collation string `mapstructure:"collation" yaml:"collation"` // Default: utf8mb4_unicode_ci
	TimeZone  string `mapstructure:"timezone" yaml:"timezone"`   // Default: UTC

	// GORM Settings
	PrepareStmt  bool          `mapstructure:"prepare_stmt" yaml:"prepare_stmt"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`

	// SSL Configuration
	SSL SSLConfig `mapstructure:"ssl" yaml:"ssl"`

	// Logging Configuration
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SSLConfig holds SSL/TLS configuration for MySQL
type SSLConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	CertFile   string `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile    string `mapstructure:"key_file" yaml:"key_file"`
	CAFile     string `mapstructure:"ca_file" yaml:"ca_file"`
	SkipVerify bool   `mapstructure:"skip_verify" yaml:"skip_verify"` // Skip certificate verification (not recommended for production)
	ServerName string `mapstructure:"server_name" yaml:"server_name"`
}

// LoggingConfig controls statement logging
type LoggingConfig struct {
	Level                     string        `mapstructure:"level" yaml:"level"` // silent, error, warn, info
	SlowQueryThreshold        time.Duration `mapstructure:"slow_query_threshold" yaml:"slow_query_threshold"`
	IgnoreRecordNotFoundError bool          `mapstructure:"ignore_record_not_found_error" yaml:"ignore_record_not_found_error"`
}

// Manager manages database connections
type Manager struct {
	config *Config
	db     *gorm.DB
	logger *zap.Logger
}
