package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ammar0144/bo4go/pkg/logger"
)

// NewDefaultManager creates a database manager with minimal configuration
func NewDefaultManager(host, database, username, password string, log *zap.Logger) (*Manager, error) {
	return NewManager(DefaultConfig(host, database, username, password), log)
}

// NewManager opens a connection pool described by config
func NewManager(config *Config, log *zap.Logger) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dsn, err := config.DSN()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m, err := open(mysql.Open(dsn), config, log)
	if err != nil {
		return nil, err
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	m.logger.Info("database connected",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("database", config.Database))
	return m, nil
}

// NewManagerWithConn wraps an already open connection. The pool settings of
// config are left to the caller; only its GORM and logging settings apply.
func NewManagerWithConn(conn *sql.DB, config *Config, log *zap.Logger) (*Manager, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection cannot be nil")
	}
	if config == nil {
		config = &Config{}
	}
	return open(mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), config, log)
}

func open(dialector gorm.Dialector, config *Config, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("db")

	gormLog := logger.NewGormLogger(log, logger.GormLevel(config.Logging.Level), logger.GormConfig{
		SlowThreshold:             config.Logging.SlowQueryThreshold,
		IgnoreRecordNotFoundError: config.Logging.IgnoreRecordNotFoundError,
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            config.PrepareStmt,
		Logger:                 gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Manager{config: config, db: db, logger: log}, nil
}

// DB returns the GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// SqlDB returns the underlying sql.DB instance
func (m *Manager) SqlDB() (*sql.DB, error) {
	return m.db.DB()
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Ping tests the database connection
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns database connection statistics
func (m *Manager) Stats() (sql.DBStats, error) {
	sqlDB, err := m.db.DB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}
