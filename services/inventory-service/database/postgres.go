package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresConfig holds the connection settings read by the service config.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone,
	)
}

const maxConnectAttempts = 10

// ConnectPostgres opens the pool, retrying with a growing delay while the
// database comes up. Unique violations are translated to
// gorm.ErrDuplicatedKey, which the repository relies on.
func ConnectPostgres(ctx context.Context, logger *zap.Logger, cfg PostgresConfig) (*gorm.DB, error) {
	open := func() (*gorm.DB, error) {
		return gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		})
	}
	return connectWithRetry(ctx, logger, open, maxConnectAttempts, 2*time.Second)
}

func connectWithRetry(ctx context.Context, logger *zap.Logger, open func() (*gorm.DB, error), attempts int, backoff time.Duration) (*gorm.DB, error) {
	var err error
	for i := 0; i < attempts; i++ {
		var db *gorm.DB
		db, err = open()
		if err == nil {
			sqlDB, poolErr := db.DB()
			if poolErr == nil {
				sqlDB.SetMaxOpenConns(25)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
			}
			logger.Info("Connected to PostgreSQL successfully")
			return db, nil
		}

		logger.Warn("DB connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to PostgreSQL: %w", ctx.Err())
		case <-time.After(time.Duration(i+1) * backoff):
		}
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
