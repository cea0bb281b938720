package db

import (
	"time"

	"github.com/smallbiznis/oceandata/internal/config"
)

// PoolConfig holds connection pool tuning derived from the application config.
type PoolConfig struct {
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func PoolFromConfig(cfg config.Config) PoolConfig {
	pool := PoolConfig{
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
	}
	// sqlite allows a single writer; more connections only produce SQLITE_BUSY.
	if cfg.DBType == "sqlite" || cfg.DBType == "" {
		pool.MaxOpenConn = 1
		pool.MaxIdleConn = 1
	}
	return pool
}
