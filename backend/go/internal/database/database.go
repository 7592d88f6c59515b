package database

import (
	"fmt"

	"TrendWatch/backend/go/internal/config"
	"TrendWatch/backend/go/internal/database/mysql"
	"TrendWatch/backend/go/internal/database/sqlite"

	"gorm.io/gorm"
)

// OpenRelational 根据配置的驱动打开关系型存储。
func OpenRelational(cfg *config.DatabaseConfigs) (*gorm.DB, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		return mysql.GetDB(&cfg.MySQL)
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("未知的数据库驱动: %q", cfg.Driver)
	}
}

// CloseRelational 关闭由 OpenRelational 打开的连接。
func CloseRelational(cfg *config.DatabaseConfigs, db *gorm.DB) error {
	if cfg.Driver == config.DriverMySQL {
		return mysql.Close()
	}
	return sqlite.Close(db)
}
