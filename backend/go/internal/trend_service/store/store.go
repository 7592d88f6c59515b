package store

import (
	"context"
	"fmt"
	"time"

	"TrendWatch/backend/go/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 封装了热词追踪服务的所有数据库操作。
// 所有写入的时间都会转换为 UTC 并截断到秒。
type Store struct {
	DB *gorm.DB
}

// NewStore 创建一个新的 Store 实例。
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// AutoMigrate 创建或更新全部表结构。
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.DB.WithContext(ctx).AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// Transaction 在单个事务中执行 fn，fn 返回错误时整体回滚。
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx})
	})
}

// ForUpdate 返回一个读取时加行锁 (SELECT ... FOR UPDATE) 的 Store，只应在事务内使用。
// SQLite 驱动会忽略该子句，SQLite 本身只有一个写连接。
func (s *Store) ForUpdate() *Store {
	return &Store{DB: s.DB.Clauses(clause.Locking{Strength: "UPDATE"}).Session(&gorm.Session{})}
}

// Normalize 把时间转换为存储使用的精度与时区。
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
