package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TrendWatch/backend/go/internal/models"

	"github.com/go-redis/redis/v8"
)

// Snapshot 是缓存在 Redis 中的当前榜单。
type Snapshot struct {
	UpdatedAt time.Time             `json:"updated_at"`
	Items     []models.CurrentEntry `json:"items"`
}

// CurrentCache 把最近一次采集的榜单写入 Redis，供实时展示低延迟读取。
type CurrentCache struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

// NewCurrentCache 创建一个 CurrentCache。ttl 为 0 时不过期。
func NewCurrentCache(rdb redis.Cmdable, key string, ttl time.Duration) *CurrentCache {
	return &CurrentCache{rdb: rdb, key: key, ttl: ttl}
}

// Notify 在采集提交后刷新缓存。
func (c *CurrentCache) Notify(ctx context.Context, result models.TickResult) error {
	return c.Put(ctx, Snapshot{UpdatedAt: result.TickTime, Items: result.Ranking})
}

// Put 写入一份榜单快照。
func (c *CurrentCache) Put(ctx context.Context, snap Snapshot) error {
	if snap.Items == nil {
		snap.Items = []models.CurrentEntry{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("序列化当前榜单失败: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("写入 Redis 键 %s 失败: %w", c.key, err)
	}
	return nil
}

// Get 读取缓存的榜单。缓存不存在时 ok 为 false 且 err 为 nil。
func (c *CurrentCache) Get(ctx context.Context) (*Snapshot, bool, error) {
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取 Redis 键 %s 失败: %w", c.key, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("解析缓存的当前榜单失败: %w", err)
	}
	return &snap, true, nil
}

// Invalidate 删除缓存，在清空当前榜单后调用。
func (c *CurrentCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("删除 Redis 键 %s 失败: %w", c.key, err)
	}
	return nil
}
