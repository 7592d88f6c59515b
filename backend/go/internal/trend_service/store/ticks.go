package store

import (
	"context"
	"fmt"

	"TrendWatch/backend/go/internal/models"
)

// RecordTick 记录一次已提交的采集。
func (s *Store) RecordTick(ctx context.Context, tick *models.Tick) error {
	tick.TickTime = Normalize(tick.TickTime)
	if err := s.DB.WithContext(ctx).Create(tick).Error; err != nil {
		return fmt.Errorf("记录采集失败: %w", err)
	}
	return nil
}

// LastTick 返回最近一次采集，从未采集时返回 nil。
func (s *Store) LastTick(ctx context.Context) (*models.Tick, error) {
	var ticks []models.Tick
	if err := s.DB.WithContext(ctx).Order("tick_time DESC, id DESC").Limit(1).Find(&ticks).Error; err != nil {
		return nil, fmt.Errorf("查询最近一次采集失败: %w", err)
	}
	if len(ticks) == 0 {
		return nil, nil
	}
	return &ticks[0], nil
}
