package store

import (
	"context"
	"fmt"

	"TrendWatch/backend/go/internal/models"
)

// --- Current Ranking ---

// ReplaceCurrentRanking 用新的榜单整体替换当前榜单。
func (s *Store) ReplaceCurrentRanking(ctx context.Context, rows []models.CurrentRanking) error {
	if err := s.ClearCurrentRanking(ctx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.DB.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("写入当前榜单失败: %w", err)
	}
	return nil
}

// ClearCurrentRanking 清空当前榜单。
func (s *Store) ClearCurrentRanking(ctx context.Context) error {
	if err := s.DB.WithContext(ctx).Where("1 = 1").Delete(&models.CurrentRanking{}).Error; err != nil {
		return fmt.Errorf("清空当前榜单失败: %w", err)
	}
	return nil
}

// CurrentRanking 按名次读取当前榜单。
func (s *Store) CurrentRanking(ctx context.Context) ([]models.CurrentEntry, error) {
	var rows []models.CurrentEntry
	err := s.DB.WithContext(ctx).
		Table(models.CurrentRanking{}.TableName()+" AS r").
		Select("r.position AS position, r.term_id AS term_id, t.text AS term").
		Joins("JOIN "+models.Term{}.TableName()+" AS t ON t.id = r.term_id").
		Order("r.position").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("读取当前榜单失败: %w", err)
	}
	return rows, nil
}
