package store

import (
	"context"
	"fmt"

	"TrendWatch/backend/go/internal/models"

	"gorm.io/gorm/clause"
)

// --- Enrichment ---

// AddExplanation 写入一条参考链接，同一词条的同一链接只保留第一条。
// 返回是否真正插入了新行。
func (s *Store) AddExplanation(ctx context.Context, e *models.Explanation) (bool, error) {
	e.ObservedAt = Normalize(e.ObservedAt)
	result := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(e)
	if result.Error != nil {
		return false, fmt.Errorf("写入词条 #%d 的参考链接失败: %w", e.TermID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// LatestExplanations 返回每个词条最近创建的一条参考链接。
func (s *Store) LatestExplanations(ctx context.Context, termIDs []uint) (map[uint]models.Explanation, error) {
	out := make(map[uint]models.Explanation, len(termIDs))
	if len(termIDs) == 0 {
		return out, nil
	}
	var rows []models.Explanation
	err := s.DB.WithContext(ctx).
		Where("term_id IN ?", termIDs).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询参考链接失败: %w", err)
	}
	for _, row := range rows {
		if _, ok := out[row.TermID]; !ok {
			out[row.TermID] = row
		}
	}
	return out, nil
}
