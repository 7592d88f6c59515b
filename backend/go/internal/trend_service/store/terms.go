package store

import (
	"context"
	"fmt"

	"TrendWatch/backend/go/internal/models"

	"gorm.io/gorm"
)

// --- Term Management ---

// FindTermByText 通过文本查找词条，不存在时返回 models.ErrNotFound。
func (s *Store) FindTermByText(ctx context.Context, text string) (*models.Term, error) {
	var terms []models.Term
	if err := s.DB.WithContext(ctx).Where("text = ?", text).Limit(1).Find(&terms).Error; err != nil {
		return nil, fmt.Errorf("查询词条 %q 失败: %w", text, err)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("词条 %q: %w", text, models.ErrNotFound)
	}
	return &terms[0], nil
}

// FindTermByID 通过 ID 查找词条，不存在时返回 models.ErrNotFound。
func (s *Store) FindTermByID(ctx context.Context, id uint) (*models.Term, error) {
	var terms []models.Term
	if err := s.DB.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&terms).Error; err != nil {
		return nil, fmt.Errorf("查询词条 #%d 失败: %w", id, err)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("词条 #%d: %w", id, models.ErrNotFound)
	}
	return &terms[0], nil
}

// CreateTerm 创建一个首次出现的词条，出现次数记为 1。
func (s *Store) CreateTerm(ctx context.Context, text string) (*models.Term, error) {
	term := &models.Term{Text: text, OccurrenceCount: 1}
	if err := s.DB.WithContext(ctx).Create(term).Error; err != nil {
		return nil, fmt.Errorf("创建词条 %q 失败: %w", text, err)
	}
	return term, nil
}

// IncrementOccurrence 将词条的出现次数加一。
func (s *Store) IncrementOccurrence(ctx context.Context, termID uint) error {
	result := s.DB.WithContext(ctx).
		Model(&models.Term{}).
		Where("id = ?", termID).
		UpdateColumn("occurrence_count", gorm.Expr("occurrence_count + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("更新词条 #%d 出现次数失败: %w", termID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("词条 #%d: %w", termID, models.ErrNotFound)
	}
	return nil
}

// TermsByIDs 批量读取词条，返回以 ID 为键的映射。
func (s *Store) TermsByIDs(ctx context.Context, ids []uint) (map[uint]models.Term, error) {
	out := make(map[uint]models.Term, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var terms []models.Term
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&terms).Error; err != nil {
		return nil, fmt.Errorf("批量查询词条失败: %w", err)
	}
	for _, t := range terms {
		out[t.ID] = t
	}
	return out, nil
}
