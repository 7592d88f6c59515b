package store

import (
	"context"
	"fmt"
	"time"

	"TrendWatch/backend/go/internal/models"
)

// --- Session Management ---

// OpenSessions 返回所有仍在开启中的会话及其词条文本，按会话 ID 排序。
func (s *Store) OpenSessions(ctx context.Context) ([]models.OpenSession, error) {
	var rows []models.OpenSession
	err := s.DB.WithContext(ctx).
		Table(models.Session{}.TableName()+" AS s").
		Select("s.id AS session_id, s.term_id AS term_id, t.text AS text, s.opened_at AS opened_at").
		Joins("JOIN "+models.Term{}.TableName()+" AS t ON t.id = s.term_id").
		Where("s.closed_at IS NULL").
		Order("s.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询开启中的会话失败: %w", err)
	}
	return rows, nil
}

// StartSession 为词条开启一个新会话。
func (s *Store) StartSession(ctx context.Context, termID uint, at time.Time) (*models.Session, error) {
	session := &models.Session{TermID: termID, OpenedAt: Normalize(at)}
	if err := s.DB.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("为词条 #%d 开启会话失败: %w", termID, err)
	}
	return session, nil
}

// CloseSessions 以 at 作为结束时间关闭指定会话。
func (s *Store) CloseSessions(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Where("id IN ? AND closed_at IS NULL", ids).
		Update("closed_at", Normalize(at)).Error
	if err != nil {
		return fmt.Errorf("关闭会话失败: %w", err)
	}
	return nil
}

// CloseAllOpen 关闭所有开启中的会话，返回受影响的行数。
func (s *Store) CloseAllOpen(ctx context.Context, at time.Time) (int64, error) {
	result := s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Where("closed_at IS NULL").
		Update("closed_at", Normalize(at))
	if result.Error != nil {
		return 0, fmt.Errorf("关闭遗留会话失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// SessionsOverlapping 返回与闭区间 [start, end] 存在交集的会话。
// 开启中的会话一律返回，由调用方按当前时间裁剪。
func (s *Store) SessionsOverlapping(ctx context.Context, start, end time.Time) ([]models.Session, error) {
	var sessions []models.Session
	err := s.DB.WithContext(ctx).
		Where("opened_at <= ? AND (closed_at IS NULL OR closed_at > ?)", Normalize(end), Normalize(start)).
		Order("id").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("查询区间内的会话失败: %w", err)
	}
	return sessions, nil
}

// SessionsForTerm 返回词条最近的会话，按开启时间倒序。
func (s *Store) SessionsForTerm(ctx context.Context, termID uint, limit int) ([]models.Session, error) {
	var sessions []models.Session
	err := s.DB.WithContext(ctx).
		Where("term_id = ?", termID).
		Order("opened_at DESC, id DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("查询词条 #%d 的会话失败: %w", termID, err)
	}
	return sessions, nil
}

// ActiveTerms 返回当前在榜或在 since 之后仍在榜的词条，按文本排序。
// 外部补充服务只需要为这些词条查找参考链接。
func (s *Store) ActiveTerms(ctx context.Context, since time.Time) ([]models.Term, error) {
	var terms []models.Term
	sub := s.DB.WithContext(ctx).
		Model(&models.Session{}).
		Select("term_id").
		Where("closed_at IS NULL OR closed_at >= ?", Normalize(since))
	err := s.DB.WithContext(ctx).
		Where("id IN (?)", sub).
		Order("text").
		Find(&terms).Error
	if err != nil {
		return nil, fmt.Errorf("查询活跃词条失败: %w", err)
	}
	return terms, nil
}
