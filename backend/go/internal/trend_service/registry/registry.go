package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/trend_service/store"
)

// Registry 维护词条文本到稳定 ID 的映射，以及每个词条被采集到的次数。
type Registry struct{}

// New 创建一个 Registry。
func New() *Registry {
	return &Registry{}
}

// Observe 记录词条在一次采集中出现。
// 首次出现时创建词条并把计数置为 1，否则计数加 1。
// tx 必须是本次采集所在的事务。
func (r *Registry) Observe(ctx context.Context, tx *store.Store, text string) (*models.Term, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, fmt.Errorf("%w: empty term", models.ErrInvalidQuery)
	}

	term, err := tx.FindTermByText(ctx, text)
	switch {
	case errors.Is(err, models.ErrNotFound):
		term, err = tx.CreateTerm(ctx, text)
		if err != nil {
			return nil, false, err
		}
		return term, true, nil
	case err != nil:
		return nil, false, err
	}

	if err := tx.IncrementOccurrence(ctx, term.ID); err != nil {
		return nil, false, err
	}
	term.OccurrenceCount++
	return term, false, nil
}

// Lookup 按文本读取词条，不修改计数。
func (r *Registry) Lookup(ctx context.Context, s *store.Store, text string) (*models.Term, error) {
	return s.FindTermByText(ctx, strings.TrimSpace(text))
}
