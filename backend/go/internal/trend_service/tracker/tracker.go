package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/trend_service/registry"
	"TrendWatch/backend/go/internal/trend_service/store"
	"TrendWatch/backend/go/pkg/logger"
)

// Notifier 在一次采集提交之后收到结果。返回的错误只会被记录。
type Notifier interface {
	Notify(ctx context.Context, result models.TickResult) error
}

// Tracker 把每次采集到的榜单转换为词条的在榜会话。
// 同一进程内的 Ingest 调用由 mu 串行；每次调用在一个事务中完成，
// 多个进程共用 MySQL 时由事务内对最近采集和开启会话的行锁串行。
type Tracker struct {
	mu        sync.Mutex
	store     *store.Store
	registry  *registry.Registry
	notifiers []Notifier
	log       *logger.Logger
}

// New 创建一个 Tracker。log 为 nil 时丢弃日志。
func New(s *store.Store, reg *registry.Registry, log *logger.Logger, notifiers ...Notifier) *Tracker {
	if log == nil {
		log = logger.Discard()
	}
	if reg == nil {
		reg = registry.New()
	}
	return &Tracker{
		store:     s,
		registry:  reg,
		notifiers: notifiers,
		log:       log.Component("tracker"),
	}
}

// Ingest 处理一次采集。
//
// 本次出现且已有开启会话的词条延续会话；新出现的词条以 tickTime 开启会话；
// 上一次在榜、本次缺席的词条以 tickTime 关闭会话。当前榜单整体替换为 snapshot 的顺序。
// 任一步骤失败时整个采集回滚。
func (t *Tracker) Ingest(ctx context.Context, snapshot []string, tickTime time.Time) (*models.TickResult, error) {
	terms, err := validateSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	tickTime = store.Normalize(tickTime)

	t.mu.Lock()
	defer t.mu.Unlock()

	result := &models.TickResult{
		TickTime:  tickTime,
		Terms:     terms,
		Opened:    []string{},
		Closed:    []string{},
		Continued: []string{},
	}

	err = t.store.Transaction(ctx, func(tx *store.Store) error {
		// 锁住最近一次采集和开启中的会话，多个采集进程写同一个 MySQL 时依次执行。
		locked := tx.ForUpdate()
		last, err := locked.LastTick(ctx)
		if err != nil {
			return err
		}
		if last != nil && !tickTime.After(last.TickTime) {
			return fmt.Errorf("%w: %s <= %s", models.ErrStaleTick,
				tickTime.Format(time.DateTime), last.TickTime.UTC().Format(time.DateTime))
		}

		openBefore, err := locked.OpenSessions(ctx)
		if err != nil {
			return err
		}
		byText, err := indexOpenSessions(openBefore)
		if err != nil {
			return err
		}

		ranking := make([]models.CurrentRanking, 0, len(terms))
		result.Ranking = make([]models.CurrentEntry, 0, len(terms))
		for i, text := range terms {
			term, _, err := t.registry.Observe(ctx, tx, text)
			if err != nil {
				return err
			}
			if _, ok := byText[text]; ok {
				delete(byText, text)
				result.Continued = append(result.Continued, text)
			} else {
				if _, err := tx.StartSession(ctx, term.ID, tickTime); err != nil {
					return err
				}
				result.Opened = append(result.Opened, text)
			}
			ranking = append(ranking, models.CurrentRanking{Position: i + 1, TermID: term.ID})
			result.Ranking = append(result.Ranking, models.CurrentEntry{Position: i + 1, TermID: term.ID, Term: text})
		}

		// 按会话顺序关闭剩余的会话，保证结果稳定。
		var closing []uint
		for _, open := range openBefore {
			if _, ok := byText[open.Text]; ok {
				closing = append(closing, open.SessionID)
				result.Closed = append(result.Closed, open.Text)
			}
		}
		if err := tx.CloseSessions(ctx, closing, tickTime); err != nil {
			return err
		}

		if err := tx.ReplaceCurrentRanking(ctx, ranking); err != nil {
			return err
		}

		raw, err := json.Marshal(terms)
		if err != nil {
			return fmt.Errorf("序列化榜单失败: %w", err)
		}
		return tx.RecordTick(ctx, &models.Tick{
			TickTime: tickTime,
			Terms:    raw,
			Opened:   len(result.Opened),
			Closed:   len(result.Closed),
		})
	})
	if err != nil {
		t.log.WithError(models.NewErrorInfo(err, "ingest_error")).
			WithPayload(map[string]interface{}{"tick_time": tickTime, "terms": terms}).
			Error("采集写入失败，本次采集已回滚")
		return nil, err
	}

	t.log.WithPayload(map[string]interface{}{
		"tick_time": tickTime,
		"opened":    result.Opened,
		"closed":    result.Closed,
		"continued": len(result.Continued),
	}).Info("采集已提交")

	t.notify(ctx, *result)
	return result, nil
}

// Recover 关闭上次异常退出时遗留的全部开启会话，并清空当前榜单。
// 返回被关闭的会话数。
func (t *Tracker) Recover(ctx context.Context, at time.Time) (int64, error) {
	at = store.Normalize(at)

	t.mu.Lock()
	defer t.mu.Unlock()

	var closed int64
	err := t.store.Transaction(ctx, func(tx *store.Store) error {
		n, err := tx.CloseAllOpen(ctx, at)
		if err != nil {
			return err
		}
		closed = n
		return tx.ClearCurrentRanking(ctx)
	})
	if err != nil {
		return 0, err
	}
	if closed > 0 {
		t.log.WithPayload(map[string]interface{}{"closed": closed, "at": at}).Warn("已关闭遗留的开启会话")
	}
	return closed, nil
}

func (t *Tracker) notify(ctx context.Context, result models.TickResult) {
	for _, n := range t.notifiers {
		if err := n.Notify(ctx, result); err != nil {
			t.log.WithError(models.NewErrorInfo(err, "notify_error")).
				WithPayload(map[string]interface{}{"notifier": fmt.Sprintf("%T", n)}).
				Warn("采集结果通知失败")
		}
	}
}

// validateSnapshot 去掉首尾空白，拒绝空榜单和重复词条。
func validateSnapshot(snapshot []string) ([]string, error) {
	if len(snapshot) == 0 {
		return nil, models.ErrEmptySnapshot
	}
	terms := make([]string, 0, len(snapshot))
	seen := make(map[string]struct{}, len(snapshot))
	for i, raw := range snapshot {
		text := strings.TrimSpace(raw)
		if text == "" {
			return nil, fmt.Errorf("%w: blank term at position %d", models.ErrEmptySnapshot, i+1)
		}
		if _, dup := seen[text]; dup {
			return nil, fmt.Errorf("%w: %q", models.ErrDuplicateTerm, text)
		}
		seen[text] = struct{}{}
		terms = append(terms, text)
	}
	return terms, nil
}

// indexOpenSessions 以词条文本为键索引开启中的会话。
// 同一词条存在多个开启会话说明写入没有串行化，直接报错。
func indexOpenSessions(open []models.OpenSession) (map[string]models.OpenSession, error) {
	byText := make(map[string]models.OpenSession, len(open))
	for _, s := range open {
		if prev, dup := byText[s.Text]; dup {
			return nil, fmt.Errorf("%w: term %q has open sessions #%d and #%d",
				models.ErrIntegrity, s.Text, prev.SessionID, s.SessionID)
		}
		byText[s.Text] = s
	}
	return byText, nil
}
