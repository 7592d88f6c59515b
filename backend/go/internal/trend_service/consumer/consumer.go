package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/trend_service/store"
	"TrendWatch/backend/go/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const (
	defaultRetryMin = 500 * time.Millisecond
	defaultRetryMax = 30 * time.Second
)

// errPoison 标记无法处理的消息，这类消息记录日志后直接提交。
var errPoison = errors.New("unprocessable enrichment message")

// MessageReader 是 *kafka.Reader 中消费者实际使用的部分。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// EnrichmentConsumer 从 Kafka 读取外部补充服务写入的参考链接并保存。
type EnrichmentConsumer struct {
	reader MessageReader
	store  *store.Store
	log    *logger.Logger

	retryMin time.Duration
	retryMax time.Duration
}

// NewEnrichmentConsumer 创建一个 EnrichmentConsumer。
func NewEnrichmentConsumer(r MessageReader, s *store.Store, log *logger.Logger) *EnrichmentConsumer {
	if log == nil {
		log = logger.Discard()
	}
	return &EnrichmentConsumer{
		reader:   r,
		store:    s,
		log:      log.Component("enrichment_consumer"),
		retryMin: defaultRetryMin,
		retryMax: defaultRetryMax,
	}
}

// Run 持续消费消息，直到 ctx 被取消。
// 存储失败时按退避间隔重试同一条消息，成功前不会提交，也不会读取后续消息。
func (c *EnrichmentConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("读取补充消息失败: %w", err)
		}

		payload := map[string]interface{}{"partition": msg.Partition, "offset": msg.Offset}
		inserted, err := c.handleWithRetry(ctx, msg, payload)
		switch {
		case errors.Is(err, errPoison):
			c.log.WithError(models.NewErrorInfo(err, "poison_message")).WithPayload(payload).Warn("丢弃无法处理的补充消息")
		case err != nil:
			// 只有 ctx 取消才会走到这里，消息留待下次从已提交位点重新读取。
			return nil
		case inserted:
			c.log.WithPayload(payload).Debug("已保存参考链接")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("提交补充消息失败: %w", err)
		}
	}
}

// handleWithRetry 处理一条消息；存储错误时指数退避后重试，直到成功、遇到坏消息或 ctx 取消。
func (c *EnrichmentConsumer) handleWithRetry(ctx context.Context, msg kafka.Message, payload map[string]interface{}) (bool, error) {
	wait := c.retryMin
	for {
		inserted, err := c.HandleMessage(ctx, msg)
		if err == nil || errors.Is(err, errPoison) {
			return inserted, err
		}
		c.log.WithError(models.NewErrorInfo(err, "database_error")).WithPayload(payload).Error("保存参考链接失败，稍后重试")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
		if wait *= 2; wait > c.retryMax {
			wait = c.retryMax
		}
	}
}

// HandleMessage 解析并保存一条消息，返回是否写入了新的参考链接。
// 同一词条的重复链接会被忽略。
func (c *EnrichmentConsumer) HandleMessage(ctx context.Context, msg kafka.Message) (bool, error) {
	var in models.EnrichmentMessage
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		return false, fmt.Errorf("%w: %v", errPoison, err)
	}
	in.Link = strings.TrimSpace(in.Link)
	if in.Link == "" {
		return false, fmt.Errorf("%w: missing link", errPoison)
	}

	termID, err := c.resolveTerm(ctx, in)
	if err != nil {
		return false, err
	}

	observed := in.ObservedAt
	if observed.IsZero() {
		observed = msg.Time
	}
	return c.store.AddExplanation(ctx, &models.Explanation{
		TermID:     termID,
		Link:       in.Link,
		Title:      strings.TrimSpace(in.Title),
		ObservedAt: observed,
	})
}

func (c *EnrichmentConsumer) resolveTerm(ctx context.Context, in models.EnrichmentMessage) (uint, error) {
	var (
		term *models.Term
		err  error
	)
	switch {
	case in.TermID != 0:
		term, err = c.store.FindTermByID(ctx, in.TermID)
	case strings.TrimSpace(in.Term) != "":
		term, err = c.store.FindTermByText(ctx, strings.TrimSpace(in.Term))
	default:
		return 0, fmt.Errorf("%w: neither term_id nor term is set", errPoison)
	}
	if errors.Is(err, models.ErrNotFound) {
		return 0, fmt.Errorf("%w: %v", errPoison, err)
	}
	if err != nil {
		return 0, err
	}
	return term.ID, nil
}
