package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TrendWatch/backend/go/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageWriter 是 *kafka.Writer 中发布者实际使用的部分。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// TickPublisher 把每次已提交的采集作为 models.TickEvent 发布到 Kafka。
type TickPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	newID   func() string
}

// NewTickPublisher 创建一个 TickPublisher。timeout 限制单次发布的耗时。
func NewTickPublisher(w MessageWriter, timeout time.Duration) *TickPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TickPublisher{writer: w, timeout: timeout, newID: uuid.NewString}
}

// Notify 发布一次采集结果。
func (p *TickPublisher) Notify(ctx context.Context, result models.TickResult) error {
	msg, err := p.buildMessage(result)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("发布采集事件失败: %w", err)
	}
	return nil
}

func (p *TickPublisher) buildMessage(result models.TickResult) (kafka.Message, error) {
	event := models.TickEvent{
		ID:       p.newID(),
		TickTime: result.TickTime.UTC(),
		Terms:    nonNil(result.Terms),
		Opened:   nonNil(result.Opened),
		Closed:   nonNil(result.Closed),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("序列化采集事件失败: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.TickTime.Format(time.RFC3339)),
		Value: value,
		Time:  event.TickTime,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "content_type", Value: []byte("application/json")},
		},
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
