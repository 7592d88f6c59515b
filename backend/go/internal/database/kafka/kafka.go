package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"TrendWatch/backend/go/internal/config"

	"github.com/segmentio/kafka-go"
)

// EnsureTopics 连接到 Kafka 控制器并创建配置中缺失的主题。
// 返回新创建的主题名称。
func EnsureTopics(ctx context.Context, cfg *config.KafkaConfig) ([]string, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("未配置 Kafka brokers")
	}
	topics := []string{cfg.TickTopic, cfg.EnrichmentTopic}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("kafka 初始化连接失败: %w", err)
	}
	defer conn.Close()

	// 主题只能在控制器节点上创建。
	controller, err := conn.Controller()
	if err != nil {
		return nil, fmt.Errorf("无法获取 Kafka 控制器: %w", err)
	}
	ctrlConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return nil, fmt.Errorf("无法连接 Kafka 控制器: %w", err)
	}
	defer ctrlConn.Close()

	partitions, err := ctrlConn.ReadPartitions()
	if err != nil {
		return nil, fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
	}
	existing := make(map[string]struct{}, len(partitions))
	for _, p := range partitions {
		existing[p.Topic] = struct{}{}
	}

	missing := MissingTopics(existing, topics)
	if len(missing) == 0 {
		return nil, nil
	}
	configs := make([]kafka.TopicConfig, 0, len(missing))
	for _, name := range missing {
		configs = append(configs, kafka.TopicConfig{
			Topic:             name,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}
	if err := ctrlConn.CreateTopics(configs...); err != nil {
		return nil, fmt.Errorf("自动创建 Kafka 主题失败: %w", err)
	}
	return missing, nil
}

// MissingTopics 返回 wanted 中尚不存在的主题，保持原顺序并去重。
func MissingTopics(existing map[string]struct{}, wanted []string) []string {
	var missing []string
	seen := make(map[string]struct{}, len(wanted))
	for _, name := range wanted {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := existing[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// NewWriter 创建写入指定主题的 Writer。
func NewWriter(cfg *config.KafkaConfig, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		RequiredAcks: kafka.RequireOne,
	}
}

// NewReader 创建从指定主题消费的 Reader。
func NewReader(cfg *config.KafkaConfig, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxAttempts: 10,
		Dialer: &kafka.Dialer{
			Timeout: 10 * time.Second,
		},
	})
}
