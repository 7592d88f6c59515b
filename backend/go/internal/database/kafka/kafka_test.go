package kafka

import (
	"testing"

	"TrendWatch/backend/go/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestMissingTopics(t *testing.T) {
	existing := map[string]struct{}{"trend_ticks": {}}
	got := MissingTopics(existing, []string{"trend_ticks", "trend_enrichments", "", "trend_enrichments"})
	assert.Equal(t, []string{"trend_enrichments"}, got)
	assert.Empty(t, MissingTopics(existing, []string{"trend_ticks"}))
}

func TestNewWriterUsesTopic(t *testing.T) {
	w := NewWriter(&config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "trend_ticks")
	defer w.Close()
	assert.Equal(t, "trend_ticks", w.Topic)
}
