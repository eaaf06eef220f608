package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/siren-relay/internal/config"
	"github.com/couchcryptid/siren-relay/internal/domain"
	"github.com/couchcryptid/siren-relay/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	event := domain.AlertEvent{
		Kind:      domain.TemplateAlarm,
		Category:  domain.CategoryDrone,
		Watermark: 4821,
		Delivered: true,
		SentAt:    now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("drone"), msg.Key)
	assert.JSONEq(t, `{
		"kind": "alarm",
		"category": "drone",
		"watermark": 4821,
		"delivered": true,
		"sent_at": "2024-10-01T12:00:00Z"
	}`, string(msg.Value))
	assert.Equal(t, []kafkago.Header{
		{Key: "kind", Value: []byte("alarm")},
		{Key: "category", Value: []byte("drone")},
		{Key: "sent_at", Value: []byte(now.Format(time.RFC3339))},
	}, msg.Headers)
}

func TestNewPublisher_UsesConfiguredTopic(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:    []string{"broker-1:9092", "broker-2:9092"},
		KafkaAlertTopic: "siren-alerts",
	}

	p := NewPublisher(cfg, observability.DiscardLogger())
	defer p.Close()

	assert.Equal(t, "siren-alerts", p.writer.Topic)
	assert.NotNil(t, p.writer.Addr)
	assert.IsType(t, &kafkago.Hash{}, p.writer.Balancer)
}
