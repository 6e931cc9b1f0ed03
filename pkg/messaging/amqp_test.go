package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAMQPClientDefaultsRoutingKey(t *testing.T) {
	logger := logrus.New()
	client := NewAMQPClient(logger, AMQPConfig{
		URL:       "amqp://localhost:5672",
		QueueName: "call_analysis_events",
	})
	assert.Equal(t, "call_analysis_events", client.config.RoutingKey)
}

func TestPublishEventWhenDisconnected(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	client := NewAMQPClient(logger, AMQPConfig{
		URL:       "amqp://localhost:5672",
		QueueName: "call_analysis_events",
	})

	err := client.PublishEvent(Event{Type: EventAMDVerdict, CallUUID: "call-1"})
	assert.Error(t, err)
}

func TestConnectWithoutURL(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	client := NewAMQPClient(logger, AMQPConfig{})
	assert.Error(t, client.Connect())
	assert.False(t, client.IsConnected())
}

func TestEventJSONShape(t *testing.T) {
	event := Event{
		Type:      EventComplianceFlag,
		CallUUID:  "call-1",
		Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Payload:   map[string]string{"risk_type": "dnc_request"},
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "compliance_flag", decoded["type"])
	assert.Equal(t, "call-1", decoded["call_uuid"])
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishEvent(Event{Type: EventCallSummary}))
	assert.False(t, p.IsConnected())
}
