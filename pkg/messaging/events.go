package messaging

import (
	"time"
)

// Event types published by the analysis pipeline.
const (
	EventTranscriptSegment = "transcript_segment"
	EventAMDVerdict        = "amd_verdict"
	EventCoaching          = "coaching_recommendation"
	EventComplianceFlag    = "compliance_flag"
	EventCallSummary       = "call_summary"
)

// Event is one analysis result published to outside consumers.
type Event struct {
	Type      string      `json:"type"`
	CallUUID  string      `json:"call_uuid"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Publisher delivers analysis events to an external consumer.
type Publisher interface {
	PublishEvent(event Event) error
	IsConnected() bool
	Disconnect()
}

// NoopPublisher is used when no message broker is configured; events still
// reach the WebSocket feed.
type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(Event) error { return nil }
func (NoopPublisher) IsConnected() bool        { return false }
func (NoopPublisher) Disconnect()              {}
