package coaching

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies what a recommendation is about.
type Category string

const (
	CategoryObjection    Category = "objection"
	CategoryCompliance   Category = "compliance"
	CategoryClosing      Category = "closing_signal"
	CategoryPacing       Category = "pacing"
	CategoryDeEscalation Category = "de_escalation"
)

// Urgency controls where a recommendation surfaces: immediate ones go to the
// agent UI without delay, deferred ones are batched for post-call review.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyDeferred  Urgency = "deferred"
)

// Recommendation is advisory coaching output for the agent. It is immutable
// once created; acknowledgment is the only mutation.
type Recommendation struct {
	ID       uuid.UUID `json:"id"`
	Category Category  `json:"category"`
	Urgency  Urgency   `json:"urgency"`
	Text     string    `json:"text"`

	// Trigger names the condition that produced the recommendation, for
	// post-call review
	Trigger string `json:"trigger"`

	At           time.Time `json:"at"`
	Acknowledged bool      `json:"acknowledged"`
}

// Sentiment is the per-segment sentiment classification feeding the coaching
// triggers.
type Sentiment struct {
	Label     string  `json:"label"` // positive, negative, neutral
	Score     float64 `json:"score"` // normalized to [0,1], 0.5 neutral
	Magnitude float64 `json:"magnitude"`
}

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)
