package coaching

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/config"
	"call-analysis-engine/pkg/stt"
)

// ErrRecommendationNotFound is returned when acknowledging an unknown
// recommendation ID.
var ErrRecommendationNotFound = errors.New("coaching recommendation not found")

// Engine derives coaching recommendations for one call from the running
// transcript. Recommendations are advisory only; they never alter call
// state.
type Engine struct {
	logger    *logrus.Entry
	cfg       *config.CoachingConfig
	sentiment *SentimentAnalyzer

	mu   sync.Mutex
	recs []*Recommendation
	byID map[uuid.UUID]*Recommendation

	negativeStreak int

	// Monologue tracking uses segment offsets on the call timeline, not
	// wall-clock time
	lastContactEnd time.Duration
	pacingFired    bool

	// Repeat occurrences of a trigger are deferred to post-call review
	// instead of interrupting the agent again
	fired map[Category]bool
}

// NewEngine creates a coaching engine for one call. The sentiment analyzer
// is shared across calls.
func NewEngine(logger *logrus.Logger, cfg *config.CoachingConfig, sentiment *SentimentAnalyzer, callID string) *Engine {
	return &Engine{
		logger:    logger.WithField("component", "coaching").WithField("call_uuid", callID),
		cfg:       cfg,
		sentiment: sentiment,
		byID:      make(map[uuid.UUID]*Recommendation),
		fired:     make(map[Category]bool),
	}
}

// ObserveSegment folds one transcript segment into the trigger state and
// returns any recommendations it produced. Gap markers carry no text and are
// skipped.
func (e *Engine) ObserveSegment(seg stt.Segment) []*Recommendation {
	if seg.Gap || strings.TrimSpace(seg.Text) == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var emitted []*Recommendation

	if seg.Speaker == stt.SpeakerContact {
		e.lastContactEnd = seg.End
		e.pacingFired = false

		s := e.sentiment.AnalyzeText(seg.Text)
		if s.Label == SentimentNegative {
			e.negativeStreak++
		} else {
			e.negativeStreak = 0
		}

		if e.negativeStreak >= e.cfg.NegativeStreak {
			emitted = append(emitted, e.emitLocked(CategoryDeEscalation, "negative_sentiment_streak",
				"Contact sentiment is trending negative. Acknowledge their frustration and slow down."))
			e.negativeStreak = 0
		}

		text := strings.ToLower(seg.Text)
		if phrase := matchPhrase(text, objectionPhrases); phrase != "" {
			emitted = append(emitted, e.emitLocked(CategoryObjection, "objection: "+phrase,
				"Objection detected. Acknowledge it, then restate the value before responding."))
		}
		if phrase := matchPhrase(text, buyingSignalPhrases); phrase != "" {
			emitted = append(emitted, e.emitLocked(CategoryClosing, "buying_signal: "+phrase,
				"Buying signal detected. Move toward confirming next steps."))
		}
	} else {
		// Agent speech with no contact response for too long
		if !e.pacingFired && seg.End-e.lastContactEnd > e.cfg.MonologueLimit {
			emitted = append(emitted, e.emitLocked(CategoryPacing, "agent_monologue",
				"You have been talking for a while. Pause and ask the contact a question."))
			e.pacingFired = true
		}
	}

	return emitted
}

// ObserveComplianceFlag turns an actionable compliance flag into an
// immediate coaching prompt.
func (e *Engine) ObserveComplianceFlag(riskType, text string) *Recommendation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emitLocked(CategoryCompliance, "compliance: "+riskType, text)
}

// emitLocked creates and records a recommendation. The first occurrence of a
// category is immediate; repeats are deferred for post-call review.
func (e *Engine) emitLocked(category Category, trigger, text string) *Recommendation {
	urgency := UrgencyImmediate
	if e.fired[category] {
		urgency = UrgencyDeferred
	}
	e.fired[category] = true

	rec := &Recommendation{
		ID:       uuid.New(),
		Category: category,
		Urgency:  urgency,
		Text:     text,
		Trigger:  trigger,
		At:       time.Now(),
	}
	e.recs = append(e.recs, rec)
	e.byID[rec.ID] = rec

	e.logger.WithFields(logrus.Fields{
		"category": category,
		"urgency":  urgency,
		"trigger":  trigger,
	}).Info("Coaching recommendation emitted")

	return rec
}

// Acknowledge marks a recommendation as seen by the agent. Acknowledging
// twice produces the same state as once.
func (e *Engine) Acknowledge(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.byID[id]
	if !ok {
		return ErrRecommendationNotFound
	}
	rec.Acknowledged = true
	return nil
}

// Recommendations returns a snapshot of all recommendations for the call,
// oldest first.
func (e *Engine) Recommendations() []Recommendation {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Recommendation, 0, len(e.recs))
	for _, rec := range e.recs {
		out = append(out, *rec)
	}
	return out
}

func matchPhrase(text string, phrases []string) string {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p
		}
	}
	return ""
}
