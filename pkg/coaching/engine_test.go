package coaching

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-engine/pkg/config"
	"call-analysis-engine/pkg/stt"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	cfg := &config.CoachingConfig{
		NegativeStreak: 3,
		MonologueLimit: 30 * time.Second,
	}
	return NewEngine(logger, cfg, NewSentimentAnalyzer(logger), "call-1")
}

func contactSeg(text string, end time.Duration) stt.Segment {
	return stt.Segment{Speaker: stt.SpeakerContact, Text: text, End: end}
}

func agentSeg(text string, end time.Duration) stt.Segment {
	return stt.Segment{Speaker: stt.SpeakerAgent, Text: text, End: end}
}

func TestNegativeStreakTriggersDeEscalation(t *testing.T) {
	e := newTestEngine(t)

	var emitted []*Recommendation
	emitted = append(emitted, e.ObserveSegment(contactSeg("this is terrible", time.Second))...)
	emitted = append(emitted, e.ObserveSegment(contactSeg("i am very frustrated", 2*time.Second))...)
	require.Empty(t, emitted, "streak of two must not trigger")

	emitted = e.ObserveSegment(contactSeg("you people are awful", 3*time.Second))
	require.Len(t, emitted, 1)
	assert.Equal(t, CategoryDeEscalation, emitted[0].Category)
	assert.Equal(t, UrgencyImmediate, emitted[0].Urgency)

	// Streak resets after firing; the next negative segment starts over
	emitted = e.ObserveSegment(contactSeg("still annoyed", 4*time.Second))
	assert.Empty(t, emitted)
}

func TestPositiveSegmentResetsStreak(t *testing.T) {
	e := newTestEngine(t)

	e.ObserveSegment(contactSeg("this is terrible", time.Second))
	e.ObserveSegment(contactSeg("i am very frustrated", 2*time.Second))
	e.ObserveSegment(contactSeg("okay that sounds great thank you", 3*time.Second))
	emitted := e.ObserveSegment(contactSeg("still a bit annoyed", 4*time.Second))

	assert.Empty(t, emitted, "streak must reset on a non-negative segment")
}

func TestObjectionPhraseTriggersPrompt(t *testing.T) {
	e := newTestEngine(t)

	emitted := e.ObserveSegment(contactSeg("honestly i am not interested right now", time.Second))
	require.NotEmpty(t, emitted)

	var found bool
	for _, rec := range emitted {
		if rec.Category == CategoryObjection {
			found = true
			assert.Equal(t, UrgencyImmediate, rec.Urgency)
			assert.Contains(t, rec.Trigger, "not interested")
		}
	}
	assert.True(t, found, "objection recommendation expected")
}

func TestBuyingSignalTriggersClosingPrompt(t *testing.T) {
	e := newTestEngine(t)

	emitted := e.ObserveSegment(contactSeg("okay so how much would that be", time.Second))
	require.Len(t, emitted, 1)
	assert.Equal(t, CategoryClosing, emitted[0].Category)
}

func TestRepeatTriggerIsDeferred(t *testing.T) {
	e := newTestEngine(t)

	first := e.ObserveSegment(contactSeg("sounds good to me", time.Second))
	require.Len(t, first, 1)
	assert.Equal(t, UrgencyImmediate, first[0].Urgency)

	second := e.ObserveSegment(contactSeg("yes that sounds good", 2*time.Second))
	require.Len(t, second, 1)
	assert.Equal(t, UrgencyDeferred, second[0].Urgency, "repeat of a category goes to post-call review")
}

func TestAgentMonologueTriggersPacing(t *testing.T) {
	e := newTestEngine(t)

	e.ObserveSegment(contactSeg("hello", 10*time.Second))
	emitted := e.ObserveSegment(agentSeg("let me walk you through the plan", 25*time.Second))
	assert.Empty(t, emitted, "15s of agent speech is under the limit")

	emitted = e.ObserveSegment(agentSeg("and furthermore the premium tier includes", 45*time.Second))
	require.Len(t, emitted, 1)
	assert.Equal(t, CategoryPacing, emitted[0].Category)

	// Does not refire while the monologue continues
	emitted = e.ObserveSegment(agentSeg("additionally we offer", 50*time.Second))
	assert.Empty(t, emitted)

	// Contact response resets the monologue clock
	e.ObserveSegment(contactSeg("okay", 51*time.Second))
	emitted = e.ObserveSegment(agentSeg("so as i was saying", 60*time.Second))
	assert.Empty(t, emitted)
}

func TestGapSegmentsAreIgnored(t *testing.T) {
	e := newTestEngine(t)

	emitted := e.ObserveSegment(stt.Segment{Speaker: stt.SpeakerContact, Gap: true, End: time.Second})
	assert.Empty(t, emitted)
	assert.Empty(t, e.Recommendations())
}

func TestComplianceFlagBecomesPrompt(t *testing.T) {
	e := newTestEngine(t)

	rec := e.ObserveComplianceFlag("dnc_request", "Contact asked to stop calling. Confirm removal and end the pitch.")
	require.NotNil(t, rec)
	assert.Equal(t, CategoryCompliance, rec.Category)
	assert.Equal(t, UrgencyImmediate, rec.Urgency)
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	e := newTestEngine(t)

	emitted := e.ObserveSegment(contactSeg("how much does it cost", time.Second))
	require.Len(t, emitted, 1)
	id := emitted[0].ID

	require.NoError(t, e.Acknowledge(id))
	recs := e.Recommendations()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Acknowledged)

	require.NoError(t, e.Acknowledge(id))
	again := e.Recommendations()
	assert.Equal(t, recs, again, "second acknowledge must not change state")
}

func TestAcknowledgeUnknownID(t *testing.T) {
	e := newTestEngine(t)
	err := e.Acknowledge(uuid.New())
	assert.ErrorIs(t, err, ErrRecommendationNotFound)
}
