package coaching

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestAnalyzer() *SentimentAnalyzer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewSentimentAnalyzer(logger)
}

func TestAnalyzeTextLabels(t *testing.T) {
	sa := newTestAnalyzer()

	tests := []struct {
		text  string
		label string
	}{
		{"that sounds great thank you", SentimentPositive},
		{"this is absolutely wonderful", SentimentPositive},
		{"this is terrible", SentimentNegative},
		{"i am very frustrated with this", SentimentNegative},
		{"the account number is on the second page", SentimentNeutral},
		{"ok", SentimentNeutral}, // too short to score
	}

	for _, tt := range tests {
		got := sa.AnalyzeText(tt.text)
		assert.Equal(t, tt.label, got.Label, "text: %q", tt.text)
	}
}

func TestNegationFlipsSentiment(t *testing.T) {
	sa := newTestAnalyzer()

	positive := sa.AnalyzeText("i am interested")
	assert.Equal(t, SentimentPositive, positive.Label)

	negated := sa.AnalyzeText("i am not interested")
	assert.Equal(t, SentimentNegative, negated.Label)
}

func TestIntensifierRaisesMagnitude(t *testing.T) {
	sa := newTestAnalyzer()

	plain := sa.AnalyzeText("i am frustrated")
	intense := sa.AnalyzeText("i am extremely frustrated")
	assert.Greater(t, intense.Magnitude, plain.Magnitude)
}

func TestAnalyzerStats(t *testing.T) {
	sa := newTestAnalyzer()

	sa.AnalyzeText("this is wonderful")
	sa.AnalyzeText("this is terrible")
	sa.AnalyzeText("the meeting is on tuesday")

	stats := sa.Stats()
	assert.Equal(t, int64(3), stats.TotalAnalyses)
	assert.Equal(t, int64(1), stats.PositiveDetected)
	assert.Equal(t, int64(1), stats.NegativeDetected)
	assert.Equal(t, int64(1), stats.NeutralDetected)
}
