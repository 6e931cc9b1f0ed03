package coaching

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SentimentAnalyzer assigns a lexicon-based sentiment label to transcript
// text. It is shared across calls; analysis itself is stateless, the cache
// and stats are guarded.
type SentimentAnalyzer struct {
	logger *logrus.Entry

	positiveWords map[string]float64
	negativeWords map[string]float64
	intensifiers  map[string]float64
	negators      map[string]bool

	cacheMaxSize   int
	sentimentCache map[string]Sentiment

	mutex sync.RWMutex

	stats SentimentStats
}

// SentimentStats tracks analyzer throughput and label distribution.
type SentimentStats struct {
	TotalAnalyses    int64     `json:"total_analyses"`
	PositiveDetected int64     `json:"positive_detected"`
	NegativeDetected int64     `json:"negative_detected"`
	NeutralDetected  int64     `json:"neutral_detected"`
	LastReset        time.Time `json:"last_reset"`
}

// NewSentimentAnalyzer creates an analyzer with the built-in call-center
// lexicons.
func NewSentimentAnalyzer(logger *logrus.Logger) *SentimentAnalyzer {
	sa := &SentimentAnalyzer{
		logger:         logger.WithField("component", "sentiment_analyzer"),
		cacheMaxSize:   1000,
		sentimentCache: make(map[string]Sentiment),
		stats:          SentimentStats{LastReset: time.Now()},
	}
	sa.initializeLexicons()
	return sa
}

// AnalyzeText classifies the sentiment of one transcript segment.
func (sa *SentimentAnalyzer) AnalyzeText(text string) Sentiment {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if len(normalized) < 3 {
		return Sentiment{Label: SentimentNeutral, Score: 0.5}
	}

	if cached, ok := sa.getCached(normalized); ok {
		return cached
	}

	words := strings.Fields(normalized)
	raw, hits := sa.lexiconScore(words)

	sentiment := Sentiment{Label: SentimentNeutral, Score: 0.5}
	if hits > 0 {
		sentiment.Magnitude = math.Min(math.Abs(raw), 1.0)
		// Map [-1,1] raw score onto [0,1]
		sentiment.Score = clampScore((raw + 1.0) / 2.0)
		switch {
		case sentiment.Score > 0.6:
			sentiment.Label = SentimentPositive
		case sentiment.Score < 0.4:
			sentiment.Label = SentimentNegative
		}
	}

	sa.cache(normalized, sentiment)
	sa.updateStats(sentiment)
	return sentiment
}

// lexiconScore averages the sentiment weights of matched words, honoring
// negators (flip the next sentiment word) and intensifiers (amplify it).
func (sa *SentimentAnalyzer) lexiconScore(words []string) (score float64, hits int) {
	modifier := 1.0
	for i, word := range words {
		word = strings.Trim(word, ".,!?")

		if sa.negators[word] {
			modifier = -1.0
			continue
		}
		if boost, ok := sa.intensifiers[word]; ok {
			modifier *= boost
			continue
		}

		if v, ok := sa.positiveWords[word]; ok {
			score += v * modifier
			hits++
		} else if v, ok := sa.negativeWords[word]; ok {
			score += v * modifier
			hits++
		}

		// Negation only reaches a few words ahead
		if i > 0 && i%3 == 0 {
			modifier = 1.0
		}
	}
	if hits > 0 {
		score /= float64(hits)
	}
	return score, hits
}

func (sa *SentimentAnalyzer) getCached(key string) (Sentiment, bool) {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()
	s, ok := sa.sentimentCache[key]
	return s, ok
}

func (sa *SentimentAnalyzer) cache(key string, s Sentiment) {
	sa.mutex.Lock()
	defer sa.mutex.Unlock()
	if len(sa.sentimentCache) >= sa.cacheMaxSize {
		count := 0
		target := sa.cacheMaxSize / 4
		for k := range sa.sentimentCache {
			delete(sa.sentimentCache, k)
			count++
			if count >= target {
				break
			}
		}
	}
	sa.sentimentCache[key] = s
}

func (sa *SentimentAnalyzer) updateStats(s Sentiment) {
	sa.mutex.Lock()
	defer sa.mutex.Unlock()
	sa.stats.TotalAnalyses++
	switch s.Label {
	case SentimentPositive:
		sa.stats.PositiveDetected++
	case SentimentNegative:
		sa.stats.NegativeDetected++
	default:
		sa.stats.NeutralDetected++
	}
}

// Stats returns a copy of the analyzer statistics.
func (sa *SentimentAnalyzer) Stats() SentimentStats {
	sa.mutex.RLock()
	defer sa.mutex.RUnlock()
	return sa.stats
}

func (sa *SentimentAnalyzer) initializeLexicons() {
	sa.positiveWords = map[string]float64{
		"good": 0.7, "great": 0.8, "excellent": 0.9, "amazing": 0.9,
		"wonderful": 0.8, "fantastic": 0.9, "perfect": 0.9, "love": 0.8,
		"like": 0.6, "happy": 0.8, "pleased": 0.7, "satisfied": 0.7,
		"interested": 0.7, "helpful": 0.7, "thanks": 0.6, "thank": 0.6,
		"yes": 0.5, "sure": 0.5, "absolutely": 0.7, "definitely": 0.7,
	}
	sa.negativeWords = map[string]float64{
		"bad": -0.7, "terrible": -0.8, "awful": -0.9, "horrible": -0.9,
		"hate": -0.8, "angry": -0.8, "mad": -0.7, "furious": -0.9,
		"upset": -0.7, "frustrated": -0.7, "annoyed": -0.6, "annoying": -0.6,
		"disappointed": -0.7, "waste": -0.7, "scam": -0.9, "ridiculous": -0.7,
		"problem": -0.6, "wrong": -0.6, "expensive": -0.5, "never": -0.5,
		"stop": -0.6, "unacceptable": -0.8,
	}
	sa.intensifiers = map[string]float64{
		"very": 1.3, "extremely": 1.5, "really": 1.2, "quite": 1.1,
		"absolutely": 1.4, "completely": 1.4, "totally": 1.4, "so": 1.2,
	}
	sa.negators = map[string]bool{
		"not": true, "no": true, "don't": true, "dont": true,
		"won't": true, "wont": true, "isn't": true, "isnt": true,
		"can't": true, "cant": true, "never": true,
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
