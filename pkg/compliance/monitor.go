package compliance

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/config"
	"call-analysis-engine/pkg/stt"
)

// RiskType classifies what a compliance flag is about.
type RiskType string

const (
	// Actionable risks
	RiskDNCRequest        RiskType = "dnc_request"
	RiskConsentRevoked    RiskType = "consent_revoked"
	RiskMissingDisclosure RiskType = "missing_disclosure"

	// Informational
	RiskDisclosureGiven RiskType = "disclosure_given"
	RiskSensitiveData   RiskType = "sensitive_data"
)

// Flag is one compliance finding. Flags are never deleted, only appended;
// together they form the call's audit trail.
type Flag struct {
	ID             uuid.UUID     `json:"id"`
	RiskType       RiskType      `json:"risk_type"`
	MatchedPhrase  string        `json:"matched_phrase"`
	Speaker        string        `json:"speaker,omitempty"`
	RequiresAction bool          `json:"requires_action"`
	Offset         time.Duration `json:"offset"`
	At             time.Time     `json:"at"`
}

// Contact phrases that revoke calling consent or request do-not-call status.
var dncPhrases = []string{
	"stop calling",
	"do not call",
	"don't call me",
	"take me off your list",
	"remove me from your list",
	"put me on the do not call",
	"no me llames",
	"ne m'appelez plus",
}

// Contact phrases that revoke recording consent.
var revocationPhrases = []string{
	"do not record",
	"stop recording",
	"i do not consent",
	"i don't consent",
	"i revoke my consent",
}

// Agent phrases that satisfy the mandated recording disclosure.
var disclosurePhrases = []string{
	"call may be recorded",
	"call is being recorded",
	"calls are recorded",
	"recorded for quality",
	"on a recorded line",
	"esta llamada puede ser grabada",
}

// Phrases that indicate sensitive data moving over the call. Informational:
// flagged for review, not actionable in-call.
var sensitivePhrases = []string{
	"credit card",
	"card number",
	"social security",
	"bank account",
	"routing number",
	"date of birth",
}

// Monitor scans one call's transcript for compliance risks. All findings are
// appended to an immutable flag list.
type Monitor struct {
	logger *logrus.Entry
	cfg    *config.ComplianceConfig
	callID string
	audit  *AuditWriter

	mu    sync.Mutex
	flags []Flag

	disclosureHeard   bool
	disclosureFlagged bool
}

// NewMonitor creates a compliance monitor for one call. The audit writer is
// shared across calls and may be nil.
func NewMonitor(logger *logrus.Logger, cfg *config.ComplianceConfig, callID string, audit *AuditWriter) *Monitor {
	return &Monitor{
		logger: logger.WithField("component", "compliance").WithField("call_uuid", callID),
		cfg:    cfg,
		callID: callID,
		audit:  audit,
	}
}

// ObserveSegment scans one transcript segment and returns any flags it
// raised. Gap markers are skipped.
func (m *Monitor) ObserveSegment(seg stt.Segment) []Flag {
	if seg.Gap || strings.TrimSpace(seg.Text) == "" {
		return nil
	}
	text := strings.ToLower(seg.Text)

	m.mu.Lock()
	defer m.mu.Unlock()

	var raised []Flag

	if seg.Speaker == stt.SpeakerAgent {
		if phrase := matchPhrase(text, disclosurePhrases); phrase != "" && !m.disclosureHeard {
			m.disclosureHeard = true
			raised = append(raised, m.appendLocked(RiskDisclosureGiven, phrase, seg, false))
		}
	} else {
		if phrase := matchPhrase(text, dncPhrases); phrase != "" {
			raised = append(raised, m.appendLocked(RiskDNCRequest, phrase, seg, true))
		}
		if phrase := matchPhrase(text, revocationPhrases); phrase != "" {
			raised = append(raised, m.appendLocked(RiskConsentRevoked, phrase, seg, true))
		}
	}

	if phrase := matchPhrase(text, sensitivePhrases); phrase != "" {
		raised = append(raised, m.appendLocked(RiskSensitiveData, phrase, seg, false))
	}

	// Transcript time advancing past the deadline also trips the
	// disclosure check, so a talkative call cannot outrun it
	raised = append(raised, m.checkDisclosureLocked(seg.End)...)

	return raised
}

// CheckDeadline verifies the mandated disclosure was heard within the
// configured window after connect. Called periodically by the pipeline with
// the elapsed call time; the resulting flag is raised at most once.
func (m *Monitor) CheckDeadline(elapsed time.Duration) []Flag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkDisclosureLocked(elapsed)
}

func (m *Monitor) checkDisclosureLocked(elapsed time.Duration) []Flag {
	if m.disclosureHeard || m.disclosureFlagged || elapsed <= m.cfg.DisclosureDeadline {
		return nil
	}
	m.disclosureFlagged = true
	flag := m.appendLocked(RiskMissingDisclosure, "", stt.Segment{End: elapsed}, true)
	return []Flag{flag}
}

func (m *Monitor) appendLocked(risk RiskType, phrase string, seg stt.Segment, requiresAction bool) Flag {
	flag := Flag{
		ID:             uuid.New(),
		RiskType:       risk,
		MatchedPhrase:  phrase,
		Speaker:        seg.Speaker,
		RequiresAction: requiresAction,
		Offset:         seg.End,
		At:             time.Now(),
	}
	m.flags = append(m.flags, flag)

	if m.audit != nil {
		if err := m.audit.Append(m.callID, flag); err != nil {
			m.logger.WithError(err).Error("Failed to persist compliance flag")
		}
	}

	level := m.logger.WithFields(logrus.Fields{
		"risk_type": risk,
		"phrase":    phrase,
	})
	if requiresAction {
		level.Warn("Compliance flag raised")
	} else {
		level.Info("Compliance flag raised")
	}
	return flag
}

// Flags returns a snapshot of all flags for the call, oldest first.
func (m *Monitor) Flags() []Flag {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Flag, len(m.flags))
	copy(out, m.flags)
	return out
}

// DisclosureHeard reports whether the mandated disclosure was detected.
func (m *Monitor) DisclosureHeard() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disclosureHeard
}

func matchPhrase(text string, phrases []string) string {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p
		}
	}
	return ""
}
