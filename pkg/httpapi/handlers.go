package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"call-analysis-engine/pkg/amd"
	"call-analysis-engine/pkg/engine"
)

var errBadRequest = errors.New("bad request")

type startCallRequest struct {
	CallID    string `json:"call_id"`
	Direction string `json:"direction"`
}

type confirmOutcomeRequest struct {
	Outcome string `json:"outcome"`
}

// handleStartCall creates the analysis session for a call. The dialer sends
// this on the call-started lifecycle event, before any media arrives.
func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.CallID == "" {
		s.respondError(w, fmt.Errorf("%w: call_id is required", errBadRequest))
		return
	}

	direction := engine.Direction(req.Direction)
	switch direction {
	case engine.DirectionInbound, engine.DirectionOutbound:
	case "":
		direction = engine.DirectionOutbound
	default:
		s.respondError(w, fmt.Errorf("%w: unknown direction %q", errBadRequest, req.Direction))
		return
	}

	sess, err := s.orch.StartCall(req.CallID, direction)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"call_id":    sess.ID,
		"direction":  sess.Direction,
		"started_at": sess.StartedAt,
	})
}

// handleEndCall marks the call ended. Analysis state remains queryable until
// the archive grace period elapses.
func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	if err := s.orch.EndCall(callID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"call_id": callID, "phase": string(engine.PhaseEnded)})
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"calls": s.orch.Sessions()})
}

// handleAnalysis returns the full analysis snapshot for one call: the AMD
// verdict and its history, coaching recommendations, compliance flags, and
// the audio ingest counters.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	verdict, err := s.orch.Verdict(callID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	history, err := s.orch.VerdictHistory(callID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	recommendations, err := s.orch.Recommendations(callID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	flags, err := s.orch.Flags(callID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	stats, err := s.orch.BufferStats(callID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	transcript, err := s.orch.Transcript(callID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"call_id":         callID,
		"verdict":         verdict,
		"verdict_history": history,
		"recommendations": recommendations,
		"flags":           flags,
		"transcript":      transcript,
		"buffer_stats":    stats,
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	transcript, err := s.orch.Transcript(callID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"call_id":  callID,
		"segments": transcript,
	})
}

// handleAcknowledge marks a coaching recommendation as seen by the agent.
// Acknowledging twice is a no-op, not an error.
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	recID, err := uuid.Parse(chi.URLParam(r, "recommendationID"))
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: invalid recommendation ID", errBadRequest))
		return
	}

	if err := s.orch.Acknowledge(callID, recID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"acknowledged": recID.String()})
}

// handleConfirmOutcome records the human-confirmed classification for a
// completed call, feeding estimator accuracy.
func (s *Server) handleConfirmOutcome(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	var req confirmOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	confirmed := amd.Classification(req.Outcome)
	if confirmed != amd.VerdictHuman && confirmed != amd.VerdictMachine {
		s.respondError(w, fmt.Errorf("%w: outcome must be %q or %q", errBadRequest, amd.VerdictHuman, amd.VerdictMachine))
		return
	}

	if err := s.orch.ConfirmOutcome(callID, confirmed); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"call_id":   callID,
		"confirmed": string(confirmed),
	})
}

// handleDashboard returns the operational overview: accuracy tracker
// snapshot plus the live session list.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"accuracy": s.tracker.Snapshot(),
		"sessions": s.orch.Sessions(),
	})
}
