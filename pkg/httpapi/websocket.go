package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"call-analysis-engine/pkg/audio"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 60 * time.Second

	// Media frames are ~20ms of G.711 plus JSON framing
	maxMediaFrameSize = 8192
)

// handleMediaSocket ingests the call's audio stream. Each text frame is one
// JSON-encoded chunk; the payload is base64 inside the JSON. Ingest never
// blocks on downstream analysis, so the read loop keeps pace with the
// provider. Closing the socket does not end the call: the dialer may
// reconnect mid-call, and the lifecycle is driven by the REST endpoints.
func (s *Server) handleMediaSocket(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("Failed to upgrade media connection")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMediaFrameSize)
	log := s.log.WithField("call_uuid", callID)
	log.Info("Media stream connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Media stream closed unexpectedly")
			} else {
				log.Info("Media stream closed")
			}
			return
		}

		var chunk audio.Chunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			log.WithError(err).Warn("Discarded malformed media frame")
			continue
		}
		if chunk.Timestamp.IsZero() {
			chunk.Timestamp = time.Now()
		}

		if err := s.orch.Ingest(callID, chunk); err != nil {
			// Unknown call or call past active: tell the provider to stop
			log.WithError(err).Warn("Media stream rejected")
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleEventSocket streams the call's analysis events (transcript segments,
// verdict changes, coaching recommendations, compliance flags, the final
// summary) to a dashboard client. A slow client loses events rather than
// stalling the pipeline.
func (s *Server) handleEventSocket(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	events, cancel, err := s.orch.Subscribe(callID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Error("Failed to upgrade event connection")
		return
	}
	defer conn.Close()

	log := s.log.WithField("call_uuid", callID)
	log.Info("Event feed connected")

	// Reader goroutine only watches for the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Session archived
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call archived"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.WithError(err).Debug("Event feed write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Info("Event feed disconnected")
			return
		}
	}
}
