package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/studiogamma/centralino/internal/config"
	"github.com/studiogamma/centralino/internal/dialog"
	"github.com/studiogamma/centralino/internal/domain"
	"github.com/studiogamma/centralino/internal/observability"
	"github.com/studiogamma/centralino/internal/protocol"
	"github.com/studiogamma/centralino/internal/registry"
)

// Orchestrator processes one conversation turn.
type Orchestrator interface {
	Process(ctx context.Context, req domain.TurnRequest, conv domain.Context) (domain.TurnResult, domain.Context)
}

type Server struct {
	cfg          config.Config
	calls        *registry.Manager
	orchestrator Orchestrator
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, calls *registry.Manager, orchestrator Orchestrator, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		calls:        calls,
		orchestrator: orchestrator,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a call session if
				// the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/calls/{id}/turns", s.handleTurn)
	r.Post("/v1/calls/{id}/end", s.handleEndCall)
	r.Get("/v1/calls/ws", s.handleCallWS)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_calls": s.calls.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

type turnRequest struct {
	Utterance   string `json:"utterance"`
	CallerPhone string `json:"caller_phone,omitempty"`
}

type turnResponse struct {
	SessionID  string  `json:"session_id"`
	ReplyText  string  `json:"reply_text"`
	Intent     string  `json:"intent"`
	Action     string  `json:"action_taken"`
	Confidence float64 `json:"confidence"`
	TurnCount  int     `json:"turn_count"`
	Ended      bool    `json:"ended"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	rec := s.calls.GetOrCreate(id)
	if rec.TurnCount == 0 {
		s.metrics.CallEvent("created")
		s.updateActiveCalls()
	}

	// Hanging up is a transport decision: a short goodbye after at least one
	// real turn is the closing signal, not a new request.
	final := IsFarewell(req.Utterance) && rec.TurnCount > 0

	res, conv := s.orchestrator.Process(r.Context(), domain.TurnRequest{
		Utterance:   req.Utterance,
		SessionID:   id,
		CallerPhone: req.CallerPhone,
		FinalTurn:   final,
	}, rec.Context)
	if err := s.calls.Update(id, conv); err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}

	if final {
		if _, err := s.calls.End(id); err == nil {
			s.metrics.CallEvent("ended")
			s.updateActiveCalls()
		}
	}

	respondJSON(w, http.StatusOK, turnResponse{
		SessionID:  id,
		ReplyText:  res.ReplyText,
		Intent:     string(res.Intent),
		Action:     string(res.Action),
		Confidence: res.Confidence,
		TurnCount:  rec.TurnCount + 1,
		Ended:      final,
	})
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}

	rec, err := s.calls.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	s.metrics.CallEvent("ended")
	s.updateActiveCalls()
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": rec.SessionID,
		"turn_count": rec.TurnCount,
		"started_at": rec.StartedAt,
		"farewell":   dialog.ReplyFarewell,
	})
}

func (s *Server) handleCallWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.CallEvent("ws_connected")
	defer s.metrics.CallEvent("ws_disconnected")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.writeWS(conn, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ClientUtterance:
			if !s.handleWSUtterance(r.Context(), conn, msg) {
				return
			}
		case protocol.ClientControl:
			if msg.Action == protocol.ControlEndCall {
				s.endWSCall(conn, msg.SessionID, "client_request")
				return
			}
			s.writeWS(conn, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: msg.SessionID,
				Code:      "unsupported_action",
				Detail:    msg.Action,
			})
		}
	}
}

// handleWSUtterance runs one websocket turn; false means the call ended and
// the connection should close.
func (s *Server) handleWSUtterance(ctx context.Context, conn *websocket.Conn, msg protocol.ClientUtterance) bool {
	rec := s.calls.GetOrCreate(msg.SessionID)
	if rec.TurnCount == 0 {
		s.metrics.CallEvent("created")
		s.updateActiveCalls()
	}

	final := IsFarewell(msg.Text) && rec.TurnCount > 0

	res, conv := s.orchestrator.Process(ctx, domain.TurnRequest{
		Utterance:   msg.Text,
		SessionID:   msg.SessionID,
		CallerPhone: msg.CallerPhone,
		FinalTurn:   final,
	}, rec.Context)
	if err := s.calls.Update(msg.SessionID, conv); err != nil {
		s.writeWS(conn, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: msg.SessionID,
			Code:      "call_not_found",
			Detail:    err.Error(),
		})
		return false
	}

	if final {
		s.endWSCall(conn, msg.SessionID, "farewell")
		return false
	}

	s.writeWS(conn, protocol.AssistantReply{
		Type:       protocol.TypeAssistantReply,
		SessionID:  msg.SessionID,
		Text:       res.ReplyText,
		Intent:     string(res.Intent),
		Action:     string(res.Action),
		Confidence: res.Confidence,
		TurnCount:  rec.TurnCount + 1,
	})
	return true
}

func (s *Server) endWSCall(conn *websocket.Conn, sessionID, reason string) {
	turns := 0
	if rec, err := s.calls.End(sessionID); err == nil {
		turns = rec.TurnCount
		s.metrics.CallEvent("ended")
		s.updateActiveCalls()
	}
	s.writeWS(conn, protocol.CallEnded{
		Type:      protocol.TypeCallEnded,
		SessionID: sessionID,
		Reason:    reason,
		Farewell:  dialog.ReplyFarewell,
		TurnCount: turns,
	})
}

func (s *Server) writeWS(conn *websocket.Conn, msg any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = conn.WriteJSON(msg)
}

func (s *Server) updateActiveCalls() {
	if s.metrics == nil {
		return
	}
	s.metrics.ActiveCalls.Set(float64(s.calls.ActiveCount()))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
