package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"hifz-quiz-service/internal/app"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionNumber int    `json:"questionNumber"`
	OptionID       string `json:"optionId"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// wsConn owns the outbound side of one connection. Everything written to the
// socket goes through send so only the writer goroutine touches conn.
type wsConn struct {
	send    chan outboundMessage
	closing chan struct{}

	forwarders  sync.WaitGroup
	sessionID   string
	unsubscribe func()
}

func (c *wsConn) push(msg outboundMessage) {
	select {
	case c.send <- msg:
	case <-c.closing:
	}
}

func (c *wsConn) pushError(err error) {
	payload, _ := classify(err)
	c.push(outboundMessage{Type: "error", Payload: payload})
}

// follow forwards the session's events to the socket, replacing any previous
// subscription.
func (c *wsConn) follow(sessionID string, events <-chan app.Event, cancel func()) {
	c.stopFollowing()
	c.sessionID = sessionID
	c.unsubscribe = cancel
	c.forwarders.Add(1)
	go func() {
		defer c.forwarders.Done()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				c.push(outboundMessage{Type: ev.Type, Payload: ev})
			case <-c.closing:
				return
			}
		}
	}()
}

func (c *wsConn) stopFollowing() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// ServeWS upgrades the request and drives one player's quiz sessions over
// the socket. Inbound messages: start, answer, retry, abandon.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	userName := r.URL.Query().Get("name")
	if playerID == "" || userName == "" {
		http.Error(w, "missing playerId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	c := &wsConn{
		send:    make(chan outboundMessage, 16),
		closing: make(chan struct{}),
	}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("ws write error", "player", playerID, "error", err)
				return
			}
		}
	}()

	if profile, err := h.service.Profile(ctx, playerID); err == nil {
		c.push(outboundMessage{Type: "profile", Payload: profile})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var settings app.StartSettings
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &settings); err != nil {
					c.push(outboundMessage{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid start payload"}})
					continue
				}
			}
			settings.PlayerID = playerID
			settings.UserName = userName
			state, err := h.service.StartSession(ctx, settings)
			if err != nil {
				c.pushError(err)
				continue
			}
			events, cancel, err := h.service.Subscribe(ctx, state.ID)
			if err != nil {
				c.pushError(err)
				continue
			}
			c.follow(state.ID, events, cancel)

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.push(outboundMessage{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "invalid answer payload"}})
				continue
			}
			// Feedback reaches the client through the session's event stream.
			if _, err := h.service.SubmitAnswer(ctx, c.sessionID, payload.QuestionNumber, payload.OptionID); err != nil {
				c.pushError(err)
			}

		case "retry":
			if _, err := h.service.Retry(ctx, c.sessionID); err != nil {
				c.pushError(err)
			}

		case "abandon":
			if err := h.service.Abandon(ctx, c.sessionID); err != nil {
				c.pushError(err)
				continue
			}
			c.stopFollowing()
			c.sessionID = ""
			c.push(outboundMessage{Type: "abandoned"})

		default:
			c.push(outboundMessage{Type: "error", Payload: errorPayload{Code: "bad_request", Message: "unsupported message type"}})
		}
	}

	// A dropped connection ends the attempt.
	if c.sessionID != "" {
		_ = h.service.Abandon(ctx, c.sessionID)
	}
	close(c.closing)
	c.stopFollowing()
	c.forwarders.Wait()
	close(c.send)
	<-writerDone
}
