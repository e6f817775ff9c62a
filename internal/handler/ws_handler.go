package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/middleware"
	"github.com/stemsi/litmusq-backend/internal/model"
	"github.com/stemsi/litmusq-backend/internal/quiz"
	"github.com/stemsi/litmusq-backend/internal/response"
	"github.com/stemsi/litmusq-backend/internal/service"
	ws "github.com/stemsi/litmusq-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SessionEvents delivers the submit notifications of one session.
type SessionEvents interface {
	Subscribe(ctx context.Context, id uuid.UUID) *redis.PubSub
}

// WSHandler streams a running session: commands in, state and countdown out.
type WSHandler struct {
	sessionService *service.SessionService
	events         SessionEvents
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, events SessionEvents, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		events:         events,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// stream is the state of one connected client.
type stream struct {
	conn      *ws.Conn
	userID    int
	sessionID uuid.UUID
	log       zerolog.Logger
	ended     sync.Once
}

// SessionStream godoc
// WS /ws/v1/sessions/:id/stream
// Upgrades to WebSocket. Every command is answered with the full session
// state; the countdown is pushed at the session's refresh interval and a
// submitted event is sent once the session ends, manually or on expiry.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	sess, err := h.sessionService.Get(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	st := &stream{
		conn:      ws.Wrap(raw),
		userID:    claims.UserID,
		sessionID: id,
		log: h.log.With().
			Int("user_id", claims.UserID).
			Str("session_id", id.String()).
			Logger(),
	}
	st.log.Info().Msg("Client connected")

	// Subscribe before the first state so no submit event can slip between them.
	sub := h.events.Subscribe(ctx, id)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		st.log.Warn().Err(err).Msg("Session event subscription failed")
	}

	h.sendState(st, sess)
	if sess.Submitted() {
		h.sendSubmitted(ctx, st, false)
		return
	}

	go h.forwardEvents(ctx, st, sub.Channel())
	if sess.Clock.Timed() {
		go h.countdown(ctx, st, sess.Clock)
	}

	for {
		var req ws.Request
		if err := st.conn.ReadRequest(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				st.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				st.log.Debug().Msg("Connection closed")
			}
			return
		}
		h.dispatch(ctx, st, &req)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, st *stream, req *ws.Request) {
	svc := h.sessionService

	var (
		sess *quiz.Session
		err  error
	)
	switch req.Action {
	case ws.ActionPing:
		st.conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionState:
		sess, err = svc.Get(ctx, st.userID, st.sessionID)
	case ws.ActionNext:
		sess, err = svc.Next(ctx, st.userID, st.sessionID)
	case ws.ActionPrevious:
		sess, err = svc.Previous(ctx, st.userID, st.sessionID)
	case ws.ActionGoTo, ws.ActionClear, ws.ActionMark, ws.ActionAnswer:
		if req.Index == nil {
			st.conn.WriteError(string(response.ErrValidation), "index is required")
			return
		}
		idx := *req.Index
		switch req.Action {
		case ws.ActionGoTo:
			sess, err = svc.GoTo(ctx, st.userID, st.sessionID, idx)
		case ws.ActionClear:
			sess, err = svc.Clear(ctx, st.userID, st.sessionID, idx)
		case ws.ActionMark:
			sess, err = svc.ToggleMark(ctx, st.userID, st.sessionID, idx)
		default:
			var opt quiz.Option
			if opt, err = quiz.ParseOption(req.Option); err == nil {
				sess, err = svc.Answer(ctx, st.userID, st.sessionID, idx, opt)
			}
		}
	case ws.ActionSubmit:
		if _, err = svc.Submit(ctx, st.userID, st.sessionID); err == nil {
			h.sendSubmitted(ctx, st, false)
			return
		}
	default:
		st.conn.WriteError(string(response.ErrInvalidPayload), "unknown action")
		return
	}

	if err != nil {
		_, code := classify(err)
		if code == response.ErrInternal {
			st.log.Error().Err(err).Str("action", string(req.Action)).Msg("Command failed")
		}
		st.conn.WriteError(string(code), response.GetMessage(code))
		return
	}

	h.sendState(st, sess)
	if sess.Submitted() {
		// The command found the deadline already passed.
		h.sendSubmitted(ctx, st, true)
	}
}

// forwardEvents relays submit events published by other writers, such as
// the expiry worker or a second tab.
func (h *WSHandler) forwardEvents(ctx context.Context, st *stream, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event model.SessionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				st.log.Warn().Err(err).Msg("Malformed session event")
				continue
			}
			if event.Type == model.SessionEventSubmitted {
				h.sendSubmitted(ctx, st, event.Auto)
			}
		}
	}
}

// countdown pushes the remaining time, faster as the deadline nears. At
// zero it reloads the session, which submits it.
func (h *WSHandler) countdown(ctx context.Context, st *stream, clock quiz.Clock) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := time.Now()
		left, _ := clock.Remaining(now)
		interval := clock.RefreshInterval(now)
		if err := st.conn.WriteTyped(ws.TickResponse{
			Event:            ws.EventTick,
			RemainingSeconds: left.Seconds(),
			RefreshSeconds:   interval.Seconds(),
		}); err != nil {
			return
		}

		if left <= 0 {
			sess, err := h.sessionService.Get(ctx, st.userID, st.sessionID)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					st.log.Warn().Err(err).Msg("Expiry reload failed")
				}
				return
			}
			if sess.Submitted() {
				h.sendSubmitted(ctx, st, true)
			}
			return
		}

		if interval > left {
			interval = left
		}
		timer.Reset(interval)
	}
}

func (h *WSHandler) sendState(st *stream, sess *quiz.Session) {
	st.conn.WriteTyped(ws.StateResponse{
		Event:   ws.EventState,
		Session: model.NewSessionView(sess, time.Now()),
	})
}

// sendSubmitted writes the submitted event at most once per connection.
func (h *WSHandler) sendSubmitted(ctx context.Context, st *stream, auto bool) {
	st.ended.Do(func() {
		out := ws.SubmittedResponse{Event: ws.EventSubmitted, SessionID: st.sessionID, Auto: auto}
		if res, err := h.sessionService.Submit(ctx, st.userID, st.sessionID); err == nil {
			entry := model.NewHistoryEntry(*res)
			out.Result = &entry
		} else {
			st.log.Warn().Err(err).Msg("Result unavailable for submitted event")
		}
		st.conn.WriteTyped(out)
	})
}
