package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/gabrielmiguelok/golivecatalog/pkg/live"
	"github.com/gabrielmiguelok/golivecatalog/pkg/logging"
)

const (
	maxMessageSize = 64 * 1024
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
)

// ClientMessage is one event sent by a live client.
type ClientMessage struct {
	Ref     string         `json:"ref,omitempty"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ServerMessage is sent to a live client. Replies carry the ref of the event
// they answer; pushes have none.
type ServerMessage struct {
	Ref     string         `json:"ref,omitempty"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// Server message events.
const (
	EventMounted = "mounted"
	EventView    = "view"
	EventError   = "error"
)

// handleLive mounts the named component and drives it over a WebSocket until
// the client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("component")
	comp, err := s.registry.Create(name)
	if err != nil {
		http.Error(w, "unknown component", http.StatusNotFound)
		return
	}

	if !s.isOriginAllowed(r.Header.Get("Origin"), r.Host) {
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The origin was checked above against the configured list.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", logging.Err(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageSize)

	params := paramsFrom(r.URL.Query())
	if params.Get("session") == "" {
		params["session"] = uuid.NewString()
	}
	logger := logging.L(r.Context()).With(
		logging.String("component", name),
		logging.String("session", params.Get("session")),
	)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := make(chan struct{}, 1)
	notify := func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}

	if err := comp.Mount(ctx, params, notify); err != nil {
		logger.Error("mount failed", logging.Err(err))
		conn.Close(websocket.StatusInternalError, "mount failed")
		return
	}
	defer func() {
		if err := comp.Terminate(context.Background()); err != nil {
			logger.Warn("terminate failed", logging.Err(err))
		}
	}()

	if err := s.write(ctx, conn, ServerMessage{
		Event: EventMounted,
		Payload: map[string]any{
			"component": name,
			"session":   params.Get("session"),
			"view":      comp.View(),
		},
	}); err != nil {
		return
	}
	logger.Debug("live session mounted")

	go s.pushLoop(ctx, conn, comp, updates)

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				logger.Debug("live session read ended", logging.Err(err))
			}
			return
		}

		if err := comp.HandleEvent(ctx, msg.Event, msg.Payload); err != nil {
			logger.Debug("event rejected", logging.String("event", msg.Event), logging.Err(err))
			if err := s.write(ctx, conn, ServerMessage{
				Ref:     msg.Ref,
				Event:   EventError,
				Payload: map[string]any{"event": msg.Event, "message": err.Error()},
			}); err != nil {
				return
			}
		}

		if err := s.write(ctx, conn, ServerMessage{Ref: msg.Ref, Event: EventView, Payload: comp.View()}); err != nil {
			return
		}
	}
}

// pushLoop sends asynchronous view changes and keeps the connection alive.
func (s *Server) pushLoop(ctx context.Context, conn *websocket.Conn, comp live.Component, updates <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			if err := s.write(ctx, conn, ServerMessage{Event: EventView, Payload: comp.View()}); err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, msg ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

// isOriginAllowed accepts same-origin requests, requests without an Origin
// header and the configured origins. "*" allows any origin.
func (s *Server) isOriginAllowed(origin, requestHost string) bool {
	if s.cfg.InsecureDevMode || origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Host == requestHost {
		return true
	}

	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if allowedURL, err := url.Parse(allowed); err == nil && allowedURL.Host != "" && allowedURL.Host == originURL.Host {
			return true
		}
	}
	return false
}

func paramsFrom(q url.Values) live.Params {
	params := make(live.Params, len(q))
	for key := range q {
		params[key] = q.Get(key)
	}
	return params
}
