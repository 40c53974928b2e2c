package voicelive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Link is the single upstream connection for one relay session. At most one
// WebSocket is live at a time; a replaced connection is always closed first.
//
// Liveness is a single state transition driven by the connection lifecycle:
// the handle is non-nil exactly while the connection is considered open, and
// the receive loop clears it on any terminal read error so the next Send
// reconnects.
type Link struct {
	sessionID string
	cfg       *Config
	tokens    TokenProvider
	dialer    websocket.Dialer
	log       *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	events chan Inbound
}

// NewLink creates a Link for one session. The connection is not opened until
// Connect or the first Send.
func NewLink(sessionID string, cfg *Config, tokens TokenProvider) *Link {
	return &Link{
		sessionID: sessionID,
		cfg:       cfg,
		tokens:    tokens,
		dialer:    websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		log:       slog.Default().With("session_id", sessionID),
		events:    make(chan Inbound, 256),
	}
}

// Events returns the inbound event stream. The channel persists across
// reconnects; a terminal receive error is delivered as Inbound.Err and the
// loop for that connection stops.
func (l *Link) Events() <-chan Inbound {
	return l.events
}

// Connected reports whether the upstream connection is currently open.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Connect opens the upstream connection. It is idempotent: a no-op when the
// link is already open. The link mutex is held through token acquisition,
// dialing and the initial session.update, so commands issued concurrently
// wait until the session is configured before they are written.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connectLocked(ctx)
}

func (l *Link) connectLocked(ctx context.Context) error {
	if l.conn != nil {
		return nil
	}

	aiToken, err := l.tokens.Token(ctx, ScopeAI)
	if err != nil {
		return fmt.Errorf("voicelive: acquire AI token: %w", err)
	}
	mlToken, err := l.tokens.Token(ctx, ScopeML)
	if err != nil {
		return fmt.Errorf("voicelive: acquire ML token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+aiToken)
	header.Set("x-ms-client-request-id", uuid.NewString())

	conn, resp, err := l.dialer.DialContext(ctx, l.cfg.realtimeURL(mlToken), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("voicelive: dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("voicelive: dial: %w", err)
	}
	l.conn = conn
	go l.readLoop(conn)

	// Initial configuration. Reconnection is disallowed here to avoid
	// recursing back into connect.
	if err := l.writeLocked(conn, TypeSessionUpdate, map[string]any{"session": l.cfg.sessionDocument()}); err != nil {
		conn.Close()
		l.conn = nil
		return fmt.Errorf("voicelive: send session.update: %w", err)
	}
	l.log.Info("connected to voice live")
	return nil
}

// Send writes one command envelope. A closed link is reconnected first.
func (l *Link) Send(ctx context.Context, commandType string, data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		if err := l.connectLocked(ctx); err != nil {
			return err
		}
	}
	if l.conn == nil {
		return ErrNotConnected
	}
	return l.writeLocked(l.conn, commandType, data)
}

// writeLocked frames and writes one command. Callers hold l.mu.
func (l *Link) writeLocked(conn *websocket.Conn, commandType string, data map[string]any) error {
	payload := map[string]any{
		"event_id": newEventID(),
		"type":     commandType,
	}
	for k, v := range data {
		payload[k] = v
	}
	if l.log.Enabled(context.Background(), slog.LevelDebug) {
		if b, err := json.Marshal(payload); err == nil {
			s := string(b)
			if len(s) > 500 {
				s = s[:500] + "..."
			}
			l.log.Debug("sending command", "content", s)
		}
	}
	return conn.WriteJSON(payload)
}

// Disconnect closes the connection and stops its receive loop. The link can
// be reopened by a later Connect or Send.
func (l *Link) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return
	}
	l.conn.Close()
	l.conn = nil
	l.log.Info("disconnected from voice live")
}

// readLoop reads frames from one connection until it dies. Unparseable
// frames are dropped with a warning; a read error is terminal for this
// connection only, and clears the handle so the next operation reconnects.
func (l *Link) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			l.mu.Lock()
			deliberate := l.conn != conn
			if !deliberate {
				l.conn = nil
			}
			l.mu.Unlock()
			if deliberate {
				return
			}
			l.log.Error("upstream receive loop ended", "error", err)
			l.deliver(Inbound{Err: err})
			return
		}

		var event ServerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			l.log.Warn("dropping unparseable upstream frame", "error", err)
			continue
		}
		event.Raw = message
		l.deliver(Inbound{Event: &event})
	}
}

func (l *Link) deliver(inb Inbound) {
	select {
	case l.events <- inb:
	default:
		eventType := ""
		if inb.Event != nil {
			eventType = inb.Event.Type
		}
		l.log.Warn("dropping upstream event, consumer not keeping up", "type", eventType)
	}
}

// newEventID derives a command id from the current timestamp, matching the
// upstream convention for client event ids.
func newEventID() string {
	return fmt.Sprintf("evt_%d", time.Now().UnixMilli())
}
