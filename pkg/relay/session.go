package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voicebridge/voicebridge/pkg/voicelive"
)

// ListenerBuffer is the capacity of each downstream listener queue.
// Overflow drops events for that listener only.
const ListenerBuffer = 200

// negotiationTimeout bounds one SDP offer/answer exchange. Variable so
// tests can shorten it.
var negotiationTimeout = 30 * time.Second

// Session is one end-to-end voice/avatar conversation. It owns exactly one
// upstream link, the set of downstream listener queues, and at most one
// in-flight avatar negotiation. Sessions are created and destroyed by the
// Registry only.
type Session struct {
	id   string
	link *voicelive.Link
	log  *slog.Logger
	done chan struct{}

	mu              sync.Mutex
	listeners       map[chan Event]struct{}
	pending         *negotiation
	avatarConnected bool
	closed          bool
}

func newSession(id string, link *voicelive.Link) *Session {
	s := &Session{
		id:        id,
		link:      link,
		log:       slog.Default().With("session_id", id),
		done:      make(chan struct{}),
		listeners: make(map[chan Event]struct{}),
	}
	go s.pump()
	return s
}

// ID returns the immutable session identity.
func (s *Session) ID() string { return s.id }

// AvatarConnected reports whether an avatar negotiation has completed and
// not been torn down since.
func (s *Session) AvatarConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avatarConnected
}

// pump consumes the upstream event stream for the whole session lifetime.
// It is the only goroutine that dispatches events, so listeners observe
// upstream order exactly. A terminal receive error becomes a normalized
// error frame; the link reconnects on the next outbound command and the
// same channel carries the new connection's events.
func (s *Session) pump() {
	for {
		select {
		case <-s.done:
			return
		case inb := <-s.link.Events():
			if inb.Err != nil {
				s.broadcast(errorEvent(inb.Err.Error()))
				continue
			}
			s.dispatch(inb.Event)
		}
	}
}

// Connect eagerly opens the upstream link. Optional: every Send* operation
// reconnects on demand.
func (s *Session) Connect(ctx context.Context) error {
	return s.link.Connect(ctx)
}

// SendUserMessage forwards a text turn and requests a response.
func (s *Session) SendUserMessage(ctx context.Context, text string) error {
	err := s.link.Send(ctx, voicelive.TypeConversationItemCreate, map[string]any{
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
	if err != nil {
		return err
	}
	return s.link.Send(ctx, voicelive.TypeResponseCreate, nil)
}

// SendAudioChunk appends one base64 audio chunk to the upstream input
// buffer. The payload passes through unmodified.
func (s *Session) SendAudioChunk(ctx context.Context, audioBase64 string) error {
	return s.link.Send(ctx, voicelive.TypeInputAudioBufferAppend, map[string]any{"audio": audioBase64})
}

// CommitAudio commits the upstream input audio buffer.
func (s *Session) CommitAudio(ctx context.Context) error {
	return s.link.Send(ctx, voicelive.TypeInputAudioBufferCommit, nil)
}

// ClearAudio clears the upstream input audio buffer.
func (s *Session) ClearAudio(ctx context.Context) error {
	return s.link.Send(ctx, voicelive.TypeInputAudioBufferClear, nil)
}

// RequestResponse asks the agent to generate a response now.
func (s *Session) RequestResponse(ctx context.Context) error {
	return s.link.Send(ctx, voicelive.TypeResponseCreate, nil)
}

// ConnectAvatar runs one SDP offer/answer exchange and returns the decoded
// answer SDP. At most one negotiation is pending per session: a new call
// cancels a pending one (latest caller wins; the superseded caller gets
// ErrNegotiationCancelled). Fails with ErrAvatarAlreadyConnected, without
// sending anything upstream, when an avatar is already attached.
func (s *Session) ConnectAvatar(ctx context.Context, clientSDP string) (string, error) {
	pending, err := s.beginNegotiation()
	if err != nil {
		return "", err
	}
	return s.runNegotiation(ctx, pending, clientSDP)
}

// beginNegotiation registers a fresh negotiation as the session's pending
// one, cancelling any prior pending exchange.
func (s *Session) beginNegotiation() (*negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.avatarConnected {
		return nil, ErrAvatarAlreadyConnected
	}
	if s.pending != nil {
		s.log.Warn("avatar negotiation already in progress, cancelling previous")
		s.pending.fail(ErrNegotiationCancelled)
	}
	n := newNegotiation()
	s.pending = n
	return n, nil
}

// runNegotiation sends the connect command for a registered negotiation and
// awaits its outcome. A negotiation superseded before the command goes out
// is not sent at all.
func (s *Session) runNegotiation(ctx context.Context, n *negotiation, clientSDP string) (string, error) {
	if n.settled() {
		s.clearPending(n)
		<-n.done
		return "", n.err
	}

	payload := map[string]any{
		"client_sdp":        voicelive.EncodeClientSDP(clientSDP),
		"rtc_configuration": map[string]any{"bundle_policy": "max-bundle"},
	}
	s.log.Info("sending avatar connect request")
	if err := s.link.Send(ctx, voicelive.TypeAvatarConnect, payload); err != nil {
		n.fail(err)
		s.clearPending(n)
		return "", err
	}

	timer := time.NewTimer(negotiationTimeout)
	defer timer.Stop()
	select {
	case <-n.done:
	case <-timer.C:
		s.log.Error("avatar negotiation timed out", "timeout", negotiationTimeout)
		n.fail(ErrNegotiationTimeout)
	case <-ctx.Done():
		n.fail(ErrNegotiationCancelled)
	}
	<-n.done
	s.clearPending(n)

	if n.err != nil {
		return "", n.err
	}

	if err := voicelive.ValidateSDP(n.sdp); err != nil {
		// The browser's peer connection is the final arbiter.
		s.log.Warn("answer SDP failed structural validation", "error", err)
	}

	s.mu.Lock()
	s.avatarConnected = true
	s.mu.Unlock()
	s.log.Info("avatar negotiation successful")
	return n.sdp, nil
}

// clearPending unregisters a negotiation if it is still the current one.
func (s *Session) clearPending(n *negotiation) {
	s.mu.Lock()
	if s.pending == n {
		s.pending = nil
	}
	s.mu.Unlock()
}

// DisconnectAvatar tears the avatar down. A no-op (with a warning) when no
// avatar is connected.
func (s *Session) DisconnectAvatar(ctx context.Context) error {
	s.mu.Lock()
	connected := s.avatarConnected
	s.mu.Unlock()
	if !connected {
		s.log.Warn("avatar not connected, nothing to disconnect")
		return nil
	}

	if err := s.link.Send(ctx, voicelive.TypeAvatarDisconnect, map[string]any{}); err != nil {
		return err
	}

	s.mu.Lock()
	s.avatarConnected = false
	// A pending negotiation should not exist here; cancel defensively.
	if s.pending != nil {
		s.pending.fail(ErrNegotiationCancelled)
		s.pending = nil
	}
	s.mu.Unlock()
	s.log.Info("avatar disconnected")
	return nil
}

// AddListener registers a new downstream listener queue.
func (s *Session) AddListener() chan Event {
	ch := make(chan Event, ListenerBuffer)
	s.mu.Lock()
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// RemoveListener deregisters a listener queue. The session and upstream
// link persist across listener detach.
func (s *Session) RemoveListener(ch chan Event) {
	s.mu.Lock()
	delete(s.listeners, ch)
	s.mu.Unlock()
}

// broadcast delivers one event to a snapshot of the current listeners. A
// full queue drops the event for that listener only; delivery never blocks
// the pipeline and never raises.
func (s *Session) broadcast(ev Event) {
	s.mu.Lock()
	snapshot := make([]chan Event, 0, len(s.listeners))
	for ch := range s.listeners {
		snapshot = append(snapshot, ch)
	}
	s.mu.Unlock()

	for _, ch := range snapshot {
		select {
		case ch <- ev:
		default:
			s.log.Warn("dropping event for slow consumer", "type", ev.Type)
		}
	}
}

// Close releases the session: cancels any pending negotiation, stops the
// pump and closes the upstream link. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.pending != nil {
		s.pending.fail(ErrNegotiationCancelled)
		s.pending = nil
	}
	s.mu.Unlock()

	close(s.done)
	s.link.Disconnect()
}
