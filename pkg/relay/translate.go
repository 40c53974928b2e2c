package relay

import (
	"fmt"

	"github.com/voicebridge/voicebridge/pkg/voicelive"
)

// translator turns one upstream event into relay side effects: usually a
// single broadcast, for avatar events also negotiation bookkeeping.
type translator func(s *Session, ev *voicelive.ServerEvent)

// broadcastOnly builds a translator that emits a fixed transform of the
// upstream event.
func broadcastOnly(transform func(ev *voicelive.ServerEvent) Event) translator {
	return func(s *Session, ev *voicelive.ServerEvent) {
		s.broadcast(transform(ev))
	}
}

// translators is the dispatch table from upstream event type to handler.
// Types without an entry fall through to the passthrough default.
var translators = map[string]translator{
	voicelive.TypeError: broadcastOnly(func(ev *voicelive.ServerEvent) Event {
		return Event{Type: EventError, Payload: ev.Raw}
	}),
	voicelive.TypeResponseAudioDelta: broadcastOnly(func(ev *voicelive.ServerEvent) Event {
		return Event{Type: EventAssistantAudioDelta, Delta: ev.Delta}
	}),
	voicelive.TypeResponseAudioDone: broadcastOnly(func(ev *voicelive.ServerEvent) Event {
		return Event{Type: EventAssistantAudioDone, Payload: ev.Raw}
	}),
	voicelive.TypeResponseAudioTranscriptDelta: broadcastOnly(func(ev *voicelive.ServerEvent) Event {
		return Event{Type: EventAssistantTranscriptDelta, Delta: ev.Delta, ItemID: ev.ItemID}
	}),
	voicelive.TypeResponseAudioTranscriptDone: broadcastOnly(func(ev *voicelive.ServerEvent) Event {
		return Event{Type: EventAssistantTranscriptDone, Transcript: ev.Transcript, ItemID: ev.ItemID}
	}),
	voicelive.TypeInputTranscriptionCompleted: broadcastOnly(func(ev *voicelive.ServerEvent) Event {
		return Event{Type: EventUserTranscriptCompleted, Transcript: ev.Transcript, ItemID: ev.ItemID}
	}),
	voicelive.TypeInputSpeechStarted: broadcastOnly(func(*voicelive.ServerEvent) Event {
		return Event{Type: EventSpeechStarted}
	}),
	voicelive.TypeInputSpeechStopped: broadcastOnly(func(*voicelive.ServerEvent) Event {
		return Event{Type: EventSpeechStopped}
	}),
	voicelive.TypeInputCommitted: broadcastOnly(func(*voicelive.ServerEvent) Event {
		return Event{Type: EventInputAudioCommitted}
	}),
	voicelive.TypeResponseDone: broadcastOnly(func(ev *voicelive.ServerEvent) Event {
		return Event{Type: EventResponseDone, Payload: ev.Raw}
	}),
	voicelive.TypeAvatarConnecting:   (*Session).handleAvatarConnecting,
	voicelive.TypeAvatarConnected:    broadcastOnly(func(*voicelive.ServerEvent) Event { return Event{Type: EventAvatarConnected} }),
	voicelive.TypeAvatarDisconnected: (*Session).handleAvatarDisconnected,
}

// dispatch routes one upstream event through the table.
func (s *Session) dispatch(ev *voicelive.ServerEvent) {
	if fn, ok := translators[ev.Type]; ok {
		fn(s, ev)
		return
	}
	s.broadcast(Event{Type: EventPassthrough, Payload: ev.Raw})
}

// handleAvatarConnecting settles the pending negotiation with the decoded
// answer SDP (or fails it when the payload is empty), then tells listeners
// the avatar is on its way.
func (s *Session) handleAvatarConnecting(ev *voicelive.ServerEvent) {
	decoded := voicelive.DecodeServerSDP(ev.ServerSDP)

	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()

	if pending == nil {
		s.log.Warn("received server SDP with no pending negotiation")
	} else if decoded == "" {
		s.log.Error("empty server SDP")
		pending.fail(fmt.Errorf("%w: empty server SDP", ErrNegotiationFailed))
	} else {
		pending.resolve(decoded)
	}

	s.broadcast(Event{Type: EventAvatarConnecting})
}

// handleAvatarDisconnected resets avatar state, cancels any pending
// negotiation and notifies listeners.
func (s *Session) handleAvatarDisconnected(*voicelive.ServerEvent) {
	s.mu.Lock()
	s.avatarConnected = false
	if s.pending != nil {
		s.pending.fail(ErrNegotiationCancelled)
		s.pending = nil
	}
	s.mu.Unlock()

	s.broadcast(Event{Type: EventAvatarDisconnected})
}
