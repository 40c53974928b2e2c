package relay

import "encoding/json"

// Normalized event types delivered to downstream listeners. This is the
// stable downstream contract, independent of the upstream event taxonomy.
const (
	EventSessionReady = "session_ready"
	EventError        = "error"

	EventAssistantAudioDelta      = "assistant_audio_delta"
	EventAssistantAudioDone       = "assistant_audio_done"
	EventAssistantTranscriptDelta = "assistant_transcript_delta"
	EventAssistantTranscriptDone  = "assistant_transcript_done"
	EventUserTranscriptCompleted  = "user_transcript_completed"

	EventSpeechStarted       = "speech_started"
	EventSpeechStopped       = "speech_stopped"
	EventInputAudioCommitted = "input_audio_committed"

	EventAvatarConnecting   = "avatar_connecting"
	EventAvatarConnected    = "avatar_connected"
	EventAvatarDisconnected = "avatar_disconnected"

	EventResponseDone = "response_done"

	// EventPassthrough wraps upstream events with no dedicated mapping.
	EventPassthrough = "event"
)

// Event is one normalized frame delivered to downstream listeners.
type Event struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	ItemID     string          `json:"item_id,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// errorEvent wraps an error message in an error-typed normalized event.
func errorEvent(message string) Event {
	payload, _ := json.Marshal(map[string]string{"message": message})
	return Event{Type: EventError, Payload: payload}
}
