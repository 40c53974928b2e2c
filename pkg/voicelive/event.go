package voicelive

// Client command types (sent from relay to Voice Live).
const (
	TypeSessionUpdate = "session.update"

	TypeInputAudioBufferAppend = "input_audio_buffer.append"
	TypeInputAudioBufferCommit = "input_audio_buffer.commit"
	TypeInputAudioBufferClear  = "input_audio_buffer.clear"

	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"

	TypeAvatarConnect    = "session.avatar.connect"
	TypeAvatarDisconnect = "session.avatar.disconnect"
)

// Server event types (received from Voice Live).
const (
	TypeError = "error"

	TypeResponseAudioDelta           = "response.audio.delta"
	TypeResponseAudioDone            = "response.audio.done"
	TypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	TypeResponseAudioTranscriptDone  = "response.audio_transcript.done"
	TypeResponseDone                 = "response.done"

	TypeInputTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"

	TypeInputSpeechStarted = "input_audio_buffer.speech_started"
	TypeInputSpeechStopped = "input_audio_buffer.speech_stopped"
	TypeInputCommitted     = "input_audio_buffer.committed"

	TypeAvatarConnecting   = "session.avatar.connecting"
	TypeAvatarConnected    = "session.avatar.connected"
	TypeAvatarDisconnected = "session.avatar.disconnected"
)

// ServerEvent is one inbound frame from the upstream connection. Only the
// fields the relay inspects are decoded; Raw preserves the full payload for
// pass-through delivery.
type ServerEvent struct {
	// Type is the upstream event type string.
	Type string `json:"type"`

	// EventID is the upstream event identifier.
	EventID string `json:"event_id,omitempty"`

	// Delta carries incremental audio (base64) or transcript text for
	// *.delta events.
	Delta string `json:"delta,omitempty"`

	// ItemID identifies the conversation item the event refers to.
	ItemID string `json:"item_id,omitempty"`

	// Transcript is the final transcript for *.done and transcription
	// completed events.
	Transcript string `json:"transcript,omitempty"`

	// ServerSDP is the avatar answer SDP on session.avatar.connecting.
	// It may be raw SDP text or a base64-encoded JSON envelope; see
	// DecodeServerSDP.
	ServerSDP string `json:"server_sdp,omitempty"`

	// Error is populated on error events.
	Error *APIError `json:"error,omitempty"`

	// Raw is the original JSON frame.
	Raw []byte `json:"-"`
}

// Inbound pairs a received event with a terminal receive-loop error.
// Exactly one of the fields is set.
type Inbound struct {
	Event *ServerEvent
	Err   error
}
