package voicelive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// OAuth scopes for the two tokens a connection needs: the AI scope
// authenticates the WebSocket itself, the ML scope rides along as the
// agent access token in the connection URL.
const (
	ScopeAI = "https://ai.azure.com/.default"
	ScopeML = "https://ml.azure.com/.default"
)

// TokenProvider acquires bearer tokens for the given OAuth scope.
type TokenProvider interface {
	Token(ctx context.Context, scope string) (string, error)
}

// Config holds everything needed to open an upstream Voice Live connection.
// All fields except AvatarICEURLs are required; Validate reports the first
// missing one. ConfigFromEnv loads the same variables the original
// deployment used.
type Config struct {
	// Endpoint is the Azure resource endpoint (https://...). It is
	// rewritten to wss:// when dialing.
	Endpoint string `yaml:"endpoint"`

	// APIVersion selects the realtime protocol version.
	APIVersion string `yaml:"api_version"`

	// AgentID identifies the agent to converse with.
	AgentID string `yaml:"agent_id"`

	// AgentConnectionString is the AI project connection string.
	AgentConnectionString string `yaml:"agent_connection_string"`

	// Voice is the TTS voice name (azure-standard).
	Voice string `yaml:"voice"`

	// Avatar appearance and video parameters.
	AvatarCharacter string `yaml:"avatar_character"`
	AvatarStyle     string `yaml:"avatar_style"`
	AvatarWidth     int    `yaml:"avatar_width"`
	AvatarHeight    int    `yaml:"avatar_height"`
	AvatarBitrate   int    `yaml:"avatar_bitrate"`

	// AvatarICEURLs optionally overrides the ICE servers offered to the
	// avatar peer connection.
	AvatarICEURLs []string `yaml:"avatar_ice_urls,omitempty"`
}

// Environment variable names, kept compatible with the original deployment.
const (
	envEndpoint         = "AZURE_VOICE_LIVE_ENDPOINT"
	envAPIVersion       = "AZURE_VOICE_LIVE_API_VERSION"
	envAgentID          = "AZURE_VOICE_LIVE_AGENT_ID"
	envConnectionString = "AZURE_VOICE_LIVE_AGENT_CONNECTION_STRING"
	envVoice            = "AZURE_TTS_VOICE"
	envAvatarCharacter  = "AZURE_VOICE_AVATAR_CHARACTER"
	envAvatarStyle      = "AZURE_VOICE_AVATAR_STYLE"
	envAvatarWidth      = "AZURE_VOICE_AVATAR_WIDTH"
	envAvatarHeight     = "AZURE_VOICE_AVATAR_HEIGHT"
	envAvatarBitrate    = "AZURE_VOICE_AVATAR_BITRATE"
	envAvatarICEURLs    = "AZURE_VOICE_AVATAR_ICE_URLS"
)

// ConfigFromEnv builds a Config from environment variables and validates it.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Endpoint:              os.Getenv(envEndpoint),
		APIVersion:            os.Getenv(envAPIVersion),
		AgentID:               os.Getenv(envAgentID),
		AgentConnectionString: os.Getenv(envConnectionString),
		Voice:                 os.Getenv(envVoice),
		AvatarCharacter:       os.Getenv(envAvatarCharacter),
		AvatarStyle:           os.Getenv(envAvatarStyle),
	}
	for _, f := range []struct {
		env string
		dst *int
	}{
		{envAvatarWidth, &cfg.AvatarWidth},
		{envAvatarHeight, &cfg.AvatarHeight},
		{envAvatarBitrate, &cfg.AvatarBitrate},
	} {
		raw := os.Getenv(f.env)
		if raw == "" {
			continue // Validate reports the missing variable
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("voicelive: %s must be an integer: %w", f.env, err)
		}
		*f.dst = n
	}
	if raw := os.Getenv(envAvatarICEURLs); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.AvatarICEURLs = append(cfg.AvatarICEURLs, u)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing required value. Configuration errors
// are fatal at construction and never retried.
func (c *Config) Validate() error {
	required := []struct {
		env string
		ok  bool
	}{
		{envEndpoint, c.Endpoint != ""},
		{envAPIVersion, c.APIVersion != ""},
		{envAgentID, c.AgentID != ""},
		{envConnectionString, c.AgentConnectionString != ""},
		{envVoice, c.Voice != ""},
		{envAvatarCharacter, c.AvatarCharacter != ""},
		{envAvatarStyle, c.AvatarStyle != ""},
		{envAvatarWidth, c.AvatarWidth > 0},
		{envAvatarHeight, c.AvatarHeight > 0},
		{envAvatarBitrate, c.AvatarBitrate > 0},
	}
	for _, r := range required {
		if !r.ok {
			return fmt.Errorf("voicelive: %s is required", r.env)
		}
	}
	return nil
}

// realtimeURL builds the wss:// connection URL. The ML-scope token travels
// as the agent-access-token query parameter.
func (c *Config) realtimeURL(agentAccessToken string) string {
	endpoint := strings.TrimSuffix(c.Endpoint, "/")
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	}
	q := url.Values{}
	q.Set("api-version", c.APIVersion)
	q.Set("agent-connection-string", c.AgentConnectionString)
	q.Set("agent-id", c.AgentID)
	q.Set("agent-access-token", agentAccessToken)
	return endpoint + "/voice-live/realtime?" + q.Encode()
}

// sessionDocument is the nested configuration sent as the initial
// session.update command after connecting.
func (c *Config) sessionDocument() map[string]any {
	avatar := map[string]any{
		"character":  c.AvatarCharacter,
		"style":      c.AvatarStyle,
		"customized": false,
		"video": map[string]any{
			"resolution": map[string]any{
				"width":  c.AvatarWidth,
				"height": c.AvatarHeight,
			},
			"bitrate": c.AvatarBitrate,
		},
	}
	if len(c.AvatarICEURLs) > 0 {
		avatar["ice_servers"] = []map[string]any{{"urls": c.AvatarICEURLs}}
	}
	return map[string]any{
		"modalities": []string{"text", "audio", "avatar"},
		"turn_detection": map[string]any{
			"type":                "azure_semantic_vad",
			"threshold":           0.3,
			"prefix_padding_ms":   200,
			"silence_duration_ms": 200,
			"remove_filler_words": false,
			"end_of_utterance_detection": map[string]any{
				"model":     "semantic_detection_v1",
				"threshold": 0.01,
				"timeout":   2,
			},
		},
		"input_audio_noise_reduction": map[string]any{
			"type": "azure_deep_noise_suppression",
		},
		"input_audio_echo_cancellation": map[string]any{
			"type": "server_echo_cancellation",
		},
		"avatar": avatar,
		"voice": map[string]any{
			"name":        c.Voice,
			"type":        "azure-standard",
			"temperature": 0.8,
		},
	}
}
