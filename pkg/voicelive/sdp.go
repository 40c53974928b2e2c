package voicelive

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v3"
)

// EncodeClientSDP wraps a browser offer in the envelope the upstream
// service expects: base64-encoded JSON of a WebRTC session description.
func EncodeClientSDP(clientSDP string) string {
	payload, _ := json.Marshal(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  clientSDP,
	})
	return base64.StdEncoding.EncodeToString(payload)
}

// DecodeServerSDP recovers the answer SDP from the upstream payload. The
// service has been observed to return either raw SDP text (recognized by
// its literal "v=0" prefix) or a base64-encoded JSON envelope with an sdp
// field. Decoding is best effort: any stage that fails returns the input
// (or the partially decoded text) unchanged.
func DecodeServerSDP(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "v=0") {
		return raw
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return raw
	}
	if !utf8.Valid(decoded) {
		return raw
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(decoded, &desc); err == nil && desc.SDP != "" {
		return desc.SDP
	}
	return string(decoded)
}

// ValidateSDP structurally parses an SDP document. Used to sanity-check
// decoded answers before they are handed to the browser; the peer
// connection remains the final arbiter.
func ValidateSDP(s string) error {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(s)); err != nil {
		return fmt.Errorf("voicelive: parse sdp: %w", err)
	}
	return nil
}
