package voicelive

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Send when the link is closed and cannot
// be reopened.
var ErrNotConnected = errors.New("voicelive: link is not connected")

// APIError is an error reported by the upstream service in an error event.
type APIError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("voicelive: %s: %s", e.Code, e.Message)
	}
	if e.Type != "" {
		return fmt.Sprintf("voicelive: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("voicelive: %s", e.Message)
}
