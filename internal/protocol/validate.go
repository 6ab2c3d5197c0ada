package protocol

import (
	"encoding/json"
	"fmt"

	"telgen/internal/activity"
)

// validClientTypes is the set of allowed client→server message types.
var validClientTypes = map[string]bool{
	TypeHistoryRequest: true,
	TypeInfoRequest:    true,
}

// ValidateClientMessage validates a raw JSON message from a client.
// Returns the parsed Message and any validation error.
func ValidateClientMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if msg.Type == "" {
		return nil, fmt.Errorf("missing 'type' field")
	}

	if !validClientTypes[msg.Type] {
		return nil, fmt.Errorf("unknown message type: %s", msg.Type)
	}

	if msg.Payload == nil {
		return nil, fmt.Errorf("missing 'payload' field")
	}

	switch msg.Type {
	case TypeHistoryRequest:
		if _, err := ParseHistoryRequest(msg.Payload); err != nil {
			return nil, err
		}
	}

	return &msg, nil
}

// ParseHistoryRequest decodes and checks an activity.requestHistory payload.
func ParseHistoryRequest(payload json.RawMessage) (HistoryRequestPayload, error) {
	var p HistoryRequestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, fmt.Errorf("invalid payload for %s: %w", TypeHistoryRequest, err)
	}
	if p.Limit < 0 {
		return p, fmt.Errorf("field 'limit' must not be negative in %s payload", TypeHistoryRequest)
	}
	if p.ActivityType != "" && !activity.ValidType(activity.Type(p.ActivityType)) {
		return p, fmt.Errorf("unknown activityType %q in %s payload", p.ActivityType, TypeHistoryRequest)
	}
	return p, nil
}

// NewErrorMessage creates an error message ready to send to the client.
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}
