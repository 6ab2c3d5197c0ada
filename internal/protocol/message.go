package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"telgen/internal/activity"
)

// Message is the envelope for all live-feed messages.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a server-originated message with the current timestamp.
func NewMessage(msgType string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Server → Client message types.
const (
	TypeSessionInfo    = "session.info"
	TypeActivityRecord = "activity.record"
	TypeHistory        = "activity.history"
	TypeError          = "error"
)

// Client → Server message types.
const (
	TypeHistoryRequest = "activity.requestHistory"
	TypeInfoRequest    = "session.requestInfo"
)

// Error codes.
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrSessionClosed  = "SESSION_CLOSED"
	ErrInternal       = "INTERNAL"
)

// Server → Client payloads.

type SessionInfoPayload struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	PID       int    `json:"pid"`
	Username  string `json:"username"`
	Process   string `json:"processName"`
	LogPath   string `json:"logPath"`
	StartedAt string `json:"startedAt"`
	Records   int    `json:"records"`
}

// RecordPayload carries one activity record in structured form together with
// the exact text that was appended to the log.
type RecordPayload struct {
	Record activity.Record `json:"record"`
	Text   string          `json:"text"`
}

type HistoryPayload struct {
	ActivityType string            `json:"activityType,omitempty"`
	Records      []activity.Record `json:"records"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Client → Server payloads.

type HistoryRequestPayload struct {
	Limit        int    `json:"limit"`
	ActivityType string `json:"activityType"`
}

// NewRecordMessage wraps rec for delivery to feed clients.
func NewRecordMessage(rec activity.Record) (*Message, error) {
	return NewMessage(TypeActivityRecord, RecordPayload{
		Record: rec,
		Text:   string(rec.Format()),
	})
}

// NewHistoryMessage wraps a history answer. A nil slice is sent as [].
func NewHistoryMessage(activityType string, recs []activity.Record) (*Message, error) {
	if recs == nil {
		recs = []activity.Record{}
	}
	return NewMessage(TypeHistory, HistoryPayload{
		ActivityType: activityType,
		Records:      recs,
	})
}
